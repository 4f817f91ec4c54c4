package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is a storefront purchase tracked through the fulfilment lifecycle.
type Order struct {
	ID               uuid.UUID       `json:"id"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	ProductName      string          `json:"product_name"`
	ProductID        string          `json:"product_id,omitempty"`
	Quantity         int             `json:"quantity"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	ShippingAddress  string          `json:"shipping_address"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Status           Status          `json:"status"`
	ShippingCarrier  *string         `json:"shipping_carrier"`
	TrackingNumber   *string         `json:"tracking_number"`
	TrackingURL      *string         `json:"tracking_url"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	UpdatedBy        *uuid.UUID      `json:"updated_by"`
}

// HasTracking reports whether both carrier and tracking number are set.
func (o *Order) HasTracking() bool {
	return o.ShippingCarrier != nil && *o.ShippingCarrier != "" &&
		o.TrackingNumber != nil && *o.TrackingNumber != ""
}

// CreateOrderModel is the checkout payload accepted by CreateOrder.
type CreateOrderModel struct {
	CustomerName     string          `json:"customer_name" validate:"required,max=200"`
	CustomerEmail    string          `json:"customer_email" validate:"required,email,max=320"`
	CustomerPhone    string          `json:"customer_phone" validate:"max=50"`
	ProductName      string          `json:"product_name" validate:"required,max=200"`
	ProductID        string          `json:"product_id" validate:"max=100"`
	Quantity         int             `json:"quantity" validate:"gt=0"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	ShippingAddress  string          `json:"shipping_address" validate:"required,max=1000"`
	PaymentMethod    string          `json:"payment_method" validate:"max=50"`
	PaymentReference string          `json:"payment_reference" validate:"max=200"`
	Notes            string          `json:"notes" validate:"max=2000"`
}

// Tracking is the shipment metadata attached by AddTracking.
type Tracking struct {
	Carrier        string  `json:"carrier"`
	TrackingNumber string  `json:"tracking_number"`
	TrackingURL    *string `json:"tracking_url,omitempty"`
}
