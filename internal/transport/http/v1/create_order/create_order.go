package createorder

import (
	"context"
	"net/http"

	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, model order.CreateOrderModel) (*order.Order, error)
}

// CreateOrder handles storefront checkout. The order starts in pending.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req order.CreateOrderModel
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	created, err := service.CreateOrder(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+created.ID.String())
	response.JSON(w, http.StatusCreated, created)
}
