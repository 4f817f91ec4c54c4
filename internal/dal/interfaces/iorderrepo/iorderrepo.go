package iorderrepo

import (
	"context"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/models/order"
)

// IOrderRepository is an interface for order repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) error
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	// GetForUpdate locks the order row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error)
	// Update writes o if the stored version still equals expectedVersion.
	Update(ctx context.Context, o order.Order, expectedVersion int64) error
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, int, error)
}
