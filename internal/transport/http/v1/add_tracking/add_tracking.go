package addtracking

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/transport/http/middleware/auth"
	"github.com/corray333/frameshop/order/internal/transport/http/params"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

// service is an interface for the service layer.
type service interface {
	AddTracking(ctx context.Context, actor *employee.Principal, id uuid.UUID, tracking order.Tracking) (*order.Order, error)
}

// AddTracking attaches shipment tracking and marks the order shipped.
func AddTracking(w http.ResponseWriter, r *http.Request, service service) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, r, errs.Unauthenticated("authentication required"))
		return
	}
	id, err := params.OrderID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	ctx, err := params.WithIdempotencyKey(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req order.Tracking
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	o, err := service.AddTracking(ctx, actor, id, req)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, o)
}
