package getorder

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/transport/http/params"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

// service is an interface for the service layer.
type service interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, err := params.OrderID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	o, err := service.GetOrder(r.Context(), id)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, o)
}
