package orderhistory

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/models/history"
	"github.com/corray333/frameshop/order/internal/transport/http/params"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

// service is an interface for the service layer.
type service interface {
	GetHistory(ctx context.Context, id uuid.UUID) ([]history.Entry, error)
}

type historyResponse struct {
	Items []history.Entry `json:"items"`
}

// GetHistory returns the audit trail of an order, newest first.
func GetHistory(w http.ResponseWriter, r *http.Request, service service) {
	id, err := params.OrderID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	entries, err := service.GetHistory(r.Context(), id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	response.JSON(w, http.StatusOK, historyResponse{Items: entries})
}
