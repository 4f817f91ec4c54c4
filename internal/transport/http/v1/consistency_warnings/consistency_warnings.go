package consistencywarnings

import (
	"context"
	"net/http"
	"strconv"

	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/warning"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

const defaultLimit = 100

// service is an interface for the service layer.
type service interface {
	ConsistencyWarnings(ctx context.Context, limit int) ([]warning.ConsistencyWarning, error)
}

type warningsResponse struct {
	Items []warning.ConsistencyWarning `json:"items"`
}

// List returns the most recent consistency warnings.
func List(w http.ResponseWriter, r *http.Request, service service) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(w, r, errs.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	items, err := service.ConsistencyWarnings(r.Context(), limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []warning.ConsistencyWarning{}
	}

	response.JSON(w, http.StatusOK, warningsResponse{Items: items})
}
