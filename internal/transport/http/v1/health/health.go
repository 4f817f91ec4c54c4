package health

import (
	"context"
	"net/http"
	"time"

	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

const pingTimeout = 2 * time.Second

// pinger reports whether the store is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

func Healthz(w http.ResponseWriter, r *http.Request, store pinger) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
