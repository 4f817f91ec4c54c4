// Package params reads path and header parameters shared by the order endpoints.
package params

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/services/ordersvc"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// OrderID parses the {id} path parameter.
func OrderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errs.Wrap(errs.KindValidation, err, "order id must be a UUID")
	}

	return id, nil
}

// WithIdempotencyKey attaches the Idempotency-Key header, when present, as the
// operation id of the mutation.
func WithIdempotencyKey(r *http.Request) (context.Context, error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		return r.Context(), nil
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "Idempotency-Key must be a UUID")
	}

	return ordersvc.WithOperationID(r.Context(), id), nil
}
