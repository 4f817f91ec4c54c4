// Package response writes JSON bodies and the structured error envelope.
package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/corray333/frameshop/order/internal/service/errs"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var statuses = map[errs.Kind]int{
	errs.KindValidation:        http.StatusBadRequest,
	errs.KindUnauthenticated:   http.StatusUnauthorized,
	errs.KindForbidden:         http.StatusForbidden,
	errs.KindNotFound:          http.StatusNotFound,
	errs.KindInvalidTransition: http.StatusConflict,
	errs.KindConflict:          http.StatusConflict,
	errs.KindRateLimited:       http.StatusTooManyRequests,
	errs.KindUnavailable:       http.StatusServiceUnavailable,
	errs.KindInternal:          http.StatusInternalServerError,
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind errs.Kind) int {
	if status, ok := statuses[kind]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

// Error writes the error envelope for err and logs it.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := StatusOf(kind)

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "kind", kind.String(), "error", err)
	} else {
		slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind.String(), "error", err)
	}
	if kind == errs.KindRateLimited {
		w.Header().Set("Retry-After", "60")
	}

	JSON(w, status, errorBody{Error: errorDetail{Kind: kind.String(), Message: errs.Message(err)}})
}

// DecodeJSON reads a bounded JSON body into v. Failures are validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Validation("request body is required")
		}
		return errs.Wrap(errs.KindValidation, err, "malformed JSON body")
	}

	return nil
}
