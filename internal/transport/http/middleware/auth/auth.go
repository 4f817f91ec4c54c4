package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

type principalKey struct{}

type verifier interface {
	Verify(token string) (*employee.Principal, error)
}

// WithPrincipal stores the authenticated caller in ctx.
func WithPrincipal(ctx context.Context, p *employee.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(ctx context.Context) (*employee.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*employee.Principal)
	return p, ok && p != nil
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// EventSource, so the access_token query parameter is accepted as well.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	return r.URL.Query().Get("access_token")
}

// Authenticate rejects requests without a valid token.
func Authenticate(v verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := v.Verify(bearerToken(r))
			if err != nil {
				response.Error(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRoles rejects authenticated callers whose role is not listed.
func RequireRoles(roles ...employee.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				response.Error(w, r, errs.Unauthenticated("authentication required"))
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Error(w, r, errs.Forbidden("insufficient role"))
		})
	}
}
