package login

import (
	"context"
	"net"
	"net/http"

	"github.com/corray333/frameshop/order/internal/service/services/authsvc"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

// service is an interface for the service layer.
type service interface {
	Login(ctx context.Context, email, password, clientIP string) (*authsvc.Session, error)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges employee credentials for a signed token.
func Login(w http.ResponseWriter, r *http.Request, service service) {
	var req loginRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	session, err := service.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, session)
}

// clientIP strips the port from RemoteAddr. RealIP may already have replaced
// it with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
