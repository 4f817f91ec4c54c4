package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/corray333/frameshop/order/internal/events"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/history"
	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/service/models/warning"
	"github.com/corray333/frameshop/order/internal/service/services/authsvc"
	"github.com/corray333/frameshop/order/internal/transport/http/docs"
	"github.com/corray333/frameshop/order/internal/transport/http/middleware/auth"
	addtracking "github.com/corray333/frameshop/order/internal/transport/http/v1/add_tracking"
	consistencywarnings "github.com/corray333/frameshop/order/internal/transport/http/v1/consistency_warnings"
	createorder "github.com/corray333/frameshop/order/internal/transport/http/v1/create_order"
	getorder "github.com/corray333/frameshop/order/internal/transport/http/v1/get_order"
	"github.com/corray333/frameshop/order/internal/transport/http/v1/health"
	listorders "github.com/corray333/frameshop/order/internal/transport/http/v1/list_orders"
	"github.com/corray333/frameshop/order/internal/transport/http/v1/login"
	orderevents "github.com/corray333/frameshop/order/internal/transport/http/v1/order_events"
	orderhistory "github.com/corray333/frameshop/order/internal/transport/http/v1/order_history"
	setstatus "github.com/corray333/frameshop/order/internal/transport/http/v1/set_status"
	"github.com/corray333/frameshop/order/pkg/http/middleware/trace"
	"github.com/corray333/frameshop/order/pkg/logger"
)

type orderService interface {
	CreateOrder(ctx context.Context, model order.CreateOrderModel) (*order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]history.Entry, error)
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) (*order.Page, error)
	SetStatus(ctx context.Context, actor *employee.Principal, id uuid.UUID, token string, notes *string) (*order.Order, error)
	AddTracking(ctx context.Context, actor *employee.Principal, id uuid.UUID, tracking order.Tracking) (*order.Order, error)
	ConsistencyWarnings(ctx context.Context, limit int) ([]warning.ConsistencyWarning, error)
}

type authService interface {
	Login(ctx context.Context, email, password, clientIP string) (*authsvc.Session, error)
	Verify(token string) (*employee.Principal, error)
}

type broker interface {
	Subscribe(filter events.Filter, handler events.Handler) (unsubscribe func())
}

type pinger interface {
	Ping(ctx context.Context) error
}

type HTTPTransport struct {
	server *http.Server
	router *chi.Mux

	orders orderService
	auth   authService
	broker broker
	store  pinger
}

func NewHTTPTransport(orders orderService, auth authService, broker broker, store pinger) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server: server,
		router: router,
		orders: orders,
		auth:   auth,
		broker: broker,
		store:  store,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown drains in-flight requests. Open event streams end with their request context.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", h.healthz)
	h.router.Get(docs.DocPath, docs.Document)
	h.router.Get("/swagger/*", docs.UI())

	h.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.login)
		r.Post("/orders", h.createOrder)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(h.auth))
			r.Use(auth.RequireRoles(employee.RoleAdmin, employee.RoleManager, employee.RoleSupport))

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Get("/orders/{id}/history", h.getHistory)
			r.Post("/orders/{id}/status", h.setStatus)
			r.Post("/orders/{id}/tracking", h.addTracking)
			r.Get("/events/orders", h.streamEvents)

			r.With(auth.RequireRoles(employee.RoleAdmin)).
				Get("/admin/consistency-warnings", h.consistencyWarnings)
		})
	})
}

func (h *HTTPTransport) healthz(w http.ResponseWriter, r *http.Request) {
	health.Healthz(w, r, h.store)
}

func (h *HTTPTransport) login(w http.ResponseWriter, r *http.Request) {
	login.Login(w, r, h.auth)
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.orders)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) getHistory(w http.ResponseWriter, r *http.Request) {
	orderhistory.GetHistory(w, r, h.orders)
}

func (h *HTTPTransport) setStatus(w http.ResponseWriter, r *http.Request) {
	setstatus.SetStatus(w, r, h.orders)
}

func (h *HTTPTransport) addTracking(w http.ResponseWriter, r *http.Request) {
	addtracking.AddTracking(w, r, h.orders)
}

func (h *HTTPTransport) streamEvents(w http.ResponseWriter, r *http.Request) {
	orderevents.Stream(w, r, h.broker)
}

func (h *HTTPTransport) consistencyWarnings(w http.ResponseWriter, r *http.Request) {
	consistencywarnings.List(w, r, h.orders)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

// newServer leaves WriteTimeout at zero unless configured, since the event
// stream holds responses open.
func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(viper.GetInt("server.http.read_timeout_seconds")) * time.Second,
		WriteTimeout:      time.Duration(viper.GetInt("server.http.write_timeout_seconds")) * time.Second,
	}
}
