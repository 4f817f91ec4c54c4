package grpctransport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health entry of the order lifecycle service.
const ServiceName = "frameshop.order.v1.OrderLifecycle"

// pinger reports whether the store is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

// GRPCTransport serves the standard health service, reporting SERVING while
// the store answers pings.
type GRPCTransport struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	store    pinger
	interval time.Duration
}

// NewGRPCTransport creates a new GRPCTransport.
func NewGRPCTransport(store pinger) *GRPCTransport {
	listener, err := net.Listen("tcp", ":"+viper.GetString("server.grpc.port"))
	if err != nil {
		panic(err)
	}

	interval := time.Duration(viper.GetInt("server.grpc.health_interval_seconds")) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &GRPCTransport{
		server:   newGRPCServer(),
		listener: listener,
		health:   health.NewServer(),
		store:    store,
		interval: interval,
	}
}

// Run starts the gRPC server.
func (g *GRPCTransport) Run() error {
	g.RegisterServices()
	slog.Info("Starting gRPC server", "address", g.listener.Addr().String())

	return g.server.Serve(g.listener)
}

// WatchHealth pings the store every interval until ctx is done.
func (g *GRPCTransport) WatchHealth(ctx context.Context) error {
	g.checkHealth(ctx)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.checkHealth(ctx)
		}
	}
}

func (g *GRPCTransport) checkHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, g.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := g.store.Ping(ctx); err != nil {
		slog.Warn("Store ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Shutdown gracefully shuts down the gRPC server.
func (g *GRPCTransport) Shutdown(ctx context.Context) error {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()

		return ctx.Err()
	}
}

// RegisterServices registers the gRPC services.
func (g *GRPCTransport) RegisterServices() {
	healthpb.RegisterHealthServer(g.server, g.health)
	reflection.Register(g.server)
}

// newGRPCServer creates a new gRPC server with default settings.
func newGRPCServer() *grpc.Server {
	keepaliveParams := keepalive.ServerParameters{
		MaxConnectionIdle: time.Duration(
			viper.GetInt("server.grpc.keepalive.max_connection_idle"),
		) * time.Minute,
		MaxConnectionAge: time.Duration(
			viper.GetInt("server.grpc.keepalive.max_connection_age"),
		) * time.Minute,
		MaxConnectionAgeGrace: time.Duration(
			viper.GetInt("server.grpc.keepalive.max_connection_age_grace"),
		) * time.Second,
		Time: time.Duration(
			viper.GetInt("server.grpc.keepalive.time"),
		) * time.Second,
		Timeout: time.Duration(
			viper.GetInt("server.grpc.keepalive.timeout"),
		) * time.Second,
	}

	keepalivePolicy := keepalive.EnforcementPolicy{
		MinTime: time.Duration(
			viper.GetInt("server.grpc.keepalive.min_time"),
		) * time.Second,
		PermitWithoutStream: viper.GetBool("server.grpc.keepalive.permit_without_stream"),
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(keepalivePolicy),
	}

	return grpc.NewServer(opts...)
}
