package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ieventpublisher"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/iwarningrepo"
	"github.com/corray333/frameshop/order/internal/dal/kafka"
	"github.com/corray333/frameshop/order/internal/dal/memory"
	"github.com/corray333/frameshop/order/internal/dal/postgres"
	"github.com/corray333/frameshop/order/internal/dal/rabbitmq"
	eventkafka "github.com/corray333/frameshop/order/internal/dal/repositories/events/kafka"
	eventlocal "github.com/corray333/frameshop/order/internal/dal/repositories/events/local"
	eventrabbitmq "github.com/corray333/frameshop/order/internal/dal/repositories/events/rabbitmq"
	outboxrepo "github.com/corray333/frameshop/order/internal/dal/repositories/outbox/postgres"
	warningrepo "github.com/corray333/frameshop/order/internal/dal/repositories/warning/postgres"
	"github.com/corray333/frameshop/order/internal/events"
	"github.com/corray333/frameshop/order/internal/otel"
	"github.com/corray333/frameshop/order/internal/service/services/authsvc"
	"github.com/corray333/frameshop/order/internal/service/services/ordersvc"
	"github.com/corray333/frameshop/order/internal/transport/consumer"
	grpctransport "github.com/corray333/frameshop/order/internal/transport/grpc"
	httptransport "github.com/corray333/frameshop/order/internal/transport/http"
	outboxworker "github.com/corray333/frameshop/order/internal/worker/outbox"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

// App represents the application.
type App struct {
	orderSvc      *ordersvc.OrderService
	authSvc       *authsvc.AuthService
	broker        *events.Broker
	httpTransport *httptransport.HTTPTransport
	grpcTransport *grpctransport.GRPCTransport
	worker        *outboxworker.Worker
	consumer      runner

	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	kafkaClient    *kafka.Client
	otel           *otel.OtelController
}

// storage is the store-specific wiring chosen by storage.driver.
type storage struct {
	orderOpt ordersvcOption
	authOpt  authsvcOption
	outbox   ioutboxrepo.IOutboxRepository
	warnings iwarningrepo.IWarningRepository
	store    pinger
	postgres *postgres.Client
}

type (
	ordersvcOption = func(*ordersvc.OrderService)
	authsvcOption  = func(*authsvc.AuthService)
)

// MustNewApp creates a new application.
func MustNewApp() *App {
	a := &App{
		broker: events.NewBroker(),
	}
	if viper.GetBool("otel.enabled") {
		a.otel = otel.MustInitOtel()
	}

	st := mustNewStorage()
	a.postgresClient = st.postgres

	a.orderSvc = ordersvc.MustNewOrderService(
		st.orderOpt,
		ordersvc.WithStrictTransitions(viper.GetBool("lifecycle.strict_transitions")),
		ordersvc.WithRetryPolicy(
			viper.GetInt("lifecycle.retry.max_attempts"),
			time.Duration(viper.GetInt("lifecycle.retry.base_delay_ms"))*time.Millisecond,
		),
		ordersvc.WithEventExchange(viper.GetString("events.exchange"), viper.GetInt("outbox.max_retries")),
	)
	a.authSvc = MustNewAuthService(st.authOpt)

	publisher := a.mustNewEventPipeline()
	a.worker = outboxworker.NewWorker(st.outbox, publisher, st.warnings)

	a.httpTransport = httptransport.NewHTTPTransport(a.orderSvc, a.authSvc, a.broker, st.store)
	a.httpTransport.RegisterRoutes()
	a.grpcTransport = grpctransport.NewGRPCTransport(st.store)

	return a
}

// MustNewAuthService builds the AuthService from config. The CLI uses it to
// provision employees.
func MustNewAuthService(storeOpt authsvcOption) *authsvc.AuthService {
	return authsvc.MustNewAuthService(
		storeOpt,
		authsvc.WithSigningSecret(viper.GetString("auth.signing_secret")),
		authsvc.WithTokenTTL(time.Duration(viper.GetInt("auth.token_ttl_minutes"))*time.Minute),
		authsvc.WithLoginLimit(
			viper.GetInt("auth.login.max_attempts"),
			time.Duration(viper.GetInt("auth.login.window_seconds"))*time.Second,
		),
	)
}

func mustNewStorage() storage {
	driver := viper.GetString("storage.driver")
	switch driver {
	case "postgres":
		pg := postgres.MustNewClient()
		return storage{
			orderOpt: ordersvc.WithPostgresClient(pg),
			authOpt:  authsvc.WithPostgresClient(pg),
			outbox:   outboxrepo.NewOutboxRepository(pg.Pool()),
			warnings: warningrepo.NewWarningRepository(pg.Pool()),
			store:    pg,
			postgres: pg,
		}
	case "memory":
		slog.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return storage{
			orderOpt: ordersvc.WithMemoryStore(store),
			authOpt:  authsvc.WithMemoryStore(store),
			outbox:   store.Outbox(),
			warnings: store.Warnings(),
			store:    store,
		}
	default:
		panic(fmt.Sprintf("unknown storage.driver %q", driver))
	}
}

// mustNewEventPipeline picks the outbox publisher and, for broker drivers, the
// consumer that feeds received events back into the local broker.
func (a *App) mustNewEventPipeline() ieventpublisher.IEventPublisher {
	exchange := viper.GetString("events.exchange")

	driver := viper.GetString("events.driver")
	switch driver {
	case "local":
		return eventlocal.NewEventLocalRepository(a.broker)
	case "rabbitmq":
		a.rabbitClient = rabbitmq.MustNewClient()
		a.consumer = consumer.MustNewRabbitMQConsumer(a.rabbitClient, a.broker, exchange)
		return eventrabbitmq.NewEventRabbitMQRepository(a.rabbitClient, exchange)
	case "kafka":
		a.kafkaClient = kafka.MustNewClient()
		a.consumer = consumer.NewKafkaConsumer(a.kafkaClient.Consumer(), a.kafkaClient.Topic(), a.broker)
		return eventkafka.NewEventKafkaRepository(a.kafkaClient.Producer(), a.kafkaClient.Topic())
	default:
		panic(fmt.Sprintf("unknown events.driver %q", driver))
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.httpTransport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.grpcTransport.Run(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.grpcTransport.WatchHealth(gctx)
	})
	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})
	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")
		a.shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Application stopped with error", "error", err)
	}
	a.close()

	slog.Info("Application shutdown complete")
}

func (a *App) shutdown() {
	timeout := time.Duration(viper.GetInt("server.http.shutdown_timeout_seconds")) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	} else {
		slog.Info("gRPC server stopped gracefully")
	}

	if err := a.otel.Shutdown(ctx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}
}

func (a *App) close() {
	if a.rabbitClient != nil {
		if err := a.rabbitClient.Close(); err != nil {
			slog.Error("RabbitMQ connection close error", "error", err)
		}
	}
	if a.kafkaClient != nil {
		if err := a.kafkaClient.Close(); err != nil {
			slog.Error("Kafka client close error", "error", err)
		}
	}
	if a.postgresClient != nil {
		a.postgresClient.Close()
		slog.Info("Database connection closed gracefully")
	}
}
