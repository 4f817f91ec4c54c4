package ordersvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/iwarningrepo"
	"github.com/corray333/frameshop/order/internal/dal/memory"
	"github.com/corray333/frameshop/order/internal/dal/postgres"
	warningrepo "github.com/corray333/frameshop/order/internal/dal/repositories/warning/postgres"
	"github.com/corray333/frameshop/order/internal/dal/uow"
)

const (
	defaultRetryAttempts    = 3
	defaultRetryBaseDelay   = 50 * time.Millisecond
	defaultExchange         = "orders.changes"
	defaultOutboxMaxRetries = 5
)

// OrderService is the order lifecycle manager: it validates and applies
// status transitions and writes the audit trail and change events with them.
type OrderService struct {
	newUOW   func() unitOfWork
	warnings iwarningrepo.IWarningRepository
	validate *validator.Validate

	strict           bool
	retryAttempts    uint64
	retryBaseDelay   time.Duration
	exchange         string
	outboxMaxRetries int
	now              func() time.Time
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	HistoryRepository() ihistoryrepo.IHistoryRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		validate:         newValidator(),
		strict:           true,
		retryAttempts:    defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		exchange:         defaultExchange,
		outboxMaxRetries: defaultOutboxMaxRetries,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: no storage configured")
	}
	if s.warnings == nil {
		slog.Warn("Order service has no consistency warning store, warnings are only logged")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
		s.warnings = warningrepo.NewWarningRepository(pgClient.Pool())
	}
}

// WithMemoryStore backs the OrderService with the in-process store.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMemoryStore(store *memory.Store) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork {
			return memory.NewUnitOfWork(store)
		}
		s.warnings = store.Warnings()
	}
}

// WithStrictTransitions toggles enforcement of the lifecycle graph.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithStrictTransitions(strict bool) option {
	return func(s *OrderService) {
		s.strict = strict
	}
}

// WithRetryPolicy bounds retries of a unit of work that failed with Unavailable.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetryPolicy(attempts int, baseDelay time.Duration) option {
	return func(s *OrderService) {
		if attempts > 0 {
			s.retryAttempts = uint64(attempts)
		}
		if baseDelay > 0 {
			s.retryBaseDelay = baseDelay
		}
	}
}

// WithEventExchange sets the exchange and delivery attempts of outbox events.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventExchange(exchange string, maxRetries int) option {
	return func(s *OrderService) {
		if exchange != "" {
			s.exchange = exchange
		}
		if maxRetries > 0 {
			s.outboxMaxRetries = maxRetries
		}
	}
}

// WithClock replaces the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func withUnitOfWorkFactory(f func() unitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = f
	}
}
