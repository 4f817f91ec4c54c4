// Package memory is an in-process implementation of every repository and of
// the unit of work. It backs storage.driver=memory and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/history"
	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/service/models/outbox"
	"github.com/corray333/frameshop/order/internal/service/models/warning"
)

type rateEntry struct {
	count     int
	expiresAt time.Time
}

// Store holds all tables. A single mutex serializes writers; an open unit of
// work holds it until Commit or Rollback.
type Store struct {
	mu sync.Mutex

	orders       map[uuid.UUID]order.Order
	history      []history.Entry
	employees    map[uuid.UUID]employee.Employee
	outbox       []outbox.OutboxMessage
	nextOutboxID int64
	rateLimits   map[string]rateEntry
	warnings     []warning.ConsistencyWarning
	nextWarnID   int64

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		orders:     make(map[uuid.UUID]order.Order),
		employees:  make(map[uuid.UUID]employee.Employee),
		rateLimits: make(map[string]rateEntry),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for expiry checks.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

type snapshot struct {
	orders       map[uuid.UUID]order.Order
	history      []history.Entry
	outbox       []outbox.OutboxMessage
	nextOutboxID int64
}

// snapshot copies the tables a unit of work may write. Caller holds mu.
func (s *Store) snapshot() snapshot {
	orders := make(map[uuid.UUID]order.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = v
	}

	return snapshot{
		orders:       orders,
		history:      append([]history.Entry(nil), s.history...),
		outbox:       append([]outbox.OutboxMessage(nil), s.outbox...),
		nextOutboxID: s.nextOutboxID,
	}
}

// restore reverts to snap. Caller holds mu.
func (s *Store) restore(snap snapshot) {
	s.orders = snap.orders
	s.history = snap.history
	s.outbox = snap.outbox
	s.nextOutboxID = snap.nextOutboxID
}

// locker acquires the store mutex unless the caller already holds it through a unit of work.
type locker struct {
	store *Store
	inTx  bool
}

func (l locker) lock() func() {
	if l.inTx {
		return func() {}
	}
	l.store.mu.Lock()

	return l.store.mu.Unlock
}

func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{locker{store: s}}
}

func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{locker{store: s}}
}

func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{locker{store: s}}
}

func (s *Store) Employees() *EmployeeRepository {
	return &EmployeeRepository{locker{store: s}}
}

func (s *Store) RateLimits() *RateLimitRepository {
	return &RateLimitRepository{locker{store: s}}
}

func (s *Store) Warnings() *WarningRepository {
	return &WarningRepository{locker{store: s}}
}

// Ping reports only context cancellation; the store itself is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
