package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/history"
	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/service/models/outbox"
	"github.com/corray333/frameshop/order/internal/service/models/warning"
)

type OrderRepository struct{ locker }

func (r *OrderRepository) Insert(_ context.Context, o order.Order) error {
	defer r.lock()()
	if _, ok := r.store.orders[o.ID]; ok {
		return errs.Conflict("order already exists")
	}
	r.store.orders[o.ID] = o

	return nil
}

func (r *OrderRepository) Get(_ context.Context, id uuid.UUID) (*order.Order, error) {
	defer r.lock()()
	o, ok := r.store.orders[id]
	if !ok {
		return nil, errs.NotFound("order not found")
	}

	return &o, nil
}

// GetForUpdate is Get; the unit of work already holds the store lock.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r *OrderRepository) Update(_ context.Context, o order.Order, expectedVersion int64) error {
	defer r.lock()()
	current, ok := r.store.orders[o.ID]
	if !ok {
		return errs.NotFound("order not found")
	}
	if current.Version != expectedVersion {
		return errs.Conflict("order was modified concurrently")
	}
	r.store.orders[o.ID] = o

	return nil
}

func (r *OrderRepository) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, int, error) {
	defer r.lock()()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	matched := make([]order.Order, 0)
	for _, o := range r.store.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(o.CustomerName), search) &&
			!strings.Contains(strings.ToLower(o.CustomerEmail), search) &&
			!strings.Contains(strings.ToLower(o.PaymentReference), search) {
			continue
		}
		matched = append(matched, o)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	return append([]order.Order(nil), matched[start:end]...), total, nil
}

type HistoryRepository struct{ locker }

func (r *HistoryRepository) Insert(_ context.Context, entry history.Entry) error {
	defer r.lock()()
	for _, e := range r.store.history {
		if e.OperationID == entry.OperationID {
			return ihistoryrepo.ErrDuplicateOperation
		}
	}
	r.store.history = append(r.store.history, entry)

	return nil
}

// ListByOrder returns entries newest first; equal timestamps keep reverse insertion order.
func (r *HistoryRepository) ListByOrder(_ context.Context, orderID uuid.UUID) ([]history.Entry, error) {
	defer r.lock()()
	entries := []history.Entry{}
	for i := len(r.store.history) - 1; i >= 0; i-- {
		if r.store.history[i].OrderID == orderID {
			entries = append(entries, r.store.history[i])
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}

func (r *HistoryRepository) GetByOperationID(_ context.Context, operationID uuid.UUID) (*history.Entry, error) {
	defer r.lock()()
	for _, e := range r.store.history {
		if e.OperationID == operationID {
			return &e, nil
		}
	}

	return nil, errs.NotFound("history entry not found")
}

type OutboxRepository struct{ locker }

func (r *OutboxRepository) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	defer r.lock()()
	r.store.nextOutboxID++
	msg.ID = r.store.nextOutboxID
	r.store.outbox = append(r.store.outbox, msg)

	return nil
}

func (r *OutboxRepository) GetPendingMessages(_ context.Context, limit int) ([]outbox.OutboxMessage, error) {
	defer r.lock()()
	now := r.store.now()
	pending := []outbox.OutboxMessage{}
	for _, msg := range r.store.outbox {
		if msg.RetryCount >= msg.MaxRetries || msg.NextRetryAt.After(now) {
			continue
		}
		pending = append(pending, msg)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].NextRetryAt.Before(pending[j].NextRetryAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

func (r *OutboxRepository) Delete(_ context.Context, id int64) error {
	defer r.lock()()
	for i, msg := range r.store.outbox {
		if msg.ID == id {
			r.store.outbox = append(r.store.outbox[:i:i], r.store.outbox[i+1:]...)
			return nil
		}
	}

	return nil
}

func (r *OutboxRepository) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	defer r.lock()()
	for i := range r.store.outbox {
		if r.store.outbox[i].ID == id {
			r.store.outbox[i].RetryCount = retryCount
			r.store.outbox[i].LastError = lastError
			r.store.outbox[i].NextRetryAt = nextRetryAt
			r.store.outbox[i].UpdatedAt = r.store.now()
			return nil
		}
	}

	return errs.NotFound("outbox message not found")
}

// All returns every outbox row, including exhausted ones.
func (r *OutboxRepository) All() []outbox.OutboxMessage {
	defer r.lock()()

	return append([]outbox.OutboxMessage(nil), r.store.outbox...)
}

type EmployeeRepository struct{ locker }

func (r *EmployeeRepository) Insert(_ context.Context, e employee.Employee) error {
	defer r.lock()()
	for _, existing := range r.store.employees {
		if strings.EqualFold(existing.Email, e.Email) {
			return errs.Conflict("employee email already registered")
		}
	}
	r.store.employees[e.ID] = e

	return nil
}

func (r *EmployeeRepository) GetByEmail(_ context.Context, email string) (*employee.Employee, error) {
	defer r.lock()()
	email = strings.TrimSpace(email)
	for _, e := range r.store.employees {
		if strings.EqualFold(e.Email, email) {
			return &e, nil
		}
	}

	return nil, errs.NotFound("employee not found")
}

func (r *EmployeeRepository) GetByID(_ context.Context, id uuid.UUID) (*employee.Employee, error) {
	defer r.lock()()
	e, ok := r.store.employees[id]
	if !ok {
		return nil, errs.NotFound("employee not found")
	}

	return &e, nil
}

type RateLimitRepository struct{ locker }

func (r *RateLimitRepository) Count(_ context.Context, key string) (int, error) {
	defer r.lock()()
	entry, ok := r.store.rateLimits[key]
	if !ok || !entry.expiresAt.After(r.store.now()) {
		return 0, nil
	}

	return entry.count, nil
}

func (r *RateLimitRepository) Hit(_ context.Context, key string, window time.Duration) (int, error) {
	defer r.lock()()
	now := r.store.now()
	entry, ok := r.store.rateLimits[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = rateEntry{expiresAt: now.Add(window)}
	}
	entry.count++
	r.store.rateLimits[key] = entry

	return entry.count, nil
}

func (r *RateLimitRepository) Reset(_ context.Context, key string) error {
	defer r.lock()()
	delete(r.store.rateLimits, key)

	return nil
}

type WarningRepository struct{ locker }

func (r *WarningRepository) Insert(_ context.Context, w warning.ConsistencyWarning) error {
	defer r.lock()()
	r.store.nextWarnID++
	w.ID = r.store.nextWarnID
	r.store.warnings = append(r.store.warnings, w)

	return nil
}

func (r *WarningRepository) List(_ context.Context, limit int) ([]warning.ConsistencyWarning, error) {
	defer r.lock()()
	out := []warning.ConsistencyWarning{}
	for i := len(r.store.warnings) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.store.warnings[i])
	}

	return out, nil
}
