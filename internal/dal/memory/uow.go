package memory

import (
	"context"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/ioutboxrepo"
)

// UnitOfWork mirrors the Postgres unit of work. Between Begin and
// Commit/Rollback it holds the store lock and can roll every write back.
type UnitOfWork struct {
	store *Store
	snap  *snapshot

	orderRepo   *OrderRepository
	historyRepo *HistoryRepository
	outboxRepo  *OutboxRepository
}

func NewUnitOfWork(store *Store) *UnitOfWork {
	return &UnitOfWork{
		store:       store,
		orderRepo:   store.Orders(),
		historyRepo: store.History(),
		outboxRepo:  store.Outbox(),
	}
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) HistoryRepository() ihistoryrepo.IHistoryRepository {
	return u.historyRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.mu.Lock()
	snap := u.store.snapshot()
	u.snap = &snap

	l := locker{store: u.store, inTx: true}
	u.orderRepo = &OrderRepository{l}
	u.historyRepo = &HistoryRepository{l}
	u.outboxRepo = &OutboxRepository{l}

	return nil
}

func (u *UnitOfWork) Commit(_ context.Context) error {
	if u.snap == nil {
		return nil
	}
	u.snap = nil
	u.store.mu.Unlock()

	return nil
}

// Rollback is safe to defer: it is a no-op after Commit.
func (u *UnitOfWork) Rollback(_ context.Context) error {
	if u.snap == nil {
		return nil
	}
	u.store.restore(*u.snap)
	u.snap = nil
	u.store.mu.Unlock()

	return nil
}
