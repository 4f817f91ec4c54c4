package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/frameshop/order/internal/dal/postgres"
	historyrepo "github.com/corray333/frameshop/order/internal/dal/repositories/history/postgres"
	orderrepo "github.com/corray333/frameshop/order/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/corray333/frameshop/order/internal/dal/repositories/outbox/postgres"
)

// UnitOfWork groups the order, history and outbox writes of one lifecycle
// operation into a single Postgres transaction.
type UnitOfWork struct {
	client      *postgres.Client
	tx          pgx.Tx
	orderRepo   iorderrepo.IOrderRepository
	historyRepo ihistoryrepo.IHistoryRepository
	outboxRepo  ioutboxrepo.IOutboxRepository
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

// NewUnitOfWork returns a unit of work whose repositories use the pool until Begin is called.
func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	pool := client.Pool()
	return &UnitOfWork{
		client:      client,
		orderRepo:   orderrepo.NewPostgresOrderRepository(pool),
		historyRepo: historyrepo.NewHistoryRepository(pool),
		outboxRepo:  outboxrepo.NewOutboxRepository(pool),
	}
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return postgres.Classify(err, "failed to begin transaction")
	}

	u.tx = tx
	// Rebind repositories to the transaction
	u.orderRepo = orderrepo.NewPostgresOrderRepository(tx)
	u.historyRepo = historyrepo.NewHistoryRepository(tx)
	u.outboxRepo = outboxrepo.NewOutboxRepository(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	if err := u.tx.Commit(ctx); err != nil {
		return postgres.Classify(err, "failed to commit transaction")
	}

	return nil
}

// Rollback is safe to defer: it is a no-op after Commit.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}
