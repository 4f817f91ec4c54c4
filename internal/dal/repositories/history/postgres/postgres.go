package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/frameshop/order/internal/dal/postgres"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/history"
	"github.com/corray333/frameshop/order/internal/service/models/order"
)

var historyColumns = []string{
	"id",
	"order_id",
	"status",
	"actor_id",
	"actor_name",
	"actor_role",
	"notes",
	"operation_id",
	"fingerprint",
	"created_at",
}

// HistoryRepository writes and reads the order_history table.
type HistoryRepository struct {
	conn postgres.Conn
}

func NewHistoryRepository(conn postgres.Conn) *HistoryRepository {
	return &HistoryRepository{
		conn: conn,
	}
}

// Insert appends an entry. A replayed operation id writes nothing and
// returns ihistoryrepo.ErrDuplicateOperation.
func (r *HistoryRepository) Insert(ctx context.Context, entry history.Entry) error {
	query, args, err := insertQuery(entry).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return postgres.Classify(err, "failed to insert history entry")
	}
	if tag.RowsAffected() == 0 {
		return ihistoryrepo.ErrDuplicateOperation
	}

	return nil
}

// ListByOrder returns the entries of an order newest first.
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]history.Entry, error) {
	query, args, err := listByOrderQuery(orderID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.Classify(err, "failed to query history")
	}
	defer rows.Close()

	entries := []history.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, postgres.Classify(err, "error iterating history")
	}

	return entries, nil
}

// GetByOperationID finds the entry written by an operation.
func (r *HistoryRepository) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*history.Entry, error) {
	query, args, err := sq.Select(historyColumns...).
		From("order_history").
		Where(sq.Eq{"operation_id": operationID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	entry, err := scanEntry(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("history entry not found")
		}
		return nil, postgres.Classify(err, "failed to get history entry")
	}

	return entry, nil
}

func insertQuery(entry history.Entry) sq.InsertBuilder {
	return sq.Insert("order_history").
		Columns(historyColumns...).
		Values(
			entry.ID,
			entry.OrderID,
			entry.Status.String(),
			entry.ActorID,
			entry.ActorName,
			entry.ActorRole.String(),
			entry.Notes,
			entry.OperationID,
			entry.Fingerprint,
			entry.CreatedAt,
		).
		Suffix("ON CONFLICT (operation_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar)
}

// seq breaks ties between entries written in the same microsecond.
func listByOrderQuery(orderID uuid.UUID) sq.SelectBuilder {
	return sq.Select(historyColumns...).
		From("order_history").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("created_at DESC", "seq DESC").
		PlaceholderFormat(sq.Dollar)
}

func scanEntry(row pgx.Row) (*history.Entry, error) {
	var (
		entry  history.Entry
		status string
		role   string
	)
	err := row.Scan(
		&entry.ID,
		&entry.OrderID,
		&status,
		&entry.ActorID,
		&entry.ActorName,
		&role,
		&entry.Notes,
		&entry.OperationID,
		&entry.Fingerprint,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Status = order.Status(status)
	entry.ActorRole = employee.Role(role)

	return &entry, nil
}
