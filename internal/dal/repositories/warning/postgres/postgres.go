package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/corray333/frameshop/order/internal/dal/postgres"
	"github.com/corray333/frameshop/order/internal/service/models/warning"
)

// WarningRepository persists consistency warnings for operators.
type WarningRepository struct {
	conn postgres.Conn
}

func NewWarningRepository(conn postgres.Conn) *WarningRepository {
	return &WarningRepository{
		conn: conn,
	}
}

func (r *WarningRepository) Insert(ctx context.Context, w warning.ConsistencyWarning) error {
	query, args, err := sq.Insert("consistency_warnings").
		Columns("source", "order_id", "operation_id", "message", "created_at").
		Values(w.Source, w.OrderID, w.OperationID, w.Message, w.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return postgres.Classify(err, "failed to insert consistency warning")
	}

	return nil
}

// List returns the most recent warnings first.
func (r *WarningRepository) List(ctx context.Context, limit int) ([]warning.ConsistencyWarning, error) {
	query, args, err := sq.Select("id", "source", "order_id", "operation_id", "message", "created_at").
		From("consistency_warnings").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.Classify(err, "failed to query consistency warnings")
	}
	defer rows.Close()

	warnings := []warning.ConsistencyWarning{}
	for rows.Next() {
		var w warning.ConsistencyWarning
		if err := rows.Scan(&w.ID, &w.Source, &w.OrderID, &w.OperationID, &w.Message, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan consistency warning: %w", err)
		}
		warnings = append(warnings, w)
	}

	if err := rows.Err(); err != nil {
		return nil, postgres.Classify(err, "error iterating consistency warnings")
	}

	return warnings, nil
}
