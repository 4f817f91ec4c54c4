package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/corray333/frameshop/order/internal/dal/postgres"
)

// RateLimitRepository keeps expiring counters in the rate_limits table
// so every instance behind the load balancer sees the same value.
type RateLimitRepository struct {
	conn postgres.Conn
	now  func() time.Time
}

func NewRateLimitRepository(conn postgres.Conn) *RateLimitRepository {
	return &RateLimitRepository{
		conn: conn,
		now:  time.Now,
	}
}

func (r *RateLimitRepository) Count(ctx context.Context, key string) (int, error) {
	query, args, err := sq.Select("count").
		From("rate_limits").
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"expires_at": r.now()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select query: %w", err)
	}

	var count int
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, postgres.Classify(err, "failed to read rate limit")
	}

	return count, nil
}

// Hit atomically increments key. An expired counter restarts at one with a new window.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	query, args, err := hitQuery(key, window, r.now()).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build upsert query: %w", err)
	}

	var count int
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, postgres.Classify(err, "failed to bump rate limit")
	}

	return count, nil
}

func hitQuery(key string, window time.Duration, now time.Time) sq.InsertBuilder {
	return sq.Insert("rate_limits").
		Columns("key", "count", "expires_at").
		Values(key, 1, now.Add(window)).
		Suffix(`ON CONFLICT (key) DO UPDATE SET
			count = CASE WHEN rate_limits.expires_at <= ? THEN 1 ELSE rate_limits.count + 1 END,
			expires_at = CASE WHEN rate_limits.expires_at <= ? THEN EXCLUDED.expires_at ELSE rate_limits.expires_at END
			RETURNING count`, now, now).
		PlaceholderFormat(sq.Dollar)
}

func (r *RateLimitRepository) Reset(ctx context.Context, key string) error {
	query, args, err := sq.Delete("rate_limits").
		Where(sq.Eq{"key": key}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return postgres.Classify(err, "failed to reset rate limit")
	}

	return nil
}
