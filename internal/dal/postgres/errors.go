package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/corray333/frameshop/order/internal/service/errs"
)

const uniqueViolation = "23505"

// Classify maps driver errors onto the service error kinds.
// Unclassified errors are wrapped with msg.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.KindNotFound, err, "not found")
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &connectErr) ||
		errors.As(err, &netErr) {
		return errs.Unavailable(err, msg)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
