package ihistoryrepo

import (
	"context"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/history"
)

// ErrDuplicateOperation is returned by Insert when the operation id already has an entry.
var ErrDuplicateOperation = errs.Conflict("operation id was already applied")

// IHistoryRepository is an interface for the append-only order history.
type IHistoryRepository interface {
	// Insert appends entry. A second insert with the same operation id writes
	// nothing and returns ErrDuplicateOperation.
	Insert(ctx context.Context, entry history.Entry) error
	// ListByOrder returns entries newest first.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]history.Entry, error)
	GetByOperationID(ctx context.Context, operationID uuid.UUID) (*history.Entry, error)
}
