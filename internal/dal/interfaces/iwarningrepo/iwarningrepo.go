package iwarningrepo

import (
	"context"

	"github.com/corray333/frameshop/order/internal/service/models/warning"
)

// IWarningRepository stores consistency warnings for operators.
type IWarningRepository interface {
	Insert(ctx context.Context, w warning.ConsistencyWarning) error
	List(ctx context.Context, limit int) ([]warning.ConsistencyWarning, error)
}
