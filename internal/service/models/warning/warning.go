package warning

import (
	"time"

	"github.com/google/uuid"
)

const (
	SourceLifecycle = "lifecycle"
	SourceOutbox    = "outbox"
)

// ConsistencyWarning records a write whose durable outcome could not be confirmed.
type ConsistencyWarning struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	OperationID *uuid.UUID `json:"operation_id,omitempty"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
}
