package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/order"
)

// Entry is an append-only record of one status or tracking change.
type Entry struct {
	ID          uuid.UUID     `json:"id"`
	OrderID     uuid.UUID     `json:"order_id"`
	Status      order.Status  `json:"status"`
	ActorID     uuid.UUID     `json:"actor_id"`
	ActorName   string        `json:"actor_name"`
	ActorRole   employee.Role `json:"actor_role"`
	Notes       *string       `json:"notes,omitempty"`
	OperationID uuid.UUID     `json:"-"`
	// Fingerprint identifies what the operation asked for, so a reused
	// operation id with a different request can be told apart from a replay.
	Fingerprint string        `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
}
