package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Table names a source of change events.
type Table string

const (
	TableOrders       Table = "orders"
	TableOrderHistory Table = "order_history"
)

// Type is the kind of row change.
type Type string

const (
	TypeInsert Type = "insert"
	TypeUpdate Type = "update"
	TypeDelete Type = "delete"
)

// Event is a change notification fanned out to subscribers.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Table      Table           `json:"table"`
	Type       Type            `json:"type"`
	RecordID   uuid.UUID       `json:"record_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// New builds an event carrying record serialized as the payload.
func New(table Table, typ Type, recordID, orderID uuid.UUID, record any, at time.Time) (Event, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:         uuid.New(),
		Table:      table,
		Type:       typ,
		RecordID:   recordID,
		OrderID:    orderID,
		Payload:    payload,
		OccurredAt: at,
	}, nil
}
