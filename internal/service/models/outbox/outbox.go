package outbox

import (
	"time"
)

const ContentTypeJSON = "application/json"

// OutboxMessage is a change event waiting to be relayed to the broker.
type OutboxMessage struct {
	ID           int64
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
