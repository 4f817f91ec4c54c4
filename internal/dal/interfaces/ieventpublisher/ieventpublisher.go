package ieventpublisher

import (
	"context"

	"github.com/corray333/frameshop/order/internal/service/models/outbox"
)

// IEventPublisher delivers a relayed outbox message to the change feed transport.
type IEventPublisher interface {
	Publish(ctx context.Context, msg outbox.OutboxMessage) error
}
