package rabbitmq

import (
	"context"
	"fmt"

	"github.com/corray333/frameshop/order/internal/dal/rabbitmq"
	"github.com/corray333/frameshop/order/internal/service/models/outbox"
)

// EventRabbitMQRepository relays outbox messages to a fanout exchange.
type EventRabbitMQRepository struct {
	client   *rabbitmq.Client
	exchange string
}

// NewEventRabbitMQRepository declares the exchange and returns the publisher.
func NewEventRabbitMQRepository(client *rabbitmq.Client, exchange string) *EventRabbitMQRepository {
	if err := client.DeclareFanout(exchange); err != nil {
		panic(err)
	}

	return &EventRabbitMQRepository{
		client:   client,
		exchange: exchange,
	}
}

func (r *EventRabbitMQRepository) Publish(ctx context.Context, msg outbox.OutboxMessage) error {
	exchange := msg.ExchangeName
	if exchange == "" {
		exchange = r.exchange
	}

	if err := r.client.Publish(ctx, exchange, msg.RoutingKey, msg.ContentType, msg.Payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", exchange, err)
	}

	return nil
}
