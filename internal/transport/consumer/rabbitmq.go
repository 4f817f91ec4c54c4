package consumer

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/corray333/frameshop/order/internal/dal/rabbitmq"
)

const maxInFlight = 50

// RabbitMQConsumer reads the fanout exchange through a queue owned by this instance.
type RabbitMQConsumer struct {
	client   *rabbitmq.Client
	broker   broker
	exchange string
	queue    amqp.Queue
}

// MustNewRabbitMQConsumer declares the exchange and an exclusive, auto-deleted
// queue bound to it.
func MustNewRabbitMQConsumer(client *rabbitmq.Client, b broker, exchange string) *RabbitMQConsumer {
	if err := client.DeclareFanout(exchange); err != nil {
		panic(err)
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       "",
		Durable:    false,
		AutoDelete: true,
		Exclusive:  true,
	})
	if err != nil {
		panic(err)
	}
	if err := client.BindQueue(queue.Name, "", exchange); err != nil {
		panic(err)
	}

	return &RabbitMQConsumer{
		client:   client,
		broker:   b,
		exchange: exchange,
		queue:    queue,
	}
}

// Run consumes until ctx is done or the channel closes.
func (c *RabbitMQConsumer) Run(ctx context.Context) error {
	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:     c.queue.Name,
		Exclusive: true,
	})
	if err != nil {
		return err
	}

	slog.Info("Change consumer started", "exchange", c.exchange, "queue", c.queue.Name)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("Change consumer channel closed")
				break loop
			}

			g.Go(func() error {
				c.processMessage(gctx, msg)
				return nil
			})
		}
	}

	return g.Wait()
}

func (c *RabbitMQConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	_, span := otel.Tracer("order-lifecycle").Start(ctx, "RabbitMQConsumer.processMessage")
	defer span.End()

	if err := relay(msg.Body, c.broker); err != nil {
		slog.Error("Dropping malformed change event", "delivery_tag", msg.DeliveryTag, "error", err)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)
	}
}
