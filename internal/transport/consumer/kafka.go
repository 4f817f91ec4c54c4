package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Shopify/sarama"
	"golang.org/x/sync/errgroup"
)

// KafkaConsumer reads every partition of the change topic from the newest
// offset. Without a consumer group each instance sees every event.
type KafkaConsumer struct {
	consumer sarama.Consumer
	topic    string
	broker   broker
}

func NewKafkaConsumer(consumer sarama.Consumer, topic string, b broker) *KafkaConsumer {
	return &KafkaConsumer{
		consumer: consumer,
		topic:    topic,
		broker:   b,
	}
}

// Run consumes until ctx is done.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	partitions, err := c.consumer.Partitions(c.topic)
	if err != nil {
		return err
	}

	slog.Info("Change consumer started", "topic", c.topic, "partitions", len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	for _, partition := range partitions {
		partition := partition
		pc, err := c.consumer.ConsumePartition(c.topic, partition, sarama.OffsetNewest)
		if err != nil {
			return errors.Join(err, g.Wait())
		}

		g.Go(func() error {
			defer func() {
				if err := pc.Close(); err != nil {
					slog.Error("Failed to close partition consumer", "partition", partition, "error", err)
				}
			}()

			for {
				select {
				case <-gctx.Done():
					return nil
				case msg, ok := <-pc.Messages():
					if !ok {
						return nil
					}
					if err := relay(msg.Value, c.broker); err != nil {
						slog.Error("Dropping malformed change event", "partition", partition, "offset", msg.Offset, "error", err)
					}
				case err, ok := <-pc.Errors():
					if !ok {
						return nil
					}
					slog.Warn("Kafka consumer error", "partition", partition, "error", err)
				}
			}
		})
	}

	return g.Wait()
}
