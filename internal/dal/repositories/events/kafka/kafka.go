package kafka

import (
	"context"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/corray333/frameshop/order/internal/service/models/outbox"
)

// EventKafkaRepository relays outbox messages to a Kafka topic keyed by routing key,
// so events of one order land on one partition.
type EventKafkaRepository struct {
	producer sarama.SyncProducer
	topic    string
}

func NewEventKafkaRepository(producer sarama.SyncProducer, topic string) *EventKafkaRepository {
	return &EventKafkaRepository{
		producer: producer,
		topic:    topic,
	}
}

func (r *EventKafkaRepository) Publish(_ context.Context, msg outbox.OutboxMessage) error {
	_, _, err := r.producer.SendMessage(&sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(msg.RoutingKey),
		Value: sarama.ByteEncoder(msg.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(msg.ContentType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", r.topic, err)
	}

	return nil
}
