package kafka

import (
	"fmt"
	"log/slog"

	"github.com/Shopify/sarama"
	"github.com/spf13/viper"
)

// Client holds the Kafka producer and consumer used by the change feed.
type Client struct {
	producer sarama.SyncProducer
	consumer sarama.Consumer
	topic    string
}

// Producer returns the synchronous producer.
func (c *Client) Producer() sarama.SyncProducer {
	return c.producer
}

// Consumer returns the partition consumer factory.
func (c *Client) Consumer() sarama.Consumer {
	return c.consumer
}

// Topic returns the change feed topic.
func (c *Client) Topic() string {
	return c.topic
}

// Close closes the producer and consumer for graceful shutdown.
func (c *Client) Close() error {
	if err := c.producer.Close(); err != nil {
		return err
	}

	return c.consumer.Close()
}

// MustNewClient connects to the brokers listed in events.kafka.brokers.
func MustNewClient() *Client {
	brokers := viper.GetStringSlice("events.kafka.brokers")
	if len(brokers) == 0 {
		panic("events.kafka.brokers is not set in config")
	}
	topic := viper.GetString("events.kafka.topic")
	if topic == "" {
		topic = "orders.changes"
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Consumer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		panic(fmt.Sprintf("Failed to create Kafka producer: %v", err))
	}

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		_ = producer.Close()
		panic(fmt.Sprintf("Failed to create Kafka consumer: %v", err))
	}

	slog.Info("Kafka connected", "brokers", brokers, "topic", topic)

	return &Client{
		producer: producer,
		consumer: consumer,
		topic:    topic,
	}
}
