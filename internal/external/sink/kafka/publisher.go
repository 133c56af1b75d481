package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"agropay/internal/gateway"
	"agropay/pkg/correlation"

	"github.com/segmentio/kafka-go"
)

var _ gateway.EventSink = (*Publisher)(nil)

// Publisher implements gateway.EventSink on a Kafka topic. Events for the
// same external id hash to the same partition so downstream consumers see
// one payment's events in order.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a new Kafka event publisher.
func NewPublisher(brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{writer: writer}
}

// Publish sends one payment event to Kafka.
func (p *Publisher) Publish(ctx context.Context, event gateway.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := event.ExternalID
	if key == "" {
		key = event.EventID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	if corrID := correlation.FromContext(ctx); corrID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key:   correlation.KafkaHeaderName,
			Value: []byte(corrID),
		})
	}

	if err = p.writer.WriteMessages(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to publish payment event",
			"topic", p.writer.Topic, "key", key, "error", err)
		return err
	}

	slog.DebugContext(ctx, "payment event published",
		"topic", p.writer.Topic, "key", key, "event_id", event.EventID)
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
