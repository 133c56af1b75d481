package gateway

import (
	"context"
	"log/slog"
)

// LogSink is the default EventSink: it writes events to the structured log.
// Used when no Kafka or OpenSearch sink is configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Publish(ctx context.Context, event PaymentEvent) error {
	slog.InfoContext(ctx, "payment event",
		"event_id", event.EventID,
		"kind", event.Kind,
		"transaction_id", event.TransactionID,
		"provider", event.Provider,
		"status", event.Status,
		"external_id", event.ExternalID,
		"provider_ref", event.ProviderRef,
		"amount", event.Amount.String(),
		"currency", event.Currency)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
