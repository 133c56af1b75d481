package gateway

import (
	"context"
	"log/slog"
	"time"

	"agropay/internal/domain/payment"
	"agropay/pkg/metrics"

	"github.com/google/uuid"
)

// Normalizer turns raw provider webhook bodies into canonical callback
// events. It dispatches to the adapter that understands the provider's
// schema, then maps the native status through the shared taxonomy. A
// malformed payload produces a failed event, never a panic or an error: one
// bad webhook must not take down the receiving endpoint.
type Normalizer struct {
	adapters map[payment.Provider]Adapter
	sink     EventSink
	now      func() time.Time
	newID    func() string
}

func NewNormalizer(adapters []Adapter, sink EventSink) *Normalizer {
	byProvider := make(map[payment.Provider]Adapter, len(adapters))
	for _, a := range adapters {
		byProvider[a.Provider()] = a
	}
	return &Normalizer{
		adapters: byProvider,
		sink:     sink,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Normalize parses one validated webhook body. The transport layer has
// already authenticated the caller; only payload shape is judged here.
func (n *Normalizer) Normalize(ctx context.Context, provider payment.Provider, raw []byte) payment.CallbackEvent {
	adapter, ok := n.adapters[provider]
	if !ok {
		return n.reject(ctx, provider, string(payment.KindUnsupportedProvider))
	}

	result, err := adapter.ParseCallback(raw)
	if err != nil {
		slog.WarnContext(ctx, "unparseable provider callback",
			"provider", provider, "bytes", len(raw), "error", err)
		return n.reject(ctx, provider, string(payment.KindMalformedCallback))
	}

	status, known := payment.CanonicalStatus(provider, result.NativeStatus)
	event := payment.CallbackEvent{
		Success:     known && status == payment.StatusSuccess,
		Status:      status,
		ExternalID:  result.ExternalID,
		ProviderRef: result.ReferenceID,
		Amount:      result.Amount,
		Currency:    result.Currency,
	}
	if !known {
		event.Reason = "unrecognized provider status " + result.NativeStatus
	} else if status != payment.StatusSuccess && result.Description != "" {
		event.Reason = result.Description
	}

	metrics.CallbackEventsTotal.WithLabelValues(string(provider), string(status)).Inc()
	n.publish(ctx, provider, event)
	return event
}

func (n *Normalizer) reject(ctx context.Context, provider payment.Provider, reason string) payment.CallbackEvent {
	event := payment.CallbackEvent{
		Success: false,
		Status:  payment.StatusFailed,
		Reason:  reason,
	}
	metrics.CallbackEventsTotal.WithLabelValues(string(provider), string(payment.StatusFailed)).Inc()
	return event
}

func (n *Normalizer) publish(ctx context.Context, provider payment.Provider, event payment.CallbackEvent) {
	if n.sink == nil {
		return
	}

	pe := PaymentEvent{
		EventID:     n.newID(),
		Kind:        EventKindCallback,
		Provider:    provider,
		Status:      event.Status,
		ExternalID:  event.ExternalID,
		ProviderRef: event.ProviderRef,
		Amount:      event.Amount,
		Currency:    event.Currency,
		CreatedAt:   n.now(),
	}
	if err := n.sink.Publish(ctx, pe); err != nil {
		slog.ErrorContext(ctx, "publish callback event",
			"event_id", pe.EventID, "provider", provider, "error", err)
	}
}
