package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"agropay/internal/gateway"

	"github.com/opensearch-project/opensearch-go"
)

var _ gateway.EventSink = (*Sink)(nil)

// Sink indexes payment events into OpenSearch for search and diagnostics.
type Sink struct {
	client *opensearch.Client
	index  string
}

func NewSink(ctx context.Context, urls []string, index string) (*Sink, error) {
	if len(urls) == 0 {
		return nil, errors.New("no OpenSearch addresses configured")
	}

	cfg := opensearch.Config{
		Addresses: urls,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
		},
	}
	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}

	sink := &Sink{client: client, index: index}

	if err := sink.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *Sink) ensureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("indices.exists: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil // already exists
	}

	body := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"event_id":       map[string]any{"type": "keyword"},
				"kind":           map[string]any{"type": "keyword"},
				"transaction_id": map[string]any{"type": "keyword"},
				"provider":       map[string]any{"type": "keyword"},
				"status":         map[string]any{"type": "keyword"},
				"external_id":    map[string]any{"type": "keyword"},
				"provider_ref":   map[string]any{"type": "keyword"},
				"amount":         map[string]any{"type": "double"},
				"currency":       map[string]any{"type": "keyword"},
				"created_at":     map[string]any{"type": "date"},
			},
		},
		"settings": map[string]any{
			"number_of_replicas": 0,
		},
	}
	buf, _ := json.Marshal(body)
	cr, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithBody(bytes.NewReader(buf)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("indices.create: %w", err)
	}
	defer cr.Body.Close()

	if cr.IsError() {
		return fmt.Errorf("indices.create: %s", cr.String())
	}
	return nil
}

// Publish indexes one payment event keyed by its event id.
func (s *Sink) Publish(ctx context.Context, event gateway.PaymentEvent) error {
	doc, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(doc),
		s.client.Index.WithDocumentID(event.EventID),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index event: %s", res.String())
	}
	return nil
}

// Close is a no-op; the underlying transport needs no teardown.
func (s *Sink) Close() error {
	return nil
}
