package gateway

import (
	"context"
	"time"

	"agropay/internal/domain/payment"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source port.go -destination mock_port.go -package gateway

// Adapter translates canonical requests into one provider's wire protocol.
// Implementations own their token manager and never leak wire types across
// this boundary.
type Adapter interface {
	Provider() payment.Provider

	// Initiate starts an asynchronous customer-facing payment prompt.
	// The request arrives with a normalized phone number and clamped text
	// fields; the adapter still rejects amounts below its own minimum
	// before touching the network.
	Initiate(ctx context.Context, req payment.PaymentRequest) (payment.ProviderResult, error)

	// QueryStatus polls the current state of a previously initiated payment.
	QueryStatus(ctx context.Context, referenceID string) (payment.ProviderResult, error)

	// ParseCallback decodes this provider's webhook body. It performs no
	// network calls.
	ParseCallback(raw []byte) (payment.ProviderResult, error)
}

// Disburser is implemented by adapters whose provider supports outbound
// send-money transfers. Capability is discovered by type assertion.
type Disburser interface {
	SendMoney(ctx context.Context, req payment.PaymentRequest) (payment.ProviderResult, error)
}

// EventKind distinguishes what produced a PaymentEvent.
type EventKind string

const (
	EventKindPayment      EventKind = "payment"
	EventKindDisbursement EventKind = "disbursement"
	EventKindCallback     EventKind = "callback"
)

// PaymentEvent is emitted after every processed payment and every normalized
// callback. A storage component outside this layer persists them.
type PaymentEvent struct {
	EventID       string           `json:"event_id"`
	Kind          EventKind        `json:"kind"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Provider      payment.Provider `json:"provider"`
	Status        payment.Status   `json:"status"`
	ExternalID    string           `json:"external_id,omitempty"`
	ProviderRef   string           `json:"provider_ref,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// EventSink receives payment events. Publish failures are logged, never
// propagated into the payment path.
type EventSink interface {
	Publish(ctx context.Context, event PaymentEvent) error
	Close() error
}
