package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies an external mobile-money network.
type Provider string

const (
	ProviderMpesa   Provider = "mpesa"
	ProviderMTNMoMo Provider = "mtn_momo"
)

var KnownProviders = []Provider{ProviderMpesa, ProviderMTNMoMo}

func NewProvider(raw string) (Provider, error) {
	for _, p := range KnownProviders {
		if Provider(raw) == p {
			return p, nil
		}
	}
	return "", NewError(KindUnsupportedProvider, "unknown provider: "+raw)
}

// Status is the provider-independent payment status vocabulary.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// PaymentRequest is the canonical inbound request. Amount is expressed in
// MAJOR currency units (e.g. 100 = 100 KES); each adapter documents its own
// wire conversion.
type PaymentRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Phone       string            `json:"phone"`
	Description string            `json:"description,omitempty"`
	ExternalID  string            `json:"external_id"`
	Provider    Provider          `json:"provider,omitempty"` // optional explicit override
	Meta        map[string]string `json:"meta,omitempty"`
}

// PaymentResponse is immutable once returned; a later status check produces
// a new response, never a mutation of an earlier one.
type PaymentResponse struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transaction_id"`
	Provider      Provider          `json:"provider,omitempty"`
	Status        Status            `json:"status"`
	Message       string            `json:"message"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	Phone         string            `json:"phone,omitempty"`
	ExternalID    string            `json:"external_id,omitempty"`
	ProviderRef   string            `json:"provider_ref,omitempty"`
	ErrorKind     Kind              `json:"error_kind,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CallbackEvent is the normalized form of one provider webhook. Consumed
// once by the caller's reconciliation logic.
type CallbackEvent struct {
	Success     bool            `json:"success"`
	Status      Status          `json:"status"`
	ExternalID  string          `json:"external_id,omitempty"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// ProviderResult is what an adapter hands back across its module boundary.
// NativeStatus/NativeCode keep the provider's own vocabulary; callers map
// them through the shared taxonomy.
type ProviderResult struct {
	ReferenceID  string
	NativeStatus string
	NativeCode   string
	Description  string
	ExternalID   string
	Amount       decimal.Decimal
	Currency     string
}
