// Package gateway is the public facade of the payment layer: it resolves a
// provider for each request, normalizes the input, drives the matching
// adapter and assembles canonical responses. Business failures come back
// inside the response, never as errors.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"agropay/internal/domain/payment"
	"agropay/internal/domain/registry"
	"agropay/internal/normalize"
	"agropay/pkg/metrics"
	"agropay/pkg/retry"

	"github.com/google/uuid"
)

// Service orchestrates payments across all configured provider adapters.
// It never branches on provider identity beyond the single adapter lookup.
type Service struct {
	registry *registry.Registry
	adapters map[payment.Provider]Adapter
	sink     EventSink
	retry    retry.Config

	now   func() time.Time
	newID func() string
}

type ServiceOption func(*Service)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides transaction id generation for tests.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

// WithRetryConfig overrides the status-poll retry policy.
func WithRetryConfig(cfg retry.Config) ServiceOption {
	return func(s *Service) { s.retry = cfg }
}

func NewService(reg *registry.Registry, adapters []Adapter, sink EventSink, opts ...ServiceOption) *Service {
	byProvider := make(map[payment.Provider]Adapter, len(adapters))
	for _, a := range adapters {
		byProvider[a.Provider()] = a
	}

	s := &Service{
		registry: reg,
		adapters: byProvider,
		sink:     sink,
		retry:    retry.DefaultConfig(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment runs the full request pipeline: provider resolution,
// currency check, phone/field normalization, adapter initiate. The
// transaction id is always populated, even when the provider call fails
// before returning a reference.
//
// This layer keeps no request history: retrying the same external id is the
// caller's responsibility and risks a duplicate customer prompt.
func (s *Service) ProcessPayment(ctx context.Context, req payment.PaymentRequest) payment.PaymentResponse {
	txnID := s.newID()

	if !req.Amount.IsPositive() {
		return s.failure(ctx, EventKindPayment, txnID, req, "", "",
			payment.NewError(payment.KindValidation, "amount must be positive"))
	}

	provider, adapter, err := s.resolve(req)
	if err != nil {
		return s.failure(ctx, EventKindPayment, txnID, req, provider, "", err)
	}

	wire, err := s.prepare(ctx, req, provider)
	if err != nil {
		return s.failure(ctx, EventKindPayment, txnID, req, provider, "", err)
	}

	result, err := adapter.Initiate(ctx, wire)
	if err != nil {
		return s.failure(ctx, EventKindPayment, txnID, req, provider, "", err)
	}

	resp := payment.PaymentResponse{
		Success:       true,
		TransactionID: txnID,
		Provider:      provider,
		Status:        payment.StatusPending,
		Message:       statusMessages[payment.StatusPending],
		Amount:        req.Amount,
		Currency:      strings.ToUpper(req.Currency),
		Phone:         wire.Phone,
		ExternalID:    req.ExternalID,
		ProviderRef:   result.ReferenceID,
		Meta:          maps.Clone(req.Meta),
		CreatedAt:     s.now(),
	}

	metrics.PaymentsTotal.WithLabelValues(string(provider), string(resp.Status)).Inc()
	s.publish(ctx, EventKindPayment, resp)
	return resp
}

// SendMoney initiates an outbound transfer for disbursement-capable
// providers. Providers without the capability fail with
// unsupported_provider and no network call.
func (s *Service) SendMoney(ctx context.Context, req payment.PaymentRequest) payment.PaymentResponse {
	txnID := s.newID()

	if !req.Amount.IsPositive() {
		return s.failure(ctx, EventKindDisbursement, txnID, req, "", "",
			payment.NewError(payment.KindValidation, "amount must be positive"))
	}

	provider, adapter, err := s.resolve(req)
	if err != nil {
		return s.failure(ctx, EventKindDisbursement, txnID, req, provider, "", err)
	}

	disburser, ok := adapter.(Disburser)
	if !ok {
		return s.failure(ctx, EventKindDisbursement, txnID, req, provider, "",
			payment.NewError(payment.KindUnsupportedProvider,
				fmt.Sprintf("provider %s does not support disbursements", provider)))
	}

	wire, err := s.prepare(ctx, req, provider)
	if err != nil {
		return s.failure(ctx, EventKindDisbursement, txnID, req, provider, "", err)
	}

	result, err := disburser.SendMoney(ctx, wire)
	if err != nil {
		return s.failure(ctx, EventKindDisbursement, txnID, req, provider, "", err)
	}

	resp := payment.PaymentResponse{
		Success:       true,
		TransactionID: txnID,
		Provider:      provider,
		Status:        payment.StatusPending,
		Message:       statusMessages[payment.StatusPending],
		Amount:        req.Amount,
		Currency:      strings.ToUpper(req.Currency),
		Phone:         wire.Phone,
		ExternalID:    req.ExternalID,
		ProviderRef:   result.ReferenceID,
		Meta:          maps.Clone(req.Meta),
		CreatedAt:     s.now(),
	}

	metrics.PaymentsTotal.WithLabelValues(string(provider), string(resp.Status)).Inc()
	s.publish(ctx, EventKindDisbursement, resp)
	return resp
}

// CheckStatus polls the provider and returns a fresh response object; the
// response returned by ProcessPayment is never mutated.
func (s *Service) CheckStatus(ctx context.Context, provider payment.Provider, referenceID string) payment.PaymentResponse {
	txnID := s.newID()

	adapter, ok := s.adapters[provider]
	if !ok {
		return s.failure(ctx, EventKindPayment, txnID, payment.PaymentRequest{}, provider, referenceID,
			payment.NewError(payment.KindUnsupportedProvider,
				fmt.Sprintf("provider %s is not configured", provider)))
	}

	// Status polls are idempotent, so transient provider failures are
	// retried with backoff. Initiation is never retried here.
	var result payment.ProviderResult
	err := retry.Do(ctx, s.retry, func() error {
		var qerr error
		result, qerr = adapter.QueryStatus(ctx, referenceID)
		return qerr
	})
	if err != nil {
		return s.failure(ctx, EventKindPayment, txnID, payment.PaymentRequest{}, provider, referenceID, err)
	}

	status, known := payment.CanonicalStatus(provider, result.NativeStatus)
	resp := payment.PaymentResponse{
		Success:       known && (status == payment.StatusSuccess || status == payment.StatusPending),
		TransactionID: txnID,
		Provider:      provider,
		Status:        status,
		Message:       statusMessages[status],
		Amount:        result.Amount,
		Currency:      result.Currency,
		ExternalID:    result.ExternalID,
		ProviderRef:   referenceID,
		CreatedAt:     s.now(),
	}
	if !known {
		resp.ErrorKind = payment.KindUnknown
		resp.Meta = map[string]string{"native_status": result.NativeStatus}
	}
	return resp
}

// Detection is the dry-run result of provider resolution: which provider
// would take a payment and how the phone number goes on the wire.
type Detection struct {
	Provider payment.Provider `json:"provider"`
	Currency string           `json:"currency"`
	Phone    string           `json:"phone"`
}

// Detect resolves a provider and normalizes the phone number without
// initiating anything. Pure lookup over the market table.
func (s *Service) Detect(phone, currency string) (Detection, error) {
	provider, err := s.registry.DetectProvider(phone, currency)
	if err != nil {
		return Detection{}, err
	}

	market, ok := s.registry.MarketFor(provider, currency)
	if !ok {
		return Detection{}, payment.NewError(payment.KindValidation,
			fmt.Sprintf("currency %s is not supported by provider %s", strings.ToUpper(currency), provider))
	}

	normalized, err := normalize.Phone(phone, market)
	if err != nil {
		return Detection{}, err
	}

	return Detection{Provider: provider, Currency: market.Currency, Phone: normalized}, nil
}

// resolve picks the adapter for a request: explicit override when given,
// registry detection otherwise. A detected provider without a configured
// adapter is still unsupported.
func (s *Service) resolve(req payment.PaymentRequest) (payment.Provider, Adapter, error) {
	provider := req.Provider
	if provider == "" {
		detected, err := s.registry.DetectProvider(req.Phone, req.Currency)
		if err != nil {
			return "", nil, err
		}
		provider = detected
	}

	adapter, ok := s.adapters[provider]
	if !ok {
		return provider, nil, payment.NewError(payment.KindUnsupportedProvider,
			fmt.Sprintf("provider %s is not configured", provider))
	}
	return provider, adapter, nil
}

// prepare validates the market, normalizes the phone number and clamps text
// fields to the market's wire limits.
func (s *Service) prepare(ctx context.Context, req payment.PaymentRequest, provider payment.Provider) (payment.PaymentRequest, error) {
	market, ok := s.registry.MarketFor(provider, req.Currency)
	if !ok {
		return payment.PaymentRequest{}, payment.NewError(payment.KindValidation,
			fmt.Sprintf("currency %s is not supported by provider %s", strings.ToUpper(req.Currency), provider))
	}

	phone, err := normalize.Phone(req.Phone, market)
	if err != nil {
		return payment.PaymentRequest{}, err
	}

	wire := req
	wire.Phone = phone
	return normalize.ClampFields(ctx, wire, market), nil
}

var kindMessages = map[payment.Kind]string{
	payment.KindValidation:          "The payment request is invalid.",
	payment.KindUnsupportedProvider: "No payment provider is available for this request.",
	payment.KindAuthFailure:         "Could not authenticate with the payment provider.",
	payment.KindProviderUnavailable: "The payment provider is temporarily unavailable.",
	payment.KindRejectedByProvider:  "The payment was rejected by the provider.",
	payment.KindTimeout:             "The payment provider did not respond in time.",
	payment.KindMalformedCallback:   "The provider callback could not be understood.",
	payment.KindUnknown:             "The payment could not be processed.",
}

var statusMessages = map[payment.Status]string{
	payment.StatusPending:   "Payment initiated, awaiting customer confirmation.",
	payment.StatusSuccess:   "Payment completed successfully.",
	payment.StatusFailed:    "Payment failed.",
	payment.StatusCancelled: "The customer cancelled the payment.",
}

// failure assembles a fully populated failure response. Raw provider
// payloads stay in the log and the native code in Meta; Message is always a
// normalized sentence. The caller's Meta map is cloned, never written to.
func (s *Service) failure(ctx context.Context, event EventKind, txnID string, req payment.PaymentRequest, provider payment.Provider, providerRef string, err error) payment.PaymentResponse {
	kind := payment.KindOf(err)

	resp := payment.PaymentResponse{
		Success:       false,
		TransactionID: txnID,
		Provider:      provider,
		Status:        payment.StatusFailed,
		Message:       kindMessages[kind],
		Amount:        req.Amount,
		Currency:      strings.ToUpper(req.Currency),
		Phone:         req.Phone,
		ExternalID:    req.ExternalID,
		ProviderRef:   providerRef,
		ErrorKind:     kind,
		Meta:          maps.Clone(req.Meta),
		CreatedAt:     s.now(),
	}

	var pe *payment.Error
	if errors.As(err, &pe) && pe.NativeCode != "" {
		if resp.Meta == nil {
			resp.Meta = map[string]string{}
		}
		resp.Meta["native_code"] = pe.NativeCode
	}

	slog.ErrorContext(ctx, "payment failed",
		"transaction_id", txnID,
		"provider", provider,
		"external_id", req.ExternalID,
		"kind", kind,
		"error", err)

	metrics.PaymentsTotal.WithLabelValues(string(provider), string(payment.StatusFailed)).Inc()
	s.publish(ctx, event, resp)
	return resp
}

func (s *Service) publish(ctx context.Context, kind EventKind, resp payment.PaymentResponse) {
	if s.sink == nil {
		return
	}

	event := PaymentEvent{
		EventID:       s.newID(),
		Kind:          kind,
		TransactionID: resp.TransactionID,
		Provider:      resp.Provider,
		Status:        resp.Status,
		ExternalID:    resp.ExternalID,
		ProviderRef:   resp.ProviderRef,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		CreatedAt:     resp.CreatedAt,
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "publish payment event",
			"event_id", event.EventID, "kind", kind, "error", err)
	}
}
