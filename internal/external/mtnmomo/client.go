// Package mtnmomo talks to an MTN MoMo-style API: subscription-key token
// exchange, request-to-pay collections, status query and disbursement
// transfers. All wire shapes stay inside this package.
package mtnmomo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"agropay/internal/domain/payment"
	"agropay/internal/token"
	"agropay/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

const (
	tokenPath        = "/collection/token/"
	requestToPayPath = "/collection/v1_0/requesttopay"
	transferPath     = "/disbursement/v1_0/transfer"
)

// Config carries the per-deployment credentials and endpoints.
type Config struct {
	BaseURL           string
	SubscriptionKey   string
	APIUser           string
	APIKey            string
	TargetEnvironment string // e.g. sandbox, mtnuganda
	CallbackURL       string
	Timeout           time.Duration
	TokenTTL          time.Duration
	MinAmount         decimal.Decimal // major units
}

// Client is the HTTP client for one MoMo deployment.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mtn_momo",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		now: time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// Exchange performs the basic-auth token call with the subscription key
// header. Rejections surface as auth_failure with diagnostics preserved.
func (c *Client) Exchange(ctx context.Context) (token.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return token.Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APIUser, c.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)

	resp, err := c.send(ctx, "token", req)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMTNMoMo), "error").Inc()
		return token.Token{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMTNMoMo), "error").Inc()
		return token.Token{}, payment.NewProviderError(payment.KindAuthFailure,
			"credential exchange rejected", strconv.Itoa(resp.StatusCode), string(raw))
	}

	var out tokenResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.AccessToken == "" {
		metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMTNMoMo), "error").Inc()
		return token.Token{}, payment.NewProviderError(payment.KindAuthFailure,
			"credential exchange returned no token", strconv.Itoa(resp.StatusCode), string(raw))
	}

	ttl := c.cfg.TokenTTL
	if out.ExpiresIn > 0 {
		ttl = time.Duration(out.ExpiresIn) * time.Second
	}

	metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMTNMoMo), "ok").Inc()
	return token.Token{Value: out.AccessToken, ExpiresAt: c.now().Add(ttl)}, nil
}

type party struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type paymentPayload struct {
	Amount       string `json:"amount"` // decimal string, major units
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        *party `json:"payer,omitempty"`
	Payee        *party `json:"payee,omitempty"`
	PayerMessage string `json:"payerMessage,omitempty"`
	PayeeNote    string `json:"payeeNote,omitempty"`
}

// PaymentCall is the canonical input for request-to-pay and transfer.
type PaymentCall struct {
	ReferenceID string // caller-generated UUID, becomes X-Reference-Id
	Phone       string
	Amount      decimal.Decimal
	Currency    string
	ExternalID  string
	Description string
}

// RequestToPay asks the provider to prompt the customer. The provider
// answers 202 with an empty body; the reference id is ours.
func (c *Client) RequestToPay(ctx context.Context, bearer string, call PaymentCall) error {
	payload := paymentPayload{
		Amount:       call.Amount.String(),
		Currency:     call.Currency,
		ExternalID:   call.ExternalID,
		Payer:        &party{PartyIDType: "MSISDN", PartyID: call.Phone},
		PayerMessage: call.Description,
		PayeeNote:    call.Description,
	}
	return c.postJSON(ctx, "request_to_pay", requestToPayPath, bearer, call.ReferenceID, payload)
}

// Transfer sends money out to a subscriber (disbursement).
func (c *Client) Transfer(ctx context.Context, bearer string, call PaymentCall) error {
	payload := paymentPayload{
		Amount:       call.Amount.String(),
		Currency:     call.Currency,
		ExternalID:   call.ExternalID,
		Payee:        &party{PartyIDType: "MSISDN", PartyID: call.Phone},
		PayerMessage: call.Description,
		PayeeNote:    call.Description,
	}
	return c.postJSON(ctx, "transfer", transferPath, bearer, call.ReferenceID, payload)
}

// StatusResponse is the provider's view of one payment.
type StatusResponse struct {
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	FinancialTransactionID string `json:"financialTransactionId"`
	ExternalID             string `json:"externalId"`
	Status                 string `json:"status"` // SUCCESSFUL | PENDING | FAILED | ...
	Reason                 struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"reason"`
}

// Status polls a request-to-pay by its reference id.
func (c *Client) Status(ctx context.Context, bearer, referenceID string) (StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+requestToPayPath+"/"+referenceID, nil)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(req, bearer, "")

	resp, err := c.send(ctx, "status", req)
	if err != nil {
		return StatusResponse{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if err := c.checkStatus(resp.StatusCode, raw); err != nil {
		return StatusResponse{}, err
	}

	var out StatusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return StatusResponse{}, payment.NewProviderError(payment.KindUnknown,
			"unparseable provider response", strconv.Itoa(resp.StatusCode), string(raw))
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, op, path, bearer, referenceID string, payload paymentPayload) error {
	j, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(j))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	c.setHeaders(req, bearer, referenceID)

	resp, err := c.send(ctx, op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	return c.checkStatus(resp.StatusCode, raw)
}

func (c *Client) setHeaders(req *http.Request, bearer, referenceID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	req.Header.Set("X-Target-Environment", c.cfg.TargetEnvironment)
	if referenceID != "" {
		req.Header.Set("X-Reference-Id", referenceID)
	}
	if c.cfg.CallbackURL != "" {
		req.Header.Set("X-Callback-Url", c.cfg.CallbackURL)
	}
}

func (c *Client) checkStatus(status int, raw []byte) error {
	switch {
	case status/100 == 2:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return payment.NewProviderError(payment.KindAuthFailure,
			"provider rejected credentials", strconv.Itoa(status), string(raw))
	case status >= 500:
		return payment.NewProviderError(payment.KindProviderUnavailable,
			"provider internal error", strconv.Itoa(status), string(raw))
	default:
		return payment.NewProviderError(payment.KindRejectedByProvider,
			"provider rejected the request", strconv.Itoa(status), string(raw))
	}
}

func (c *Client) send(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	v, err := c.breaker.Execute(func() (any, error) {
		return c.http.Do(req)
	})
	metrics.ProviderRequestDuration.
		WithLabelValues(string(payment.ProviderMTNMoMo), op).
		Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, classifyTransport(err)
	}
	return v.(*http.Response), nil
}

func classifyTransport(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return payment.NewProviderError(payment.KindProviderUnavailable,
			"provider circuit open", "", err.Error())
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return payment.NewProviderError(payment.KindTimeout,
			"provider request timed out", "", err.Error())
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return payment.NewProviderError(payment.KindTimeout,
			"provider request timed out", "", err.Error())
	}
	return payment.NewProviderError(payment.KindProviderUnavailable,
		"provider unreachable", "", err.Error())
}

// CallbackData is the decoded form of one MoMo webhook. The payload is the
// flat status document, external id included.
type CallbackData struct {
	FinancialTransactionID string
	ExternalID             string
	Amount                 decimal.Decimal
	Currency               string
	Status                 string
	Reason                 string
}

// DecodeCallback parses a webhook body.
func DecodeCallback(raw []byte) (CallbackData, error) {
	var body StatusResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return CallbackData{}, payment.NewError(payment.KindMalformedCallback, "invalid callback JSON")
	}
	if body.Status == "" {
		return CallbackData{}, payment.NewError(payment.KindMalformedCallback, "callback missing status")
	}

	data := CallbackData{
		FinancialTransactionID: body.FinancialTransactionID,
		ExternalID:             body.ExternalID,
		Currency:               body.Currency,
		Status:                 body.Status,
		Reason:                 body.Reason.Message,
	}
	if body.Amount != "" {
		if amount, err := decimal.NewFromString(body.Amount); err == nil {
			data.Amount = amount
		}
	}
	return data, nil
}
