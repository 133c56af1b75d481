// Package mpesa talks to a Daraja-style M-Pesa API: OAuth client-credentials
// token exchange, STK push initiation and status query. All wire shapes stay
// inside this package.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
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
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"
)

// Config carries the per-deployment credentials and endpoints. Everything
// here comes from the environment, never from literals.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Environment    string // sandbox | production
	Timeout        time.Duration
	TokenTTL       time.Duration
	MinAmount      decimal.Decimal // major units (whole shillings)
}

// Client is the HTTP client for one M-Pesa deployment. Outbound calls run
// through a circuit breaker; an open breaker reads as provider_unavailable.
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
			Name:        "mpesa",
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
	ExpiresIn   string `json:"expires_in"` // seconds, as a string
}

// Exchange performs the basic-auth client-credentials call. Any rejection
// surfaces as auth_failure with the provider's status and body kept for
// diagnostics; a failed exchange is never cached upstream.
func (c *Client) Exchange(ctx context.Context) (token.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return token.Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.send(ctx, "token", req)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMpesa), "error").Inc()
		return token.Token{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMpesa), "error").Inc()
		return token.Token{}, payment.NewProviderError(payment.KindAuthFailure,
			"credential exchange rejected", strconv.Itoa(resp.StatusCode), string(raw))
	}

	var out tokenResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.AccessToken == "" {
		metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMpesa), "error").Inc()
		return token.Token{}, payment.NewProviderError(payment.KindAuthFailure,
			"credential exchange returned no token", strconv.Itoa(resp.StatusCode), string(raw))
	}

	ttl := c.cfg.TokenTTL
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	metrics.TokenRefreshesTotal.WithLabelValues(string(payment.ProviderMpesa), "ok").Inc()
	return token.Token{Value: out.AccessToken, ExpiresAt: c.now().Add(ttl)}, nil
}

// StkPushRequest is the canonical input for one push prompt.
type StkPushRequest struct {
	Phone       string // international digits
	Amount      decimal.Decimal
	AccountRef  string
	Description string
}

// StkPushResponse is the provider's acknowledgment of a push request.
type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// StkPush asks the provider to prompt the customer for payment. The wire
// amount is whole major units; fractional cents are not representable on
// this provider and are truncated.
func (c *Client) StkPush(ctx context.Context, bearer string, req StkPushRequest) (StkPushResponse, error) {
	timestamp := c.now().Format(timestampLayout)

	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            strconv.FormatInt(req.Amount.IntPart(), 10),
		PartyA:            req.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountRef,
		TransactionDesc:   req.Description,
	}

	var out StkPushResponse
	if err := c.postJSON(ctx, "stk_push", stkPushPath, bearer, payload, &out); err != nil {
		return StkPushResponse{}, err
	}

	if out.ResponseCode != "0" {
		return StkPushResponse{}, payment.NewProviderError(payment.KindRejectedByProvider,
			"push request rejected", out.ResponseCode, out.ResponseDescription)
	}
	return out, nil
}

// StkQueryResponse reports the current state of an earlier push.
type StkQueryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// StkQuery polls the state of a previously initiated push.
func (c *Client) StkQuery(ctx context.Context, bearer, checkoutRequestID string) (StkQueryResponse, error) {
	timestamp := c.now().Format(timestampLayout)

	payload := stkQueryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var out StkQueryResponse
	if err := c.postJSON(ctx, "stk_query", stkQueryPath, bearer, payload, &out); err != nil {
		return StkQueryResponse{}, err
	}
	return out, nil
}

// password is the documented shortcode+passkey+timestamp base64 derivation.
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

func (c *Client) postJSON(ctx context.Context, op, path, bearer string, body, out any) error {
	j, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(j))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.send(ctx, op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode/100 == 2:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return payment.NewProviderError(payment.KindAuthFailure,
			"provider rejected credentials", strconv.Itoa(resp.StatusCode), string(raw))
	case resp.StatusCode >= 500:
		return payment.NewProviderError(payment.KindProviderUnavailable,
			"provider internal error", strconv.Itoa(resp.StatusCode), string(raw))
	default:
		return payment.NewProviderError(payment.KindRejectedByProvider,
			"provider rejected the request", strconv.Itoa(resp.StatusCode), string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return payment.NewProviderError(payment.KindUnknown,
				"unparseable provider response", strconv.Itoa(resp.StatusCode), string(raw))
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	v, err := c.breaker.Execute(func() (any, error) {
		return c.http.Do(req)
	})
	metrics.ProviderRequestDuration.
		WithLabelValues(string(payment.ProviderMpesa), op).
		Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, classifyTransport(err)
	}
	return v.(*http.Response), nil
}

// classifyTransport maps transport failures into the canonical taxonomy.
// Caller cancellation passes through untouched so the orchestrator can tell
// an abandoned request from a slow provider.
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

// Callback wire shapes. The provider posts a nested envelope; only the
// fields reconciliation needs are decoded.
type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// CallbackData is the decoded form of one push-result webhook.
type CallbackData struct {
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string
	Amount            decimal.Decimal
	Receipt           string
	Phone             string
}

// DecodeCallback parses a push-result webhook body.
func DecodeCallback(raw []byte) (CallbackData, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return CallbackData{}, payment.NewError(payment.KindMalformedCallback, "invalid callback JSON")
	}

	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return CallbackData{}, payment.NewError(payment.KindMalformedCallback, "callback missing checkout request id")
	}

	data := CallbackData{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode.String(),
		ResultDesc:        cb.ResultDesc,
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var n json.Number
			if err := json.Unmarshal(item.Value, &n); err == nil {
				if amount, err := decimal.NewFromString(n.String()); err == nil {
					data.Amount = amount
				}
			}
		case "MpesaReceiptNumber":
			_ = json.Unmarshal(item.Value, &data.Receipt)
		case "PhoneNumber":
			var n json.Number
			if err := json.Unmarshal(item.Value, &n); err == nil {
				data.Phone = n.String()
			}
		}
	}

	return data, nil
}
