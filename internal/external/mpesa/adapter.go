package mpesa

import (
	"context"
	"fmt"

	"agropay/internal/domain/payment"
	"agropay/internal/token"

	"github.com/shopspring/decimal"
)

// Adapter implements the gateway Adapter contract for M-Pesa. It owns one
// token manager and never exposes wire types across the boundary.
type Adapter struct {
	client *Client
	tokens *token.Manager
	min    decimal.Decimal
}

func New(cfg Config, tokenOpts ...token.Option) *Adapter {
	client := NewClient(cfg)

	min := cfg.MinAmount
	if min.IsZero() {
		// documented provider minimum: 1 whole unit
		min = decimal.NewFromInt(1)
	}

	return &Adapter{
		client: client,
		tokens: token.NewManager(payment.ProviderMpesa, client, tokenOpts...),
		min:    min,
	}
}

func (a *Adapter) Provider() payment.Provider {
	return payment.ProviderMpesa
}

// Initiate starts an STK push. Amounts below the provider minimum are
// rejected before any network call, token fetch included.
func (a *Adapter) Initiate(ctx context.Context, req payment.PaymentRequest) (payment.ProviderResult, error) {
	if req.Amount.LessThan(a.min) {
		return payment.ProviderResult{}, payment.NewError(payment.KindValidation,
			fmt.Sprintf("amount %s below provider minimum %s", req.Amount, a.min))
	}

	tok, err := a.tokens.GetToken(ctx)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	resp, err := a.client.StkPush(ctx, tok.Value, StkPushRequest{
		Phone:       req.Phone,
		Amount:      req.Amount,
		AccountRef:  req.ExternalID,
		Description: req.Description,
	})
	if err != nil {
		return payment.ProviderResult{}, err
	}

	return payment.ProviderResult{
		ReferenceID:  resp.CheckoutRequestID,
		NativeStatus: resp.ResponseCode,
		NativeCode:   resp.ResponseCode,
		Description:  resp.CustomerMessage,
		ExternalID:   req.ExternalID,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

// QueryStatus polls an earlier push by its checkout request id.
func (a *Adapter) QueryStatus(ctx context.Context, referenceID string) (payment.ProviderResult, error) {
	tok, err := a.tokens.GetToken(ctx)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	resp, err := a.client.StkQuery(ctx, tok.Value, referenceID)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	return payment.ProviderResult{
		ReferenceID:  referenceID,
		NativeStatus: resp.ResultCode,
		NativeCode:   resp.ResultCode,
		Description:  resp.ResultDesc,
	}, nil
}

// ParseCallback decodes a push-result webhook. Pure, no network calls.
// This provider does not echo the caller's external id; reconciliation
// happens by checkout request id.
func (a *Adapter) ParseCallback(raw []byte) (payment.ProviderResult, error) {
	data, err := DecodeCallback(raw)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	return payment.ProviderResult{
		ReferenceID:  data.CheckoutRequestID,
		NativeStatus: data.ResultCode,
		NativeCode:   data.ResultCode,
		Description:  data.ResultDesc,
		Amount:       data.Amount,
	}, nil
}
