package mtnmomo

import (
	"context"
	"fmt"

	"agropay/internal/domain/payment"
	"agropay/internal/token"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Adapter implements the gateway Adapter and Disburser contracts for MTN
// MoMo. The provider reference for initiate/transfer is a UUID generated
// here and sent as X-Reference-Id.
type Adapter struct {
	client *Client
	tokens *token.Manager
	min    decimal.Decimal
	newRef func() string
}

func New(cfg Config, tokenOpts ...token.Option) *Adapter {
	client := NewClient(cfg)

	min := cfg.MinAmount
	if min.IsZero() {
		min = decimal.NewFromInt(1)
	}

	return &Adapter{
		client: client,
		tokens: token.NewManager(payment.ProviderMTNMoMo, client, tokenOpts...),
		min:    min,
		newRef: uuid.NewString,
	}
}

func (a *Adapter) Provider() payment.Provider {
	return payment.ProviderMTNMoMo
}

// Initiate starts a request-to-pay prompt.
func (a *Adapter) Initiate(ctx context.Context, req payment.PaymentRequest) (payment.ProviderResult, error) {
	return a.submit(ctx, req, a.client.RequestToPay)
}

// SendMoney transfers out to a subscriber (disbursement capability).
func (a *Adapter) SendMoney(ctx context.Context, req payment.PaymentRequest) (payment.ProviderResult, error) {
	return a.submit(ctx, req, a.client.Transfer)
}

func (a *Adapter) submit(ctx context.Context, req payment.PaymentRequest,
	call func(context.Context, string, PaymentCall) error) (payment.ProviderResult, error) {

	if req.Amount.LessThan(a.min) {
		return payment.ProviderResult{}, payment.NewError(payment.KindValidation,
			fmt.Sprintf("amount %s below provider minimum %s", req.Amount, a.min))
	}

	tok, err := a.tokens.GetToken(ctx)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	refID := a.newRef()
	err = call(ctx, tok.Value, PaymentCall{
		ReferenceID: refID,
		Phone:       req.Phone,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ExternalID:  req.ExternalID,
		Description: req.Description,
	})
	if err != nil {
		return payment.ProviderResult{}, err
	}

	return payment.ProviderResult{
		ReferenceID:  refID,
		NativeStatus: "PENDING",
		ExternalID:   req.ExternalID,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

// QueryStatus polls a payment by the reference id issued at initiate time.
func (a *Adapter) QueryStatus(ctx context.Context, referenceID string) (payment.ProviderResult, error) {
	tok, err := a.tokens.GetToken(ctx)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	resp, err := a.client.Status(ctx, tok.Value, referenceID)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	result := payment.ProviderResult{
		ReferenceID:  referenceID,
		NativeStatus: resp.Status,
		NativeCode:   resp.Reason.Code,
		Description:  resp.Reason.Message,
		ExternalID:   resp.ExternalID,
		Currency:     resp.Currency,
	}
	if resp.Amount != "" {
		if amount, err := decimal.NewFromString(resp.Amount); err == nil {
			result.Amount = amount
		}
	}
	return result, nil
}

// ParseCallback decodes a MoMo webhook. Pure, no network calls. The
// caller's external id is present in the payload and recovered here.
func (a *Adapter) ParseCallback(raw []byte) (payment.ProviderResult, error) {
	data, err := DecodeCallback(raw)
	if err != nil {
		return payment.ProviderResult{}, err
	}

	return payment.ProviderResult{
		ReferenceID:  data.FinancialTransactionID,
		NativeStatus: data.Status,
		Description:  data.Reason,
		ExternalID:   data.ExternalID,
		Amount:       data.Amount,
		Currency:     data.Currency,
	}, nil
}
