package mtnmomo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"agropay/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMoMo struct {
	tokenCalls    int32
	collectCalls  int32
	transferCalls int32
	lastReference atomic.Value
}

func (f *fakeMoMo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/collection/token"):
		atomic.AddInt32(&f.tokenCalls, 1)
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/collection/v1_0/requesttopay"):
		atomic.AddInt32(&f.collectCalls, 1)
		f.lastReference.Store(r.Header.Get("X-Reference-Id"))
		w.WriteHeader(http.StatusAccepted)
	case strings.HasPrefix(r.URL.Path, "/disbursement/v1_0/transfer"):
		atomic.AddInt32(&f.transferCalls, 1)
		f.lastReference.Store(r.Header.Get("X-Reference-Id"))
		w.WriteHeader(http.StatusAccepted)
	case strings.HasPrefix(r.URL.Path, "/collection/v1_0/requesttopay/"):
		json.NewEncoder(w).Encode(StatusResponse{
			Amount:     "1500",
			Currency:   "UGX",
			ExternalID: "FARM-INV-7",
			Status:     "PENDING",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testAdapter(t *testing.T) (*Adapter, *fakeMoMo) {
	t.Helper()

	fake := &fakeMoMo{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	adapter := New(Config{
		BaseURL:           srv.URL,
		SubscriptionKey:   "sub-key",
		APIUser:           "api-user",
		APIKey:            "api-key",
		TargetEnvironment: "sandbox",
	})
	adapter.newRef = func() string { return "ref-fixed" }
	return adapter, fake
}

func TestAdapter_Initiate(t *testing.T) {
	t.Parallel()

	t.Run("should request to pay and return our reference", func(t *testing.T) {
		adapter, fake := testAdapter(t)

		result, err := adapter.Initiate(context.Background(), payment.PaymentRequest{
			Amount:     decimal.NewFromInt(1500),
			Currency:   "UGX",
			Phone:      "256772123456",
			ExternalID: "FARM-INV-7",
		})

		require.NoError(t, err)
		assert.Equal(t, "ref-fixed", result.ReferenceID)
		assert.Equal(t, "PENDING", result.NativeStatus)
		assert.Equal(t, "ref-fixed", fake.lastReference.Load())
		assert.Equal(t, int32(1), atomic.LoadInt32(&fake.collectCalls))
	})

	t.Run("should reject below-minimum amounts without any network call", func(t *testing.T) {
		adapter, fake := testAdapter(t)

		_, err := adapter.Initiate(context.Background(), payment.PaymentRequest{
			Amount:   decimal.RequireFromString("0.1"),
			Currency: "UGX",
			Phone:    "256772123456",
		})

		assert.Equal(t, payment.KindValidation, payment.KindOf(err))
		assert.Zero(t, atomic.LoadInt32(&fake.tokenCalls))
	})
}

func TestAdapter_SendMoney(t *testing.T) {
	t.Parallel()

	adapter, fake := testAdapter(t)

	result, err := adapter.SendMoney(context.Background(), payment.PaymentRequest{
		Amount:     decimal.NewFromInt(2000),
		Currency:   "UGX",
		Phone:      "256772123456",
		ExternalID: "PAYOUT-3",
	})

	require.NoError(t, err)
	assert.Equal(t, "ref-fixed", result.ReferenceID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.transferCalls))
	assert.Zero(t, atomic.LoadInt32(&fake.collectCalls))
}

func TestAdapter_QueryStatus(t *testing.T) {
	t.Parallel()

	adapter, _ := testAdapter(t)

	result, err := adapter.QueryStatus(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", result.NativeStatus)
	assert.Equal(t, "FARM-INV-7", result.ExternalID)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(1500)))
}

func TestAdapter_ParseCallback(t *testing.T) {
	t.Parallel()

	adapter, _ := testAdapter(t)

	raw := []byte(`{
		"financialTransactionId": "363440463",
		"externalId": "FARM-INV-7",
		"amount": "250",
		"currency": "UGX",
		"status": "SUCCESSFUL"
	}`)

	result, err := adapter.ParseCallback(raw)
	require.NoError(t, err)
	assert.Equal(t, "FARM-INV-7", result.ExternalID)
	assert.Equal(t, "SUCCESSFUL", result.NativeStatus)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(250)))
}
