package mtnmomo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agropay/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:           srv.URL,
		SubscriptionKey:   "sub-key",
		APIUser:           "api-user",
		APIKey:            "api-key",
		TargetEnvironment: "sandbox",
		CallbackURL:       "https://example.com/webhooks/payments/mtn_momo",
		Timeout:           2 * time.Second,
	})
}

func TestClient_Exchange(t *testing.T) {
	t.Parallel()

	t.Run("should exchange credentials for a bearer token", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/collection/token/", r.URL.Path)
			assert.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))

			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "api-user", user)
			assert.Equal(t, "api-key", pass)

			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "bearer-momo", TokenType: "access_token", ExpiresIn: 3600})
		}))

		tok, err := client.Exchange(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "bearer-momo", tok.Value)
	})

	t.Run("should classify a rejection as auth failure", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := client.Exchange(context.Background())
		assert.Equal(t, payment.KindAuthFailure, payment.KindOf(err))
	})
}

func TestClient_RequestToPay(t *testing.T) {
	t.Parallel()

	call := PaymentCall{
		ReferenceID: "8471e6c1-7ee9-4eb5-9e26-6f6b5f0e29d7",
		Phone:       "256772123456",
		Amount:      decimal.RequireFromString("1500.50"),
		Currency:    "UGX",
		ExternalID:  "FARM-INV-7",
		Description: "fertilizer",
	}

	t.Run("should send the documented payload and headers", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/collection/v1_0/requesttopay", r.URL.Path)
			assert.Equal(t, call.ReferenceID, r.Header.Get("X-Reference-Id"))
			assert.Equal(t, "sandbox", r.Header.Get("X-Target-Environment"))
			assert.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
			assert.Equal(t, "Bearer bearer-momo", r.Header.Get("Authorization"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "1500.5", payload["amount"])
			assert.Equal(t, "UGX", payload["currency"])
			assert.Equal(t, "FARM-INV-7", payload["externalId"])
			payer := payload["payer"].(map[string]any)
			assert.Equal(t, "MSISDN", payer["partyIdType"])
			assert.Equal(t, "256772123456", payer["partyId"])

			w.WriteHeader(http.StatusAccepted)
		}))

		err := client.RequestToPay(context.Background(), "bearer-momo", call)
		assert.NoError(t, err)
	})

	t.Run("should classify 4xx as rejection", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))

		err := client.RequestToPay(context.Background(), "bearer-momo", call)
		assert.Equal(t, payment.KindRejectedByProvider, payment.KindOf(err))
	})

	t.Run("should classify 5xx as provider unavailable", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		err := client.RequestToPay(context.Background(), "bearer-momo", call)
		assert.Equal(t, payment.KindProviderUnavailable, payment.KindOf(err))
	})
}

func TestClient_Transfer(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/disbursement/v1_0/transfer", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		payee := payload["payee"].(map[string]any)
		assert.Equal(t, "256772123456", payee["partyId"])
		assert.Nil(t, payload["payer"])

		w.WriteHeader(http.StatusAccepted)
	}))

	err := client.Transfer(context.Background(), "bearer-momo", PaymentCall{
		ReferenceID: "8471e6c1-7ee9-4eb5-9e26-6f6b5f0e29d7",
		Phone:       "256772123456",
		Amount:      decimal.NewFromInt(2000),
		Currency:    "UGX",
		ExternalID:  "PAYOUT-3",
	})
	assert.NoError(t, err)
}

func TestClient_Status(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collection/v1_0/requesttopay/ref-1", r.URL.Path)

		json.NewEncoder(w).Encode(StatusResponse{
			Amount:                 "1500.5",
			Currency:               "UGX",
			FinancialTransactionID: "363440463",
			ExternalID:             "FARM-INV-7",
			Status:                 "SUCCESSFUL",
		})
	}))

	resp, err := client.Status(context.Background(), "bearer-momo", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESSFUL", resp.Status)
	assert.Equal(t, "FARM-INV-7", resp.ExternalID)
}

func TestDecodeCallback(t *testing.T) {
	t.Parallel()

	t.Run("should decode a final status document", func(t *testing.T) {
		raw := []byte(`{
			"financialTransactionId": "363440463",
			"externalId": "FARM-INV-7",
			"amount": "250",
			"currency": "UGX",
			"status": "SUCCESSFUL"
		}`)

		data, err := DecodeCallback(raw)
		require.NoError(t, err)
		assert.Equal(t, "FARM-INV-7", data.ExternalID)
		assert.Equal(t, "SUCCESSFUL", data.Status)
		assert.True(t, data.Amount.Equal(decimal.NewFromInt(250)))
	})

	t.Run("should surface the failure reason", func(t *testing.T) {
		raw := []byte(`{
			"externalId": "FARM-INV-8",
			"status": "FAILED",
			"reason": {"code": "PAYER_NOT_FOUND", "message": "payee does not exist"}
		}`)

		data, err := DecodeCallback(raw)
		require.NoError(t, err)
		assert.Equal(t, "FAILED", data.Status)
		assert.NotEmpty(t, data.Reason)
	})

	t.Run("should reject a document without status", func(t *testing.T) {
		_, err := DecodeCallback([]byte(`{"externalId":"x"}`))
		assert.Equal(t, payment.KindMalformedCallback, payment.KindOf(err))
	})

	t.Run("should reject invalid JSON", func(t *testing.T) {
		_, err := DecodeCallback([]byte("not json"))
		assert.Equal(t, payment.KindMalformedCallback, payment.KindOf(err))
	})
}
