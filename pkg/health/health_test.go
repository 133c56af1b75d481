package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderChecker(t *testing.T) {
	t.Parallel()

	t.Run("should report up for an answering host", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		checker := NewProviderChecker("mpesa", srv.URL, nil)
		result := checker.Check(context.Background())

		assert.Equal(t, StatusUp, result.Status)
	})

	t.Run("should report up even when the host rejects the request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		t.Cleanup(srv.Close)

		checker := NewProviderChecker("mpesa", srv.URL, nil)
		result := checker.Check(context.Background())

		assert.Equal(t, StatusUp, result.Status)
	})

	t.Run("should report down for an unreachable host", func(t *testing.T) {
		checker := NewProviderChecker("mpesa", "http://127.0.0.1:1", nil)
		result := checker.Check(context.Background())

		assert.Equal(t, StatusDown, result.Status)
		assert.NotEmpty(t, result.Message)
	})
}

type staticChecker struct {
	name   string
	result Result
}

func (c staticChecker) Name() string                 { return c.name }
func (c staticChecker) Check(context.Context) Result { return c.result }

func TestRegistry_CheckAll(t *testing.T) {
	t.Parallel()

	t.Run("should be up with no checkers", func(t *testing.T) {
		resp := NewRegistry().CheckAll(context.Background())
		assert.Equal(t, StatusUp, resp.Status)
	})

	t.Run("should aggregate to down when any check fails", func(t *testing.T) {
		reg := NewRegistry(
			staticChecker{name: "mpesa", result: Result{Status: StatusUp}},
			staticChecker{name: "kafka", result: Result{Status: StatusDown, Message: "no brokers"}},
		)

		resp := reg.CheckAll(context.Background())

		assert.Equal(t, StatusDown, resp.Status)
		assert.Len(t, resp.Checks, 2)
	})
}
