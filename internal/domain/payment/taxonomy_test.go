package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		provider Provider
		native   string
		expected Status
		known    bool
	}{
		{name: "mpesa success", provider: ProviderMpesa, native: "0", expected: StatusSuccess, known: true},
		{name: "mpesa user cancelled", provider: ProviderMpesa, native: "1032", expected: StatusCancelled, known: true},
		{name: "mpesa pin timeout", provider: ProviderMpesa, native: "1037", expected: StatusFailed, known: true},
		{name: "mpesa insufficient balance", provider: ProviderMpesa, native: "1", expected: StatusFailed, known: true},
		{name: "mpesa unrecognized code", provider: ProviderMpesa, native: "9999", expected: StatusFailed, known: false},
		{name: "momo successful", provider: ProviderMTNMoMo, native: "SUCCESSFUL", expected: StatusSuccess, known: true},
		{name: "momo pending", provider: ProviderMTNMoMo, native: "PENDING", expected: StatusPending, known: true},
		{name: "momo rejected", provider: ProviderMTNMoMo, native: "REJECTED", expected: StatusFailed, known: true},
		{name: "momo unrecognized status", provider: ProviderMTNMoMo, native: "ONGOING", expected: StatusFailed, known: false},
		{name: "unknown provider", provider: Provider("airtel"), native: "0", expected: StatusFailed, known: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, known := CanonicalStatus(tc.provider, tc.native)
			assert.Equal(t, tc.expected, status)
			assert.Equal(t, tc.known, known)
		})
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	p, err := NewProvider("mpesa")
	assert.NoError(t, err)
	assert.Equal(t, ProviderMpesa, p)

	_, err = NewProvider("airtel")
	assert.Equal(t, KindUnsupportedProvider, KindOf(err))
}
