// Package normalize reshapes caller input to each market's wire constraints:
// phone numbers to international digits, free text to documented maxima.
// Everything here is pure apart from truncation logging.
package normalize

import (
	"fmt"
	"strings"

	"agropay/internal/domain/payment"
	"agropay/internal/domain/registry"
)

// Phone converts any human phone format into international digits for the
// given market (e.g. "0712 345-678" -> "254712345678" for a KE market).
//
// Accepted inputs, in order:
//   - already starts with the market's country code and has the right length
//   - starts with the local trunk prefix, which is swapped for the country code
//   - a bare subscriber number, which gets the country code prepended
//
// Anything else is a validation failure.
func Phone(raw string, m registry.Market) (string, error) {
	digits := registry.Digits(raw)
	if digits == "" {
		return "", payment.NewError(payment.KindValidation, "phone number has no digits")
	}

	full := len(m.CountryCode) + m.SubscriberLen

	switch {
	case strings.HasPrefix(digits, m.CountryCode) && len(digits) == full:
		return digits, nil

	case m.TrunkPrefix != "" && strings.HasPrefix(digits, m.TrunkPrefix) &&
		len(digits)-len(m.TrunkPrefix) == m.SubscriberLen:
		return m.CountryCode + digits[len(m.TrunkPrefix):], nil

	case len(digits) == m.SubscriberLen:
		return m.CountryCode + digits, nil
	}

	return "", payment.NewError(payment.KindValidation,
		fmt.Sprintf("phone %q does not match %s/%s number format", raw, m.Country, m.Provider))
}
