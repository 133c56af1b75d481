// Package registry holds the static market table: which providers operate
// in which (country, currency) pairs, what their phone numbers look like and
// what their wire limits are. Loaded once at startup; read-only afterwards.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"agropay/internal/domain/payment"

	"github.com/shopspring/decimal"
)

// Market is one (provider, country, currency) tuple.
type Market struct {
	Provider payment.Provider
	Country  string // ISO 3166-1 alpha-2
	Currency string // ISO 4217

	CountryCode   string // calling code digits, e.g. "254"
	TrunkPrefix   string // local leading digit(s) replaced by the country code, usually "0"
	SubscriberLen int    // digits in a bare subscriber number

	Pattern *regexp.Regexp // matched against digits-only input

	MaxDescriptionLen int
	MaxReferenceLen   int
	MinAmount         decimal.Decimal // major units
}

// MarketConfig is the JSON shape of one market table entry.
type MarketConfig struct {
	Provider          string `json:"provider"`
	Country           string `json:"country"`
	Currency          string `json:"currency"`
	CountryCode       string `json:"country_code"`
	TrunkPrefix       string `json:"trunk_prefix"`
	SubscriberLen     int    `json:"subscriber_len"`
	PhonePattern      string `json:"phone_pattern"`
	MaxDescriptionLen int    `json:"max_description_len"`
	MaxReferenceLen   int    `json:"max_reference_len"`
	MinAmount         string `json:"min_amount"`
}

// Registry is an ordered market table. Detection iterates in config order,
// never in map order, so results are deterministic for a fixed table.
type Registry struct {
	markets []Market
}

// New compiles a market table. Config order is preserved and doubles as the
// detection tie-break order.
func New(configs []MarketConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("market table is empty")
	}

	markets := make([]Market, 0, len(configs))
	for i, c := range configs {
		provider, err := payment.NewProvider(c.Provider)
		if err != nil {
			return nil, fmt.Errorf("market %d: %w", i, err)
		}

		pattern, err := regexp.Compile(c.PhonePattern)
		if err != nil {
			return nil, fmt.Errorf("market %d (%s): compile phone pattern: %w", i, c.Provider, err)
		}

		minAmount, err := decimal.NewFromString(c.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("market %d (%s): parse min amount: %w", i, c.Provider, err)
		}

		markets = append(markets, Market{
			Provider:          provider,
			Country:           c.Country,
			Currency:          strings.ToUpper(c.Currency),
			CountryCode:       c.CountryCode,
			TrunkPrefix:       c.TrunkPrefix,
			SubscriberLen:     c.SubscriberLen,
			Pattern:           pattern,
			MaxDescriptionLen: c.MaxDescriptionLen,
			MaxReferenceLen:   c.MaxReferenceLen,
			MinAmount:         minAmount,
		})
	}

	return &Registry{markets: markets}, nil
}

// Load reads a market table from a JSON file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market table: %w", err)
	}

	var configs []MarketConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, fmt.Errorf("parse market table: %w", err)
	}

	return New(configs)
}

// Digits strips every non-digit rune.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DetectProvider resolves the provider for a phone number, optionally
// filtered by a currency hint. Markets are tested in table order against the
// digits-only number; if no grammar matches, the first market supporting the
// hinted currency wins. Pure function over the static table.
func (r *Registry) DetectProvider(phone, currency string) (payment.Provider, error) {
	digits := Digits(phone)
	currency = strings.ToUpper(currency)

	for _, m := range r.markets {
		if currency != "" && m.Currency != currency {
			continue
		}
		if m.Pattern.MatchString(digits) {
			return m.Provider, nil
		}
	}

	if currency != "" {
		for _, m := range r.markets {
			if m.Currency == currency {
				return m.Provider, nil
			}
		}
	}

	return "", payment.NewError(payment.KindUnsupportedProvider,
		fmt.Sprintf("no provider for phone %q currency %q", phone, currency))
}

// MarketFor returns the first configured market for a provider/currency pair.
func (r *Registry) MarketFor(p payment.Provider, currency string) (Market, bool) {
	currency = strings.ToUpper(currency)
	for _, m := range r.markets {
		if m.Provider == p && m.Currency == currency {
			return m, true
		}
	}
	return Market{}, false
}

// Markets returns the table in detection order.
func (r *Registry) Markets() []Market {
	return r.markets
}
