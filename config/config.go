package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Market table (providers, currencies, phone grammars, wire limits)
	MarketsPath string `env:"MARKETS_PATH" envDefault:"config/markets.json"`

	ProviderHTTPTimeout time.Duration `env:"PROVIDER_HTTP_TIMEOUT" envDefault:"30s"`
	TokenSafetyMargin   time.Duration `env:"TOKEN_SAFETY_MARGIN" envDefault:"5m"`

	// Event sink mode: "log" (default), "kafka" or "opensearch"
	EventSinkMode string `env:"EVENT_SINK_MODE" envDefault:"log"`

	KafkaBrokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaPaymentsTopic string   `env:"KAFKA_PAYMENTS_TOPIC" envDefault:"payments.events"`

	OpensearchURLs  []string `env:"OPENSEARCH_URLS" envSeparator:","`
	OpensearchIndex string   `env:"OPENSEARCH_INDEX_PAYMENTS" envDefault:"payment-events"`

	Mpesa MpesaConfig
	MTN   MTNConfig
}

type MpesaConfig struct {
	BaseURL        string `env:"MPESA_BASE_URL" envDefault:"https://sandbox.safaricom.co.ke"`
	ConsumerKey    string `env:"MPESA_CONSUMER_KEY"`
	ConsumerSecret string `env:"MPESA_CONSUMER_SECRET"`
	ShortCode      string `env:"MPESA_SHORTCODE"`
	Passkey        string `env:"MPESA_PASSKEY"`
	CallbackURL    string `env:"MPESA_CALLBACK_URL"`
	Environment    string `env:"MPESA_ENVIRONMENT" envDefault:"sandbox"`
}

// Enabled reports whether credentials for this provider were supplied.
func (c MpesaConfig) Enabled() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

type MTNConfig struct {
	BaseURL           string `env:"MTN_MOMO_BASE_URL" envDefault:"https://sandbox.momodeveloper.mtn.com"`
	SubscriptionKey   string `env:"MTN_MOMO_SUBSCRIPTION_KEY"`
	APIUser           string `env:"MTN_MOMO_API_USER"`
	APIKey            string `env:"MTN_MOMO_API_KEY"`
	TargetEnvironment string `env:"MTN_MOMO_TARGET_ENVIRONMENT" envDefault:"sandbox"`
	CallbackURL       string `env:"MTN_MOMO_CALLBACK_URL"`
}

// Enabled reports whether credentials for this provider were supplied.
func (c MTNConfig) Enabled() bool {
	return c.SubscriptionKey != "" && c.APIUser != "" && c.APIKey != ""
}

func New() (Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	return c, nil
}
