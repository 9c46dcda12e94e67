package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderModeMock = "mock"
	ProviderModeTest = "test"
)

const (
	SignatureModeKeyedHash   = "keyed_hash"
	SignatureModeTimestamped = "timestamped"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type HTTPConfig struct {
	Address             string        `koanf:"address" mapstructure:"address"`
	WebhookPath         string        `koanf:"webhook_path" mapstructure:"webhook_path"`
	MaxWebhookBodyBytes int           `koanf:"max_webhook_body_bytes" mapstructure:"max_webhook_body_bytes"`
	MaxJSONBodyBytes    int           `koanf:"max_json_body_bytes" mapstructure:"max_json_body_bytes"`
	ReadTimeout         time.Duration `koanf:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `koanf:"write_timeout" mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type WebhookConfig struct {
	SignatureMode string        `koanf:"signature_mode" mapstructure:"signature_mode"`
	Secret        string        `koanf:"secret" mapstructure:"secret"`
	Header        string        `koanf:"header" mapstructure:"header"`
	Tolerance     time.Duration `koanf:"tolerance" mapstructure:"tolerance"`
}

type CheckoutConfig struct {
	ProviderMode    string `koanf:"provider_mode" mapstructure:"provider_mode"`
	APIKey          string `koanf:"api_key" mapstructure:"api_key"`
	PriceID         string `koanf:"price_id" mapstructure:"price_id"`
	ProductSKU      string `koanf:"product_sku" mapstructure:"product_sku"`
	ProductVersion  string `koanf:"product_version" mapstructure:"product_version"`
	Currency        string `koanf:"currency" mapstructure:"currency"`
	SuccessURL      string `koanf:"success_url" mapstructure:"success_url"`
	CancelURL       string `koanf:"cancel_url" mapstructure:"cancel_url"`
	MockCheckoutURL string `koanf:"mock_checkout_url" mapstructure:"mock_checkout_url"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Checkout    CheckoutConfig `koanf:"checkout" mapstructure:"checkout"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "commerce-api",
		HTTP: HTTPConfig{
			Address:             ":3001",
			WebhookPath:         "/webhooks/stripe",
			MaxWebhookBodyBytes: 256 * 1024,
			MaxJSONBodyBytes:    32 * 1024,
			ReadTimeout:         15 * time.Second,
			WriteTimeout:        15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "file:payments.db?cache=shared&_foreign_keys=on",
		},
		Webhook: WebhookConfig{
			SignatureMode: SignatureModeKeyedHash,
			Tolerance:     5 * time.Minute,
		},
		Checkout: CheckoutConfig{
			ProviderMode:    ProviderModeMock,
			ProductSKU:      "genx-delay-vst3",
			ProductVersion:  "0.1.0",
			Currency:        "USD",
			SuccessURL:      "http://localhost:3000/checkout/success",
			CancelURL:       "http://localhost:3000/checkout/cancel",
			MockCheckoutURL: "http://localhost:3001/mock-checkout",
		},
	}
}

// Validate checks structural settings only. Provider credentials are checked
// when the checkout provider is used so the webhook path can run without them.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Webhook.SignatureMode)) {
	case SignatureModeKeyedHash, SignatureModeTimestamped:
	default:
		return fmt.Errorf("core: invalid webhook signature_mode %q", c.Webhook.SignatureMode)
	}
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("core: invalid database driver %q", c.Database.Driver)
	}
	if c.HTTP.MaxWebhookBodyBytes <= 0 {
		return fmt.Errorf("core: http max_webhook_body_bytes must be positive")
	}
	if c.HTTP.MaxJSONBodyBytes <= 0 {
		return fmt.Errorf("core: http max_json_body_bytes must be positive")
	}
	if len(strings.TrimSpace(c.Checkout.Currency)) != 3 {
		return fmt.Errorf("core: checkout currency must be a 3-letter code")
	}
	return nil
}

// SignatureModeFor derives the verification strategy from the provider mode
// when no explicit signature mode is configured.
func SignatureModeFor(providerMode string) string {
	if strings.EqualFold(strings.TrimSpace(providerMode), ProviderModeTest) {
		return SignatureModeTimestamped
	}
	return SignatureModeKeyedHash
}
