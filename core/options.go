package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// LoadConfig resolves defaults < loader values < runtime overrides.
func LoadConfig(ctx context.Context, loader RawConfigLoader, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	loaded, err := NewCfgxConfigProvider(loader).Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// EnvConfigLoader maps process environment variables onto the config tree.
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader() EnvConfigLoader {
	return EnvConfigLoader{Lookup: os.LookupEnv}
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	httpLayer := map[string]any{}
	databaseLayer := map[string]any{}
	webhookLayer := map[string]any{}
	checkoutLayer := map[string]any{}

	if port, ok := env("PORT"); ok {
		if _, err := strconv.Atoi(port); err != nil {
			return nil, fmt.Errorf("core: invalid PORT %q", port)
		}
		httpLayer["address"] = ":" + port
	}
	if value, ok := env("WEBHOOK_PATH"); ok {
		httpLayer["webhook_path"] = value
	}
	if value, ok := env("WEBHOOK_MAX_BODY_BYTES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: invalid WEBHOOK_MAX_BODY_BYTES %q", value)
		}
		httpLayer["max_webhook_body_bytes"] = parsed
	}

	if value, ok := env("DATABASE_DRIVER"); ok {
		databaseLayer["driver"] = strings.ToLower(value)
	}
	if value, ok := env("DATABASE_URL"); ok {
		databaseLayer["dsn"] = value
	}
	if value, ok := env("DATABASE_DEBUG"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: invalid DATABASE_DEBUG %q", value)
		}
		databaseLayer["debug"] = parsed
	}

	providerMode, hasProviderMode := env("STRIPE_MODE")
	if hasProviderMode {
		providerMode = strings.ToLower(providerMode)
		checkoutLayer["provider_mode"] = providerMode
	}
	if value, ok := env("WEBHOOK_SIGNATURE_MODE"); ok {
		webhookLayer["signature_mode"] = strings.ToLower(value)
	} else if hasProviderMode {
		webhookLayer["signature_mode"] = SignatureModeFor(providerMode)
	}
	if value, ok := env("STRIPE_WEBHOOK_SECRET"); ok {
		webhookLayer["secret"] = value
	}
	if value, ok := env("WEBHOOK_SIGNATURE_HEADER"); ok {
		webhookLayer["header"] = value
	}
	if value, ok := env("WEBHOOK_TOLERANCE"); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("core: invalid WEBHOOK_TOLERANCE %q", value)
		}
		webhookLayer["tolerance"] = parsed
	}

	for envKey, field := range map[string]string{
		"STRIPE_API_KEY":         "api_key",
		"STRIPE_PRICE_ID":        "price_id",
		"STRIPE_PRODUCT_SKU":     "product_sku",
		"PLUGIN_VERSION":         "product_version",
		"CHECKOUT_CURRENCY":      "currency",
		"CHECKOUT_SUCCESS_URL":   "success_url",
		"CHECKOUT_CANCEL_URL":    "cancel_url",
		"MOCK_CHECKOUT_BASE_URL": "mock_checkout_url",
	} {
		if value, ok := env(envKey); ok {
			checkoutLayer[field] = value
		}
	}

	raw := map[string]any{}
	if value, ok := env("SERVICE_NAME"); ok {
		raw["service_name"] = value
	}
	for key, layer := range map[string]map[string]any{
		"http":     httpLayer,
		"database": databaseLayer,
		"webhook":  webhookLayer,
		"checkout": checkoutLayer,
	} {
		if len(layer) > 0 {
			raw[key] = layer
		}
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)

	httpLayer := map[string]any{}
	putString(httpLayer, "address", cfg.HTTP.Address, includeZero)
	putString(httpLayer, "webhook_path", cfg.HTTP.WebhookPath, includeZero)
	putInt(httpLayer, "max_webhook_body_bytes", cfg.HTTP.MaxWebhookBodyBytes, includeZero)
	putInt(httpLayer, "max_json_body_bytes", cfg.HTTP.MaxJSONBodyBytes, includeZero)
	putDuration(httpLayer, "read_timeout", cfg.HTTP.ReadTimeout, includeZero)
	putDuration(httpLayer, "write_timeout", cfg.HTTP.WriteTimeout, includeZero)
	putLayer(layer, "http", httpLayer)

	databaseLayer := map[string]any{}
	putString(databaseLayer, "driver", cfg.Database.Driver, includeZero)
	putString(databaseLayer, "dsn", cfg.Database.DSN, includeZero)
	if includeZero || cfg.Database.Debug {
		databaseLayer["debug"] = cfg.Database.Debug
	}
	putLayer(layer, "database", databaseLayer)

	webhookLayer := map[string]any{}
	putString(webhookLayer, "signature_mode", cfg.Webhook.SignatureMode, includeZero)
	putString(webhookLayer, "secret", cfg.Webhook.Secret, includeZero)
	putString(webhookLayer, "header", cfg.Webhook.Header, includeZero)
	putDuration(webhookLayer, "tolerance", cfg.Webhook.Tolerance, includeZero)
	putLayer(layer, "webhook", webhookLayer)

	checkoutLayer := map[string]any{}
	putString(checkoutLayer, "provider_mode", cfg.Checkout.ProviderMode, includeZero)
	putString(checkoutLayer, "api_key", cfg.Checkout.APIKey, includeZero)
	putString(checkoutLayer, "price_id", cfg.Checkout.PriceID, includeZero)
	putString(checkoutLayer, "product_sku", cfg.Checkout.ProductSKU, includeZero)
	putString(checkoutLayer, "product_version", cfg.Checkout.ProductVersion, includeZero)
	putString(checkoutLayer, "currency", cfg.Checkout.Currency, includeZero)
	putString(checkoutLayer, "success_url", cfg.Checkout.SuccessURL, includeZero)
	putString(checkoutLayer, "cancel_url", cfg.Checkout.CancelURL, includeZero)
	putString(checkoutLayer, "mock_checkout_url", cfg.Checkout.MockCheckoutURL, includeZero)
	putLayer(layer, "checkout", checkoutLayer)

	return layer
}

func putString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}

func putInt(layer map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func putDuration(layer map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func putLayer(parent map[string]any, key string, layer map[string]any) {
	if len(layer) > 0 {
		parent[key] = layer
	}
}
