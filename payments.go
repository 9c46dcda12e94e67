package payments

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/checkout"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/inbound"
	"github.com/goliatone/go-payments/reconcile"
	sqlstore "github.com/goliatone/go-payments/store/sql"
	"github.com/goliatone/go-payments/webhooks"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type Config = core.Config
type Logger = core.Logger
type LoggerProvider = core.LoggerProvider
type MetricsRecorder = core.MetricsRecorder
type RawConfigLoader = core.RawConfigLoader

type ProcessResult = core.ProcessResult
type WebhookEvent = core.WebhookEvent
type Customer = core.Customer
type Order = core.Order

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type Option func(*builder)

type builder struct {
	logger           Logger
	loggerProvider   LoggerProvider
	metrics          MetricsRecorder
	configLoader     RawConfigLoader
	runtimeConfig    Config
	persistence      *persistence.Client
	db               *bun.DB
	checkoutProvider checkout.Provider
	accessLog        bool
}

func WithLogger(logger Logger) Option {
	return func(b *builder) { b.logger = logger }
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *builder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *builder) { b.metrics = recorder }
}

// WithConfigLoader replaces the environment loader.
func WithConfigLoader(loader RawConfigLoader) Option {
	return func(b *builder) { b.configLoader = loader }
}

// WithRuntimeConfig sets the highest priority config layer. Zero fields are
// ignored.
func WithRuntimeConfig(cfg Config) Option {
	return func(b *builder) { b.runtimeConfig = cfg }
}

func WithPersistenceClient(client *persistence.Client) Option {
	return func(b *builder) { b.persistence = client }
}

func WithDB(db *bun.DB) Option {
	return func(b *builder) { b.db = db }
}

func WithCheckoutProvider(provider checkout.Provider) Option {
	return func(b *builder) { b.checkoutProvider = provider }
}

func WithAccessLog(enabled bool) Option {
	return func(b *builder) { b.accessLog = enabled }
}

// Service is the assembled payments module.
type Service struct {
	config    Config
	logger    Logger
	stores    *sqlstore.RepositoryFactory
	engine    *reconcile.Engine
	processor *webhooks.Processor
	checkout  *checkout.Service
	facade    *Facade
	accessLog bool
}

// New resolves configuration, binds the SQL stores and wires the webhook
// pipeline and checkout service.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	b := builder{}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}

	provider, logger := glog.Resolve("payments", b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("payments"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	metrics := b.metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	observer := core.Observer{Logger: logger, Metrics: metrics}

	loader := b.configLoader
	if loader == nil {
		loader = core.NewEnvConfigLoader()
	}
	cfg, err := core.LoadConfig(ctx, loader, b.runtimeConfig)
	if err != nil {
		return nil, core.MapError(err)
	}

	stores, err := buildStores(b)
	if err != nil {
		return nil, err
	}

	verifier, err := webhooks.NewVerifier(cfg.Webhook)
	if err != nil {
		return nil, core.ConfigError(err.Error())
	}
	engine := reconcile.NewEngine(reconcile.DefaultsFromConfig(cfg.Checkout))
	processor := webhooks.NewProcessor(verifier, stores.TxRunner(), engine)
	processor.Observer = observer

	checkoutService := checkout.NewService(cfg.Checkout)
	checkoutService.Provider = b.checkoutProvider
	checkoutService.Observer = observer

	facade, err := NewFacade(FacadeDeps{
		Processor: processor,
		Checkout:  checkoutService,
		Events:    stores.WebhookEventStore(),
		Orders:    stores.OrderStore(),
		Customers: stores.CustomerStore(),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payments service configured",
		"service", cfg.ServiceName,
		"provider_mode", cfg.Checkout.ProviderMode,
		"signature_mode", cfg.Webhook.SignatureMode,
		"database_driver", cfg.Database.Driver,
	)

	return &Service{
		config:    cfg,
		logger:    logger,
		stores:    stores,
		engine:    engine,
		processor: processor,
		checkout:  checkoutService,
		facade:    facade,
		accessLog: b.accessLog,
	}, nil
}

func buildStores(b builder) (*sqlstore.RepositoryFactory, error) {
	switch {
	case b.persistence != nil:
		return sqlstore.NewRepositoryFactoryFromPersistence(b.persistence)
	case b.db != nil:
		return sqlstore.NewRepositoryFactoryFromDB(b.db)
	default:
		return nil, fmt.Errorf("payments: a persistence client or bun DB is required")
	}
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Processor() *webhooks.Processor {
	if s == nil {
		return nil
	}
	return s.processor
}

func (s *Service) Checkout() *checkout.Service {
	if s == nil {
		return nil
	}
	return s.checkout
}

func (s *Service) Stores() *sqlstore.RepositoryFactory {
	if s == nil {
		return nil
	}
	return s.stores
}

func (s *Service) Facade() *Facade {
	if s == nil {
		return nil
	}
	return s.facade
}

// App builds the HTTP surface over this service.
func (s *Service) App() (*fiber.App, error) {
	if s == nil {
		return nil, fmt.Errorf("payments: service is nil")
	}
	return inbound.NewApp(inbound.Deps{
		Config:    s.config,
		Webhooks:  s.processor,
		Checkout:  s.checkout,
		AccessLog: s.accessLog,
	})
}

// RegisterHandlers exposes the facade on a go-command registry and dispatcher.
func (s *Service) RegisterHandlers(adapter *gocommand.RegistryAdapter) (gocommand.Subscriptions, error) {
	if s == nil {
		return nil, fmt.Errorf("payments: service is nil")
	}
	return gocommand.RegisterPaymentHandlers(adapter, s.facade.Handlers())
}
