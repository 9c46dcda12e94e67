package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
)

const (
	ProviderNameMock   = "mock"
	ProviderNameStripe = "stripe"

	MetadataSource = "genx-commerce-api"
)

// SessionInput is what a provider needs to open a hosted checkout session.
type SessionInput struct {
	Quantity          int
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
}

type Session struct {
	ID  string
	URL string
}

type Provider interface {
	Name() string
	CreateSession(ctx context.Context, in SessionInput) (Session, error)
}

// Result is the JSON body returned to the caller on success.
type Result struct {
	Provider          string            `json:"provider"`
	CheckoutSessionID string            `json:"checkoutSessionId"`
	CheckoutURL       string            `json:"checkoutUrl"`
	ClientReferenceID string            `json:"clientReferenceId"`
	Metadata          map[string]string `json:"metadata"`
}

// Service creates checkout sessions. The provider is chosen from the
// configured mode on every call unless one is injected.
type Service struct {
	Config   core.CheckoutConfig
	Provider Provider
	Observer core.Observer
	Now      func() time.Time
}

func NewService(cfg core.CheckoutConfig) *Service {
	return &Service{
		Config: cfg,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateFromBody decodes and validates a raw JSON request, then creates the
// session.
func (s *Service) CreateFromBody(ctx context.Context, body []byte) (Result, error) {
	req, err := DecodeRequest(body, s.config())
	if err != nil {
		return Result{}, err
	}
	return s.Create(ctx, req)
}

func (s *Service) Create(ctx context.Context, req Request) (result Result, err error) {
	startedAt := s.now()
	cfg := s.config()
	mode := strings.ToLower(strings.TrimSpace(cfg.ProviderMode))
	defer func() {
		s.Observer.ObserveOperation(ctx, startedAt, "checkout_create", err, map[string]any{
			"provider_mode":       mode,
			"checkout_session_id": result.CheckoutSessionID,
			"quantity":            req.Quantity,
		})
	}()

	if err = req.Validate(); err != nil {
		return Result{}, err
	}
	provider, err := s.providerFor(mode)
	if err != nil {
		return Result{}, err
	}

	metadata := map[string]string{
		"product_sku":    req.ProductSKU,
		"plugin_version": req.PluginVersion,
		"checkout_mode":  mode,
		"source":         MetadataSource,
	}
	session, err := provider.CreateSession(ctx, SessionInput{
		Quantity:          req.Quantity,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		CustomerEmail:     req.CustomerEmail,
		ClientReferenceID: req.ClientReferenceID,
		Metadata:          metadata,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Provider:          provider.Name(),
		CheckoutSessionID: session.ID,
		CheckoutURL:       session.URL,
		ClientReferenceID: req.ClientReferenceID,
		Metadata:          metadata,
	}, nil
}

func (s *Service) providerFor(mode string) (Provider, error) {
	if s.Provider != nil {
		return s.Provider, nil
	}
	switch mode {
	case core.ProviderModeMock:
		return NewMockProvider(s.Config.MockCheckoutURL), nil
	case core.ProviderModeTest:
		return NewStripeProvider(s.Config.APIKey, s.Config.PriceID)
	default:
		return nil, core.ConfigError(fmt.Sprintf("Unsupported STRIPE_MODE: %s", mode))
	}
}

func (s *Service) config() core.CheckoutConfig {
	if s == nil {
		return core.CheckoutConfig{}
	}
	return s.Config
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
