package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

const testKeyPrefix = "sk_test_"

// StripeProvider opens payment-mode Checkout Sessions with a single price line.
type StripeProvider struct {
	APIKey  string
	PriceID string
	Backend stripe.Backend
}

// NewStripeProvider only accepts test secret keys.
func NewStripeProvider(apiKey string, priceID string) (*StripeProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	priceID = strings.TrimSpace(priceID)
	if !strings.HasPrefix(apiKey, testKeyPrefix) {
		return nil, core.ConfigError("STRIPE_API_KEY must be set to a test secret key in test mode")
	}
	if priceID == "" {
		return nil, core.ConfigError("STRIPE_PRICE_ID must be set in test mode")
	}
	return &StripeProvider{APIKey: apiKey, PriceID: priceID}, nil
}

func (*StripeProvider) Name() string {
	return ProviderNameStripe
}

func (p *StripeProvider) CreateSession(ctx context.Context, in SessionInput) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.ClientReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(int64(in.Quantity)),
			},
		},
		Metadata: in.Metadata,
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	params.Context = ctx

	client := session.Client{B: p.backend(), Key: p.APIKey}
	created, err := client.New(params)
	if err != nil {
		return Session{}, providerError(err)
	}
	return Session{ID: created.ID, URL: created.URL}, nil
}

func (p *StripeProvider) backend() stripe.Backend {
	if p.Backend != nil {
		return p.Backend
	}
	return stripe.GetBackend(stripe.APIBackend)
}

// providerError keeps the upstream status when the SDK reports one.
func providerError(err error) error {
	status := http.StatusBadGateway
	message := "checkout session creation failed"
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode > 0 {
			status = stripeErr.HTTPStatusCode
		}
		if strings.TrimSpace(stripeErr.Msg) != "" {
			message = stripeErr.Msg
		}
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithCode(status).
		WithTextCode(core.PaymentsErrorCheckoutFailed)
}
