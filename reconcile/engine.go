package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
)

const placeholderEmailDomain = "checkout.invalid"

// Defaults fill order fields the provider payload leaves empty.
type Defaults struct {
	Currency       string
	ProductSKU     string
	ProductVersion string
}

func DefaultsFromConfig(cfg core.CheckoutConfig) Defaults {
	return Defaults{
		Currency:       cfg.Currency,
		ProductSKU:     cfg.ProductSKU,
		ProductVersion: cfg.ProductVersion,
	}
}

type handlerFunc func(ctx context.Context, uow core.UnitOfWork, event core.ProviderEvent) (core.Outcome, error)

// Engine dispatches each event kind to exactly one handler.
type Engine struct {
	Defaults Defaults
	Now      func() time.Time

	handlers map[core.EventKind]handlerFunc
}

func NewEngine(defaults Defaults) *Engine {
	e := &Engine{
		Defaults: defaults,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	e.handlers = map[core.EventKind]handlerFunc{
		core.EventKindCheckoutSessionCompleted: e.applyCheckoutCompleted,
		core.EventKindPaymentIntentFailed:      e.applyPaymentIntentFailed,
		core.EventKindChargeRefunded:           e.applyChargeRefunded,
	}
	return e
}

func (e *Engine) Apply(ctx context.Context, uow core.UnitOfWork, event core.ProviderEvent) (core.Outcome, error) {
	if e == nil || uow == nil {
		return core.Outcome{}, core.InternalError("reconcile: engine requires a unit of work")
	}
	kind := event.Kind
	if kind == core.EventKindUnhandled {
		kind = core.EventKindOf(event.Type)
	}
	handler, ok := e.handlers[kind]
	if !ok {
		return core.Ignored(core.DetailEventTypeNotHandled), nil
	}
	object := event.Object
	if object == nil {
		object = map[string]any{}
	}
	event.Object = object
	return handler(ctx, uow, event)
}

func (e *Engine) applyCheckoutCompleted(ctx context.Context, uow core.UnitOfWork, event core.ProviderEvent) (core.Outcome, error) {
	session := event.Object
	sessionID := stringAt(session, "id")
	if sessionID == "" {
		return core.Outcome{}, core.ProcessingError(nil, "checkout session id is missing", map[string]any{
			"event_id": event.ID,
		})
	}

	email := core.NormalizeEmail(firstNonEmpty(
		stringAt(session, "customer_details", "email"),
		stringAt(session, "customer_email"),
	))
	if email == "" {
		email = PlaceholderEmail(sessionID)
	}

	sessionMetadata := metadataAt(session, "metadata")
	customerMetadata := core.MergeMetadata(sessionMetadata, map[string]any{
		"last_checkout_session_id": sessionID,
	})
	customer, err := uow.Customers().UpsertByEmail(ctx, core.UpsertCustomerInput{
		Email:            email,
		FullName:         stringAt(session, "customer_details", "name"),
		StripeCustomerID: idAt(session, "customer"),
		Metadata:         customerMetadata,
	})
	if err != nil {
		return core.Outcome{}, storeFailure(err, "customer upsert failed", event)
	}

	status := core.OrderStatusPending
	if strings.EqualFold(stringAt(session, "payment_status"), "paid") {
		status = core.OrderStatusPaid
	}

	orderMetadata := core.MergeMetadata(sessionMetadata, map[string]any{
		"checkout_event_id": event.ID,
	})
	if reference := stringAt(session, "client_reference_id"); reference != "" {
		orderMetadata["client_reference_id"] = reference
	}

	_, err = uow.Orders().UpsertByCheckoutSession(ctx, core.UpsertOrderInput{
		CustomerID:              customer.ID,
		StripeCheckoutSessionID: sessionID,
		StripePaymentIntentID:   idAt(session, "payment_intent"),
		Status:                  status,
		Currency:                e.currency(stringAt(session, "currency")),
		AmountCents:             centsAt(session, "amount_total"),
		ProductSKU:              firstNonEmpty(stringAt(sessionMetadata, "product_sku"), e.Defaults.ProductSKU),
		ProductVersion:          firstNonEmpty(stringAt(sessionMetadata, "plugin_version"), e.Defaults.ProductVersion),
		Metadata:                orderMetadata,
		OccurredAt:              e.now(),
	})
	if err != nil {
		return core.Outcome{}, storeFailure(err, "order upsert failed", event)
	}
	return core.Processed(core.DetailOrderUpserted), nil
}

func (e *Engine) applyPaymentIntentFailed(ctx context.Context, uow core.UnitOfWork, event core.ProviderEvent) (core.Outcome, error) {
	intent := event.Object
	intentID := stringAt(intent, "id")
	if intentID == "" {
		return core.Ignored(core.DetailMissingPaymentIntentID), nil
	}

	metadata := core.MergeMetadata(metadataAt(intent, "metadata"), map[string]any{
		"payment_failed_event_id": event.ID,
	})
	if message := stringAt(intent, "last_payment_error", "message"); message != "" {
		metadata["payment_failure_message"] = message
	}
	if code := stringAt(intent, "last_payment_error", "code"); code != "" {
		metadata["payment_failure_code"] = code
	}

	_, found, err := uow.Orders().MarkFailedByPaymentIntent(ctx, core.MarkOrderFailedInput{
		StripePaymentIntentID: intentID,
		Metadata:              metadata,
		OccurredAt:            e.now(),
	})
	if err != nil {
		return core.Outcome{}, storeFailure(err, "order failure update failed", event)
	}
	if !found {
		return core.Ignored(core.DetailOrderNotFoundForPaymentIntent), nil
	}
	return core.Processed(core.DetailOrderMarkedFailed), nil
}

func (e *Engine) applyChargeRefunded(ctx context.Context, uow core.UnitOfWork, event core.ProviderEvent) (core.Outcome, error) {
	charge := event.Object
	chargeID := stringAt(charge, "id")
	intentID := idAt(charge, "payment_intent")
	if chargeID == "" && intentID == "" {
		return core.Ignored(core.DetailMissingChargeIdentifiers), nil
	}

	metadata := core.MergeMetadata(metadataAt(charge, "metadata"), map[string]any{
		"refund_event_id": event.ID,
	})
	if refunded := centsAt(charge, "amount_refunded"); refunded > 0 {
		metadata["amount_refunded_cents"] = fmt.Sprintf("%d", refunded)
	}

	_, found, err := uow.Orders().MarkRefunded(ctx, core.MarkOrderRefundedInput{
		StripePaymentIntentID: intentID,
		StripeChargeID:        chargeID,
		Metadata:              metadata,
		OccurredAt:            e.now(),
	})
	if err != nil {
		return core.Outcome{}, storeFailure(err, "order refund update failed", event)
	}
	if !found {
		return core.Ignored(core.DetailOrderNotFoundForRefund), nil
	}
	return core.Processed(core.DetailOrderMarkedRefunded), nil
}

func (e *Engine) currency(value string) string {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(e.Defaults.Currency))
	}
	if currency == "" {
		currency = "USD"
	}
	return currency
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// PlaceholderEmail is the deterministic customer key for sessions without an email.
func PlaceholderEmail(sessionID string) string {
	return fmt.Sprintf("unknown+%s@%s", strings.ToLower(strings.TrimSpace(sessionID)), placeholderEmailDomain)
}

func storeFailure(err error, message string, event core.ProviderEvent) error {
	return core.ProcessingError(err, message, map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
}

var _ core.Reconciler = (*Engine)(nil)
