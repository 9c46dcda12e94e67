package core

import (
	"context"
	"encoding/json"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type InboundRequest struct {
	Headers map[string]string
	Body    []byte
}

type AdmitInput struct {
	EventID   string
	EventType string
	Livemode  bool
	Payload   json.RawMessage
}

// AdmissionLog is the durable idempotency guard for provider events.
// Admit reports inserted=false when the event id was already logged.
type AdmissionLog interface {
	Admit(ctx context.Context, in AdmitInput) (bool, error)
	MarkOutcome(ctx context.Context, eventID string, status ProcessingStatus, processingError string) error
}

type UpsertCustomerInput struct {
	Email            string
	FullName         string
	StripeCustomerID string
	Metadata         map[string]any
}

type CustomerStore interface {
	UpsertByEmail(ctx context.Context, in UpsertCustomerInput) (Customer, error)
}

type UpsertOrderInput struct {
	CustomerID              string
	StripeCheckoutSessionID string
	StripePaymentIntentID   string
	Status                  OrderStatus
	Currency                string
	AmountCents             int64
	ProductSKU              string
	ProductVersion          string
	Metadata                map[string]any
	OccurredAt              time.Time
}

type MarkOrderFailedInput struct {
	StripePaymentIntentID string
	Metadata              map[string]any
	OccurredAt            time.Time
}

type MarkOrderRefundedInput struct {
	StripePaymentIntentID string
	StripeChargeID        string
	Metadata              map[string]any
	OccurredAt            time.Time
}

// OrderStore mutations return found=false when no order matched; that is an
// ignorable outcome, not an error.
type OrderStore interface {
	UpsertByCheckoutSession(ctx context.Context, in UpsertOrderInput) (Order, error)
	MarkFailedByPaymentIntent(ctx context.Context, in MarkOrderFailedInput) (Order, bool, error)
	MarkRefunded(ctx context.Context, in MarkOrderRefundedInput) (Order, bool, error)
}

// UnitOfWork exposes stores bound to a single open transaction.
type UnitOfWork interface {
	Events() AdmissionLog
	Customers() CustomerStore
	Orders() OrderStore
}

// TxRunner commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

type Reconciler interface {
	Apply(ctx context.Context, uow UnitOfWork, event ProviderEvent) (Outcome, error)
}

type WebhookEventReader interface {
	GetWebhookEvent(ctx context.Context, eventID string) (WebhookEvent, error)
}

type OrderReader interface {
	GetOrderByCheckoutSession(ctx context.Context, sessionID string) (Order, error)
}

type CustomerReader interface {
	GetCustomer(ctx context.Context, id string) (Customer, error)
}
