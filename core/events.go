package core

import (
	"encoding/json"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
)

// EventKind is the closed set of provider event types the reconciliation
// engine acts on. Anything else maps to EventKindUnhandled.
type EventKind int

const (
	EventKindUnhandled EventKind = iota
	EventKindCheckoutSessionCompleted
	EventKindPaymentIntentFailed
	EventKindChargeRefunded
)

var eventKindsByType = map[string]EventKind{
	string(stripe.EventTypeCheckoutSessionCompleted):   EventKindCheckoutSessionCompleted,
	string(stripe.EventTypePaymentIntentPaymentFailed): EventKindPaymentIntentFailed,
	string(stripe.EventTypeChargeRefunded):             EventKindChargeRefunded,
}

func EventKindOf(eventType string) EventKind {
	kind, ok := eventKindsByType[strings.TrimSpace(eventType)]
	if !ok {
		return EventKindUnhandled
	}
	return kind
}

func (k EventKind) String() string {
	switch k {
	case EventKindCheckoutSessionCompleted:
		return string(stripe.EventTypeCheckoutSessionCompleted)
	case EventKindPaymentIntentFailed:
		return string(stripe.EventTypePaymentIntentPaymentFailed)
	case EventKindChargeRefunded:
		return string(stripe.EventTypeChargeRefunded)
	default:
		return "unhandled"
	}
}

// ProviderEvent is a structurally valid, signature-checked provider event.
// Payload holds the exact bytes received; Object is the decoded data.object.
type ProviderEvent struct {
	ID       string
	Type     string
	Kind     EventKind
	Livemode bool
	Created  int64
	Object   map[string]any
	Payload  json.RawMessage
}

const (
	DetailOrderUpserted                 = "order_upserted"
	DetailOrderMarkedFailed             = "order_marked_failed"
	DetailOrderMarkedRefunded           = "order_marked_refunded"
	DetailEventTypeNotHandled           = "event_type_not_handled"
	DetailMissingPaymentIntentID        = "missing_payment_intent_id"
	DetailOrderNotFoundForPaymentIntent = "order_not_found_for_payment_intent"
	DetailMissingChargeIdentifiers      = "missing_charge_identifiers"
	DetailOrderNotFoundForRefund        = "order_not_found_for_refund"
	DetailAlreadyProcessed              = "already_processed"
)

// Outcome is what the reconciliation engine reports for a handled event.
// Status is either processed or ignored; failures are returned as errors.
type Outcome struct {
	Status ProcessingStatus
	Detail string
}

func Processed(detail string) Outcome {
	return Outcome{Status: ProcessingStatusProcessed, Detail: detail}
}

func Ignored(detail string) Outcome {
	return Outcome{Status: ProcessingStatusIgnored, Detail: detail}
}

// ProcessResult is surfaced by the transaction coordinator to the endpoint.
type ProcessResult struct {
	EventID   string           `json:"eventId"`
	Duplicate bool             `json:"duplicate"`
	Status    ProcessingStatus `json:"processingStatus"`
	Detail    string           `json:"detail,omitempty"`
}
