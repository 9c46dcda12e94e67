package command

import (
	"bytes"

	"github.com/goliatone/go-payments/core"
)

const (
	TypeProcessWebhook = "payments.command.webhook.process"
	TypeReplayEvent    = "payments.command.webhook.replay"
	TypeCreateCheckout = "payments.command.checkout.create"
)

// ProcessWebhookMessage carries a raw, unverified provider delivery.
type ProcessWebhookMessage struct {
	Request core.InboundRequest
}

func (ProcessWebhookMessage) Type() string { return TypeProcessWebhook }

func (m ProcessWebhookMessage) Validate() error {
	if len(bytes.TrimSpace(m.Request.Body)) == 0 {
		return commandValidationError("body", "webhook body is required")
	}
	return nil
}

// ReplayEventMessage carries a stored provider event. Replays skip signature
// verification but still go through the admission guard.
type ReplayEventMessage struct {
	Payload []byte
}

func (ReplayEventMessage) Type() string { return TypeReplayEvent }

func (m ReplayEventMessage) Validate() error {
	if len(bytes.TrimSpace(m.Payload)) == 0 {
		return commandValidationError("payload", "event payload is required")
	}
	return nil
}

type CreateCheckoutMessage struct {
	Body []byte
}

func (CreateCheckoutMessage) Type() string { return TypeCreateCheckout }

func (CreateCheckoutMessage) Validate() error {
	return nil
}
