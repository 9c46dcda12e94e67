package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/checkout"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

// WebhookProcessor is satisfied by *webhooks.Processor.
type WebhookProcessor interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.ProcessResult, error)
	Process(ctx context.Context, event core.ProviderEvent) (core.ProcessResult, error)
}

type CheckoutCreator interface {
	CreateFromBody(ctx context.Context, body []byte) (checkout.Result, error)
}

type ProcessWebhookCommand struct {
	processor WebhookProcessor
}

func NewProcessWebhookCommand(processor WebhookProcessor) *ProcessWebhookCommand {
	return &ProcessWebhookCommand{processor: processor}
}

func (c *ProcessWebhookCommand) Execute(ctx context.Context, msg ProcessWebhookMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: webhook processor is required")
	}
	out, err := c.processor.Handle(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type ReplayEventCommand struct {
	processor WebhookProcessor
}

func NewReplayEventCommand(processor WebhookProcessor) *ReplayEventCommand {
	return &ReplayEventCommand{processor: processor}
}

func (c *ReplayEventCommand) Execute(ctx context.Context, msg ReplayEventMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: webhook processor is required")
	}
	event, err := webhooks.ParseEvent(msg.Payload)
	if err != nil {
		return err
	}
	out, err := c.processor.Process(ctx, event)
	storeResult(ctx, out)
	return err
}

type CreateCheckoutCommand struct {
	checkout CheckoutCreator
}

func NewCreateCheckoutCommand(creator CheckoutCreator) *CreateCheckoutCommand {
	return &CreateCheckoutCommand{checkout: creator}
}

func (c *CreateCheckoutCommand) Execute(ctx context.Context, msg CreateCheckoutMessage) error {
	if c == nil || c.checkout == nil {
		return commandDependencyError("command: checkout service is required")
	}
	out, err := c.checkout.CreateFromBody(ctx, msg.Body)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
