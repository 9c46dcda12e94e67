package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/webhooks"
)

var (
	_ gocmd.Commander[ProcessWebhookMessage] = (*ProcessWebhookCommand)(nil)
	_ gocmd.Commander[ReplayEventMessage]    = (*ReplayEventCommand)(nil)
	_ gocmd.Commander[CreateCheckoutMessage] = (*CreateCheckoutCommand)(nil)

	_ WebhookProcessor = (*webhooks.Processor)(nil)
)
