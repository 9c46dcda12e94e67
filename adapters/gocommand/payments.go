package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/query"
)

// PaymentHandlers is the full set of payments commands and queries exposed
// on the bus. Nil entries are skipped.
type PaymentHandlers struct {
	ProcessWebhook    *command.ProcessWebhookCommand
	ReplayEvent       *command.ReplayEventCommand
	CreateCheckout    *command.CreateCheckoutCommand
	GetWebhookEvent   *query.GetWebhookEventQuery
	ListWebhookEvents *query.ListWebhookEventsQuery
	GetOrder          *query.GetOrderQuery
	GetCustomer       *query.GetCustomerQuery
	GetCustomerOrders *query.GetCustomerOrdersQuery
}

type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterPaymentHandlers registers and subscribes every configured handler.
// On failure the subscriptions made so far are released.
func RegisterPaymentHandlers(adapter *RegistryAdapter, handlers PaymentHandlers) (Subscriptions, error) {
	subs := Subscriptions{}
	register := func(name string, fn func() (commanddispatcher.Subscription, error)) error {
		sub, err := fn()
		if err != nil {
			return fmt.Errorf("gocommand: register %s: %w", name, err)
		}
		subs = append(subs, sub)
		return nil
	}

	steps := []struct {
		name    string
		enabled bool
		fn      func() (commanddispatcher.Subscription, error)
	}{
		{command.TypeProcessWebhook, handlers.ProcessWebhook != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[command.ProcessWebhookMessage](adapter, handlers.ProcessWebhook)
		}},
		{command.TypeReplayEvent, handlers.ReplayEvent != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[command.ReplayEventMessage](adapter, handlers.ReplayEvent)
		}},
		{command.TypeCreateCheckout, handlers.CreateCheckout != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[command.CreateCheckoutMessage](adapter, handlers.CreateCheckout)
		}},
		{query.TypeGetWebhookEvent, handlers.GetWebhookEvent != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[query.GetWebhookEventMessage, core.WebhookEvent](adapter, handlers.GetWebhookEvent)
		}},
		{query.TypeListWebhookEvents, handlers.ListWebhookEvents != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[query.ListWebhookEventsMessage, query.WebhookEventPage](adapter, handlers.ListWebhookEvents)
		}},
		{query.TypeGetOrder, handlers.GetOrder != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[query.GetOrderMessage, core.Order](adapter, handlers.GetOrder)
		}},
		{query.TypeGetCustomer, handlers.GetCustomer != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[query.GetCustomerMessage, core.Customer](adapter, handlers.GetCustomer)
		}},
		{query.TypeGetCustomerOrders, handlers.GetCustomerOrders != nil, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[query.GetCustomerOrdersMessage, query.CustomerOrders](adapter, handlers.GetCustomerOrders)
		}},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := register(step.name, step.fn); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return subs, nil
}
