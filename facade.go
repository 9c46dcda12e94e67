package payments

import (
	"fmt"

	"github.com/goliatone/go-payments/adapters/gocommand"
	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	paymentsquery "github.com/goliatone/go-payments/query"
)

type EventReader interface {
	core.WebhookEventReader
	paymentsquery.WebhookEventLister
}

type OrderReader interface {
	core.OrderReader
	paymentsquery.CustomerOrderLister
}

type FacadeDeps struct {
	Processor paymentscommand.WebhookProcessor
	Checkout  paymentscommand.CheckoutCreator
	Events    EventReader
	Orders    OrderReader
	Customers core.CustomerReader
}

type Commands struct {
	ProcessWebhook *paymentscommand.ProcessWebhookCommand
	ReplayEvent    *paymentscommand.ReplayEventCommand
	CreateCheckout *paymentscommand.CreateCheckoutCommand
}

type Queries struct {
	GetWebhookEvent   *paymentsquery.GetWebhookEventQuery
	ListWebhookEvents *paymentsquery.ListWebhookEventsQuery
	GetOrder          *paymentsquery.GetOrderQuery
	GetCustomer       *paymentsquery.GetCustomerQuery
	GetCustomerOrders *paymentsquery.GetCustomerOrdersQuery
}

type Facade struct {
	commands Commands
	queries  Queries
}

func NewFacade(deps FacadeDeps) (*Facade, error) {
	if deps.Processor == nil {
		return nil, fmt.Errorf("payments: webhook processor is required")
	}
	if deps.Events == nil || deps.Orders == nil || deps.Customers == nil {
		return nil, fmt.Errorf("payments: event, order and customer readers are required")
	}

	facade := &Facade{}
	facade.commands = Commands{
		ProcessWebhook: paymentscommand.NewProcessWebhookCommand(deps.Processor),
		ReplayEvent:    paymentscommand.NewReplayEventCommand(deps.Processor),
	}
	if deps.Checkout != nil {
		facade.commands.CreateCheckout = paymentscommand.NewCreateCheckoutCommand(deps.Checkout)
	}
	facade.queries = Queries{
		GetWebhookEvent:   paymentsquery.NewGetWebhookEventQuery(deps.Events),
		ListWebhookEvents: paymentsquery.NewListWebhookEventsQuery(deps.Events),
		GetOrder:          paymentsquery.NewGetOrderQuery(deps.Orders),
		GetCustomer:       paymentsquery.NewGetCustomerQuery(deps.Customers),
		GetCustomerOrders: paymentsquery.NewGetCustomerOrdersQuery(deps.Customers, deps.Orders),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

// Handlers returns the facade's commands and queries ready for bus
// registration.
func (f *Facade) Handlers() gocommand.PaymentHandlers {
	if f == nil {
		return gocommand.PaymentHandlers{}
	}
	return gocommand.PaymentHandlers{
		ProcessWebhook:    f.commands.ProcessWebhook,
		ReplayEvent:       f.commands.ReplayEvent,
		CreateCheckout:    f.commands.CreateCheckout,
		GetWebhookEvent:   f.queries.GetWebhookEvent,
		ListWebhookEvents: f.queries.ListWebhookEvents,
		GetOrder:          f.queries.GetOrder,
		GetCustomer:       f.queries.GetCustomer,
		GetCustomerOrders: f.queries.GetCustomerOrders,
	}
}
