package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/core"
)

var (
	_ gocmd.Querier[GetWebhookEventMessage, core.WebhookEvent]  = (*GetWebhookEventQuery)(nil)
	_ gocmd.Querier[ListWebhookEventsMessage, WebhookEventPage] = (*ListWebhookEventsQuery)(nil)
	_ gocmd.Querier[GetOrderMessage, core.Order]                = (*GetOrderQuery)(nil)
	_ gocmd.Querier[GetCustomerMessage, core.Customer]          = (*GetCustomerQuery)(nil)
	_ gocmd.Querier[GetCustomerOrdersMessage, CustomerOrders]   = (*GetCustomerOrdersQuery)(nil)
)
