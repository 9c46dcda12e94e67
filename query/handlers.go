package query

import (
	"context"

	"github.com/goliatone/go-payments/core"
)

type WebhookEventLister interface {
	ListWebhookEvents(ctx context.Context, status core.ProcessingStatus, limit int) ([]core.WebhookEvent, int, error)
}

type CustomerOrderLister interface {
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]core.Order, error)
}

type GetWebhookEventQuery struct {
	reader core.WebhookEventReader
}

func NewGetWebhookEventQuery(reader core.WebhookEventReader) *GetWebhookEventQuery {
	return &GetWebhookEventQuery{reader: reader}
}

func (q *GetWebhookEventQuery) Query(ctx context.Context, msg GetWebhookEventMessage) (core.WebhookEvent, error) {
	if q == nil || q.reader == nil {
		return core.WebhookEvent{}, queryDependencyError("query: webhook event reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.WebhookEvent{}, err
	}
	event, err := q.reader.GetWebhookEvent(ctx, msg.EventID)
	return event, queryLookupError(err)
}

type ListWebhookEventsQuery struct {
	lister WebhookEventLister
}

func NewListWebhookEventsQuery(lister WebhookEventLister) *ListWebhookEventsQuery {
	return &ListWebhookEventsQuery{lister: lister}
}

func (q *ListWebhookEventsQuery) Query(ctx context.Context, msg ListWebhookEventsMessage) (WebhookEventPage, error) {
	if q == nil || q.lister == nil {
		return WebhookEventPage{}, queryDependencyError("query: webhook event lister is required")
	}
	if err := msg.Validate(); err != nil {
		return WebhookEventPage{}, err
	}
	items, total, err := q.lister.ListWebhookEvents(ctx, msg.Status, msg.Limit)
	if err != nil {
		return WebhookEventPage{}, err
	}
	return WebhookEventPage{Items: items, Total: total}, nil
}

type GetOrderQuery struct {
	reader core.OrderReader
}

func NewGetOrderQuery(reader core.OrderReader) *GetOrderQuery {
	return &GetOrderQuery{reader: reader}
}

func (q *GetOrderQuery) Query(ctx context.Context, msg GetOrderMessage) (core.Order, error) {
	if q == nil || q.reader == nil {
		return core.Order{}, queryDependencyError("query: order reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Order{}, err
	}
	order, err := q.reader.GetOrderByCheckoutSession(ctx, msg.CheckoutSessionID)
	return order, queryLookupError(err)
}

type GetCustomerQuery struct {
	reader core.CustomerReader
}

func NewGetCustomerQuery(reader core.CustomerReader) *GetCustomerQuery {
	return &GetCustomerQuery{reader: reader}
}

func (q *GetCustomerQuery) Query(ctx context.Context, msg GetCustomerMessage) (core.Customer, error) {
	if q == nil || q.reader == nil {
		return core.Customer{}, queryDependencyError("query: customer reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Customer{}, err
	}
	customer, err := q.reader.GetCustomer(ctx, msg.CustomerID)
	return customer, queryLookupError(err)
}

type GetCustomerOrdersQuery struct {
	customers core.CustomerReader
	orders    CustomerOrderLister
}

func NewGetCustomerOrdersQuery(customers core.CustomerReader, orders CustomerOrderLister) *GetCustomerOrdersQuery {
	return &GetCustomerOrdersQuery{customers: customers, orders: orders}
}

// Query fails with not found when the customer does not exist; a known
// customer without orders yields an empty list.
func (q *GetCustomerOrdersQuery) Query(ctx context.Context, msg GetCustomerOrdersMessage) (CustomerOrders, error) {
	if q == nil || q.customers == nil || q.orders == nil {
		return CustomerOrders{}, queryDependencyError("query: customer reader and order lister are required")
	}
	if err := msg.Validate(); err != nil {
		return CustomerOrders{}, err
	}
	customer, err := q.customers.GetCustomer(ctx, msg.CustomerID)
	if err != nil {
		return CustomerOrders{}, queryLookupError(err)
	}
	orders, err := q.orders.ListOrdersByCustomer(ctx, customer.ID)
	if err != nil {
		return CustomerOrders{}, queryLookupError(err)
	}
	if orders == nil {
		orders = []core.Order{}
	}
	return CustomerOrders{Customer: customer, Orders: orders}, nil
}
