package query

import (
	"strings"

	"github.com/goliatone/go-payments/core"
)

const (
	TypeGetWebhookEvent   = "payments.query.webhook_event.get"
	TypeListWebhookEvents = "payments.query.webhook_event.list"
	TypeGetOrder          = "payments.query.order.get"
	TypeGetCustomer       = "payments.query.customer.get"
	TypeGetCustomerOrders = "payments.query.customer.orders"

	maxListLimit = 500
)

type GetWebhookEventMessage struct {
	EventID string
}

func (GetWebhookEventMessage) Type() string { return TypeGetWebhookEvent }

func (m GetWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event id is required")
	}
	return nil
}

type ListWebhookEventsMessage struct {
	Status core.ProcessingStatus
	Limit  int
}

func (ListWebhookEventsMessage) Type() string { return TypeListWebhookEvents }

func (m ListWebhookEventsMessage) Validate() error {
	if m.Status != "" {
		if err := m.Status.Validate(); err != nil {
			return queryValidationError("status", err.Error())
		}
	}
	if m.Limit < 0 || m.Limit > maxListLimit {
		return queryValidationError("limit", "limit must be between 0 and 500")
	}
	return nil
}

// WebhookEventPage is a bounded slice of the admission log plus the total
// number of matching rows.
type WebhookEventPage struct {
	Items []core.WebhookEvent
	Total int
}

type GetOrderMessage struct {
	CheckoutSessionID string
}

func (GetOrderMessage) Type() string { return TypeGetOrder }

func (m GetOrderMessage) Validate() error {
	if strings.TrimSpace(m.CheckoutSessionID) == "" {
		return queryValidationError("checkout_session_id", "checkout session id is required")
	}
	return nil
}

type GetCustomerMessage struct {
	CustomerID string
}

func (GetCustomerMessage) Type() string { return TypeGetCustomer }

func (m GetCustomerMessage) Validate() error {
	if strings.TrimSpace(m.CustomerID) == "" {
		return queryValidationError("customer_id", "customer id is required")
	}
	return nil
}

type GetCustomerOrdersMessage struct {
	CustomerID string
}

func (GetCustomerOrdersMessage) Type() string { return TypeGetCustomerOrders }

func (m GetCustomerOrdersMessage) Validate() error {
	if strings.TrimSpace(m.CustomerID) == "" {
		return queryValidationError("customer_id", "customer id is required")
	}
	return nil
}

// CustomerOrders is a customer with its orders, newest first.
type CustomerOrders struct {
	Customer core.Customer
	Orders   []core.Order
}
