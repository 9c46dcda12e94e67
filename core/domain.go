package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidProcessingStatus = errors.New("core: invalid processing status")
	ErrInvalidOrderStatus      = errors.New("core: invalid order status")
	ErrWebhookEventNotFound    = errors.New("core: webhook event not found")
	ErrOrderNotFound           = errors.New("core: order not found")
	ErrCustomerNotFound        = errors.New("core: customer not found")
)

type ProcessingStatus string

const (
	ProcessingStatusReceived  ProcessingStatus = "received"
	ProcessingStatusProcessed ProcessingStatus = "processed"
	ProcessingStatusIgnored   ProcessingStatus = "ignored"
	ProcessingStatusFailed    ProcessingStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s ProcessingStatus) Terminal() bool {
	switch s {
	case ProcessingStatusProcessed, ProcessingStatusIgnored, ProcessingStatusFailed:
		return true
	default:
		return false
	}
}

func (s ProcessingStatus) Validate() error {
	switch s {
	case ProcessingStatusReceived, ProcessingStatusProcessed, ProcessingStatusIgnored, ProcessingStatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProcessingStatus, string(s))
	}
}

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

func (s OrderStatus) Validate() error {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusRefunded:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrderStatus, string(s))
	}
}

// WebhookEvent is the admission log row for one provider event.
type WebhookEvent struct {
	EventID          string
	EventType        string
	Livemode         bool
	Payload          json.RawMessage
	ProcessingStatus ProcessingStatus
	ProcessingError  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProcessedAt      *time.Time
}

type Customer struct {
	ID               string
	Email            string
	FullName         string
	StripeCustomerID string
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Order struct {
	ID                      string
	CustomerID              string
	StripeCheckoutSessionID string
	StripePaymentIntentID   string
	StripeChargeID          string
	Status                  OrderStatus
	Currency                string
	AmountCents             int64
	ProductSKU              string
	ProductVersion          string
	FulfilledAt             *time.Time
	RefundedAt              *time.Time
	Metadata                map[string]any
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NormalizeEmail lowercases and trims an address so it can serve as the
// customer natural key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MergeMetadata returns base overlaid with patch. Keys present in base and
// absent from patch are kept; neither input is mutated.
func MergeMetadata(base map[string]any, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range patch {
		if strings.TrimSpace(key) == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// FillOnce keeps current when it is already set, otherwise takes next.
func FillOnce(current string, next string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	return strings.TrimSpace(next)
}
