package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/uptrace/bun"
)

type webhookEventRecord struct {
	bun.BaseModel `bun:"table:payment_webhook_events,alias:pwe"`

	ID               string          `bun:"id,pk"`
	EventID          string          `bun:"event_id,notnull,unique"`
	EventType        string          `bun:"event_type,notnull"`
	Livemode         bool            `bun:"livemode,notnull"`
	Payload          string          `bun:"payload,notnull"`
	ProcessingStatus string          `bun:"processing_status,notnull"`
	ProcessingError  string          `bun:"processing_error,nullzero"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	ProcessedAt      *time.Time      `bun:"processed_at,nullzero"`
}

type customerRecord struct {
	bun.BaseModel `bun:"table:customers,alias:cu"`

	ID               string         `bun:"id,pk"`
	Email            string         `bun:"email,notnull,unique"`
	FullName         string         `bun:"full_name,nullzero"`
	StripeCustomerID string         `bun:"stripe_customer_id,nullzero"`
	Metadata         map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderRecord struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                      string         `bun:"id,pk"`
	CustomerID              string         `bun:"customer_id,notnull"`
	StripeCheckoutSessionID string         `bun:"stripe_checkout_session_id,notnull,unique"`
	StripePaymentIntentID   string         `bun:"stripe_payment_intent_id,nullzero"`
	StripeChargeID          string         `bun:"stripe_charge_id,nullzero"`
	Status                  string         `bun:"status,notnull"`
	Currency                string         `bun:"currency,notnull"`
	AmountCents             int64          `bun:"amount_cents,notnull"`
	ProductSKU              string         `bun:"product_sku,notnull"`
	ProductVersion          string         `bun:"product_version,notnull"`
	FulfilledAt             *time.Time     `bun:"fulfilled_at,nullzero"`
	RefundedAt              *time.Time     `bun:"refunded_at,nullzero"`
	Metadata                map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt               time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt               time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *webhookEventRecord) toDomain() core.WebhookEvent {
	if r == nil {
		return core.WebhookEvent{}
	}
	return core.WebhookEvent{
		EventID:          r.EventID,
		EventType:        r.EventType,
		Livemode:         r.Livemode,
		Payload:          json.RawMessage(r.Payload),
		ProcessingStatus: core.ProcessingStatus(r.ProcessingStatus),
		ProcessingError:  r.ProcessingError,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ProcessedAt:      cloneTime(r.ProcessedAt),
	}
}

func (r *customerRecord) toDomain() core.Customer {
	if r == nil {
		return core.Customer{}
	}
	return core.Customer{
		ID:               r.ID,
		Email:            r.Email,
		FullName:         r.FullName,
		StripeCustomerID: r.StripeCustomerID,
		Metadata:         core.MergeMetadata(nil, r.Metadata),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (r *orderRecord) toDomain() core.Order {
	if r == nil {
		return core.Order{}
	}
	return core.Order{
		ID:                      r.ID,
		CustomerID:              r.CustomerID,
		StripeCheckoutSessionID: r.StripeCheckoutSessionID,
		StripePaymentIntentID:   r.StripePaymentIntentID,
		StripeChargeID:          r.StripeChargeID,
		Status:                  core.OrderStatus(r.Status),
		Currency:                r.Currency,
		AmountCents:             r.AmountCents,
		ProductSKU:              r.ProductSKU,
		ProductVersion:          r.ProductVersion,
		FulfilledAt:             cloneTime(r.FulfilledAt),
		RefundedAt:              cloneTime(r.RefundedAt),
		Metadata:                core.MergeMetadata(nil, r.Metadata),
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := value.UTC()
	return &copied
}
