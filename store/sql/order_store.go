package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-payments/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type OrderStore struct {
	db   bun.IDB
	repo repository.Repository[*orderRecord]
	now  func() time.Time
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderRecord](db, orderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	return &OrderStore{db: db, repo: repo, now: utcNow}, nil
}

func (s *OrderStore) withTx(tx bun.IDB) *OrderStore {
	return &OrderStore{db: tx, repo: s.repo, now: s.now}
}

// UpsertByCheckoutSession keys orders on the checkout session id. The payment
// intent id is set once, status and amounts follow the latest event,
// fulfilled_at is stamped the first time the order is seen paid.
func (s *OrderStore) UpsertByCheckoutSession(ctx context.Context, in core.UpsertOrderInput) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	sessionID := strings.TrimSpace(in.StripeCheckoutSessionID)
	if sessionID == "" {
		return core.Order{}, fmt.Errorf("sqlstore: checkout session id is required")
	}
	if err := in.Status.Validate(); err != nil {
		return core.Order{}, err
	}
	occurredAt := s.occurredAt(in.OccurredAt)

	record := &orderRecord{
		ID:                      uuid.NewString(),
		CustomerID:              strings.TrimSpace(in.CustomerID),
		StripeCheckoutSessionID: sessionID,
		StripePaymentIntentID:   strings.TrimSpace(in.StripePaymentIntentID),
		Status:                  string(in.Status),
		Currency:                strings.ToUpper(strings.TrimSpace(in.Currency)),
		AmountCents:             in.AmountCents,
		ProductSKU:              strings.TrimSpace(in.ProductSKU),
		ProductVersion:          strings.TrimSpace(in.ProductVersion),
		Metadata:                core.MergeMetadata(nil, in.Metadata),
		CreatedAt:               occurredAt,
		UpdatedAt:               occurredAt,
	}
	if in.Status == core.OrderStatusPaid {
		record.FulfilledAt = &occurredAt
	}
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (stripe_checkout_session_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return core.Order{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return record.toDomain(), nil
	}

	existing := &orderRecord{}
	if err := lockForUpdate(s.db,
		s.db.NewSelect().Model(existing).Where("?TableAlias.stripe_checkout_session_id = ?", sessionID).Limit(1),
	).Scan(ctx); err != nil {
		return core.Order{}, err
	}
	if customerID := strings.TrimSpace(in.CustomerID); customerID != "" {
		existing.CustomerID = customerID
	}
	existing.StripePaymentIntentID = core.FillOnce(existing.StripePaymentIntentID, in.StripePaymentIntentID)
	existing.Status = string(in.Status)
	existing.Currency = record.Currency
	existing.AmountCents = in.AmountCents
	existing.ProductSKU = record.ProductSKU
	existing.ProductVersion = record.ProductVersion
	if in.Status == core.OrderStatusPaid && existing.FulfilledAt == nil {
		existing.FulfilledAt = &occurredAt
	}
	existing.Metadata = core.MergeMetadata(existing.Metadata, in.Metadata)
	existing.UpdatedAt = occurredAt

	if _, err := s.db.NewUpdate().
		Model(existing).
		Column(
			"customer_id",
			"stripe_payment_intent_id",
			"status",
			"currency",
			"amount_cents",
			"product_sku",
			"product_version",
			"fulfilled_at",
			"metadata",
			"updated_at",
		).
		WherePK().
		Exec(ctx); err != nil {
		return core.Order{}, err
	}
	return existing.toDomain(), nil
}

func (s *OrderStore) MarkFailedByPaymentIntent(ctx context.Context, in core.MarkOrderFailedInput) (core.Order, bool, error) {
	if s == nil || s.db == nil {
		return core.Order{}, false, fmt.Errorf("sqlstore: order store is not configured")
	}
	intentID := strings.TrimSpace(in.StripePaymentIntentID)
	if intentID == "" {
		return core.Order{}, false, nil
	}
	existing, found, err := s.lockOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.stripe_payment_intent_id = ?", intentID)
	})
	if err != nil || !found {
		return core.Order{}, found, err
	}

	existing.Status = string(core.OrderStatusFailed)
	existing.Metadata = core.MergeMetadata(existing.Metadata, in.Metadata)
	existing.UpdatedAt = s.occurredAt(in.OccurredAt)
	if _, err := s.db.NewUpdate().
		Model(existing).
		Column("status", "metadata", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return core.Order{}, false, err
	}
	return existing.toDomain(), true, nil
}

// MarkRefunded matches on payment intent id or charge id. refunded_at and the
// charge id are only filled when unset.
func (s *OrderStore) MarkRefunded(ctx context.Context, in core.MarkOrderRefundedInput) (core.Order, bool, error) {
	if s == nil || s.db == nil {
		return core.Order{}, false, fmt.Errorf("sqlstore: order store is not configured")
	}
	intentID := strings.TrimSpace(in.StripePaymentIntentID)
	chargeID := strings.TrimSpace(in.StripeChargeID)
	if intentID == "" && chargeID == "" {
		return core.Order{}, false, nil
	}
	existing, found, err := s.lockOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if intentID != "" {
				q = q.WhereOr("?TableAlias.stripe_payment_intent_id = ?", intentID)
			}
			if chargeID != "" {
				q = q.WhereOr("?TableAlias.stripe_charge_id = ?", chargeID)
			}
			return q
		})
	})
	if err != nil || !found {
		return core.Order{}, found, err
	}

	occurredAt := s.occurredAt(in.OccurredAt)
	existing.Status = string(core.OrderStatusRefunded)
	existing.StripeChargeID = core.FillOnce(existing.StripeChargeID, chargeID)
	if existing.RefundedAt == nil {
		existing.RefundedAt = &occurredAt
	}
	existing.Metadata = core.MergeMetadata(existing.Metadata, in.Metadata)
	existing.UpdatedAt = occurredAt
	if _, err := s.db.NewUpdate().
		Model(existing).
		Column("status", "stripe_charge_id", "refunded_at", "metadata", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return core.Order{}, false, err
	}
	return existing.toDomain(), true, nil
}

func (s *OrderStore) GetOrderByCheckoutSession(ctx context.Context, sessionID string) (core.Order, error) {
	return s.findOne(ctx, repository.SelectBy("stripe_checkout_session_id", "=", strings.TrimSpace(sessionID)))
}

func (s *OrderStore) GetOrder(ctx context.Context, id string) (core.Order, error) {
	return s.findOne(ctx, repository.SelectBy("id", "=", strings.TrimSpace(id)))
}

// ListOrdersByCustomer returns a customer's orders, newest first.
func (s *OrderStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]core.Order, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: order store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("customer_id", "=", strings.TrimSpace(customerID)),
		repository.OrderBy("created_at DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Order, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *OrderStore) findOne(ctx context.Context, selector repository.SelectCriteria) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	records, _, err := s.repo.List(ctx, selector, repository.SelectPaginate(1, 0))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Order{}, core.ErrOrderNotFound
		}
		return core.Order{}, err
	}
	if len(records) == 0 {
		return core.Order{}, core.ErrOrderNotFound
	}
	return records[0].toDomain(), nil
}

func (s *OrderStore) lockOne(
	ctx context.Context,
	where func(q *bun.SelectQuery) *bun.SelectQuery,
) (*orderRecord, bool, error) {
	existing := &orderRecord{}
	query := where(s.db.NewSelect().Model(existing)).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(1)
	if err := lockForUpdate(s.db, query).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return existing, true, nil
}

func (s *OrderStore) occurredAt(value time.Time) time.Time {
	if value.IsZero() {
		return s.now()
	}
	return value.UTC()
}
