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

type CustomerStore struct {
	db   bun.IDB
	repo repository.Repository[*customerRecord]
	now  func() time.Time
}

func NewCustomerStore(db *bun.DB) (*CustomerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*customerRecord](db, customerHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid customer repository wiring: %w", err)
		}
	}
	return &CustomerStore{db: db, repo: repo, now: utcNow}, nil
}

func (s *CustomerStore) withTx(tx bun.IDB) *CustomerStore {
	return &CustomerStore{db: tx, repo: s.repo, now: s.now}
}

// UpsertByEmail keeps email as the natural key: full_name takes the latest
// non-empty value, stripe_customer_id is set once, metadata is merged.
func (s *CustomerStore) UpsertByEmail(ctx context.Context, in core.UpsertCustomerInput) (core.Customer, error) {
	if s == nil || s.db == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	email := core.NormalizeEmail(in.Email)
	if email == "" {
		return core.Customer{}, fmt.Errorf("sqlstore: customer email is required")
	}
	now := s.now()

	record := &customerRecord{
		ID:               uuid.NewString(),
		Email:            email,
		FullName:         strings.TrimSpace(in.FullName),
		StripeCustomerID: strings.TrimSpace(in.StripeCustomerID),
		Metadata:         core.MergeMetadata(nil, in.Metadata),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return core.Customer{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return record.toDomain(), nil
	}

	existing := &customerRecord{}
	if err := lockForUpdate(s.db,
		s.db.NewSelect().Model(existing).Where("?TableAlias.email = ?", email).Limit(1),
	).Scan(ctx); err != nil {
		return core.Customer{}, err
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		existing.FullName = name
	}
	existing.StripeCustomerID = core.FillOnce(existing.StripeCustomerID, in.StripeCustomerID)
	existing.Metadata = core.MergeMetadata(existing.Metadata, in.Metadata)
	existing.UpdatedAt = now

	if _, err := s.db.NewUpdate().
		Model(existing).
		Column("full_name", "stripe_customer_id", "metadata", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return core.Customer{}, err
	}
	return existing.toDomain(), nil
}

func (s *CustomerStore) GetCustomer(ctx context.Context, id string) (core.Customer, error) {
	return s.findOne(ctx, "id", id)
}

func (s *CustomerStore) GetCustomerByEmail(ctx context.Context, email string) (core.Customer, error) {
	return s.findOne(ctx, "email", core.NormalizeEmail(email))
}

func (s *CustomerStore) findOne(ctx context.Context, column string, value string) (core.Customer, error) {
	if s == nil || s.repo == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy(column, "=", strings.TrimSpace(value)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Customer{}, fmt.Errorf("%w: %s %q", core.ErrCustomerNotFound, column, value)
		}
		return core.Customer{}, err
	}
	if len(records) == 0 {
		return core.Customer{}, fmt.Errorf("%w: %s %q", core.ErrCustomerNotFound, column, value)
	}
	return records[0].toDomain(), nil
}
