package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-payments/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookEventStore is the event admission log. Admission relies on the
// unique event_id constraint so concurrent deliveries resolve to one winner.
type WebhookEventStore struct {
	db   bun.IDB
	repo repository.Repository[*webhookEventRecord]
	now  func() time.Time
}

func NewWebhookEventStore(db *bun.DB) (*WebhookEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRecord](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook event repository wiring: %w", err)
		}
	}
	return &WebhookEventStore{db: db, repo: repo, now: utcNow}, nil
}

func (s *WebhookEventStore) withTx(tx bun.IDB) *WebhookEventStore {
	return &WebhookEventStore{db: tx, repo: s.repo, now: s.now}
}

func (s *WebhookEventStore) Admit(ctx context.Context, in core.AdmitInput) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		return false, fmt.Errorf("sqlstore: event id is required")
	}
	now := s.now()
	record := &webhookEventRecord{
		ID:               uuid.NewString(),
		EventID:          eventID,
		EventType:        strings.TrimSpace(in.EventType),
		Livemode:         in.Livemode,
		Payload:          string(in.Payload),
		ProcessingStatus: string(core.ProcessingStatusReceived),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if record.Payload == "" {
		record.Payload = "{}"
	}
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkOutcome only moves rows still in received; repeated calls are no-ops.
func (s *WebhookEventStore) MarkOutcome(
	ctx context.Context,
	eventID string,
	status core.ProcessingStatus,
	processingError string,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	if err := status.Validate(); err != nil {
		return err
	}
	if !status.Terminal() {
		return fmt.Errorf("sqlstore: outcome status must be terminal, got %q", status)
	}
	now := s.now()
	query := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("processing_status = ?", string(status)).
		Set("updated_at = ?", now).
		Set("processed_at = ?", now).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Where("processing_status = ?", string(core.ProcessingStatusReceived))
	if trimmed := strings.TrimSpace(processingError); trimmed != "" {
		query = query.Set("processing_error = ?", trimmed)
	} else {
		query = query.Set("processing_error = NULL")
	}
	_, err := query.Exec(ctx)
	return err
}

func (s *WebhookEventStore) GetWebhookEvent(ctx context.Context, eventID string) (core.WebhookEvent, error) {
	if s == nil || s.repo == nil {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("event_id", "=", strings.TrimSpace(eventID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.WebhookEvent{}, err
	}
	if len(records) == 0 {
		return core.WebhookEvent{}, fmt.Errorf("%w: %q", core.ErrWebhookEventNotFound, eventID)
	}
	return records[0].toDomain(), nil
}

// ListWebhookEvents returns the newest events first, optionally filtered by status.
func (s *WebhookEventStore) ListWebhookEvents(
	ctx context.Context,
	status core.ProcessingStatus,
	limit int,
) ([]core.WebhookEvent, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if trimmed := strings.TrimSpace(string(status)); trimmed != "" {
		selectors = append(selectors, repository.SelectBy("processing_status", "=", trimmed))
	}
	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.WebhookEvent, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, total, nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
