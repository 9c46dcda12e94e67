package webhooks

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

// Processor is the transaction coordinator for provider webhooks:
// verify, parse, then admit + reconcile + mark outcome in one unit of work.
type Processor struct {
	Verifier   Verifier
	Tx         core.TxRunner
	Reconciler core.Reconciler
	Observer   core.Observer
	Now        func() time.Time
}

func NewProcessor(verifier Verifier, tx core.TxRunner, reconciler core.Reconciler) *Processor {
	return &Processor{
		Verifier:   verifier,
		Tx:         tx,
		Reconciler: reconciler,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle runs the full inbound pipeline on a raw request. Signature failures
// and malformed payloads are returned before any storage is touched.
func (p *Processor) Handle(ctx context.Context, req core.InboundRequest) (core.ProcessResult, error) {
	if p == nil || p.Verifier == nil {
		return core.ProcessResult{}, core.InternalError("webhooks: processor requires a verifier")
	}
	if err := p.Verifier.Verify(ctx, req); err != nil {
		p.Observer.Warn(ctx, "webhook signature rejected", map[string]any{
			"reason":     err.Error(),
			"body_bytes": len(req.Body),
		})
		return core.ProcessResult{}, core.SignatureError(err, nil)
	}

	event, err := ParseEvent(req.Body)
	if err != nil {
		return core.ProcessResult{}, err
	}
	return p.Process(ctx, event)
}

// Process applies an already verified event. A reconciliation error marks the
// admission row failed and is then returned, which rolls the whole unit of
// work back, failure mark and admission row included.
func (p *Processor) Process(ctx context.Context, event core.ProviderEvent) (result core.ProcessResult, err error) {
	if p == nil || p.Tx == nil || p.Reconciler == nil {
		return core.ProcessResult{}, core.InternalError("webhooks: processor requires tx runner and reconciler")
	}
	startedAt := p.now()
	result = core.ProcessResult{EventID: event.ID}
	defer func() {
		fields := map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
			"duplicate":  result.Duplicate,
			"detail":     result.Detail,
		}
		if result.Status != "" {
			fields["processing_status"] = string(result.Status)
		}
		p.Observer.ObserveOperation(ctx, startedAt, "webhook_process", err, fields)
	}()

	err = p.Tx.RunInTx(ctx, func(ctx context.Context, uow core.UnitOfWork) error {
		admitted, admitErr := uow.Events().Admit(ctx, core.AdmitInput{
			EventID:   event.ID,
			EventType: event.Type,
			Livemode:  event.Livemode,
			Payload:   event.Payload,
		})
		if admitErr != nil {
			return processingFailure(admitErr, "event admission failed", event)
		}
		if !admitted {
			result.Duplicate = true
			result.Status = core.ProcessingStatusIgnored
			result.Detail = core.DetailAlreadyProcessed
			return nil
		}

		outcome, applyErr := p.Reconciler.Apply(ctx, uow, event)
		if applyErr != nil {
			failure := processingFailure(applyErr, "event reconciliation failed", event)
			if markErr := uow.Events().MarkOutcome(ctx, event.ID, core.ProcessingStatusFailed, failure.Error()); markErr != nil {
				return processingFailure(
					fmt.Errorf("%w; mark failed: %v", applyErr, markErr),
					"event reconciliation failed",
					event,
				)
			}
			return failure
		}

		if markErr := uow.Events().MarkOutcome(ctx, event.ID, outcome.Status, ""); markErr != nil {
			return processingFailure(markErr, "event outcome update failed", event)
		}
		result.Status = outcome.Status
		result.Detail = outcome.Detail
		return nil
	})
	if err != nil {
		result.Duplicate = false
		result.Status = core.ProcessingStatusFailed
		result.Detail = ""
		return result, err
	}
	return result, nil
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func processingFailure(err error, message string, event core.ProviderEvent) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryOperation {
		return rich
	}
	return core.ProcessingError(err, message, map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
}
