// Package pipeline orchestrates the enrichment loop: read pending
// records, look each one up, map, validate, reconcile, and report.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/qamarero/placesync/internal/mapper"
	"github.com/qamarero/placesync/internal/model"
	"github.com/qamarero/placesync/internal/reconcile"
	"github.com/qamarero/placesync/internal/validate"
	"github.com/qamarero/placesync/pkg/outscraper"
)

// Source yields the records to process.
type Source interface {
	NextPending(ctx context.Context, limit int) ([]model.PendingRecord, error)
	ByIDs(ctx context.Context, ids []string) ([]model.PendingRecord, error)
}

// Options control one run.
type Options struct {
	// MaxRecords caps how many pending records one run consumes.
	MaxRecords int
	// Delay is the pause between consecutive records, rate-limiting on
	// top of the client's own limiter.
	Delay time.Duration
	// StopOnError aborts the run at the first record-level failure
	// instead of recording it and moving on.
	StopOnError bool
	// IDs switches the run to targeted mode: exactly these staging rows,
	// regardless of their marker state.
	IDs []string
}

// Pipeline wires the stages together. Strictly sequential: the upstream
// API tolerates no request bursts and record order must be stable.
type Pipeline struct {
	source     Source
	enricher   outscraper.Client
	store      reconcile.PlaceStore
	reconciler *reconcile.Reconciler
	log        *zap.Logger
}

// New creates a Pipeline.
func New(src Source, enricher outscraper.Client, store reconcile.PlaceStore) *Pipeline {
	return &Pipeline{
		source:     src,
		enricher:   enricher,
		store:      store,
		reconciler: reconcile.New(store),
		log:        zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run processes one batch. The returned stats are always non-nil, also
// when the run aborts early; the error reports system-level failures
// (source unavailable, StopOnError trip), never per-record outcomes.
func (p *Pipeline) Run(ctx context.Context, opts Options, sink EventSink) (*model.RunStats, error) {
	if sink == nil {
		sink = NopSink{}
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 50
	}

	stats := &model.RunStats{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	records, err := p.load(ctx, opts)
	if err != nil {
		stats.Finish(time.Now().UTC())
		sink.Emit(Event{Type: EventError, Detail: err.Error(), Stats: stats, Timestamp: time.Now().UTC()})
		return stats, err
	}

	sink.Emit(Event{
		Type:      EventStart,
		Total:     len(records),
		Detail:    stats.RunID,
		Timestamp: time.Now().UTC(),
	})

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			stats.Finish(time.Now().UTC())
			sink.Emit(Event{Type: EventError, Detail: "run canceled", Stats: stats, Timestamp: time.Now().UTC()})
			return stats, eris.Wrap(err, "pipeline: run canceled")
		}

		sink.Emit(Event{
			Type:      EventProgress,
			RecordID:  rec.ID,
			Name:      recName(rec),
			Current:   i + 1,
			Total:     len(records),
			Timestamp: time.Now().UTC(),
		})

		result := p.processOne(ctx, rec, sink)
		stats.Record(result)

		if opts.StopOnError && result.Status == model.StatusFailed {
			stats.Finish(time.Now().UTC())
			err := eris.Errorf("pipeline: record %s failed: %s", rec.ID, result.Detail)
			sink.Emit(Event{Type: EventError, RecordID: rec.ID, Detail: result.Detail, Stats: stats, Timestamp: time.Now().UTC()})
			return stats, err
		}

		if opts.Delay > 0 && i < len(records)-1 {
			sink.Emit(Event{Type: EventDelay, Detail: opts.Delay.String(), Timestamp: time.Now().UTC()})
			if err := sleep(ctx, opts.Delay); err != nil {
				stats.Finish(time.Now().UTC())
				return stats, eris.Wrap(err, "pipeline: run canceled")
			}
		}
	}

	stats.Finish(time.Now().UTC())
	sink.Emit(Event{Type: EventComplete, Stats: stats, Timestamp: time.Now().UTC()})

	p.log.Info("run complete",
		zap.String("run_id", stats.RunID),
		zap.Int("total", stats.TotalProcessed),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("not_found", stats.NotFound))

	return stats, nil
}

func (p *Pipeline) load(ctx context.Context, opts Options) ([]model.PendingRecord, error) {
	if len(opts.IDs) > 0 {
		return p.source.ByIDs(ctx, opts.IDs)
	}
	return p.source.NextPending(ctx, opts.MaxRecords)
}

// processOne runs the per-record state machine. Every terminal outcome
// stamps the staging row so the next page query skips it.
func (p *Pipeline) processOne(ctx context.Context, rec model.PendingRecord, sink EventSink) model.ProcessResult {
	result := model.ProcessResult{RecordID: rec.ID, Name: recName(rec)}
	if rec.CustomerID != nil {
		result.CustomerID = *rec.CustomerID
	}

	sink.Emit(Event{Type: EventProcessing, RecordID: rec.ID, Name: result.Name, Timestamp: time.Now().UTC()})

	// No resolved customer means nothing to attribute a place to: a
	// name-only lookup would risk attaching the wrong business, and an
	// insert would reference a customer row that does not exist.
	if rec.Customer == nil {
		result.Status = model.StatusNotFound
		result.Detail = "no customer matched the staged record"
		return p.finish(ctx, rec, result, sink)
	}

	name, address, city := searchTerms(rec)
	cand, err := p.enricher.SearchSinglePlace(ctx, name, address, city)
	if err != nil {
		result.Status = model.StatusFailed
		result.Detail = "place lookup failed: " + err.Error()
		return p.finish(ctx, rec, result, sink)
	}
	if cand == nil {
		result.Status = model.StatusNotFound
		result.Detail = "no place found for query"
		return p.finish(ctx, rec, result, sink)
	}
	result.PlaceID = cand.PlaceID

	mapped, err := mapper.Map(rec, cand)
	if err != nil {
		if errors.Is(err, mapper.ErrIdentityMismatch) {
			result.Status = model.StatusIDMismatch
			result.Detail = "staged customer id and joined customer disagree"
		} else {
			result.Status = model.StatusFailed
			result.Detail = "mapping failed: " + err.Error()
		}
		return p.finish(ctx, rec, result, sink)
	}

	vr := validate.Validate(mapped)
	result.Warnings = vr.Warnings
	if !vr.Valid {
		result.Status = model.StatusValidationFailed
		result.Errors = vr.Errors
		result.Detail = "record failed validation"
		return p.finish(ctx, rec, result, sink)
	}

	outcome, err := p.reconciler.Reconcile(ctx, vr.Sanitized)
	if err != nil {
		result.Status = model.StatusFailed
		result.Detail = err.Error()
		return p.finish(ctx, rec, result, sink)
	}
	if outcome == reconcile.OutcomeSkippedConflict {
		result.Status = model.StatusSkipped
		result.Detail = "place id already attached to another customer"
		return p.finish(ctx, rec, result, sink)
	}

	result.Status = model.StatusSuccess
	result.Detail = string(outcome)
	return p.finish(ctx, rec, result, sink)
}

// finish marks the staging row and emits the terminal event. Marking is
// best-effort: a marker failure is logged, the outcome stands.
func (p *Pipeline) finish(ctx context.Context, rec model.PendingRecord, result model.ProcessResult, sink EventSink) model.ProcessResult {
	if err := p.store.MarkProcessed(ctx, rec.ID); err != nil {
		p.log.Warn("failed to mark staging row processed",
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}

	sink.Emit(Event{
		Type:      terminalEvent(result.Status),
		RecordID:  result.RecordID,
		Name:      result.Name,
		Detail:    result.Detail,
		Errors:    result.Errors,
		Warnings:  result.Warnings,
		Timestamp: time.Now().UTC(),
	})
	return result
}

// searchTerms picks the lookup query parts, preferring customer data
// over what was staged.
func searchTerms(rec model.PendingRecord) (name, address, city string) {
	if rec.Customer != nil {
		name = rec.Customer.Name
		if rec.Customer.Address != nil {
			address = *rec.Customer.Address
		}
		if rec.Customer.City != nil {
			city = *rec.Customer.City
		}
	}
	if name == "" && rec.Name != nil {
		name = *rec.Name
	}
	return name, address, city
}

func recName(rec model.PendingRecord) string {
	if rec.Customer != nil && rec.Customer.Name != "" {
		return rec.Customer.Name
	}
	if rec.Name != nil {
		return *rec.Name
	}
	return ""
}

func terminalEvent(status model.ProcessStatus) EventType {
	switch status {
	case model.StatusSuccess:
		return EventSuccess
	case model.StatusNotFound:
		return EventNotFound
	case model.StatusValidationFailed:
		return EventValidationFailed
	case model.StatusIDMismatch:
		return EventIDMismatch
	case model.StatusSkipped:
		return EventSkipped
	default:
		return EventFailed
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
