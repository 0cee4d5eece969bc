package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/progress"
	"github.com/JakeFAU/steam-vanity-checker/internal/store"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// StoreSink mirrors progress into a store.CheckRepository. Check records are
// buffered per batch and written with one InsertChecks call per run.
type StoreSink struct {
	repo   store.CheckRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.CheckRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards the batch in order. Pending checks are flushed before any
// run completion so the run row never closes ahead of its checks.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	pending := make(map[uuid.UUID][]vanity.CheckRecord)
	var order []uuid.UUID

	flush := func() error {
		for _, runID := range order {
			recs := pending[runID]
			if len(recs) == 0 {
				continue
			}
			if err := s.repo.InsertChecks(ctx, runID, recs); err != nil {
				return fmt.Errorf("insert checks: %w", err)
			}
		}
		clear(pending)
		order = order[:0]
		return nil
	}

	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCheckDone:
			if _, ok := pending[evt.RunID]; !ok {
				order = append(order, evt.RunID)
			}
			pending[evt.RunID] = append(pending[evt.RunID], evt.Record)
		case progress.StageRunStart:
			if err := s.repo.UpsertRunStart(ctx, evt.RunID, evt.TS, evt.Total); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StageRunDone, progress.StageRunError:
			if err := flush(); err != nil {
				return err
			}
			if err := s.completeRun(ctx, evt); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *StoreSink) completeRun(ctx context.Context, evt progress.Event) error {
	status := store.RunSuccess
	var note *string
	if evt.Stage == progress.StageRunError {
		status = store.RunError
		if evt.Note != "" {
			note = &evt.Note
		}
	}
	counts := store.RunCounts{
		Checked:   evt.State.Checked,
		Available: evt.State.Available,
		Taken:     evt.State.Taken,
		Errors:    evt.State.Errors,
	}
	if err := s.repo.CompleteRun(ctx, evt.RunID, evt.TS, status, counts, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	s.logger.Debug("run mirrored", zap.String("run_id", evt.RunID.String()), zap.String("status", string(status)))
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
