package sync

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// ProgressFunc is called after each booking in a batch finishes
type ProgressFunc func(done, total int, result *Result)

// SyncBookingsBatch force-syncs the bookings selected by filter, most recent
// first. Individual failures are counted, not returned. The only error is a
// store that cannot be reached before any booking is processed.
func (o *Orchestrator) SyncBookingsBatch(ctx context.Context, filter BatchFilter) (*BatchResult, error) {
	return o.SyncBookingsBatchWithProgress(ctx, filter, nil)
}

// SyncBookingsBatchWithProgress is SyncBookingsBatch with a progress callback
func (o *Orchestrator) SyncBookingsBatchWithProgress(ctx context.Context, filter BatchFilter, progress ProgressFunc) (*BatchResult, error) {
	start := o.now()

	if err := o.repo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: store unavailable: %v", ErrPersistence, err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = o.cfg.BatchLimit
	}
	bookings, err := o.repo.ListBookingsForSync(ctx, storage.BookingFilter{
		SyncStatus:      filter.Status,
		ProviderCode:    filter.ProviderCode,
		NotSyncedWithin: filter.NotSyncedWithin,
		Limit:           limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings: %v", ErrPersistence, err)
	}

	trigger := filter.Trigger
	if trigger == "" {
		trigger = "manual"
	}
	runID, err := o.repo.StartSyncRun(ctx, filter.ProviderCode, trigger)
	if err != nil {
		o.logger.Error("Failed to start sync run", "error", err)
		runID = 0
	}

	o.logger.Info("Starting batch sync",
		"run_id", runID,
		"bookings", len(bookings),
		"provider", filter.ProviderCode,
		"status", filter.Status,
		"concurrency", o.cfg.BatchConcurrency,
	)

	results := make([]*Result, len(bookings))
	var done atomic.Int32

	var g errgroup.Group
	// a zero limit would block g.Go forever
	g.SetLimit(max(1, o.cfg.BatchConcurrency))
	for i, b := range bookings {
		g.Go(func() error {
			results[i] = o.SyncBooking(ctx, b.ID.String(), Options{Force: true})
			if progress != nil {
				progress(int(done.Add(1)), len(bookings), results[i])
			}
			return nil
		})
	}
	// Workers never return errors; failures live in each Result
	_ = g.Wait()

	batch := &BatchResult{
		RunID:   runID,
		Total:   len(bookings),
		Results: results,
	}
	for _, r := range results {
		if r.Success {
			batch.Synced++
		} else {
			batch.Failed++
		}
	}
	batch.Duration = o.now().Sub(start)

	if runID != 0 {
		o.finishRun(ctx, runID, batch)
	}

	o.logger.Info("Batch sync complete",
		"run_id", runID,
		"total", batch.Total,
		"synced", batch.Synced,
		"failed", batch.Failed,
		"duration", batch.Duration,
	)
	return batch, nil
}

// finishRun records the run counts, then marks the run failed if the batch
// was cancelled part way through
func (o *Orchestrator) finishRun(ctx context.Context, runID int64, batch *BatchResult) {
	bg := context.WithoutCancel(ctx)
	if err := o.repo.CompleteSyncRun(bg, runID, batch.Total, batch.Synced, batch.Failed); err != nil {
		o.logger.Error("Failed to complete sync run", "run_id", runID, "error", err)
	}
	if ctx.Err() == nil {
		return
	}
	msg := fmt.Sprintf("batch cancelled: %v", ctx.Err())
	if err := o.repo.FailSyncRun(bg, runID, msg); err != nil {
		o.logger.Error("Failed to mark sync run failed", "run_id", runID, "error", err)
	}
}
