package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
)

// BatchSyncer runs single and batch syncs
type BatchSyncer interface {
	SyncBooking(ctx context.Context, idOrRef string, opts appsync.Options) *appsync.Result
	SyncBookingsBatch(ctx context.Context, filter appsync.BatchFilter) (*appsync.BatchResult, error)
}

// RunSync executes the sync command: a single booking when -booking is set,
// otherwise a batch over the filter flags. It returns an error when any
// booking failed so the process exits non-zero.
func RunSync(ctx context.Context, syncer BatchSyncer, flags SyncFlags, w io.Writer, logger *slog.Logger) error {
	if flags.Booking != "" {
		logger.Info("Syncing booking", "booking", flags.Booking, "force", flags.Force)
		result := syncer.SyncBooking(ctx, flags.Booking, flags.ToSyncOptions())
		if flags.JSON {
			if err := PrintJSON(w, result); err != nil {
				return err
			}
		} else {
			PrintResult(w, result)
		}
		if !result.Success {
			return fmt.Errorf("sync %s failed: %s", flags.Booking, result.Error)
		}
		return nil
	}

	filter := flags.ToBatchFilter()
	logger.Info("Starting batch sync",
		"status", string(filter.Status),
		"provider", filter.ProviderCode,
		"stale", filter.NotSyncedWithin,
		"limit", filter.Limit)

	result, err := syncer.SyncBookingsBatch(ctx, filter)
	if err != nil {
		return fmt.Errorf("batch sync: %w", err)
	}
	if flags.JSON {
		if err := PrintJSON(w, result); err != nil {
			return err
		}
	} else {
		PrintBatchSummary(w, result)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d bookings failed to sync", result.Failed, result.Total)
	}
	return nil
}
