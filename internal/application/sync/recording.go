package sync

import (
	"context"

	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// Recording and event functions for the sync orchestrator.
// These never fail the sync they are called from.

// recordError marks the booking errored, leaving its snapshot untouched
func (o *Orchestrator) recordError(ctx context.Context, booking *storage.LocalBooking, errorMsg string) {
	// The caller's context may already be done (timeout, shutdown)
	if err := o.repo.UpdateSyncError(context.WithoutCancel(ctx), booking.ID, errorMsg); err != nil {
		o.logger.Error("Failed to save sync error", "booking_id", booking.ID, "error", err)
	}
}

// recordSuccess logs the outcome and publishes detected changes
func (o *Orchestrator) recordSuccess(ctx context.Context, booking *storage.LocalBooking, result *Result) {
	o.logger.Info("Booking synced",
		"booking_id", result.BookingID,
		"booking_reference", result.BookingReference,
		"provider", result.Provider,
		"changes", len(result.Changes),
		"critical", result.HasCritical(),
	)
	for _, c := range result.Changes {
		o.logger.Debug("Detected change",
			"booking_id", result.BookingID,
			"field", c.Field,
			"old", c.OldValue,
			"new", c.NewValue,
			"significance", c.Significance,
		)
	}

	if o.publisher == nil || len(result.Changes) == 0 {
		return
	}
	event := ChangeEvent{
		BookingID:        result.BookingID,
		BookingReference: booking.BookingReference,
		Provider:         result.Provider,
		Changes:          result.Changes,
	}
	if result.Order != nil {
		event.ProviderStatus = string(result.Order.Status)
	}
	if result.SyncedAt != nil {
		event.SyncedAt = *result.SyncedAt
	}
	if err := o.publisher.PublishChanges(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Error("Failed to publish sync changes", "booking_id", result.BookingID, "error", err)
	}
}
