package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// SyncBooking refreshes one local booking from its provider. Failures are
// reported in the returned Result, never as a panic or returned error.
func (o *Orchestrator) SyncBooking(ctx context.Context, idOrRef string, opts Options) *Result {
	start := o.now()
	result := &Result{BookingID: idOrRef, Changes: []Change{}}
	defer func() {
		result.Duration = o.now().Sub(start)
	}()

	booking, err := o.repo.FindBooking(ctx, idOrRef)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return o.fail(ctx, result, nil, fmt.Errorf("%w: booking %q", ErrNotFound, idOrRef))
		}
		return o.fail(ctx, result, nil, fmt.Errorf("%w: load booking %q: %v", ErrPersistence, idOrRef, err))
	}
	result.BookingID = booking.ID.String()
	result.BookingReference = booking.BookingReference

	if !opts.Force && o.recentlySynced(booking, opts.SkipIfRecentMinutes) {
		o.logger.Debug("Skipping recently synced booking",
			"booking_id", result.BookingID,
			"last_synced_at", booking.LastSyncedAt,
		)
		result.Success = true
		result.Skipped = true
		result.Provider = booking.ProviderCode
		result.SyncedAt = booking.LastSyncedAt
		return result
	}

	code := strings.ToLower(strings.TrimSpace(booking.ProviderCode))
	if code == "" {
		code = o.cfg.DefaultProvider
	}
	result.Provider = code

	provider, ok := o.registry.Get(code)
	if !ok {
		return o.fail(ctx, result, booking, fmt.Errorf("%w: no provider registered for code %q", ErrUnsupportedProvider, code))
	}
	if strings.TrimSpace(booking.ExternalOrderID) == "" {
		return o.fail(ctx, result, booking, fmt.Errorf("%w: booking %s has no %s order id", ErrMissingExternalID, booking.BookingReference, code))
	}

	o.logger.Debug("Fetching provider order",
		"booking_id", result.BookingID,
		"provider", code,
		"external_order_id", booking.ExternalOrderID,
	)

	order, err := o.fetchOrder(ctx, provider, booking.ExternalOrderID)
	if err != nil {
		return o.fail(ctx, result, booking, err)
	}

	update := buildSyncUpdate(order, o.now())
	if opts.IncludeAvailableServices {
		if available, ok := o.fetchAvailableServices(ctx, provider, booking.ExternalOrderID); ok {
			order.AvailableServices = available
			update.AvailableServices = available
			update.HasAvailableServices = true
		}
	}

	changes := DetectChanges(booking, order)

	if err := o.repo.UpdateSyncSuccess(ctx, booking.ID, update); err != nil {
		return o.fail(ctx, result, booking, fmt.Errorf("%w: save sync result: %v", ErrPersistence, err))
	}

	syncedAt := update.SyncedAt
	result.Success = true
	result.Changes = changes
	result.Order = order
	result.SyncedAt = &syncedAt

	o.recordSuccess(ctx, booking, result)
	return result
}

// GetBookingSyncStatus returns the stored sync state without calling the provider
func (o *Orchestrator) GetBookingSyncStatus(ctx context.Context, idOrRef string) (*StatusView, error) {
	booking, err := o.repo.FindBooking(ctx, idOrRef)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return nil, fmt.Errorf("%w: booking %q", ErrNotFound, idOrRef)
		}
		return nil, fmt.Errorf("%w: load booking %q: %v", ErrPersistence, idOrRef, err)
	}

	view := &StatusView{
		BookingID:             booking.ID.String(),
		BookingReference:      booking.BookingReference,
		Provider:              booking.ProviderCode,
		SyncStatus:            booking.SyncStatus,
		LastSyncedAt:          booking.LastSyncedAt,
		ProviderStatus:        booking.ProviderStatus,
		ProviderPaymentStatus: booking.ProviderPaymentStatus,
		ETicketCount:          len(booking.ETickets),
		ServiceCount:          len(booking.Services),
		Stale:                 booking.SyncStatus != storage.SyncStatusSynced || !o.recentlySynced(booking, 0),
	}
	if view.Provider == "" {
		view.Provider = o.cfg.DefaultProvider
	}
	if booking.SyncError != nil {
		view.SyncError = *booking.SyncError
	}
	if booking.LastSyncedAt != nil {
		view.BalanceDue = booking.BalanceDue.String()
	}
	return view, nil
}

// recentlySynced reports whether the last successful sync falls inside the
// debounce window. override follows Options.SkipIfRecentMinutes.
func (o *Orchestrator) recentlySynced(booking *storage.LocalBooking, override int) bool {
	minutes := o.cfg.SkipIfRecentMinutes
	if override != 0 {
		minutes = override
	}
	if minutes <= 0 || booking.LastSyncedAt == nil {
		return false
	}
	if booking.SyncStatus != storage.SyncStatusSynced {
		return false
	}
	return o.now().Sub(*booking.LastSyncedAt) < time.Duration(minutes)*time.Minute
}

// fetchOrder calls the provider under the per-call timeout
func (o *Orchestrator) fetchOrder(ctx context.Context, provider providers.Provider, externalID string) (*providers.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	order, err := provider.GetOrder(callCtx, externalID)
	if err != nil {
		if errors.Is(err, providers.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %s order %s: %v", ErrNotFound, provider.Name(), externalID, err)
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s timed out after %s: %v", ErrUpstream, provider.Name(), o.cfg.ProviderTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s returned no order for %s", ErrUpstream, provider.Name(), externalID)
	}
	return order, nil
}

// fetchAvailableServices is best effort; a failed lookup leaves the stored list alone
func (o *Orchestrator) fetchAvailableServices(ctx context.Context, provider providers.Provider, externalID string) ([]providers.AvailableService, bool) {
	sp, ok := provider.(providers.ServiceProvider)
	if !ok {
		o.logger.Debug("Provider does not sell services", "provider", provider.Name())
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	available, err := sp.GetAvailableServices(callCtx, externalID)
	if err != nil {
		o.logger.Warn("Failed to fetch available services",
			"provider", provider.Name(),
			"external_order_id", externalID,
			"error", err,
		)
		return nil, false
	}
	if available == nil {
		available = []providers.AvailableService{}
	}
	return available, true
}

// fail converts err into a failed result and marks the booking errored
func (o *Orchestrator) fail(ctx context.Context, result *Result, booking *storage.LocalBooking, err error) *Result {
	result.Success = false
	result.Err = err
	result.Error = err.Error()

	o.logger.Warn("Booking sync failed",
		"booking_id", result.BookingID,
		"provider", result.Provider,
		"error", err,
	)
	if booking != nil {
		o.recordError(ctx, booking, err.Error())
	}
	return result
}

func buildSyncUpdate(order *providers.Order, syncedAt time.Time) storage.SyncUpdate {
	return storage.SyncUpdate{
		SyncedAt:              syncedAt,
		ProviderStatus:        string(order.Status),
		ProviderPaymentStatus: string(order.PaymentStatus),
		BalanceDue:            order.BalanceDue,
		ETickets:              order.ETickets(),
		Documents:             order.Documents,
		CancellationPolicy:    order.Conditions.RefundBeforeDeparture,
		ChangePolicy:          order.Conditions.ChangeBeforeDeparture,
		Services:              order.Services,
		RawProviderData:       order.Raw,
	}
}
