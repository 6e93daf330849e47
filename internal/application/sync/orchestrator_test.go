package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

func newTestOrchestrator(t *testing.T, provs ...providers.Provider) (*Orchestrator, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	registry := providers.NewRegistry(testLogger(), provs...)
	return NewOrchestrator(repo, registry, nil, Config{}, testLogger()), repo
}

func seedBooking(t *testing.T, repo *storage.MockRepository, b *storage.LocalBooking) *storage.LocalBooking {
	t.Helper()
	require.NoError(t, repo.CreateBooking(context.Background(), b))
	return b
}

func TestSyncBooking_RoundTrip(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_1").Return(ticketedOrder("ord_1"), nil)

	orch, repo := newTestOrchestrator(t, prov)
	booking := seedBooking(t, repo, &storage.LocalBooking{
		BookingReference:      "BK-1001",
		ProviderCode:          "duffel",
		ExternalOrderID:       "ord_1",
		ProviderStatus:        "confirmed",
		ProviderPaymentStatus: "awaiting_payment",
	})

	result := orch.SyncBooking(context.Background(), "BK-1001", Options{})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, booking.ID.String(), result.BookingID)
	assert.Equal(t, "duffel", result.Provider)
	require.NotNil(t, result.SyncedAt)
	require.NotNil(t, result.Order)

	byField := map[string]Change{}
	for _, c := range result.Changes {
		byField[c.Field] = c
	}
	require.Len(t, byField, 4)
	assert.Equal(t, Change{Field: FieldStatus, OldValue: "confirmed", NewValue: "ticketed", Significance: SignificanceWarning}, byField[FieldStatus])
	assert.Equal(t, SignificanceInfo, byField[FieldETickets].Significance)
	assert.Equal(t, SignificanceInfo, byField[FieldPaymentStatus].Significance)
	assert.Equal(t, Change{Field: FieldServices, OldValue: "0", NewValue: "1", Significance: SignificanceInfo}, byField[FieldServices])

	stored := repo.Booking(booking.ID)
	assert.Equal(t, storage.SyncStatusSynced, stored.SyncStatus)
	assert.Nil(t, stored.SyncError)
	assert.Equal(t, "ticketed", stored.ProviderStatus)
	assert.Equal(t, "paid", stored.ProviderPaymentStatus)
	assert.Equal(t, "0.00 GBP", stored.BalanceDue.String())
	require.Len(t, stored.ETickets, 1)
	assert.Equal(t, "1252345678901", stored.ETickets[0].UniqueIdentifier)
	require.NotNil(t, stored.CancellationPolicy)
	assert.Equal(t, "40.00 GBP", stored.CancellationPolicy.Penalty.String())
	assert.Len(t, stored.Services, 1)
	assert.JSONEq(t, `{"id":"ord_1"}`, string(stored.RawProviderData))
	assert.Equal(t, 1, repo.UpdateSyncSuccessCalls, "one atomic write per sync")
	assert.False(t, repo.LastSyncUpdate.HasAvailableServices)
}

func TestSyncBooking_PendingToTicketed(t *testing.T) {
	order := ticketedOrder("ord_9")
	order.Services = nil
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_9").Return(order, nil)

	orch, repo := newTestOrchestrator(t, prov)
	booking := seedBooking(t, repo, &storage.LocalBooking{
		BookingReference: "BK-9",
		ProviderCode:     "duffel",
		ExternalOrderID:  "ord_9",
		ProviderStatus:   "pending",
	})

	result := orch.SyncBooking(context.Background(), "BK-9", Options{})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, []Change{
		{Field: FieldStatus, OldValue: "pending", NewValue: "ticketed", Significance: SignificanceWarning},
		{Field: FieldETickets, OldValue: "none", NewValue: "issued", Significance: SignificanceInfo},
	}, result.Changes)

	stored := repo.Booking(booking.ID)
	assert.Equal(t, storage.SyncStatusSynced, stored.SyncStatus)
	assert.Equal(t, "ticketed", stored.ProviderStatus)
	assert.Equal(t, "paid", stored.ProviderPaymentStatus)
	require.Len(t, stored.ETickets, 1)
	assert.Equal(t, "1252345678901", stored.ETickets[0].UniqueIdentifier)
}

func TestSyncBooking_Idempotent(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_1").Return(ticketedOrder("ord_1"), nil)

	orch, repo := newTestOrchestrator(t, prov)
	booking := seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-1", ProviderCode: "duffel", ExternalOrderID: "ord_1"})

	first := orch.SyncBooking(context.Background(), booking.ID.String(), Options{Force: true})
	require.True(t, first.Success)
	assert.NotEmpty(t, first.Changes)
	afterFirst := repo.Booking(booking.ID)

	second := orch.SyncBooking(context.Background(), booking.ID.String(), Options{Force: true})
	require.True(t, second.Success)
	assert.Empty(t, second.Changes, "same upstream state yields no changes")

	afterSecond := repo.Booking(booking.ID)
	assert.Equal(t, afterFirst.ProviderStatus, afterSecond.ProviderStatus)
	assert.Equal(t, afterFirst.ETickets, afterSecond.ETickets)
	assert.Equal(t, afterFirst.Services, afterSecond.Services)
	assert.Equal(t, afterFirst.BalanceDue.String(), afterSecond.BalanceDue.String())
	prov.AssertNumberOfCalls(t, "GetOrder", 2)
}

func TestSyncBooking_Debounce(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	orch, repo := newTestOrchestrator(t, prov)

	now := time.Now().UTC()
	booking := seedBooking(t, repo, &storage.LocalBooking{
		BookingReference: "BK-2",
		ProviderCode:     "duffel",
		ExternalOrderID:  "ord_2",
		SyncStatus:       storage.SyncStatusSynced,
		LastSyncedAt:     &now,
	})

	result := orch.SyncBooking(context.Background(), "BK-2", Options{})
	assert.True(t, result.Success)
	assert.True(t, result.Skipped)
	assert.Empty(t, result.Changes)
	prov.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
	assert.Equal(t, 0, repo.UpdateSyncSuccessCalls)

	// Force bypasses the guard
	prov.On("GetOrder", mock.Anything, "ord_2").Return(ticketedOrder("ord_2"), nil)
	result = orch.SyncBooking(context.Background(), booking.ID.String(), Options{Force: true})
	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	prov.AssertNumberOfCalls(t, "GetOrder", 1)
}

func TestSyncBooking_DebounceWindow(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, mock.Anything).Return(ticketedOrder("ord_3"), nil)
	orch, repo := newTestOrchestrator(t, prov)

	tenMinutesAgo := time.Now().UTC().Add(-10 * time.Minute)
	seedBooking(t, repo, &storage.LocalBooking{
		BookingReference: "BK-3",
		ProviderCode:     "duffel",
		ExternalOrderID:  "ord_3",
		SyncStatus:       storage.SyncStatusSynced,
		LastSyncedAt:     &tenMinutesAgo,
	})

	// Outside the default five minute window
	result := orch.SyncBooking(context.Background(), "BK-3", Options{})
	require.True(t, result.Success)
	assert.False(t, result.Skipped)

	// A wider per-call window skips
	result = orch.SyncBooking(context.Background(), "BK-3", Options{SkipIfRecentMinutes: 30})
	assert.True(t, result.Skipped)
	prov.AssertNumberOfCalls(t, "GetOrder", 1)
}

func TestSyncBooking_ErroredBookingIsNotDebounced(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_4").Return(ticketedOrder("ord_4"), nil)
	orch, repo := newTestOrchestrator(t, prov)

	now := time.Now().UTC()
	msg := "timeout"
	seedBooking(t, repo, &storage.LocalBooking{
		BookingReference: "BK-4",
		ProviderCode:     "duffel",
		ExternalOrderID:  "ord_4",
		SyncStatus:       storage.SyncStatusError,
		SyncError:        &msg,
		LastSyncedAt:     &now,
	})

	result := orch.SyncBooking(context.Background(), "BK-4", Options{})
	require.True(t, result.Success)
	assert.False(t, result.Skipped)
	prov.AssertNumberOfCalls(t, "GetOrder", 1)
}

func TestSyncBooking_StatusCriticality(t *testing.T) {
	cancelled := ticketedOrder("ord_5")
	cancelled.Status = providers.OrderStatusCancelled

	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_5").Return(cancelled, nil)
	orch, repo := newTestOrchestrator(t, prov)

	seedBooking(t, repo, &storage.LocalBooking{
		BookingReference:      "BK-5",
		ProviderCode:          "duffel",
		ExternalOrderID:       "ord_5",
		ProviderStatus:        "ticketed",
		ProviderPaymentStatus: "paid",
		ETickets:              ticketedOrder("ord_5").ETickets(),
		Services:              ticketedOrder("ord_5").Services,
	})

	result := orch.SyncBooking(context.Background(), "BK-5", Options{Force: true})
	require.True(t, result.Success)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, FieldStatus, result.Changes[0].Field)
	assert.Equal(t, SignificanceCritical, result.Changes[0].Significance)
	assert.True(t, result.HasCritical())
}

func TestSyncBooking_UnknownProvider(t *testing.T) {
	orch, repo := newTestOrchestrator(t, &MockProvider{name: "duffel"})

	booking := seedBooking(t, repo, &storage.LocalBooking{
		BookingReference: "BK-6",
		ProviderCode:     "sabre",
		ExternalOrderID:  "ord_6",
		ProviderStatus:   "confirmed",
	})
	before := repo.Booking(booking.ID)

	result := orch.SyncBooking(context.Background(), "BK-6", Options{Force: true})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "sabre")
	assert.ErrorIs(t, result.Err, ErrUnsupportedProvider)

	after := repo.Booking(booking.ID)
	assert.Equal(t, storage.SyncStatusError, after.SyncStatus)
	assert.Equal(t, before.ProviderStatus, after.ProviderStatus)
	assert.Equal(t, before.LastSyncedAt, after.LastSyncedAt)
	assert.Equal(t, before.ExternalOrderID, after.ExternalOrderID)
	assert.Equal(t, 0, repo.UpdateSyncSuccessCalls)
}

func TestSyncBooking_DefaultProviderFallback(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_7").Return(ticketedOrder("ord_7"), nil)
	orch, repo := newTestOrchestrator(t, prov)

	seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-7", ExternalOrderID: "ord_7"})

	result := orch.SyncBooking(context.Background(), "BK-7", Options{})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "duffel", result.Provider)
}

func TestSyncBooking_MissingExternalID(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	orch, repo := newTestOrchestrator(t, prov)
	booking := seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-8", ProviderCode: "duffel"})

	result := orch.SyncBooking(context.Background(), "BK-8", Options{})
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrMissingExternalID)
	assert.Equal(t, storage.SyncStatusError, repo.Booking(booking.ID).SyncStatus)
	prov.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
}

func TestSyncBooking_BookingNotFound(t *testing.T) {
	orch, repo := newTestOrchestrator(t, &MockProvider{name: "duffel"})

	result := orch.SyncBooking(context.Background(), "BK-MISSING", Options{})
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrNotFound)
	assert.Equal(t, 0, repo.UpdateSyncErrorCalls)
}

func TestSyncBooking_UpstreamFailureKeepsSnapshot(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_9").
		Return(nil, fmt.Errorf("duffel: %w", providers.ErrProviderUnavailable))
	orch, repo := newTestOrchestrator(t, prov)

	synced := time.Now().UTC().Add(-time.Hour)
	booking := seedBooking(t, repo, &storage.LocalBooking{
		BookingReference: "BK-9",
		ProviderCode:     "duffel",
		ExternalOrderID:  "ord_9",
		SyncStatus:       storage.SyncStatusSynced,
		LastSyncedAt:     &synced,
		ProviderStatus:   "ticketed",
		ETickets:         ticketedOrder("ord_9").ETickets(),
	})

	result := orch.SyncBooking(context.Background(), "BK-9", Options{})
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrUpstream)

	stored := repo.Booking(booking.ID)
	assert.Equal(t, storage.SyncStatusError, stored.SyncStatus)
	require.NotNil(t, stored.SyncError)
	assert.Contains(t, *stored.SyncError, "unavailable")
	assert.Equal(t, "ticketed", stored.ProviderStatus)
	assert.Len(t, stored.ETickets, 1)
	assert.True(t, synced.Equal(*stored.LastSyncedAt))
}

func TestSyncBooking_ProviderOrderNotFound(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_gone").Return(nil, providers.ErrOrderNotFound)
	orch, repo := newTestOrchestrator(t, prov)
	seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-10", ProviderCode: "duffel", ExternalOrderID: "ord_gone"})

	result := orch.SyncBooking(context.Background(), "BK-10", Options{})
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrNotFound)
	assert.Equal(t, 1, repo.UpdateSyncErrorCalls)
}

func TestSyncBooking_ProviderTimeout(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_slow").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	repo := storage.NewMockRepository()
	registry := providers.NewRegistry(testLogger(), prov)
	orch := NewOrchestrator(repo, registry, nil, Config{ProviderTimeout: 20 * time.Millisecond}, testLogger())
	booking := seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-11", ProviderCode: "duffel", ExternalOrderID: "ord_slow"})

	start := time.Now()
	result := orch.SyncBooking(context.Background(), "BK-11", Options{})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrUpstream)
	assert.Contains(t, result.Error, "timed out")
	assert.Equal(t, storage.SyncStatusError, repo.Booking(booking.ID).SyncStatus)
}

func TestSyncBooking_PersistenceFailure(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_12").Return(ticketedOrder("ord_12"), nil)
	orch, repo := newTestOrchestrator(t, prov)
	booking := seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-12", ProviderCode: "duffel", ExternalOrderID: "ord_12"})

	repo.UpdateSyncSuccessErr = errors.New("disk full")
	result := orch.SyncBooking(context.Background(), "BK-12", Options{})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrPersistence)
	assert.Contains(t, result.Error, "disk full")
	assert.Equal(t, 1, repo.UpdateSyncErrorCalls)
	assert.Equal(t, storage.SyncStatusError, repo.Booking(booking.ID).SyncStatus)
}

func TestSyncBooking_ErrorRecordingFailureDoesNotPanic(t *testing.T) {
	orch, repo := newTestOrchestrator(t)
	seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-13", ProviderCode: "sabre", ExternalOrderID: "ord_13"})
	repo.UpdateSyncErrorErr = errors.New("read-only database")

	var result *Result
	assert.NotPanics(t, func() {
		result = orch.SyncBooking(context.Background(), "BK-13", Options{})
	})
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrUnsupportedProvider)
}

func TestSyncBooking_IncludeAvailableServices(t *testing.T) {
	prov := &MockServiceProvider{MockProvider{name: "duffel"}}
	prov.On("GetOrder", mock.Anything, "ord_14").Return(ticketedOrder("ord_14"), nil)
	prov.On("GetAvailableServices", mock.Anything, "ord_14").Return([]providers.AvailableService{
		{ID: "ase_1", Type: providers.ServiceTypeSeat, MaxQuantity: 1},
	}, nil)
	orch, repo := newTestOrchestrator(t, prov)
	booking := seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-14", ProviderCode: "duffel", ExternalOrderID: "ord_14"})

	result := orch.SyncBooking(context.Background(), "BK-14", Options{IncludeAvailableServices: true})
	require.True(t, result.Success)
	require.Len(t, result.Order.AvailableServices, 1)

	stored := repo.Booking(booking.ID)
	require.Len(t, stored.AvailableServices, 1)
	assert.Equal(t, "ase_1", stored.AvailableServices[0].ID)
}

func TestSyncBooking_AvailableServicesFailureIsNotFatal(t *testing.T) {
	prov := &MockServiceProvider{MockProvider{name: "duffel"}}
	prov.On("GetOrder", mock.Anything, "ord_15").Return(ticketedOrder("ord_15"), nil)
	prov.On("GetAvailableServices", mock.Anything, "ord_15").Return(nil, providers.ErrProviderUnavailable)
	orch, repo := newTestOrchestrator(t, prov)
	seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-15", ProviderCode: "duffel", ExternalOrderID: "ord_15"})

	result := orch.SyncBooking(context.Background(), "BK-15", Options{IncludeAvailableServices: true})
	require.True(t, result.Success)
	assert.False(t, repo.LastSyncUpdate.HasAvailableServices)
}

func TestSyncBooking_PublishesChanges(t *testing.T) {
	prov := &MockProvider{name: "duffel"}
	prov.On("GetOrder", mock.Anything, "ord_16").Return(ticketedOrder("ord_16"), nil)

	repo := storage.NewMockRepository()
	pub := &fakePublisher{}
	orch := NewOrchestrator(repo, providers.NewRegistry(testLogger(), prov), pub, Config{}, testLogger())
	booking := seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-16", ProviderCode: "duffel", ExternalOrderID: "ord_16"})

	result := orch.SyncBooking(context.Background(), "BK-16", Options{})
	require.True(t, result.Success)
	require.Len(t, pub.events, 1)
	assert.Equal(t, booking.ID.String(), pub.events[0].BookingID)
	assert.Equal(t, "BK-16", pub.events[0].BookingReference)
	assert.Equal(t, "ticketed", pub.events[0].ProviderStatus)
	assert.Equal(t, result.Changes, pub.events[0].Changes)

	// No changes, no event
	result = orch.SyncBooking(context.Background(), "BK-16", Options{Force: true})
	require.True(t, result.Success)
	assert.Len(t, pub.events, 1)

	// A failing publisher never fails the sync
	pub.err = errors.New("broker down")
	prov.On("GetOrder", mock.Anything, "ord_16b").Return(ticketedOrder("ord_16b"), nil)
	seedBooking(t, repo, &storage.LocalBooking{BookingReference: "BK-16B", ProviderCode: "duffel", ExternalOrderID: "ord_16b"})
	result = orch.SyncBooking(context.Background(), "BK-16B", Options{})
	require.True(t, result.Success)
	assert.Len(t, pub.events, 2)
}

func TestGetBookingSyncStatus(t *testing.T) {
	orch, repo := newTestOrchestrator(t, &MockProvider{name: "duffel"})

	now := time.Now().UTC()
	msg := "provider unavailable"
	seedBooking(t, repo, &storage.LocalBooking{
		BookingReference: "BK-17",
		ExternalOrderID:  "ord_17",
		SyncStatus:       storage.SyncStatusError,
		SyncError:        &msg,
		LastSyncedAt:     &now,
		ProviderStatus:   "ticketed",
		BalanceDue:       providers.ParseMoney("10", "EUR"),
		ETickets:         ticketedOrder("ord_17").ETickets(),
	})

	view, err := orch.GetBookingSyncStatus(context.Background(), "BK-17")
	require.NoError(t, err)
	assert.Equal(t, "duffel", view.Provider)
	assert.Equal(t, storage.SyncStatusError, view.SyncStatus)
	assert.Equal(t, msg, view.SyncError)
	assert.Equal(t, "10.00 EUR", view.BalanceDue)
	assert.Equal(t, 1, view.ETicketCount)
	assert.True(t, view.Stale)
	assert.Equal(t, 0, repo.UpdateSyncErrorCalls+repo.UpdateSyncSuccessCalls)

	_, err = orch.GetBookingSyncStatus(context.Background(), "BK-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	repo.FindBookingErr = errors.New("connection refused")
	_, err = orch.GetBookingSyncStatus(context.Background(), "BK-17")
	assert.ErrorIs(t, err, ErrPersistence)
}
