package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRepository_BehavesLikeStore(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()

	booking := &LocalBooking{BookingReference: "BK-M1", ProviderCode: "duffel", ExternalOrderID: "ord_1"}
	require.NoError(t, repo.CreateBooking(ctx, booking))

	got, err := repo.FindBooking(ctx, "BK-M1")
	require.NoError(t, err)
	got.ProviderStatus = "mutated"
	assert.Empty(t, repo.Booking(booking.ID).ProviderStatus, "returned copies must not alias stored state")

	require.NoError(t, repo.UpdateSyncSuccess(ctx, booking.ID, sampleSyncUpdate(time.Now())))
	assert.Equal(t, 1, repo.UpdateSyncSuccessCalls)
	assert.Equal(t, SyncStatusSynced, repo.Booking(booking.ID).SyncStatus)

	require.NoError(t, repo.UpdateSyncError(ctx, booking.ID, "boom"))
	stored := repo.Booking(booking.ID)
	assert.Equal(t, SyncStatusError, stored.SyncStatus)
	assert.Equal(t, "ticketed", stored.ProviderStatus)
}

func TestMockRepository_ErrorInjection(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	boom := errors.New("boom")

	repo.PingErr = boom
	assert.ErrorIs(t, repo.Ping(ctx), boom)

	repo.FindBookingErr = boom
	_, err := repo.FindBooking(ctx, "x")
	assert.ErrorIs(t, err, boom)

	repo.ListBookingsErr = boom
	_, err = repo.ListBookingsForSync(ctx, BookingFilter{})
	assert.ErrorIs(t, err, boom)
}
