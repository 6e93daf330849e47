package storage

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	BookingRepository
	SyncRunRepository
	Close() error
}

// BookingRepository handles local booking records
type BookingRepository interface {
	// FindBooking looks a booking up by uuid or booking reference
	FindBooking(ctx context.Context, idOrRef string) (*LocalBooking, error)

	// ListBookingsForSync returns bookings matching the filter, most recent first
	ListBookingsForSync(ctx context.Context, filter BookingFilter) ([]*LocalBooking, error)

	// UpdateSyncSuccess writes the provider snapshot and marks the booking synced
	// in a single statement
	UpdateSyncSuccess(ctx context.Context, id uuid.UUID, update SyncUpdate) error

	// UpdateSyncError marks the booking errored; only sync_status and sync_error change
	UpdateSyncError(ctx context.Context, id uuid.UUID, message string) error

	// CreateBooking inserts a new booking in pending state
	CreateBooking(ctx context.Context, booking *LocalBooking) error

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}

// SyncRunRepository handles batch run tracking
type SyncRunRepository interface {
	// StartSyncRun records the start of a batch run and returns the run ID
	StartSyncRun(ctx context.Context, provider, trigger string) (int64, error)

	// CompleteSyncRun records the counts of a finished run
	CompleteSyncRun(ctx context.Context, runID int64, total, synced, failed int) error

	// FailSyncRun marks a run as aborted
	FailSyncRun(ctx context.Context, runID int64, message string) error

	// ListSyncRuns returns recent sync runs
	ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error)

	// GetSyncRun retrieves a sync run by ID
	GetSyncRun(ctx context.Context, runID int64) (*SyncRun, error)
}
