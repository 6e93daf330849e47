package storage

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

var (
	// ErrBookingNotFound is returned when no booking matches an id or reference
	ErrBookingNotFound = errors.New("booking not found")

	// ErrSyncRunNotFound is returned when a sync run id is unknown
	ErrSyncRunNotFound = errors.New("sync run not found")
)

// SyncStatus is the local reconciliation state of a booking
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// LocalBooking is the persisted booking record kept in step with the provider.
//
// When SyncStatus is error, SyncError is set. When it is synced, LastSyncedAt
// is set and SyncError is nil.
type LocalBooking struct {
	ID               uuid.UUID  `json:"id"`
	BookingReference string     `json:"booking_reference"`
	ProviderCode     string     `json:"provider_code"`
	ExternalOrderID  string     `json:"external_order_id"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
	SyncStatus       SyncStatus `json:"sync_status"`
	SyncError        *string    `json:"sync_error,omitempty"`

	// Provider snapshot, replaced as a whole on every successful sync
	ProviderStatus        string                       `json:"provider_status,omitempty"`
	ProviderPaymentStatus string                       `json:"provider_payment_status,omitempty"`
	BalanceDue            providers.Money              `json:"balance_due"`
	ETickets              []providers.Document         `json:"e_tickets,omitempty"`
	Documents             []providers.Document         `json:"documents,omitempty"`
	CancellationPolicy    *providers.Condition         `json:"cancellation_policy,omitempty"`
	ChangePolicy          *providers.Condition         `json:"change_policy,omitempty"`
	Services              []providers.BookedService    `json:"services,omitempty"`
	AvailableServices     []providers.AvailableService `json:"available_services,omitempty"`
	RawProviderData       json.RawMessage              `json:"raw_provider_data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncUpdate carries every snapshot field written by a successful sync.
// AvailableServices is only written when HasAvailableServices is set so a
// sync that skipped the lookup keeps the previous list.
type SyncUpdate struct {
	SyncedAt              time.Time
	ProviderStatus        string
	ProviderPaymentStatus string
	BalanceDue            providers.Money
	ETickets              []providers.Document
	Documents             []providers.Document
	CancellationPolicy    *providers.Condition
	ChangePolicy          *providers.Condition
	Services              []providers.BookedService
	AvailableServices     []providers.AvailableService
	HasAvailableServices  bool
	RawProviderData       json.RawMessage
}

// BookingFilter selects bookings for a batch sync. Zero values mean no filter.
type BookingFilter struct {
	SyncStatus      SyncStatus
	ProviderCode    string
	NotSyncedWithin time.Duration
	Limit           int
}

// SyncRun records one batch sync
type SyncRun struct {
	ID          int64      `json:"id"`
	Provider    string     `json:"provider,omitempty"`
	Trigger     string     `json:"trigger"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Total       int        `json:"total"`
	Synced      int        `json:"synced"`
	Failed      int        `json:"failed"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// Sync run statuses
const (
	SyncRunRunning   = "running"
	SyncRunCompleted = "completed"
	SyncRunFailed    = "failed"
)
