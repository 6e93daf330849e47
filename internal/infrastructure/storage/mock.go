package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	mu        sync.Mutex
	bookings  map[uuid.UUID]*LocalBooking
	syncRuns  map[int64]*SyncRun
	nextRunID int64

	// Hooks for test assertions
	UpdateSyncSuccessCalls int
	UpdateSyncErrorCalls   int
	LastSyncUpdate         *SyncUpdate
	LastSyncError          string

	// Error injection for testing error paths
	FindBookingErr       error
	ListBookingsErr      error
	UpdateSyncSuccessErr error
	UpdateSyncErrorErr   error
	PingErr              error
	StartSyncRunErr      error
	CompleteSyncRunErr   error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		bookings:  make(map[uuid.UUID]*LocalBooking),
		syncRuns:  make(map[int64]*SyncRun),
		nextRunID: 1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// Ping returns PingErr
func (m *MockRepository) Ping(ctx context.Context) error {
	return m.PingErr
}

// CreateBooking stores a copy of the booking
func (m *MockRepository) CreateBooking(ctx context.Context, b *LocalBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.SyncStatus == "" {
		b.SyncStatus = SyncStatusPending
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	copied := *b
	m.bookings[b.ID] = &copied
	return nil
}

// FindBooking returns a copy so callers cannot mutate stored state
func (m *MockRepository) FindBooking(ctx context.Context, idOrRef string) (*LocalBooking, error) {
	if m.FindBookingErr != nil {
		return nil, m.FindBookingErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimSpace(idOrRef)
	if id, err := uuid.Parse(key); err == nil {
		if b, ok := m.bookings[id]; ok {
			copied := *b
			return &copied, nil
		}
	}
	for _, b := range m.bookings {
		if b.BookingReference == key {
			copied := *b
			return &copied, nil
		}
	}
	return nil, ErrBookingNotFound
}

// ListBookingsForSync applies the filter in memory, newest first
func (m *MockRepository) ListBookingsForSync(ctx context.Context, filter BookingFilter) ([]*LocalBooking, error) {
	if m.ListBookingsErr != nil {
		return nil, m.ListBookingsErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-filter.NotSyncedWithin)
	var result []*LocalBooking
	for _, b := range m.bookings {
		if filter.SyncStatus != "" && b.SyncStatus != filter.SyncStatus {
			continue
		}
		if filter.ProviderCode != "" && !strings.EqualFold(b.ProviderCode, filter.ProviderCode) {
			continue
		}
		if filter.NotSyncedWithin > 0 && b.LastSyncedAt != nil && !b.LastSyncedAt.Before(cutoff) {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateSyncSuccess applies the snapshot to the stored booking
func (m *MockRepository) UpdateSyncSuccess(ctx context.Context, id uuid.UUID, u SyncUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateSyncSuccessCalls++
	m.LastSyncUpdate = &u
	if m.UpdateSyncSuccessErr != nil {
		return m.UpdateSyncSuccessErr
	}

	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}

	syncedAt := u.SyncedAt.UTC()
	b.LastSyncedAt = &syncedAt
	b.SyncStatus = SyncStatusSynced
	b.SyncError = nil
	b.ProviderStatus = u.ProviderStatus
	b.ProviderPaymentStatus = u.ProviderPaymentStatus
	b.BalanceDue = u.BalanceDue
	b.ETickets = u.ETickets
	b.Documents = u.Documents
	b.CancellationPolicy = u.CancellationPolicy
	b.ChangePolicy = u.ChangePolicy
	b.Services = u.Services
	if u.HasAvailableServices {
		b.AvailableServices = u.AvailableServices
	}
	b.RawProviderData = u.RawProviderData
	b.UpdatedAt = syncedAt
	return nil
}

// UpdateSyncError marks the stored booking errored
func (m *MockRepository) UpdateSyncError(ctx context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateSyncErrorCalls++
	m.LastSyncError = message
	if m.UpdateSyncErrorErr != nil {
		return m.UpdateSyncErrorErr
	}

	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	msg := message
	b.SyncStatus = SyncStatusError
	b.SyncError = &msg
	return nil
}

// Booking returns the stored booking for assertions
func (m *MockRepository) Booking(id uuid.UUID) *LocalBooking {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil
	}
	copied := *b
	return &copied
}

// StartSyncRun records a new run in memory
func (m *MockRepository) StartSyncRun(ctx context.Context, provider, trigger string) (int64, error) {
	if m.StartSyncRunErr != nil {
		return 0, m.StartSyncRunErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextRunID
	m.nextRunID++
	m.syncRuns[id] = &SyncRun{
		ID:        id,
		Provider:  provider,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
		Status:    SyncRunRunning,
	}
	return id, nil
}

// CompleteSyncRun records run counts
func (m *MockRepository) CompleteSyncRun(ctx context.Context, runID int64, total, synced, failed int) error {
	if m.CompleteSyncRunErr != nil {
		return m.CompleteSyncRunErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.syncRuns[runID]
	if !ok {
		return ErrSyncRunNotFound
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Total = total
	run.Synced = synced
	run.Failed = failed
	run.Status = SyncRunCompleted
	return nil
}

// FailSyncRun marks a run failed
func (m *MockRepository) FailSyncRun(ctx context.Context, runID int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.syncRuns[runID]
	if !ok {
		return ErrSyncRunNotFound
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = SyncRunFailed
	run.Error = message
	return nil
}

// ListSyncRuns returns runs newest first
func (m *MockRepository) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := make([]SyncRun, 0, len(m.syncRuns))
	for _, r := range m.syncRuns {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetSyncRun returns a run by ID
func (m *MockRepository) GetSyncRun(ctx context.Context, runID int64) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.syncRuns[runID]
	if !ok {
		return nil, ErrSyncRunNotFound
	}
	copied := *run
	return &copied, nil
}
