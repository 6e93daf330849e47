package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// Significance classifies how important a detected change is
type Significance string

const (
	SignificanceInfo     Significance = "info"
	SignificanceWarning  Significance = "warning"
	SignificanceCritical Significance = "critical"
)

// Options holds per-call sync configuration
type Options struct {
	Force bool
	// SkipIfRecentMinutes overrides the configured debounce window.
	// Zero means use the configured default, negative disables it.
	SkipIfRecentMinutes      int
	IncludeAvailableServices bool
}

// Change is a single field-level difference between the stored snapshot and
// the freshly fetched order
type Change struct {
	Field        string       `json:"field"`
	OldValue     string       `json:"old_value"`
	NewValue     string       `json:"new_value"`
	Significance Significance `json:"significance"`
}

// Result holds the outcome of syncing one booking
type Result struct {
	Success          bool             `json:"success"`
	Skipped          bool             `json:"skipped,omitempty"`
	BookingID        string           `json:"booking_id"`
	BookingReference string           `json:"booking_reference,omitempty"`
	Provider         string           `json:"provider,omitempty"`
	Changes          []Change         `json:"changes"`
	Order            *providers.Order `json:"-"`
	Error            string           `json:"error,omitempty"`
	Err              error            `json:"-"`
	SyncedAt         *time.Time       `json:"synced_at,omitempty"`
	Duration         time.Duration    `json:"-"`
}

// HasCritical reports whether any change is critical
func (r *Result) HasCritical() bool {
	for _, c := range r.Changes {
		if c.Significance == SignificanceCritical {
			return true
		}
	}
	return false
}

// BatchFilter selects bookings for a batch run
type BatchFilter struct {
	Status          storage.SyncStatus
	ProviderCode    string
	NotSyncedWithin time.Duration
	Limit           int
	// Trigger is recorded on the sync run (api, scheduler, cli)
	Trigger string
}

// BatchResult aggregates a batch run
type BatchResult struct {
	RunID    int64         `json:"run_id,omitempty"`
	Total    int           `json:"total"`
	Synced   int           `json:"synced"`
	Failed   int           `json:"failed"`
	Results  []*Result     `json:"results"`
	Duration time.Duration `json:"-"`
}

// StatusView is a read-only projection of a booking's sync state
type StatusView struct {
	BookingID             string             `json:"booking_id"`
	BookingReference      string             `json:"booking_reference"`
	Provider              string             `json:"provider"`
	SyncStatus            storage.SyncStatus `json:"sync_status"`
	LastSyncedAt          *time.Time         `json:"last_synced_at,omitempty"`
	SyncError             string             `json:"sync_error,omitempty"`
	ProviderStatus        string             `json:"provider_status,omitempty"`
	ProviderPaymentStatus string             `json:"provider_payment_status,omitempty"`
	BalanceDue            string             `json:"balance_due,omitempty"`
	ETicketCount          int                `json:"eticket_count"`
	ServiceCount          int                `json:"service_count"`
	Stale                 bool               `json:"stale"`
}

// Config holds orchestrator defaults
type Config struct {
	DefaultProvider     string
	SkipIfRecentMinutes int
	BatchLimit          int
	BatchConcurrency    int
	ProviderTimeout     time.Duration
}

// DefaultConfig returns the defaults used when a value is not configured
func DefaultConfig() Config {
	return Config{
		DefaultProvider:     "duffel",
		SkipIfRecentMinutes: 5,
		BatchLimit:          50,
		BatchConcurrency:    4,
		ProviderTimeout:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultProvider == "" {
		c.DefaultProvider = d.DefaultProvider
	}
	if c.SkipIfRecentMinutes == 0 {
		c.SkipIfRecentMinutes = d.SkipIfRecentMinutes
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = d.BatchLimit
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = d.ProviderTimeout
	}
	return c
}

// ChangeEvent is handed to a ChangePublisher after a persisted sync that
// detected changes
type ChangeEvent struct {
	BookingID        string    `json:"booking_id"`
	BookingReference string    `json:"booking_reference"`
	Provider         string    `json:"provider"`
	ProviderStatus   string    `json:"provider_status"`
	Changes          []Change  `json:"changes"`
	SyncedAt         time.Time `json:"synced_at"`
}

// ChangePublisher delivers change events to downstream consumers
type ChangePublisher interface {
	PublishChanges(ctx context.Context, event ChangeEvent) error
}

// Orchestrator syncs local bookings against their providers
type Orchestrator struct {
	repo      storage.Repository
	registry  *providers.Registry
	publisher ChangePublisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates a new sync orchestrator. publisher may be nil.
func NewOrchestrator(
	repo storage.Repository,
	registry *providers.Registry,
	publisher ChangePublisher,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:      repo,
		registry:  registry,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.cfg
}
