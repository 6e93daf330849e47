package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingReference      string          `gorm:"uniqueIndex;not null;size:20"`
	ProviderCode          string          `gorm:"index;not null;size:30"`
	ExternalOrderID       string          `gorm:"not null;size:100"`
	LastSyncedAt          *time.Time      `gorm:"index"`
	SyncStatus            string          `gorm:"index;not null;size:20;default:'pending'"`
	SyncError             *string         `gorm:"type:text"`
	ProviderStatus        string          `gorm:"size:30"`
	ProviderPaymentStatus string          `gorm:"size:30"`
	BalanceDueAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	BalanceDueCurrency    string          `gorm:"size:3"`
	ETickets              json.RawMessage `gorm:"type:jsonb"`
	Documents             json.RawMessage `gorm:"type:jsonb"`
	CancellationPolicy    json.RawMessage `gorm:"type:jsonb"`
	ChangePolicy          json.RawMessage `gorm:"type:jsonb"`
	Services              json.RawMessage `gorm:"type:jsonb"`
	AvailableServices     json.RawMessage `gorm:"type:jsonb"`
	RawProviderData       json.RawMessage `gorm:"type:jsonb"`
	CreatedAt             time.Time       `gorm:"index;not null"`
	UpdatedAt             time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// SyncRunModel is the GORM model for the sync_runs table.
type SyncRunModel struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Provider    string     `gorm:"size:30"`
	TriggeredBy string     `gorm:"size:20;not null"`
	StartedAt   time.Time  `gorm:"index;not null"`
	CompletedAt *time.Time `gorm:""`
	Total       int        `gorm:"not null;default:0"`
	Synced      int        `gorm:"not null;default:0"`
	Failed      int        `gorm:"not null;default:0"`
	Status      string     `gorm:"size:20;not null"`
	Error       string     `gorm:"type:text"`
}

// TableName returns the table name for the GORM model.
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// PostgresStorage is the GORM-based implementation of Repository used when
// several API instances share one database.
type PostgresStorage struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Compile-time check that PostgresStorage implements Repository
var _ Repository = (*PostgresStorage)(nil)

// NewPostgresStorage connects to PostgreSQL and migrates the schema
func NewPostgresStorage(dsn string, log *slog.Logger) (*PostgresStorage, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return NewPostgresStorageFromDB(db, log)
}

// NewPostgresStorageFromDB wraps an existing GORM connection
func NewPostgresStorageFromDB(db *gorm.DB, log *slog.Logger) (*PostgresStorage, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&BookingModel{}, &SyncRunModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	log.Info("postgres schema ready")
	return &PostgresStorage{db: db, logger: log}, nil
}

// Close closes the underlying connection pool
func (r *PostgresStorage) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable
func (r *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateBooking persists a new booking.
func (r *PostgresStorage) CreateBooking(ctx context.Context, b *LocalBooking) error {
	now := time.Now().UTC()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.SyncStatus == "" {
		b.SyncStatus = SyncStatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	model := toBookingModel(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// FindBooking retrieves a booking by uuid or booking reference.
func (r *PostgresStorage) FindBooking(ctx context.Context, idOrRef string) (*LocalBooking, error) {
	key := strings.TrimSpace(idOrRef)
	if key == "" {
		return nil, ErrBookingNotFound
	}

	query := r.db.WithContext(ctx)
	if id, err := uuid.Parse(key); err == nil {
		query = query.Where("id = ? OR booking_reference = ?", id, key)
	} else {
		query = query.Where("booking_reference = ?", key)
	}

	var model BookingModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return toLocalBooking(&model), nil
}

// ListBookingsForSync returns bookings matching the filter, newest first.
func (r *PostgresStorage) ListBookingsForSync(ctx context.Context, filter BookingFilter) ([]*LocalBooking, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})

	if filter.SyncStatus != "" {
		query = query.Where("sync_status = ?", string(filter.SyncStatus))
	}
	if filter.ProviderCode != "" {
		query = query.Where("provider_code = ?", strings.ToLower(filter.ProviderCode))
	}
	if filter.NotSyncedWithin > 0 {
		cutoff := time.Now().UTC().Add(-filter.NotSyncedWithin)
		query = query.Where("last_synced_at IS NULL OR last_synced_at < ?", cutoff)
	}

	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []BookingModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*LocalBooking, len(models))
	for i := range models {
		bookings[i] = toLocalBooking(&models[i])
	}
	return bookings, nil
}

// UpdateSyncSuccess writes the whole snapshot in one UPDATE.
func (r *PostgresStorage) UpdateSyncSuccess(ctx context.Context, id uuid.UUID, u SyncUpdate) error {
	syncedAt := u.SyncedAt.UTC()
	updates := map[string]interface{}{
		"last_synced_at":          syncedAt,
		"sync_status":             string(SyncStatusSynced),
		"sync_error":              nil,
		"provider_status":         u.ProviderStatus,
		"provider_payment_status": u.ProviderPaymentStatus,
		"balance_due_amount":      u.BalanceDue.Amount,
		"balance_due_currency":    u.BalanceDue.Currency,
		"e_tickets":               jsonb(u.ETickets),
		"documents":               jsonb(u.Documents),
		"cancellation_policy":     jsonb(u.CancellationPolicy),
		"change_policy":           jsonb(u.ChangePolicy),
		"services":                jsonb(u.Services),
		"raw_provider_data":       rawJSONB(u.RawProviderData),
		"updated_at":              syncedAt,
	}
	if u.HasAvailableServices {
		updates["available_services"] = jsonb(u.AvailableServices)
	}

	return r.updateOne(ctx, id, updates)
}

// UpdateSyncError records a failed sync without touching the snapshot.
func (r *PostgresStorage) UpdateSyncError(ctx context.Context, id uuid.UUID, message string) error {
	return r.updateOne(ctx, id, map[string]interface{}{
		"sync_status": string(SyncStatusError),
		"sync_error":  message,
	})
}

func (r *PostgresStorage) updateOne(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// StartSyncRun records the start of a batch run.
func (r *PostgresStorage) StartSyncRun(ctx context.Context, provider, trigger string) (int64, error) {
	model := &SyncRunModel{
		Provider:    provider,
		TriggeredBy: trigger,
		StartedAt:   time.Now().UTC(),
		Status:      SyncRunRunning,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return 0, fmt.Errorf("failed to start sync run: %w", err)
	}
	return model.ID, nil
}

// CompleteSyncRun records the outcome counts of a run.
func (r *PostgresStorage) CompleteSyncRun(ctx context.Context, runID int64, total, synced, failed int) error {
	err := r.db.WithContext(ctx).Model(&SyncRunModel{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"completed_at": time.Now().UTC(),
		"total":        total,
		"synced":       synced,
		"failed":       failed,
		"status":       SyncRunCompleted,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to complete sync run %d: %w", runID, err)
	}
	return nil
}

// FailSyncRun marks a run as aborted.
func (r *PostgresStorage) FailSyncRun(ctx context.Context, runID int64, message string) error {
	err := r.db.WithContext(ctx).Model(&SyncRunModel{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"completed_at": time.Now().UTC(),
		"status":       SyncRunFailed,
		"error":        message,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to mark sync run %d failed: %w", runID, err)
	}
	return nil
}

// ListSyncRuns returns the most recent runs first.
func (r *PostgresStorage) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []SyncRunModel
	if err := r.db.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	runs := make([]SyncRun, len(models))
	for i := range models {
		runs[i] = toSyncRun(&models[i])
	}
	return runs, nil
}

// GetSyncRun retrieves a sync run by ID.
func (r *PostgresStorage) GetSyncRun(ctx context.Context, runID int64) (*SyncRun, error) {
	var model SyncRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", runID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSyncRunNotFound
		}
		return nil, fmt.Errorf("failed to find sync run: %w", err)
	}
	run := toSyncRun(&model)
	return &run, nil
}

// ---------------------------------------------------------------------------
// Conversion helpers
// ---------------------------------------------------------------------------

func toBookingModel(b *LocalBooking) *BookingModel {
	return &BookingModel{
		ID:                    b.ID,
		BookingReference:      b.BookingReference,
		ProviderCode:          b.ProviderCode,
		ExternalOrderID:       b.ExternalOrderID,
		LastSyncedAt:          b.LastSyncedAt,
		SyncStatus:            string(b.SyncStatus),
		SyncError:             b.SyncError,
		ProviderStatus:        b.ProviderStatus,
		ProviderPaymentStatus: b.ProviderPaymentStatus,
		BalanceDueAmount:      b.BalanceDue.Amount,
		BalanceDueCurrency:    b.BalanceDue.Currency,
		ETickets:              jsonb(b.ETickets),
		Documents:             jsonb(b.Documents),
		CancellationPolicy:    jsonb(b.CancellationPolicy),
		ChangePolicy:          jsonb(b.ChangePolicy),
		Services:              jsonb(b.Services),
		AvailableServices:     jsonb(b.AvailableServices),
		RawProviderData:       rawJSONB(b.RawProviderData),
		CreatedAt:             b.CreatedAt.UTC(),
		UpdatedAt:             b.UpdatedAt.UTC(),
	}
}

func toLocalBooking(m *BookingModel) *LocalBooking {
	b := &LocalBooking{
		ID:                    m.ID,
		BookingReference:      m.BookingReference,
		ProviderCode:          m.ProviderCode,
		ExternalOrderID:       m.ExternalOrderID,
		SyncStatus:            SyncStatus(m.SyncStatus),
		SyncError:             m.SyncError,
		ProviderStatus:        m.ProviderStatus,
		ProviderPaymentStatus: m.ProviderPaymentStatus,
		BalanceDue:            providers.Money{Amount: m.BalanceDueAmount, Currency: m.BalanceDueCurrency},
		CreatedAt:             m.CreatedAt.UTC(),
		UpdatedAt:             m.UpdatedAt.UTC(),
	}
	if m.LastSyncedAt != nil {
		t := m.LastSyncedAt.UTC()
		b.LastSyncedAt = &t
	}
	if len(m.RawProviderData) > 0 && string(m.RawProviderData) != "null" {
		b.RawProviderData = m.RawProviderData
	}

	_ = json.Unmarshal(m.ETickets, &b.ETickets)
	_ = json.Unmarshal(m.Documents, &b.Documents)
	_ = json.Unmarshal(m.CancellationPolicy, &b.CancellationPolicy)
	_ = json.Unmarshal(m.ChangePolicy, &b.ChangePolicy)
	_ = json.Unmarshal(m.Services, &b.Services)
	_ = json.Unmarshal(m.AvailableServices, &b.AvailableServices)
	return b
}

func toSyncRun(m *SyncRunModel) SyncRun {
	return SyncRun{
		ID:          m.ID,
		Provider:    m.Provider,
		Trigger:     m.TriggeredBy,
		StartedAt:   m.StartedAt.UTC(),
		CompletedAt: m.CompletedAt,
		Total:       m.Total,
		Synced:      m.Synced,
		Failed:      m.Failed,
		Status:      m.Status,
		Error:       m.Error,
	}
}

// jsonb encodes a snapshot value; nil values are stored as SQL NULL
func jsonb(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return data
}

func rawJSONB(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return raw
}
