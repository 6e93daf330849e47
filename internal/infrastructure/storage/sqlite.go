package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

// Storage provides SQLite database access for bookings and sync runs.
// It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	return NewStorageWithLogger(dbPath, nil)
}

// NewStorageWithLogger is NewStorage with a logger for migration output
func NewStorageWithLogger(dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run all pending migrations
	if err := runMigrations(context.Background(), db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const bookingColumns = `id, booking_reference, provider_code, external_order_id,
	last_synced_at, sync_status, sync_error, provider_status, provider_payment_status,
	balance_due_amount, balance_due_currency, e_tickets_json, documents_json,
	cancellation_policy_json, change_policy_json, services_json,
	available_services_json, raw_provider_data, created_at, updated_at`

// CreateBooking inserts a new booking. ID, timestamps and status are filled
// in when unset.
func (s *Storage) CreateBooking(ctx context.Context, b *LocalBooking) error {
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

	query := `INSERT INTO bookings (` + bookingColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		b.ID.String(),
		b.BookingReference,
		b.ProviderCode,
		b.ExternalOrderID,
		nullTime(b.LastSyncedAt),
		string(b.SyncStatus),
		nullString(b.SyncError),
		b.ProviderStatus,
		b.ProviderPaymentStatus,
		b.BalanceDue.Amount.String(),
		b.BalanceDue.Currency,
		toJSON(b.ETickets),
		toJSON(b.Documents),
		toJSON(b.CancellationPolicy),
		toJSON(b.ChangePolicy),
		toJSON(b.Services),
		toJSON(b.AvailableServices),
		rawString(b.RawProviderData),
		b.CreatedAt.UTC(),
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking %s: %w", b.BookingReference, err)
	}
	return nil
}

// FindBooking retrieves a booking by uuid or booking reference
func (s *Storage) FindBooking(ctx context.Context, idOrRef string) (*LocalBooking, error) {
	key := strings.TrimSpace(idOrRef)
	if key == "" {
		return nil, ErrBookingNotFound
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? OR booking_reference = ? LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, strings.ToLower(key), key)

	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", key, err)
	}
	return b, nil
}

// ListBookingsForSync returns bookings matching the filter, newest first
func (s *Storage) ListBookingsForSync(ctx context.Context, filter BookingFilter) ([]*LocalBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []interface{}{}

	if filter.SyncStatus != "" {
		query += " AND sync_status = ?"
		args = append(args, string(filter.SyncStatus))
	}
	if filter.ProviderCode != "" {
		query += " AND provider_code = ?"
		args = append(args, strings.ToLower(filter.ProviderCode))
	}
	if filter.NotSyncedWithin > 0 {
		query += " AND (last_synced_at IS NULL OR last_synced_at < ?)"
		args = append(args, time.Now().UTC().Add(-filter.NotSyncedWithin))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bookings []*LocalBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// UpdateSyncSuccess writes the whole snapshot in one statement
func (s *Storage) UpdateSyncSuccess(ctx context.Context, id uuid.UUID, u SyncUpdate) error {
	query := `UPDATE bookings SET
		last_synced_at = ?,
		sync_status = ?,
		sync_error = NULL,
		provider_status = ?,
		provider_payment_status = ?,
		balance_due_amount = ?,
		balance_due_currency = ?,
		e_tickets_json = ?,
		documents_json = ?,
		cancellation_policy_json = ?,
		change_policy_json = ?,
		services_json = ?,
		raw_provider_data = ?,
		updated_at = ?`
	args := []interface{}{
		u.SyncedAt.UTC(),
		string(SyncStatusSynced),
		u.ProviderStatus,
		u.ProviderPaymentStatus,
		u.BalanceDue.Amount.String(),
		u.BalanceDue.Currency,
		toJSON(u.ETickets),
		toJSON(u.Documents),
		toJSON(u.CancellationPolicy),
		toJSON(u.ChangePolicy),
		toJSON(u.Services),
		rawString(u.RawProviderData),
		u.SyncedAt.UTC(),
	}
	if u.HasAvailableServices {
		query += `, available_services_json = ?`
		args = append(args, toJSON(u.AvailableServices))
	}
	query += ` WHERE id = ?`
	args = append(args, id.String())

	return s.execOne(ctx, query, args...)
}

// UpdateSyncError records a failed sync without touching the snapshot
func (s *Storage) UpdateSyncError(ctx context.Context, id uuid.UUID, message string) error {
	return s.execOne(ctx,
		`UPDATE bookings SET sync_status = ?, sync_error = ? WHERE id = ?`,
		string(SyncStatusError), message, id.String(),
	)
}

func (s *Storage) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*LocalBooking, error) {
	var (
		b                                        LocalBooking
		id, syncStatus, balanceAmount, currency  string
		lastSynced                               sql.NullTime
		syncError                                sql.NullString
		eTickets, documents, cancelPolicy        sql.NullString
		changePolicy, services, available, rawPD sql.NullString
	)

	err := row.Scan(
		&id, &b.BookingReference, &b.ProviderCode, &b.ExternalOrderID,
		&lastSynced, &syncStatus, &syncError, &b.ProviderStatus, &b.ProviderPaymentStatus,
		&balanceAmount, &currency, &eTickets, &documents,
		&cancelPolicy, &changePolicy, &services,
		&available, &rawPD, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id %q: %w", id, err)
	}
	b.ID = parsed
	b.SyncStatus = SyncStatus(syncStatus)
	if lastSynced.Valid {
		t := lastSynced.Time.UTC()
		b.LastSyncedAt = &t
	}
	if syncError.Valid {
		msg := syncError.String
		b.SyncError = &msg
	}

	amount, err := decimal.NewFromString(balanceAmount)
	if err != nil {
		amount = decimal.Zero
	}
	b.BalanceDue = providers.Money{Amount: amount, Currency: currency}

	fromJSON(eTickets, &b.ETickets)
	fromJSON(documents, &b.Documents)
	fromJSON(cancelPolicy, &b.CancellationPolicy)
	fromJSON(changePolicy, &b.ChangePolicy)
	fromJSON(services, &b.Services)
	fromJSON(available, &b.AvailableServices)
	if rawPD.Valid && rawPD.String != "" {
		b.RawProviderData = json.RawMessage(rawPD.String)
	}

	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

// ================================================================
// SYNC RUNS
// ================================================================

// StartSyncRun records the start of a batch run
func (s *Storage) StartSyncRun(ctx context.Context, provider, trigger string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (provider, triggered_by, started_at, status) VALUES (?, ?, ?, ?)`,
		provider, trigger, time.Now().UTC(), SyncRunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start sync run: %w", err)
	}
	return res.LastInsertId()
}

// CompleteSyncRun records the outcome counts of a run
func (s *Storage) CompleteSyncRun(ctx context.Context, runID int64, total, synced, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET completed_at = ?, total = ?, synced = ?, failed = ?, status = ? WHERE id = ?`,
		time.Now().UTC(), total, synced, failed, SyncRunCompleted, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync run %d: %w", runID, err)
	}
	return nil
}

// FailSyncRun marks a run as aborted with a message
func (s *Storage) FailSyncRun(ctx context.Context, runID int64, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET completed_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), SyncRunFailed, message, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark sync run %d failed: %w", runID, err)
	}
	return nil
}

const syncRunColumns = `id, provider, triggered_by, started_at, completed_at, total, synced, failed, status, error`

// ListSyncRuns returns the most recent runs first
func (s *Storage) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]SyncRun, 0)
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetSyncRun retrieves a sync run by ID
func (s *Storage) GetSyncRun(ctx context.Context, runID int64) (*SyncRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+syncRunColumns+` FROM sync_runs WHERE id = ?`, runID)
	run, err := scanSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSyncRunNotFound
	}
	return run, err
}

func scanSyncRun(row rowScanner) (*SyncRun, error) {
	var (
		run       SyncRun
		completed sql.NullTime
		errMsg    sql.NullString
	)
	err := row.Scan(&run.ID, &run.Provider, &run.Trigger, &run.StartedAt, &completed,
		&run.Total, &run.Synced, &run.Failed, &run.Status, &errMsg)
	if err != nil {
		return nil, err
	}
	run.StartedAt = run.StartedAt.UTC()
	if completed.Valid {
		t := completed.Time.UTC()
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}

// ================================================================
// HELPERS
// ================================================================

func toJSON(v interface{}) sql.NullString {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// fromJSON decodes a stored snapshot column. Corrupt values decode to the
// zero value so one bad column never hides a booking.
func fromJSON(src sql.NullString, dst interface{}) {
	if !src.Valid || src.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(src.String), dst)
}

func rawString(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
