package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateBookings, downCreateBookings)
}

func upCreateBookings(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			booking_reference TEXT UNIQUE NOT NULL,
			provider_code TEXT NOT NULL DEFAULT '',
			external_order_id TEXT NOT NULL DEFAULT '',
			last_synced_at DATETIME,
			sync_status TEXT NOT NULL DEFAULT 'pending',
			sync_error TEXT,
			provider_status TEXT NOT NULL DEFAULT '',
			provider_payment_status TEXT NOT NULL DEFAULT '',
			balance_due_amount TEXT NOT NULL DEFAULT '0',
			balance_due_currency TEXT NOT NULL DEFAULT '',
			e_tickets_json TEXT,
			documents_json TEXT,
			cancellation_policy_json TEXT,
			change_policy_json TEXT,
			services_json TEXT,
			available_services_json TEXT,
			raw_provider_data TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_sync_status ON bookings(sync_status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_provider_code ON bookings(provider_code)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_last_synced_at ON bookings(last_synced_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func downCreateBookings(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS bookings`)
	return err
}
