package cli

import (
	"errors"
	"flag"
	"io"
	"strings"
	"time"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// TriggerCLI is recorded on sync runs started from the command line
const TriggerCLI = "cli"

// SyncFlags are the flags of the sync command
type SyncFlags struct {
	ConfigPath      string
	Booking         string
	Status          string
	Provider        string
	Stale           time.Duration
	Limit           int
	Force           bool
	IncludeServices bool
	JSON            bool
	Verbose         bool
}

// ParseSyncFlags parses sync flags from args (without the program name)
func ParseSyncFlags(args []string, output io.Writer) (SyncFlags, error) {
	var flags SyncFlags
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flags.ConfigPath, "config", "config.yaml", "Configuration file path (falls back to environment)")
	fs.StringVar(&flags.Booking, "booking", "", "Sync a single booking by id or reference")
	fs.StringVar(&flags.Status, "status", "", "Batch: only bookings with this sync status (pending, synced, error)")
	fs.StringVar(&flags.Provider, "provider", "", "Batch: only bookings of this provider")
	fs.DurationVar(&flags.Stale, "stale", 0, "Batch: only bookings not synced within this duration (e.g. 30m)")
	fs.IntVar(&flags.Limit, "limit", 0, "Batch: maximum bookings to sync (0 = configured default)")
	fs.BoolVar(&flags.Force, "force", false, "Single: ignore the recent-sync window")
	fs.BoolVar(&flags.IncludeServices, "services", false, "Also refresh available ancillary services")
	fs.BoolVar(&flags.JSON, "json", false, "Print results as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return SyncFlags{}, err
	}
	return flags, flags.Validate()
}

// Validate checks flag combinations
func (f SyncFlags) Validate() error {
	switch storage.SyncStatus(f.Status) {
	case "", storage.SyncStatusPending, storage.SyncStatusSynced, storage.SyncStatusError:
	default:
		return errors.New("-status must be one of pending, synced, error")
	}
	if f.Limit < 0 {
		return errors.New("-limit must not be negative")
	}
	if f.Stale < 0 {
		return errors.New("-stale must not be negative")
	}
	if f.Booking != "" && (f.Status != "" || f.Provider != "" || f.Stale != 0 || f.Limit != 0) {
		return errors.New("-booking cannot be combined with batch filters")
	}
	return nil
}

// ToSyncOptions converts SyncFlags to single-booking options
func (f SyncFlags) ToSyncOptions() appsync.Options {
	return appsync.Options{
		Force:                    f.Force,
		IncludeAvailableServices: f.IncludeServices,
	}
}

// ToBatchFilter converts SyncFlags to a batch filter
func (f SyncFlags) ToBatchFilter() appsync.BatchFilter {
	return appsync.BatchFilter{
		Status:          storage.SyncStatus(f.Status),
		ProviderCode:    strings.ToLower(strings.TrimSpace(f.Provider)),
		NotSyncedWithin: f.Stale,
		Limit:           f.Limit,
		Trigger:         TriggerCLI,
	}
}
