package cli

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

func TestParseSyncFlags_Single(t *testing.T) {
	flags, err := ParseSyncFlags([]string{"-booking", "BK-1001", "-force", "-services"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "config.yaml", flags.ConfigPath)
	assert.Equal(t, "BK-1001", flags.Booking)

	opts := flags.ToSyncOptions()
	assert.True(t, opts.Force)
	assert.True(t, opts.IncludeAvailableServices)
}

func TestParseSyncFlags_Batch(t *testing.T) {
	flags, err := ParseSyncFlags([]string{
		"-status", "error", "-provider", " Duffel ", "-stale", "45m", "-limit", "10",
	}, io.Discard)
	require.NoError(t, err)

	filter := flags.ToBatchFilter()
	assert.Equal(t, storage.SyncStatusError, filter.Status)
	assert.Equal(t, "duffel", filter.ProviderCode)
	assert.Equal(t, 45*time.Minute, filter.NotSyncedWithin)
	assert.Equal(t, 10, filter.Limit)
	assert.Equal(t, TriggerCLI, filter.Trigger)
}

func TestParseSyncFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown status", []string{"-status", "stale"}},
		{"negative limit", []string{"-limit", "-1"}},
		{"negative stale", []string{"-stale", "-5m"}},
		{"booking with filters", []string{"-booking", "BK-1", "-status", "pending"}},
		{"unknown flag", []string{"-dry-run"}},
		{"bad duration", []string{"-stale", "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSyncFlags(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestParseServeFlags(t *testing.T) {
	flags, err := ParseServeFlags([]string{"-port", "9090", "-verbose"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 9090, flags.Port)
	assert.True(t, flags.Verbose)
}
