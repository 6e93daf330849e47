package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

type recordingRunner struct {
	mu      sync.Mutex
	filters []appsync.BatchFilter
	err     error
	block   chan struct{}
}

func (r *recordingRunner) SyncBookingsBatch(ctx context.Context, filter appsync.BatchFilter) (*appsync.BatchResult, error) {
	r.mu.Lock()
	r.filters = append(r.filters, filter)
	r.mu.Unlock()

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &appsync.BatchResult{RunID: 1, Total: 2, Synced: 2}, nil
}

func (r *recordingRunner) calls() []appsync.BatchFilter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]appsync.BatchFilter(nil), r.filters...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every now and then", appsync.BatchFilter{}, &recordingRunner{}, 0, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestRunOnce_UsesFilterAndTrigger(t *testing.T) {
	runner := &recordingRunner{}
	filter := appsync.BatchFilter{
		Status:          storage.SyncStatusSynced,
		ProviderCode:    "duffel",
		NotSyncedWithin: 30 * time.Minute,
		Limit:           25,
	}
	s, err := New("@every 15m", filter, runner, time.Minute, quietLogger())
	require.NoError(t, err)

	s.RunOnce(context.Background())

	calls := runner.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "duffel", calls[0].ProviderCode)
	assert.Equal(t, 30*time.Minute, calls[0].NotSyncedWithin)
	assert.Equal(t, 25, calls[0].Limit)
	assert.Equal(t, TriggerScheduler, calls[0].Trigger)
}

func TestRunOnce_ErrorIsLogged(t *testing.T) {
	runner := &recordingRunner{err: errors.New("store unavailable")}
	s, err := New("@every 15m", appsync.BatchFilter{Trigger: "cron"}, runner, 0, quietLogger())
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
	assert.Equal(t, "cron", runner.calls()[0].Trigger)
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	runner := &recordingRunner{}
	s, err := New("@every 1s", appsync.BatchFilter{}, runner, 0, quietLogger())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return len(runner.calls()) >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_StopCancelsRunningBatch(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	s, err := New("@every 1s", appsync.BatchFilter{}, runner, 0, quietLogger())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return len(runner.calls()) == 1 }, 3*time.Second, 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a batch was running")
	}
	assert.Len(t, runner.calls(), 1, "overlapping tick is skipped")
}
