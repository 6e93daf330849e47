// Package scheduler runs periodic sync batches on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
)

// TriggerScheduler is recorded on sync runs started by the scheduler
const TriggerScheduler = "scheduler"

// BatchRunner runs one sync batch
type BatchRunner interface {
	SyncBookingsBatch(ctx context.Context, filter appsync.BatchFilter) (*appsync.BatchResult, error)
}

// Scheduler fires SyncBookingsBatch on a cron spec. Overlapping ticks are
// skipped while a batch is still running.
type Scheduler struct {
	cron    *cron.Cron
	runner  BatchRunner
	filter  appsync.BatchFilter
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec and registers the batch job. timeout bounds a single
// run; zero means no bound.
func New(spec string, filter appsync.BatchFilter, runner BatchRunner, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if filter.Trigger == "" {
		filter.Trigger = TriggerScheduler
	}

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner:  runner,
		filter:  filter,
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing on schedule
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started",
		"provider", s.filter.ProviderCode,
		"status", string(s.filter.Status),
		"not_synced_within", s.filter.NotSyncedWithin,
		"limit", s.filter.Limit)
}

// Stop cancels any running batch and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunOnce runs a single batch with the configured filter
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.runner.SyncBookingsBatch(ctx, s.filter)
	if err != nil {
		s.logger.Error("Scheduled batch failed", "error", err)
		return
	}
	s.logger.Info("Scheduled batch finished",
		"run_id", result.RunID,
		"total", result.Total,
		"synced", result.Synced,
		"failed", result.Failed)
}

// cronLogger routes cron's internal logging through slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
