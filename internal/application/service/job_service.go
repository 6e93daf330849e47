package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// JobStatus represents the current state of a batch job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress updates
	// before being considered stale.
	DefaultJobStaleThreshold = 30 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before being
	// forcefully marked as failed.
	DefaultJobMaxDuration = 2 * time.Hour

	// allScope is the lock key for batches without a provider filter
	allScope = "all"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrJobRunning       = errors.New("batch already running")
	ErrJobNotCancelable = errors.New("job cannot be cancelled")
	ErrInvalidProvider  = errors.New("invalid provider")
)

// JobRequest holds parameters for a background batch.
type JobRequest struct {
	ProviderCode    string
	Status          storage.SyncStatus
	NotSyncedWithin time.Duration
	Limit           int
	Trigger         string
}

// JobProgress holds real-time progress information.
type JobProgress struct {
	CurrentPhase      string // "pending", "syncing", "completed", "failed", "cancelled"
	TotalBookings     int
	ProcessedBookings int
	SyncedBookings    int
	FailedBookings    int
	LastUpdate        time.Time
}

// Job is a running or finished background batch.
type Job struct {
	ID          string
	Scope       string
	Status      JobStatus
	Request     JobRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    JobProgress
	Result      *appsync.BatchResult
	Error       error
	cancelFunc  context.CancelFunc
}

// BatchRunner runs a batch with progress reporting.
type BatchRunner interface {
	SyncBookingsBatchWithProgress(ctx context.Context, filter appsync.BatchFilter, progress appsync.ProgressFunc) (*appsync.BatchResult, error)
}

// JobService manages background batch syncs.
type JobService struct {
	runner   BatchRunner
	registry *providers.Registry
	logger   *slog.Logger

	// Job management
	jobs      map[string]*Job
	jobsMutex sync.RWMutex

	// Scope-level locking (only one batch per provider filter at a time)
	scopeLocks map[string]*sync.Mutex
	locksMutex sync.Mutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewJobService creates a new job service. registry may be nil to skip
// provider validation.
func NewJobService(runner BatchRunner, registry *providers.Registry, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		runner:     runner,
		registry:   registry,
		logger:     logger,
		jobs:       make(map[string]*Job),
		scopeLocks: make(map[string]*sync.Mutex),
	}
}

// StartJob starts a new batch job asynchronously.
// The passed context is NOT used as the parent for the background job so the
// job outlives the HTTP request. Use CancelJob to stop it.
func (s *JobService) StartJob(_ context.Context, req JobRequest) (string, error) {
	req.ProviderCode = strings.ToLower(strings.TrimSpace(req.ProviderCode))
	if req.ProviderCode != "" && s.registry != nil {
		if _, ok := s.registry.Get(req.ProviderCode); !ok {
			return "", fmt.Errorf("%w: %s", ErrInvalidProvider, req.ProviderCode)
		}
	}

	scope := req.ProviderCode
	if scope == "" {
		scope = allScope
	}
	if !s.tryLockScope(scope) {
		return "", fmt.Errorf("%w: %s", ErrJobRunning, scope)
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	job := &Job{
		ID:         jobID,
		Scope:      scope,
		Status:     StatusPending,
		Request:    req,
		StartedAt:  now,
		cancelFunc: cancel,
		Progress:   JobProgress{CurrentPhase: "pending", LastUpdate: now},
	}

	s.jobsMutex.Lock()
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job)

	s.logger.Info("batch job started",
		"job_id", jobID,
		"scope", scope,
		"status_filter", req.Status,
		"limit", req.Limit,
	)

	return jobID, nil
}

// GetJob returns a snapshot of a job by ID.
func (s *JobService) GetJob(jobID string) (Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return *job, nil
}

// ListActiveJobs returns snapshots of running or pending jobs.
func (s *JobService) ListActiveJobs() []Job {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	var active []Job
	for _, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			active = append(active, *job)
		}
	}
	return active
}

// ListAllJobs returns snapshots of all jobs.
func (s *JobService) ListAllJobs() []Job {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// CancelJob cancels a running job.
func (s *JobService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("%w: status=%s", ErrJobNotCancelable, job.Status)
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("batch job cancelled", "job_id", jobID)
	return nil
}

// runJob executes the batch in a background goroutine.
func (s *JobService) runJob(ctx context.Context, job *Job) {
	defer s.unlockScope(job.Scope)

	s.updateJobStatus(job.ID, StatusRunning, JobProgress{
		CurrentPhase: "syncing",
		LastUpdate:   time.Now(),
	})

	trigger := job.Request.Trigger
	if trigger == "" {
		trigger = "job"
	}
	filter := appsync.BatchFilter{
		Status:          job.Request.Status,
		ProviderCode:    job.Request.ProviderCode,
		NotSyncedWithin: job.Request.NotSyncedWithin,
		Limit:           job.Request.Limit,
		Trigger:         trigger,
	}

	result, err := s.runner.SyncBookingsBatchWithProgress(ctx, filter, func(done, total int, r *appsync.Result) {
		s.updateJobProgress(job.ID, done, total, r)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Already marked as cancelled in CancelJob
			return
		}
		s.failJob(job.ID, err)
		return
	}

	s.completeJob(job.ID, result)
}

// updateJobStatus updates a job's status and progress.
func (s *JobService) updateJobStatus(jobID string, status JobStatus, progress JobProgress) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.Status != StatusCancelled {
		job.Status = status
		job.Progress = progress
	}
}

// updateJobProgress records one finished booking.
func (s *JobService) updateJobProgress(jobID string, done, total int, r *appsync.Result) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != StatusRunning {
		return
	}
	job.Progress.TotalBookings = total
	if done > job.Progress.ProcessedBookings {
		job.Progress.ProcessedBookings = done
	}
	if r != nil && r.Success {
		job.Progress.SyncedBookings++
	} else {
		job.Progress.FailedBookings++
	}
	job.Progress.LastUpdate = time.Now()
}

// completeJob marks a job as completed with results.
func (s *JobService) completeJob(jobID string, result *appsync.BatchResult) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status == StatusCancelled || job.Status == StatusFailed {
		return
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	job.Progress.CurrentPhase = "completed"
	job.Progress.TotalBookings = result.Total
	job.Progress.ProcessedBookings = result.Total
	job.Progress.SyncedBookings = result.Synced
	job.Progress.FailedBookings = result.Failed
	job.Progress.LastUpdate = now
	s.logger.Info("batch job completed",
		"job_id", jobID,
		"run_id", result.RunID,
		"total", result.Total,
		"synced", result.Synced,
		"failed", result.Failed,
	)
}

// failJob marks a job as failed with an error.
func (s *JobService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		now := time.Now()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = err
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now
		s.logger.Error("batch job failed", "job_id", jobID, "error", err)
	}
}

// tryLockScope attempts to acquire the lock for a scope.
func (s *JobService) tryLockScope(scope string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.scopeLocks[scope]; !exists {
		s.scopeLocks[scope] = &sync.Mutex{}
	}
	return s.scopeLocks[scope].TryLock()
}

// unlockScope releases the lock for a scope. It tolerates a lock already
// released by MarkStaleJobsAsFailed.
func (s *JobService) unlockScope(scope string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.scopeLocks[scope]; exists {
		lock.TryLock()
		lock.Unlock()
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (s *JobService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old batch jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear to be stuck and marks them as
// failed. A job is stale if it has run longer than maxDuration or has not
// reported progress within staleThreshold.
func (s *JobService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		reason := ""
		if now.Sub(job.StartedAt) > maxDuration {
			reason = fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, now.Sub(job.StartedAt).Round(time.Second))
		} else if now.Sub(job.Progress.LastUpdate) > staleThreshold {
			reason = fmt.Sprintf("no progress update for %v (threshold: %v)", now.Sub(job.Progress.LastUpdate).Round(time.Second), staleThreshold)
		}
		if reason == "" {
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now

		s.unlockScope(job.Scope)

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"scope", job.Scope,
			"reason", reason,
			"started_at", job.StartedAt,
		)
		marked++
	}

	return marked
}

// IsJobStale checks if a specific job is considered stale.
func (s *JobService) IsJobStale(jobID string, staleThreshold, maxDuration time.Duration) bool {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return false
	}
	if job.Status != StatusRunning && job.Status != StatusPending {
		return false
	}

	now := time.Now()
	return now.Sub(job.StartedAt) > maxDuration || now.Sub(job.Progress.LastUpdate) > staleThreshold
}

// StartBackgroundCleanup periodically marks stale jobs failed and drops
// finished jobs older than a day. Call StopBackgroundCleanup to stop it.
func (s *JobService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if n := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); n > 0 {
					s.logger.Info("marked stale jobs as failed", "count", n)
				}
				s.CleanupOldJobs(24 * time.Hour)
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine and waits for it.
func (s *JobService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
}
