package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/booking-sync-backend/internal/api/dto"
	"github.com/eshaffer321/booking-sync-backend/internal/application/service"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// TriggerAPI is recorded on sync runs started over HTTP.
const TriggerAPI = "api"

// BatchSyncer runs a synchronous batch.
type BatchSyncer interface {
	SyncBookingsBatch(ctx context.Context, filter appsync.BatchFilter) (*appsync.BatchResult, error)
}

// JobManager runs background batches.
type JobManager interface {
	StartJob(ctx context.Context, req service.JobRequest) (string, error)
	GetJob(jobID string) (service.Job, error)
	ListAllJobs() []service.Job
	ListActiveJobs() []service.Job
	CancelJob(jobID string) error
}

// SyncHandler handles batch sync HTTP requests.
type SyncHandler struct {
	*Base
	batch BatchSyncer
	jobs  JobManager
}

// NewSyncHandler creates a new sync handler. jobs may be nil when background
// jobs are disabled.
func NewSyncHandler(batch BatchSyncer, jobs JobManager, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		Base:  NewBase(logger),
		batch: batch,
		jobs:  jobs,
	}
}

// decodeBatchRequest reads an optional filter body. An empty body means no filter.
func decodeBatchRequest(r *http.Request) (appsync.BatchFilter, error) {
	var req dto.BatchSyncRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return appsync.BatchFilter{}, errors.New("invalid request body")
		}
	}

	filter := appsync.BatchFilter{
		ProviderCode: strings.ToLower(strings.TrimSpace(req.Provider)),
		Limit:        req.Limit,
		Trigger:      TriggerAPI,
	}

	switch storage.SyncStatus(req.Status) {
	case "", storage.SyncStatusPending, storage.SyncStatusSynced, storage.SyncStatusError:
		filter.Status = storage.SyncStatus(req.Status)
	default:
		return appsync.BatchFilter{}, errors.New("status must be one of pending, synced, error")
	}

	within, err := durationParam(req.NotSyncedWithin)
	if err != nil || within < 0 {
		return appsync.BatchFilter{}, errors.New("not_synced_within must be a duration such as 30m")
	}
	filter.NotSyncedWithin = within

	if filter.Limit < 0 {
		return appsync.BatchFilter{}, errors.New("limit must not be negative")
	}
	return filter, nil
}

// RunBatch handles POST /api/sync/batch - runs a batch and waits for it.
func (h *SyncHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeBatchRequest(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	result, err := h.batch.SyncBookingsBatch(r.Context(), filter)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.BatchSyncResponse{
		RunID:      result.RunID,
		Total:      result.Total,
		Synced:     result.Synced,
		Failed:     result.Failed,
		DurationMS: result.Duration.Milliseconds(),
		Results:    make([]dto.SyncResultResponse, 0, len(result.Results)),
	}
	for _, res := range result.Results {
		response.Results = append(response.Results, toSyncResultResponse(res))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// StartJob handles POST /api/sync/jobs - starts a background batch.
func (h *SyncHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeBatchRequest(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	jobID, err := h.jobs.StartJob(r.Context(), service.JobRequest{
		ProviderCode:    filter.ProviderCode,
		Status:          filter.Status,
		NotSyncedWithin: filter.NotSyncedWithin,
		Limit:           filter.Limit,
		Trigger:         filter.Trigger,
	})
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartJobResponse{
		JobID:    jobID,
		Provider: filter.ProviderCode,
		Status:   string(service.StatusPending),
	})
}

// GetJob handles GET /api/sync/jobs/{jobId}.
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("job ID is required"))
		return
	}

	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /api/sync/jobs?active=true.
func (h *SyncHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	var jobs []service.Job
	if ParseBoolParam(r, "active", false) {
		jobs = h.jobs.ListActiveJobs()
	} else {
		jobs = h.jobs.ListAllJobs()
	}

	response := dto.JobListResponse{
		Jobs:  make([]dto.JobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// CancelJob handles DELETE /api/sync/jobs/{jobId}.
func (h *SyncHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("job ID is required"))
		return
	}

	if err := h.jobs.CancelJob(jobID); err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "Sync job cancelled successfully",
	})
}

// toJobResponse converts a service job snapshot to an API response.
func toJobResponse(job service.Job) dto.JobResponse {
	response := dto.JobResponse{
		JobID:     job.ID,
		Scope:     job.Scope,
		Provider:  job.Request.ProviderCode,
		Status:    string(job.Status),
		StartedAt: job.StartedAt.UTC().Format(time.RFC3339),
		Progress: dto.JobProgressResponse{
			CurrentPhase:      job.Progress.CurrentPhase,
			TotalBookings:     job.Progress.TotalBookings,
			ProcessedBookings: job.Progress.ProcessedBookings,
			SyncedBookings:    job.Progress.SyncedBookings,
			FailedBookings:    job.Progress.FailedBookings,
			LastUpdate:        job.Progress.LastUpdate.UTC().Format(time.RFC3339),
		},
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.UTC().Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	if job.Result != nil {
		response.Result = &dto.JobResultResponse{
			RunID:  job.Result.RunID,
			Total:  job.Result.Total,
			Synced: job.Result.Synced,
			Failed: job.Result.Failed,
		}
	}

	if job.Error != nil {
		errMsg := job.Error.Error()
		response.Error = &errMsg
	}

	return response
}
