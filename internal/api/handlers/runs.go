package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/booking-sync-backend/internal/api/dto"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// RunReader reads recorded batch runs.
type RunReader interface {
	ListSyncRuns(ctx context.Context, limit int) ([]storage.SyncRun, error)
	GetSyncRun(ctx context.Context, runID int64) (*storage.SyncRun, error)
}

// RunsHandler handles sync run-related HTTP requests.
type RunsHandler struct {
	*Base
	runs RunReader
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs RunReader, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(logger),
		runs: runs,
	}
}

// List handles GET /api/runs - returns list of sync runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", dto.DefaultSyncRunListParams().Limit)

	runs, err := h.runs.ListSyncRuns(r.Context(), limit)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.SyncRunListResponse{
		Runs:  make([]dto.SyncRunResponse, 0, len(runs)),
		Count: len(runs),
	}

	for _, run := range runs {
		response.Runs = append(response.Runs, toSyncRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single sync run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}

	run, err := h.runs.GetSyncRun(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toSyncRunResponse(*run))
}

// toSyncRunResponse converts a storage SyncRun to an API response.
func toSyncRunResponse(run storage.SyncRun) dto.SyncRunResponse {
	return dto.SyncRunResponse{
		ID:          run.ID,
		Provider:    run.Provider,
		Trigger:     run.Trigger,
		StartedAt:   formatTime(&run.StartedAt),
		CompletedAt: formatTime(run.CompletedAt),
		Total:       run.Total,
		Synced:      run.Synced,
		Failed:      run.Failed,
		Status:      run.Status,
		Error:       run.Error,
	}
}
