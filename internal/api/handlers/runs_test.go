package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/booking-sync-backend/internal/api/dto"
	"github.com/eshaffer321/booking-sync-backend/internal/api/handlers"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// withURLParam adds a chi URL parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestRunsHandler_List(t *testing.T) {
	t.Run("returns empty list when no runs", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := handlers.NewRunsHandler(repo, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.SyncRunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Empty(t, response.Runs)
		assert.Equal(t, 0, response.Count)
	})

	t.Run("returns runs newest first and honours limit", func(t *testing.T) {
		ctx := context.Background()
		repo := storage.NewMockRepository()

		runID1, _ := repo.StartSyncRun(ctx, "duffel", "scheduler")
		_ = repo.CompleteSyncRun(ctx, runID1, 10, 8, 2)

		runID2, _ := repo.StartSyncRun(ctx, "", "api")
		_ = repo.CompleteSyncRun(ctx, runID2, 5, 5, 0)

		_, _ = repo.StartSyncRun(ctx, "duffel", "cli")

		handler := handlers.NewRunsHandler(repo, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.SyncRunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		require.Equal(t, 2, response.Count)
		assert.Equal(t, "running", response.Runs[0].Status)
		assert.Empty(t, response.Runs[0].CompletedAt)
		assert.Equal(t, runID2, response.Runs[1].ID)
		assert.Equal(t, "api", response.Runs[1].Trigger)
		assert.Equal(t, 5, response.Runs[1].Synced)
		assert.NotEmpty(t, response.Runs[1].CompletedAt)
	})
}

func TestRunsHandler_Get(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMockRepository()
	runID, _ := repo.StartSyncRun(ctx, "duffel", "job")
	_ = repo.CompleteSyncRun(ctx, runID, 3, 2, 1)
	handler := handlers.NewRunsHandler(repo, nil)

	t.Run("returns run by ID", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/runs/1", nil), "id", "1")
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.SyncRunResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "duffel", response.Provider)
		assert.Equal(t, 3, response.Total)
		assert.Equal(t, 1, response.Failed)
		assert.Equal(t, "completed", response.Status)
	})

	t.Run("returns 404 for unknown run", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/runs/99", nil), "id", "99")
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})

	t.Run("returns 400 for non-numeric ID", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil), "id", "abc")
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
