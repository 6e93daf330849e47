package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/api/dto"
	"github.com/eshaffer321/booking-sync-backend/internal/api/handlers"
	"github.com/eshaffer321/booking-sync-backend/internal/application/service"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

func TestSyncHandler_RunBatch(t *testing.T) {
	t.Run("syncs selected bookings and records the run", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.repo.CreateBooking(context.Background(), &storage.LocalBooking{
			ID:               uuid.New(),
			BookingReference: "BK-2002",
			ProviderCode:     "duffel",
			SyncStatus:       storage.SyncStatusPending,
		}))
		handler := handlers.NewSyncHandler(f.orch, nil, quietLogger())

		body := strings.NewReader(`{"status":"pending","provider":"duffel"}`)
		rec := httptest.NewRecorder()
		handler.RunBatch(rec, httptest.NewRequest(http.MethodPost, "/api/sync/batch", body))

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.BatchSyncResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 2, response.Total)
		assert.Equal(t, 1, response.Synced)
		assert.Equal(t, 1, response.Failed)
		require.Len(t, response.Results, 2)

		run, err := f.repo.GetSyncRun(context.Background(), response.RunID)
		require.NoError(t, err)
		assert.Equal(t, handlers.TriggerAPI, run.Trigger)
		assert.Equal(t, storage.SyncRunCompleted, run.Status)
	})

	t.Run("empty body means no filter", func(t *testing.T) {
		f := newFixture(t)
		handler := handlers.NewSyncHandler(f.orch, nil, quietLogger())

		rec := httptest.NewRecorder()
		handler.RunBatch(rec, httptest.NewRequest(http.MethodPost, "/api/sync/batch", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.BatchSyncResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 1, response.Synced)
	})

	t.Run("rejects invalid filters", func(t *testing.T) {
		f := newFixture(t)
		handler := handlers.NewSyncHandler(f.orch, nil, quietLogger())

		for _, body := range []string{
			`{"status":"done"}`,
			`{"not_synced_within":"soon"}`,
			`{"limit":-1}`,
			`{not json`,
		} {
			rec := httptest.NewRecorder()
			handler.RunBatch(rec, httptest.NewRequest(http.MethodPost, "/api/sync/batch", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("store outage aborts with 500", func(t *testing.T) {
		f := newFixture(t)
		f.repo.PingErr = errors.New("disk I/O error")
		handler := handlers.NewSyncHandler(f.orch, nil, quietLogger())

		rec := httptest.NewRecorder()
		handler.RunBatch(rec, httptest.NewRequest(http.MethodPost, "/api/sync/batch", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodePersistence, apiErr.Code)
	})
}

func TestSyncHandler_Jobs(t *testing.T) {
	f := newFixture(t)
	jobs := service.NewJobService(f.orch, providers.NewRegistry(quietLogger(), f.provider), quietLogger())
	handler := handlers.NewSyncHandler(f.orch, jobs, quietLogger())

	rec := httptest.NewRecorder()
	handler.StartJob(rec, httptest.NewRequest(http.MethodPost, "/api/sync/jobs", strings.NewReader(`{"provider":"duffel"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started dto.StartJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.NotEmpty(t, started.JobID)
	assert.Equal(t, "duffel", started.Provider)

	var job dto.JobResponse
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		handler.GetJob(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobId", started.JobID))
		if rec.Code != http.StatusOK {
			return false
		}
		job = dto.JobResponse{}
		_ = json.NewDecoder(rec.Body).Decode(&job)
		return job.Status == string(service.StatusCompleted)
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.Synced)
	assert.Equal(t, 1, job.Progress.ProcessedBookings)

	list := httptest.NewRecorder()
	handler.ListJobs(list, httptest.NewRequest(http.MethodGet, "/api/sync/jobs", nil))
	var all dto.JobListResponse
	require.NoError(t, json.NewDecoder(list.Body).Decode(&all))
	assert.Equal(t, 1, all.Count)

	active := httptest.NewRecorder()
	handler.ListJobs(active, httptest.NewRequest(http.MethodGet, "/api/sync/jobs?active=true", nil))
	var running dto.JobListResponse
	require.NoError(t, json.NewDecoder(active.Body).Decode(&running))
	assert.Equal(t, 0, running.Count)

	cancel := httptest.NewRecorder()
	handler.CancelJob(cancel, withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "jobId", started.JobID))
	assert.Equal(t, http.StatusConflict, cancel.Code, "finished jobs cannot be cancelled")

	missing := httptest.NewRecorder()
	handler.GetJob(missing, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "jobId", "nope"))
	assert.Equal(t, http.StatusNotFound, missing.Code)

	unknown := httptest.NewRecorder()
	handler.StartJob(unknown, httptest.NewRequest(http.MethodPost, "/api/sync/jobs", strings.NewReader(`{"provider":"sabre"}`)))
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
}
