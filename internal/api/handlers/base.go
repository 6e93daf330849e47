package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eshaffer321/booking-sync-backend/internal/api/dto"
	"github.com/eshaffer321/booking-sync-backend/internal/application/bookings"
	"github.com/eshaffer321/booking-sync-backend/internal/application/service"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct {
	logger *slog.Logger
}

// NewBase creates a new base handler.
func NewBase(logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps an application error to a status and error body.
func (b *Base) WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	b.WriteError(w, status, apiErr)
}

// ErrorResponse maps application sentinel errors to HTTP status codes.
func ErrorResponse(err error) (int, dto.APIError) {
	switch {
	case errors.Is(err, appsync.ErrNotFound),
		errors.Is(err, storage.ErrBookingNotFound):
		return http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error())
	case errors.Is(err, storage.ErrSyncRunNotFound):
		return http.StatusNotFound, dto.NotFoundError("sync run")
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound, dto.NotFoundError("sync job")
	case errors.Is(err, appsync.ErrUnsupportedProvider):
		return http.StatusUnprocessableEntity, dto.NewAPIError(dto.ErrCodeUnsupportedProvider, err.Error())
	case errors.Is(err, appsync.ErrMissingExternalID):
		return http.StatusUnprocessableEntity, dto.NewAPIError(dto.ErrCodeMissingExternalID, err.Error())
	case errors.Is(err, bookings.ErrServicesNotSupported):
		return http.StatusUnprocessableEntity, dto.NewAPIError(dto.ErrCodeNotSupported, err.Error())
	case errors.Is(err, service.ErrInvalidProvider):
		return http.StatusBadRequest, dto.ValidationError(err.Error())
	case errors.Is(err, service.ErrJobRunning),
		errors.Is(err, service.ErrJobNotCancelable):
		return http.StatusConflict, dto.NewAPIError(dto.ErrCodeConflict, err.Error())
	case errors.Is(err, appsync.ErrUpstream):
		return http.StatusBadGateway, dto.NewAPIError(dto.ErrCodeUpstream, err.Error())
	case errors.Is(err, appsync.ErrPersistence):
		return http.StatusInternalServerError, dto.NewAPIError(dto.ErrCodePersistence, err.Error())
	default:
		return http.StatusInternalServerError, dto.InternalError()
	}
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseBoolParam parses a boolean query parameter with a default value.
func ParseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// formatTime renders t as RFC3339, or "" for nil.
func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
