package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/api/dto"
	"github.com/eshaffer321/booking-sync-backend/internal/application/bookings"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
)

// BookingSyncer syncs single bookings and reports their sync state.
type BookingSyncer interface {
	SyncBooking(ctx context.Context, idOrRef string, opts appsync.Options) *appsync.Result
	GetBookingSyncStatus(ctx context.Context, idOrRef string) (*appsync.StatusView, error)
}

// BookingActions runs provider actions on a booking.
type BookingActions interface {
	CancellationQuote(ctx context.Context, idOrRef string) (*providers.CancellationQuote, error)
	Cancel(ctx context.Context, idOrRef string) (*bookings.CancelOutcome, error)
	AvailableServices(ctx context.Context, idOrRef string) ([]providers.AvailableService, error)
	AddServices(ctx context.Context, idOrRef string, requests []providers.ServiceRequest) (*bookings.ServicesOutcome, error)
}

// BookingsHandler handles per-booking HTTP requests.
type BookingsHandler struct {
	*Base
	syncer  BookingSyncer
	actions BookingActions
}

// NewBookingsHandler creates a new bookings handler.
func NewBookingsHandler(syncer BookingSyncer, actions BookingActions, logger *slog.Logger) *BookingsHandler {
	return &BookingsHandler{
		Base:    NewBase(logger),
		syncer:  syncer,
		actions: actions,
	}
}

func bookingParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

// Sync handles POST /api/bookings/{id}/sync - syncs one booking now.
func (h *BookingsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id := bookingParam(r)
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("booking ID is required"))
		return
	}

	opts := appsync.Options{
		Force:                    ParseBoolParam(r, "force", false),
		IncludeAvailableServices: ParseBoolParam(r, "include_available_services", false),
		SkipIfRecentMinutes:      ParseIntParam(r, "skip_if_recent_minutes", 0),
	}

	result := h.syncer.SyncBooking(r.Context(), id, opts)
	response := toSyncResultResponse(result)
	if result.Success {
		h.WriteJSON(w, http.StatusOK, response)
		return
	}

	status, _ := ErrorResponse(result.Err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("booking sync failed", "booking", id, "error", result.Error)
	}
	h.WriteJSON(w, status, response)
}

// SyncStatus handles GET /api/bookings/{id}/sync-status.
func (h *BookingsHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	id := bookingParam(r)
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("booking ID is required"))
		return
	}

	view, err := h.syncer.GetBookingSyncStatus(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// CancellationQuote handles GET /api/bookings/{id}/cancellation-quote.
func (h *BookingsHandler) CancellationQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.actions.CancellationQuote(r.Context(), bookingParam(r))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, quote)
}

// Cancel handles POST /api/bookings/{id}/cancel. A cancellation the provider
// rejects is answered with 409 and the provider's result.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.actions.Cancel(r.Context(), bookingParam(r))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if !outcome.Result.Success {
		status = http.StatusConflict
	}
	h.WriteJSON(w, status, outcome)
}

// AvailableServices handles GET /api/bookings/{id}/services.
func (h *BookingsHandler) AvailableServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.actions.AvailableServices(r.Context(), bookingParam(r))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"services": services,
		"count":    len(services),
	})
}

// AddServices handles POST /api/bookings/{id}/services.
func (h *BookingsHandler) AddServices(w http.ResponseWriter, r *http.Request) {
	var req dto.AddServicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if len(req.Services) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("at least one service is required"))
		return
	}

	requests := make([]providers.ServiceRequest, 0, len(req.Services))
	for _, s := range req.Services {
		if s.ID == "" || s.Quantity <= 0 {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("each service needs an id and a positive quantity"))
			return
		}
		requests = append(requests, providers.ServiceRequest{ID: s.ID, Quantity: s.Quantity})
	}

	outcome, err := h.actions.AddServices(r.Context(), bookingParam(r), requests)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if !outcome.Result.Success {
		status = http.StatusConflict
	}
	h.WriteJSON(w, status, outcome)
}

// toSyncResultResponse converts a sync result to an API response.
func toSyncResultResponse(result *appsync.Result) dto.SyncResultResponse {
	response := dto.SyncResultResponse{
		Success:          result.Success,
		Skipped:          result.Skipped,
		BookingID:        result.BookingID,
		BookingReference: result.BookingReference,
		Provider:         result.Provider,
		Changes:          make([]dto.ChangeResponse, 0, len(result.Changes)),
		Error:            result.Error,
		SyncedAt:         formatTime(result.SyncedAt),
		DurationMS:       result.Duration.Milliseconds(),
	}
	for _, c := range result.Changes {
		response.Changes = append(response.Changes, dto.ChangeResponse{
			Field:        c.Field,
			OldValue:     c.OldValue,
			NewValue:     c.NewValue,
			Significance: string(c.Significance),
		})
	}
	if result.Err != nil {
		_, apiErr := ErrorResponse(result.Err)
		response.ErrorCode = apiErr.Code
	}
	return response
}

// durationParam parses an optional Go duration string.
func durationParam(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
