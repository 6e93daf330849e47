package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/eshaffer321/booking-sync-backend/internal/api/dto"
)

// Pinger reports whether the local store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker probes registered providers.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
	store     Pinger
	providers ProviderChecker
}

// NewHealthHandler creates a new health handler. Either dependency may be nil.
func NewHealthHandler(store Pinger, providers ProviderChecker) *HealthHandler {
	return &HealthHandler{
		Base:      NewBase(nil),
		store:     store,
		providers: providers,
	}
}

// ServeHTTP handles the health check request. An unreachable store makes the
// service unavailable; provider failures are reported but do not.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := dto.NewHealthResponse()
	status := http.StatusOK

	if h.store != nil {
		response.Store = "ok"
		if err := h.store.Ping(ctx); err != nil {
			response.Status = "unavailable"
			response.Store = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if h.providers != nil {
		results := h.providers.HealthCheck(ctx)
		if len(results) > 0 {
			response.Providers = make(map[string]string, len(results))
			for name, err := range results {
				if err != nil {
					response.Providers[name] = err.Error()
					if response.Status == "ok" {
						response.Status = "degraded"
					}
					continue
				}
				response.Providers[name] = "ok"
			}
		}
	}

	h.WriteJSON(w, status, response)
}
