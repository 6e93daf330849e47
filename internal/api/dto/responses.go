package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Store     string            `json:"store,omitempty"`
	Providers map[string]string `json:"providers,omitempty"`
}

// ChangeResponse is one detected field change.
type ChangeResponse struct {
	Field        string `json:"field"`
	OldValue     string `json:"old_value"`
	NewValue     string `json:"new_value"`
	Significance string `json:"significance"`
}

// SyncResultResponse is the outcome of syncing one booking.
type SyncResultResponse struct {
	Success          bool             `json:"success"`
	Skipped          bool             `json:"skipped,omitempty"`
	BookingID        string           `json:"booking_id,omitempty"`
	BookingReference string           `json:"booking_reference,omitempty"`
	Provider         string           `json:"provider,omitempty"`
	Changes          []ChangeResponse `json:"changes"`
	Error            string           `json:"error,omitempty"`
	ErrorCode        string           `json:"error_code,omitempty"`
	SyncedAt         string           `json:"synced_at,omitempty"`
	DurationMS       int64            `json:"duration_ms"`
}

// BatchSyncResponse is returned by a synchronous batch.
type BatchSyncResponse struct {
	RunID      int64                `json:"run_id,omitempty"`
	Total      int                  `json:"total"`
	Synced     int                  `json:"synced"`
	Failed     int                  `json:"failed"`
	DurationMS int64                `json:"duration_ms"`
	Results    []SyncResultResponse `json:"results"`
}

// SyncRunResponse represents a sync run in API responses.
type SyncRunResponse struct {
	ID          int64  `json:"id"`
	Provider    string `json:"provider,omitempty"`
	Trigger     string `json:"trigger"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Total       int    `json:"total"`
	Synced      int    `json:"synced"`
	Failed      int    `json:"failed"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// SyncRunListResponse is returned when listing sync runs.
type SyncRunListResponse struct {
	Runs  []SyncRunResponse `json:"runs"`
	Count int               `json:"count"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
