package dto

// BatchSyncRequest is the body of POST /api/sync/batch and POST /api/sync/jobs.
// All fields are optional filters.
type BatchSyncRequest struct {
	Status          string `json:"status"`            // local sync_status: pending, synced, error
	Provider        string `json:"provider"`          // provider code, e.g. "duffel"
	NotSyncedWithin string `json:"not_synced_within"` // Go duration, e.g. "30m"
	Limit           int    `json:"limit"`             // 0 = configured default
}

// AddServicesRequest is the body of POST /api/bookings/{id}/services.
type AddServicesRequest struct {
	Services []ServiceRequestItem `json:"services"`
}

// ServiceRequestItem selects one available service to add.
type ServiceRequestItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// SyncRunListParams represents query parameters for listing sync runs.
type SyncRunListParams struct {
	Limit int `json:"limit"`
}

// DefaultSyncRunListParams returns default values for sync run list params.
func DefaultSyncRunListParams() SyncRunListParams {
	return SyncRunListParams{
		Limit: 20,
	}
}
