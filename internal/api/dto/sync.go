package dto

// StartJobResponse is returned when a background batch is started.
type StartJobResponse struct {
	JobID    string `json:"job_id"`
	Provider string `json:"provider,omitempty"`
	Status   string `json:"status"`
}

// JobResponse represents a background batch job's status.
type JobResponse struct {
	JobID       string              `json:"job_id"`
	Scope       string              `json:"scope"`
	Provider    string              `json:"provider,omitempty"`
	Status      string              `json:"status"`
	StartedAt   string              `json:"started_at"`
	CompletedAt *string             `json:"completed_at,omitempty"`
	Progress    JobProgressResponse `json:"progress"`
	Result      *JobResultResponse  `json:"result,omitempty"`
	Error       *string             `json:"error,omitempty"`
}

// JobProgressResponse represents real-time progress.
type JobProgressResponse struct {
	CurrentPhase      string `json:"current_phase"`
	TotalBookings     int    `json:"total_bookings"`
	ProcessedBookings int    `json:"processed_bookings"`
	SyncedBookings    int    `json:"synced_bookings"`
	FailedBookings    int    `json:"failed_bookings"`
	LastUpdate        string `json:"last_update"`
}

// JobResultResponse represents the final counts.
type JobResultResponse struct {
	RunID  int64 `json:"run_id,omitempty"`
	Total  int   `json:"total"`
	Synced int   `json:"synced"`
	Failed int   `json:"failed"`
}

// JobListResponse lists background jobs.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}
