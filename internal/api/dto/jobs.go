package dto

// StartBatchResponse is returned when a batch job is started.
type StartBatchResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// BatchJobResponse represents a batch job's status.
type BatchJobResponse struct {
	JobID       string               `json:"job_id"`
	Status      string               `json:"status"`
	DryRun      bool                 `json:"dry_run"`
	Limit       int                  `json:"limit"`
	StartedAt   string               `json:"started_at"`
	CompletedAt *string              `json:"completed_at,omitempty"`
	Progress    JobProgressResponse  `json:"progress"`
	Result      *BatchResultResponse `json:"result,omitempty"`
	Error       *string              `json:"error,omitempty"`
}

// JobProgressResponse represents real-time progress.
type JobProgressResponse struct {
	CurrentPhase string `json:"current_phase"`
	Total        int    `json:"total"`
	Processed    int    `json:"processed"`
	Linked       int    `json:"linked"`
	Unlinked     int    `json:"unlinked"`
	Errored      int    `json:"errored"`
	LastUpdate   string `json:"last_update"`
}

// BatchResultResponse represents the final result of a batch.
type BatchResultResponse struct {
	RunID    int64 `json:"run_id"`
	Found    int   `json:"found"`
	Linked   int   `json:"linked"`
	Unlinked int   `json:"unlinked"`
	Errored  int   `json:"errored"`
}

// JobListResponse lists batch jobs.
type JobListResponse struct {
	Jobs  []BatchJobResponse `json:"jobs"`
	Count int                `json:"count"`
}
