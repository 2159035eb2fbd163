package ipc

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	State         string `json:"state"`
	TransportAddr string `json:"transport_addr"`
	QueueDepth    int    `json:"queue_depth"`
	InFlight      int    `json:"in_flight"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	JournalTotal  int    `json:"journal_total"`
	Abandoned     int    `json:"journal_abandoned"`
	JournalPath   string `json:"journal_path"`
	LockPath      string `json:"lock_path"`
	PrintEnabled  bool   `json:"print_enabled"`
	PID           int    `json:"pid"`
}

// JobsRequest filters journal listing by status.
type JobsRequest struct {
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit"`
}

// Job mirrors a journal entry for IPC callers.
type Job struct {
	ID         int64  `json:"id"`
	JobID      string `json:"job_id"`
	SourceFile string `json:"source_file"`
	Page       int    `json:"page"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	OutputPath string `json:"output_path"`
	Error      string `json:"error"`
	FinishedAt string `json:"finished_at"`
	DurationMS int64  `json:"duration_ms"`
}

// JobsResponse contains journal entries.
type JobsResponse struct {
	Jobs []Job `json:"jobs"`
}
