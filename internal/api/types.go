package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FailureMessage is the fixed error text returned for failed runs. Details
// stay in logs and the run journal.
const FailureMessage = "subtitle generation failed"

// SubtitleResponse is the body returned by the subtitle generation endpoint.
type SubtitleResponse struct {
	Success  bool   `json:"success"`
	VideoURL string `json:"video_url,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	Segments *int   `json:"segments,omitempty"`
	Error    string `json:"error,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Run describes a journaled run in a transport-friendly format.
type Run struct {
	ID              string  `json:"id"`
	Source          string  `json:"source"`
	Filename        string  `json:"filename,omitempty"`
	Status          string  `json:"status"`
	Stage           string  `json:"stage"`
	VideoURL        string  `json:"video_url,omitempty"`
	Segments        int     `json:"segments"`
	FailureStage    string  `json:"failure_stage,omitempty"`
	FailureKind     string  `json:"failure_kind,omitempty"`
	FailureMessage  string  `json:"failure_message,omitempty"`
	CleanupFailures int     `json:"cleanup_failures,omitempty"`
	InputBytes      int64   `json:"input_bytes,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
	FinishedAt      string  `json:"finished_at,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// RunListResponse wraps run listings.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunResponse wraps a single run lookup.
type RunResponse struct {
	Run Run `json:"run"`
}

// RunStats counts journaled runs by status.
type RunStats struct {
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// DependencyStatus reports availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates runtime information about the server.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     string             `json:"started_at,omitempty"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	LockFilePath  string             `json:"lock_file"`
	RunsDBPath    string             `json:"runs_db"`
	WorkDir       string             `json:"work_dir"`
	ASREngine     string             `json:"asr_engine"`
	StoreBackend  string             `json:"store_backend"`
	InboxDir      string             `json:"inbox_dir,omitempty"`
	Runs          RunStats           `json:"runs"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is returned for non-run errors such as auth or lookup failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
