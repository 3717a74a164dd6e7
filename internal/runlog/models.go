package runlog

import "time"

// Status is the lifecycle state of a journaled run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source records how a run was started.
type Source string

const (
	SourceAPI   Source = "api"
	SourceCLI   Source = "cli"
	SourceInbox Source = "inbox"
)

// Run is one journal row. It holds metadata only; artifacts never outlive
// the run that produced them.
type Run struct {
	ID              string     `json:"id"`
	Source          Source     `json:"source"`
	Filename        string     `json:"filename,omitempty"`
	Status          Status     `json:"status"`
	Stage           string     `json:"stage"`
	VideoURL        string     `json:"video_url,omitempty"`
	Segments        int        `json:"segments"`
	FailureStage    string     `json:"failure_stage,omitempty"`
	FailureKind     string     `json:"failure_kind,omitempty"`
	FailureMessage  string     `json:"failure_message,omitempty"`
	CleanupFailures int        `json:"cleanup_failures"`
	InputBytes      int64      `json:"input_bytes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long a finished run took, or zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}

// Stats aggregates journal rows by status.
type Stats struct {
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
