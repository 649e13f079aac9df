package eventstore

import "time"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunSummary is the stored outcome of one generation run.
type RunSummary struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Backend    string     `json:"backend,omitempty"`
	Posts      int        `json:"posts"`
	Tags       int        `json:"tags"`
	Pages      int        `json:"pages"`
	Assets     int        `json:"assets"`
	ErrorCode  int        `json:"error_code,omitempty"`
	ErrorStage string     `json:"error_stage,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r RunSummary) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
