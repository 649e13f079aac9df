package snapshot

import (
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// RunError is returned by Run on every failure. The event log of the run is
// always attached, including for failures before the backend was resolved.
type RunError struct {
	RunID   string
	Code    int
	Message string
	Stage   string
	Log     *eventlog.Log
	Err     error
}

func newRunError(runID, stage string, log *eventlog.Log, err error) *RunError {
	return &RunError{
		RunID:   runID,
		Code:    errors.ExitCode(err),
		Message: err.Error(),
		Stage:   stage,
		Log:     log,
		Err:     err,
	}
}

func (e *RunError) Error() string {
	return e.Stage + ": " + e.Message
}

func (e *RunError) Unwrap() error { return e.Err }

// Failure is the structured failure output of a run.
type Failure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Failure returns the caller-facing code and message.
func (e *RunError) Failure() Failure {
	return Failure{Code: e.Code, Message: e.Message}
}
