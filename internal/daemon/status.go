package daemon

import (
	stderrors "errors"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/snapshot"
	"git.home.luguber.info/inful/sitesnap/internal/version"
)

// RunRecord describes the most recent run.
type RunRecord struct {
	RunID      string    `json:"run_id,omitempty"`
	Reason     string    `json:"reason"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  bool      `json:"succeeded"`
	Pages      int       `json:"pages,omitempty"`
	Assets     int       `json:"assets,omitempty"`
	Code       int       `json:"code,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Snapshot is a point-in-time copy of the daemon status.
type Snapshot struct {
	Version   string     `json:"version"`
	StartedAt time.Time  `json:"started_at"`
	Uptime    string     `json:"uptime"`
	Running   bool       `json:"running"`
	Reason    string     `json:"reason,omitempty"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	LastRun   *RunRecord `json:"last_run,omitempty"`
}

// Status tracks run activity. It is safe for concurrent use.
type Status struct {
	mu        sync.RWMutex
	startedAt time.Time
	running   bool
	current   RunRecord
	runs      int
	failures  int
	last      *RunRecord
}

func newStatus(now time.Time) *Status {
	return &Status{startedAt: now}
}

func (s *Status) begin(reason string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.current = RunRecord{Reason: reason, StartedAt: now}
}

func (s *Status) end(res *snapshot.Result, err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.current
	rec.FinishedAt = now
	s.runs++
	if err != nil {
		s.failures++
		rec.Message = err.Error()
		var runErr *snapshot.RunError
		if stderrors.As(err, &runErr) {
			rec.RunID = runErr.RunID
			rec.Code = runErr.Code
			rec.Stage = runErr.Stage
			rec.Message = runErr.Message
		}
	} else if res != nil {
		rec.Succeeded = true
		rec.RunID = res.RunID
		rec.Pages = res.Pages
		rec.Assets = res.Assets
	}
	s.running = false
	s.last = &rec
}

// Snapshot returns a copy of the current status.
func (s *Status) Snapshot(now time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{
		Version:   version.Version,
		StartedAt: s.startedAt,
		Uptime:    now.Sub(s.startedAt).Round(time.Second).String(),
		Running:   s.running,
		Runs:      s.runs,
		Failures:  s.failures,
	}
	if s.running {
		out.Reason = s.current.Reason
	}
	if s.last != nil {
		last := *s.last
		out.LastRun = &last
	}
	return out
}

// Healthy reports whether the last run, if any, succeeded.
func (s *Status) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last == nil || s.last.Succeeded
}
