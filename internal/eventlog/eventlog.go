// Package eventlog provides the append-only, run-scoped record of everything a
// generation run did. A Log is created per run, passed explicitly to every
// component that records events, and returned to the caller on success and on
// failure alike.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/logfields"
)

// Kind classifies an event.
type Kind string

const (
	KindState   Kind = "state"
	KindCommand Kind = "command"
	KindFetch   Kind = "fetch"
	KindWrite   Kind = "write"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Event is one entry of a Log. Seq is 1-based and gap free.
type Event struct {
	Seq     int       `json:"seq"`
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
}

func (e Event) String() string {
	return fmt.Sprintf("%04d %s [%s] %s", e.Seq, e.Time.UTC().Format(time.RFC3339), e.Kind, e.Message)
}

// Sink receives every appended event, in order. Sink failures never fail a
// run; the first one is kept and reported by SinkErr.
type Sink interface {
	Record(ctx context.Context, runID string, e Event) error
}

// Log is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	runID   string
	events  []Event
	sink    Sink
	sinkErr error
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithSink mirrors events into a persistent sink.
func WithSink(s Sink) Option { return func(l *Log) { l.sink = s } }

// WithLogger sets the logger events are echoed to at debug level.
func WithLogger(logger *slog.Logger) Option { return func(l *Log) { l.logger = logger } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

// New creates an empty log for one run.
func New(runID string, opts ...Option) *Log {
	l := &Log{runID: runID, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunID returns the identifier of the run this log belongs to.
func (l *Log) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Append records an event and returns it. A nil Log discards events.
func (l *Log) Append(kind Kind, format string, args ...any) Event {
	if l == nil {
		return Event{}
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	e := Event{Seq: len(l.events) + 1, Time: l.now(), Kind: kind, Message: msg}
	l.events = append(l.events, e)
	l.logger.Debug(msg, logfields.RunID(l.runID), slog.String("kind", string(kind)), slog.Int("seq", e.Seq))
	if l.sink != nil {
		if err := l.sink.Record(context.Background(), l.runID, e); err != nil && l.sinkErr == nil {
			l.sinkErr = err
			l.logger.Warn("Event sink failed; continuing with in-memory log only", logfields.RunID(l.runID), logfields.Error(err))
		}
	}
	return e
}

// Command records an external command before it runs.
func (l *Log) Command(name string, args ...string) Event {
	return l.Append(KindCommand, "%s", strings.TrimSpace(name+" "+strings.Join(args, " ")))
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Filter returns the events of the given kind, in order.
func (l *Log) Filter(kind Kind) []Event {
	var out []Event
	for _, e := range l.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Lines renders the log as text, one event per line.
func (l *Log) Lines() []string {
	events := l.Events()
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}
	return lines
}

// Len returns the number of events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// SinkErr returns the first sink failure, if any.
func (l *Log) SinkErr() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sinkErr
}
