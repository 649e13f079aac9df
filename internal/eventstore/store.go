// Package eventstore persists run events and run summaries so the history of
// generation runs survives the process.
package eventstore

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
)

// Store defines the interface for persisting and retrieving run history.
type Store interface {
	// Record appends one run event. It satisfies eventlog.Sink.
	Record(ctx context.Context, runID string, e eventlog.Event) error

	// StartRun registers a new run.
	StartRun(ctx context.Context, runID string, startedAt time.Time) error

	// FinishRun stores the outcome of a run.
	FinishRun(ctx context.Context, summary RunSummary) error

	// GetByRunID retrieves all events for a specific run, in sequence order.
	GetByRunID(ctx context.Context, runID string) ([]eventlog.Event, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// Close closes the store and releases resources.
	Close() error
}

var _ eventlog.Sink = Store(nil)
