package eventstore

import (
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
)

const testRunID = "run-123"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGetByRunID(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	now := time.Now()
	in := []eventlog.Event{
		{Seq: 1, Time: now, Kind: eventlog.KindState, Message: "Idle -> BackendResolved"},
		{Seq: 2, Time: now.Add(time.Millisecond), Kind: eventlog.KindCommand, Message: "git fetch origin"},
	}
	for _, e := range in {
		if err := store.Record(ctx, testRunID, e); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}
	}
	if err := store.Record(ctx, "other", in[0]); err != nil {
		t.Fatalf("failed to record event: %v", err)
	}

	events, err := store.GetByRunID(ctx, testRunID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != in[i].Seq || e.Kind != in[i].Kind || e.Message != in[i].Message {
			t.Errorf("event %d: got %+v, want %+v", i, e, in[i])
		}
		if e.Time.UnixNano() != in[i].Time.UnixNano() {
			t.Errorf("event %d: time %v, want %v", i, e.Time, in[i].Time)
		}
	}
}

func TestLogMirrorsIntoStore(t *testing.T) {
	store := newTestStore(t)
	log := eventlog.New(testRunID, eventlog.WithSink(store))
	log.Append(eventlog.KindInfo, "one")
	log.Append(eventlog.KindInfo, "two")

	events, err := store.GetByRunID(t.Context(), testRunID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 2 || events[1].Message != "two" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	start := time.Now().Add(-time.Minute)
	if err := store.StartRun(ctx, "run-a", start); err != nil {
		t.Fatalf("start run-a: %v", err)
	}
	if err := store.StartRun(ctx, "run-b", start.Add(time.Second)); err != nil {
		t.Fatalf("start run-b: %v", err)
	}

	finished := start.Add(5 * time.Second)
	err := store.FinishRun(ctx, RunSummary{
		RunID: "run-a", Status: StatusSucceeded, FinishedAt: &finished,
		Backend: "git", Posts: 3, Tags: 2, Pages: 8, Assets: 4,
	})
	if err != nil {
		t.Fatalf("finish run-a: %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-b" || runs[0].Status != StatusRunning || runs[0].FinishedAt != nil {
		t.Errorf("newest run should be running run-b, got %+v", runs[0])
	}
	a := runs[1]
	if a.Status != StatusSucceeded || a.Posts != 3 || a.Assets != 4 || a.Backend != "git" {
		t.Errorf("unexpected summary for run-a: %+v", a)
	}
	if a.Duration() != 5*time.Second {
		t.Errorf("expected 5s duration, got %v", a.Duration())
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := newTestStore(t)
	err := store.FinishRun(t.Context(), RunSummary{RunID: "missing", Status: StatusFailed})
	if !stderrors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestPersistentStoreReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := t.Context()
	if err := store.StartRun(ctx, testRunID, time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	runs, err := reopened.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != testRunID {
		t.Fatalf("unexpected runs after reopen: %+v", runs)
	}
}
