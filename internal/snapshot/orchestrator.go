// Package snapshot runs one generation: it resolves the backend, enumerates
// every route of the live site, fetches each route into the backend through a
// bounded pool, and finalizes the backend. Runs are driven by an explicit
// state machine and every transition is recorded in the run's event log.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitesnap/internal/backend"
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/content"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/eventstore"
	"git.home.luguber.info/inful/sitesnap/internal/fetch"
	"git.home.luguber.info/inful/sitesnap/internal/linkaudit"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
	"git.home.luguber.info/inful/sitesnap/internal/metrics"
	"git.home.luguber.info/inful/sitesnap/internal/notify"
)

// BackendFactory resolves the backend for a run.
type BackendFactory func(cfg *config.BackendConfig, log *eventlog.Log) (backend.Backend, error)

// Result is the outcome of a successful run.
type Result struct {
	RunID    string            `json:"run_id"`
	Posts    []string          `json:"posts"`
	Tags     []string          `json:"tags"`
	Pages    int               `json:"pages"`
	Assets   int               `json:"assets"`
	Bytes    int64             `json:"bytes"`
	Skipped  int               `json:"skipped_files,omitempty"`
	Links    *linkaudit.Report `json:"links,omitempty"`
	Duration time.Duration     `json:"duration"`
	Log      *eventlog.Log     `json:"-"`
}

// Output is the structured success output of a run.
type Output struct {
	Posts []string `json:"posts"`
	Tags  []string `json:"tags"`
}

// Output returns the caller-facing post and tag slugs.
func (r *Result) Output() Output {
	posts, tags := r.Posts, r.Tags
	if posts == nil {
		posts = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	return Output{Posts: posts, Tags: tags}
}

// Orchestrator runs snapshots for one configuration. A single Orchestrator
// may be used for many sequential runs; concurrent runs against the same
// working directory are rejected by the run lock.
type Orchestrator struct {
	cfg        *config.Config
	content    content.Source
	opener     fetch.Opener
	newBackend BackendFactory
	recorder   metrics.Recorder
	notifier   notify.Notifier
	history    eventstore.Store
	newRunID   func() string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOpener replaces how mapping bodies are obtained.
func WithOpener(o fetch.Opener) Option { return func(x *Orchestrator) { x.opener = o } }

// WithBackendFactory replaces backend resolution.
func WithBackendFactory(f BackendFactory) Option { return func(x *Orchestrator) { x.newBackend = f } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(x *Orchestrator) { x.recorder = r } }

// WithNotifier publishes each run outcome.
func WithNotifier(n notify.Notifier) Option { return func(x *Orchestrator) { x.notifier = n } }

// WithHistory persists run summaries and events.
func WithHistory(s eventstore.Store) Option { return func(x *Orchestrator) { x.history = s } }

// WithRunIDs overrides run id generation.
func WithRunIDs(f func() string) Option { return func(x *Orchestrator) { x.newRunID = f } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(x *Orchestrator) { x.now = now } }

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option { return func(x *Orchestrator) { x.logger = l } }

// New creates an Orchestrator. cfg must already be validated.
func New(cfg *config.Config, src content.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		content:  src,
		recorder: metrics.NoopRecorder{},
		notifier: notify.Nop{},
		newRunID: func() string { return uuid.NewString() },
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.opener == nil {
		f := fetch.FromConfig(cfg.Generation)
		if cfg.Assets.CopyLocal {
			o.opener = fetch.LocalFirst(f)
		} else {
			o.opener = fetch.Remote(f)
		}
	}
	if o.newBackend == nil {
		timeout := cfg.Generation.CommandTimeoutDuration()
		o.newBackend = func(bc *config.BackendConfig, log *eventlog.Log) (backend.Backend, error) {
			return backend.New(bc, log, backend.WithCommandTimeout(timeout))
		}
	}
	return o
}

// Run performs one snapshot. On failure the returned error is a *RunError
// carrying the event log; the backend is never finalized after a failed write
// and partial writes are left in place.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	r := o.newRun()
	logger := o.logger.With(logfields.RunID(r.id))
	logger.Info("Snapshot run started")

	if o.history != nil {
		if err := o.history.StartRun(context.WithoutCancel(ctx), r.id, r.started); err != nil {
			logger.Warn("Failed to record run start", logfields.Error(err))
		}
	}

	res, runErr := r.execute(ctx)
	o.finish(ctx, r, res, runErr, logger)
	if runErr != nil {
		return nil, runErr
	}
	return res, nil
}

func (o *Orchestrator) newRun() *run {
	id := o.newRunID()
	opts := []eventlog.Option{eventlog.WithLogger(o.logger), eventlog.WithClock(o.now)}
	if o.history != nil {
		opts = append(opts, eventlog.WithSink(o.history))
	}
	return &run{
		o:       o,
		id:      id,
		log:     eventlog.New(id, opts...),
		state:   StateIdle,
		started: o.now(),
	}
}

// finish reports the outcome to metrics, history and the notifier. None of
// these can change the outcome.
func (o *Orchestrator) finish(ctx context.Context, r *run, res *Result, runErr *RunError, logger *slog.Logger) {
	finished := o.now()
	duration := finished.Sub(r.started)
	bg := context.WithoutCancel(ctx)

	summary := eventstore.RunSummary{
		RunID:      r.id,
		StartedAt:  r.started,
		FinishedAt: &finished,
		Backend:    r.backendName,
		Posts:      len(r.derived.Posts),
		Tags:       len(r.derived.Tags),
		Pages:      r.pages,
		Assets:     r.assets,
	}
	outcome := notify.Outcome{
		RunID:      r.id,
		Backend:    r.backendName,
		Config:     o.cfg.Fingerprint(),
		StartedAt:  r.started,
		FinishedAt: finished,
		Posts:      summary.Posts,
		Tags:       summary.Tags,
		Pages:      summary.Pages,
		Assets:     summary.Assets,
	}

	if runErr != nil {
		summary.Status = eventstore.StatusFailed
		summary.ErrorCode = runErr.Code
		summary.ErrorStage = runErr.Stage
		summary.Message = runErr.Message
		outcome.Status = eventstore.StatusFailed
		outcome.Code = runErr.Code
		outcome.Stage = runErr.Stage
		outcome.Message = runErr.Message
		o.recorder.IncRunOutcome(outcomeLabel(ctx, runErr))
		logger.Error("Snapshot run failed",
			logfields.Stage(runErr.Stage),
			slog.Int("code", runErr.Code),
			logfields.Error(runErr.Err))
	} else {
		summary.Status = eventstore.StatusSucceeded
		outcome.Status = eventstore.StatusSucceeded
		if res.Links != nil {
			outcome.BrokenLinks = len(res.Links.Findings)
		}
		o.recorder.IncRunOutcome(metrics.OutcomeSuccess)
		logger.Info("Snapshot run completed",
			slog.Int("posts", summary.Posts),
			slog.Int("tags", summary.Tags),
			slog.Int("pages", summary.Pages),
			slog.Int("assets", summary.Assets),
			logfields.DurationMS(float64(duration.Milliseconds())))
	}
	o.recorder.ObserveRunDuration(duration)

	if o.history != nil {
		if err := o.history.FinishRun(bg, summary); err != nil {
			logger.Warn("Failed to record run outcome", logfields.Error(err))
		}
		if err := r.log.SinkErr(); err != nil {
			logger.Warn("Run events were not fully persisted", logfields.Error(err))
		}
	}
	if err := o.notifier.Notify(bg, outcome); err != nil {
		logger.Warn("Failed to publish run outcome", logfields.Error(err))
	}
}

func outcomeLabel(ctx context.Context, runErr *RunError) metrics.OutcomeLabel {
	switch {
	case runErr.Stage == StageLock:
		return metrics.OutcomeLocked
	case ctx.Err() != nil:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailed
	}
}
