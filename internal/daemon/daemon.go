// Package daemon keeps sitesnap running: it regenerates the snapshot on a
// schedule, when watched content or asset paths change, or when asked over the
// admin HTTP endpoint. Runs never overlap; requests arriving during a run are
// coalesced into exactly one follow-up run.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
	"git.home.luguber.info/inful/sitesnap/internal/snapshot"
)

// Runner performs one snapshot run. *snapshot.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context) (*snapshot.Result, error)
}

// Trigger reasons.
const (
	ReasonStartup  = "startup"
	ReasonSchedule = "schedule"
	ReasonWatch    = "watch"
	ReasonAdmin    = "admin"
)

// Daemon serialises runs requested by the scheduler, the watcher and the
// admin endpoint.
type Daemon struct {
	cfg    config.DaemonConfig
	runner Runner

	requests chan string
	status   *Status

	scheduler *Scheduler
	watcher   *Watcher
	admin     *AdminServer

	watchPaths []string
	runOnStart bool
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithWatchPaths sets the files and directories whose changes trigger a run.
// Watching only happens when the daemon configuration enables it.
func WithWatchPaths(paths ...string) Option {
	return func(d *Daemon) { d.watchPaths = append(d.watchPaths, paths...) }
}

// WithAdmin serves the admin endpoints while the daemon runs.
func WithAdmin(a *AdminServer) Option { return func(d *Daemon) { d.admin = a } }

// WithRunOnStart requests one run as soon as the daemon starts.
func WithRunOnStart(v bool) Option { return func(d *Daemon) { d.runOnStart = v } }

// New creates a daemon for runner.
func New(cfg config.DaemonConfig, runner Runner, opts ...Option) (*Daemon, error) {
	if runner == nil {
		return nil, errors.DaemonError("runner is required").Build()
	}
	d := &Daemon{
		cfg:        cfg,
		runner:     runner,
		requests:   make(chan string, 1),
		status:     newStatus(time.Now()),
		runOnStart: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.admin != nil {
		d.admin.attach(d)
	}
	return d, nil
}

// Status returns the live status tracker.
func (d *Daemon) Status() *Status { return d.status }

// Trigger requests a run. It never blocks: when a request is already pending
// the new one is merged into it.
func (d *Daemon) Trigger(reason string) bool {
	select {
	case d.requests <- reason:
		slog.Debug("Snapshot run requested", slog.String("reason", reason))
		return true
	default:
		slog.Debug("Snapshot run already pending", slog.String("reason", reason))
		return false
	}
}

// Run starts every configured trigger and processes run requests until ctx is
// canceled. The run in progress at cancellation is canceled with it.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched, err := NewScheduler(d.cfg, d.Trigger)
	if err != nil {
		return err
	}
	d.scheduler = sched
	if sched != nil {
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	if d.cfg.Watch && len(d.watchPaths) > 0 {
		w, err := NewWatcher(d.watchPaths, d.cfg.DebounceDuration(), d.Trigger)
		if err != nil {
			return err
		}
		d.watcher = w
		w.Start(ctx)
		defer func() { _ = w.Stop() }()
	}

	var wg sync.WaitGroup
	adminErr := make(chan error, 1)
	if d.admin != nil {
		if err := d.admin.Listen(); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			adminErr <- d.admin.Serve()
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer stop()
			if err := d.admin.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Admin server shutdown failed", logfields.Error(err))
			}
			wg.Wait()
		}()
	}

	if d.runOnStart {
		d.Trigger(ReasonStartup)
	}
	slog.Info("Daemon started",
		slog.Bool("watch", d.watcher != nil),
		slog.Bool("scheduled", sched != nil),
		slog.Bool("admin", d.admin != nil))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Daemon stopping")
			return nil
		case err := <-adminErr:
			if err != nil {
				return errors.DaemonError("admin server failed").WithCause(err).Build()
			}
		case reason := <-d.requests:
			d.runOnce(ctx, reason)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context, reason string) {
	d.status.begin(reason, time.Now())
	res, err := d.runner.Run(ctx)
	d.status.end(res, err, time.Now())
	if err != nil {
		slog.Warn("Triggered snapshot run failed", slog.String("reason", reason), logfields.Error(err))
		return
	}
	slog.Info("Triggered snapshot run completed", slog.String("reason", reason), logfields.RunID(res.RunID))
}
