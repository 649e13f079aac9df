package snapshot

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitesnap/internal/backend"
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/linkaudit"
	"git.home.luguber.info/inful/sitesnap/internal/lock"
	"git.home.luguber.info/inful/sitesnap/internal/metrics"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

// run is the state of one Orchestrator.Run call. Only the coordinating
// goroutine touches the fields other than log and bytes.
type run struct {
	o       *Orchestrator
	id      string
	log     *eventlog.Log
	state   State
	started time.Time

	backend     backend.Backend
	backendName string
	derived     routes.Derived
	mappings    []routes.Mapping
	pages       int
	assets      int
	skipped     int
	auditor     *linkaudit.Auditor
	bytes       atomic.Int64
}

func (r *run) transition(to State) {
	if !canTransition(r.state, to) {
		// A programming error: the state machine only moves forward.
		panic("snapshot: invalid transition " + string(r.state) + " -> " + string(to))
	}
	r.log.Append(eventlog.KindState, "%s -> %s", r.state, to)
	r.state = to
}

func (r *run) fail(stage string, err error) *RunError {
	r.log.Append(eventlog.KindError, "%s failed: %v", stage, err)
	r.transition(StateFailed)
	r.o.recorder.IncStageResult(stage, stageResult(err))
	return newRunError(r.id, stage, r.log, err)
}

func stageResult(err error) metrics.ResultLabel {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return metrics.ResultCanceled
	}
	return metrics.ResultFailed
}

// stage times fn and records its result.
func (r *run) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.o.recorder.ObserveStageDuration(name, time.Since(start))
	if err == nil {
		r.o.recorder.IncStageResult(name, metrics.ResultSuccess)
	}
	return err
}

func (r *run) execute(ctx context.Context) (*Result, *RunError) {
	cfg := r.o.cfg

	b, err := r.o.newBackend(cfg.Backend, r.log)
	if err != nil {
		return nil, r.fail(StageResolve, err)
	}
	r.backend = b
	r.backendName = b.Name()
	r.log.Append(eventlog.KindInfo, "backend %s resolved (config %.12s)", r.backendName, cfg.Fingerprint())
	r.transition(StateBackendResolved)

	held, err := lock.Acquire(b.LockPath(), r.id)
	if err != nil {
		return nil, r.fail(StageLock, err)
	}
	r.log.Append(eventlog.KindInfo, "lock acquired at %s", held.Path())
	defer func() {
		if err := held.Release(); err != nil {
			r.log.Append(eventlog.KindWarning, "lock release failed: %v", err)
		}
	}()

	if err := r.stage(StageInitialize, func() error { return b.Initialize(ctx) }); err != nil {
		return nil, r.fail(StageInitialize, err)
	}
	r.transition(StateInitialized)

	if err := r.stage(StageEnumerate, func() error { return r.enumerate(ctx) }); err != nil {
		return nil, r.fail(StageEnumerate, err)
	}
	r.transition(StateEnumerated)

	r.transition(StateWriting)
	if err := r.stage(StageWrite, func() error { return r.writeAll(ctx) }); err != nil {
		r.log.Append(eventlog.KindWarning, "finalize skipped; files already written are left in place")
		return nil, r.fail(StageWrite, err)
	}

	if err := r.stage(StageFinalize, func() error { return b.Finalize(ctx) }); err != nil {
		return nil, r.fail(StageFinalize, err)
	}
	r.transition(StateFinalized)

	res := &Result{
		RunID:    r.id,
		Posts:    r.derived.Posts,
		Tags:     r.derived.Tags,
		Pages:    r.pages,
		Assets:   r.assets,
		Bytes:    r.bytes.Load(),
		Skipped:  r.skipped,
		Duration: r.o.now().Sub(r.started),
		Log:      r.log,
	}
	if r.auditor != nil {
		report := r.auditor.Report()
		res.Links = &report
	}
	r.transition(StateDone)
	return res, nil
}

// enumerate derives the complete mapping list. Nothing is fetched until the
// list is final.
func (r *run) enumerate(ctx context.Context) error {
	cfg := r.o.cfg
	plan, err := BuildPlan(ctx, cfg, r.o.content)
	if err != nil {
		return err
	}
	if plan.Skipped > 0 {
		r.log.Append(eventlog.KindWarning, "%d symbolic links or special files ignored while crawling assets", plan.Skipped)
	}

	r.derived = plan.Derived
	r.mappings = plan.Mappings
	r.pages = plan.Pages
	r.assets = plan.Assets
	r.skipped = plan.Skipped
	r.log.Append(eventlog.KindInfo, "enumerated %d posts, %d tags, %d pages, %d assets",
		len(r.derived.Posts), len(r.derived.Tags), plan.Pages, plan.Assets)

	if cfg.Generation.AuditLinks {
		a, err := linkaudit.New(cfg.Site.BaseURL, cfg.Site.IndexFilename, plan.Mappings)
		if err != nil {
			return err
		}
		r.auditor = a
	}
	return nil
}

// writeAll fetches and writes every mapping with bounded concurrency. The
// first failure stops scheduling; work already started runs to completion
// and the first error is returned.
func (r *run) writeAll(ctx context.Context) error {
	limit := r.o.cfg.Generation.Concurrency
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}
	if limit > config.MaxConcurrency {
		limit = config.MaxConcurrency
	}
	r.o.recorder.SetWriteConcurrency(limit)

	var (
		g        errgroup.Group
		failed   atomic.Bool
		firstErr error
		once     sync.Once
	)
	g.SetLimit(limit)
	stop := func(err error) {
		failed.Store(true)
		once.Do(func() { firstErr = err })
	}
	for _, m := range r.mappings {
		if failed.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			stop(canceled(err))
			break
		}
		g.Go(func() error {
			// A sibling may have failed, or the run been canceled, while this
			// slot was being acquired.
			if failed.Load() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				stop(canceled(err))
				return err
			}
			if err := r.writeOne(ctx, m); err != nil {
				stop(err)
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	return firstErr
}

func canceled(cause error) error {
	return errors.NewError(errors.CategoryRuntime, "run canceled").WithCause(cause).Build()
}

func (r *run) writeOne(ctx context.Context, m routes.Mapping) error {
	body, err := r.o.opener.Open(ctx, m)
	r.o.recorder.IncFetchResult(err == nil)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()
	r.log.Append(eventlog.KindFetch, "%s", m.URL)

	var page *bytes.Buffer
	var src io.Reader = body
	if r.auditor != nil && linkaudit.ShouldInspect(m) {
		page = new(bytes.Buffer)
		src = io.TeeReader(body, page)
	}
	counted := &countingReader{r: src}
	if err := r.backend.Write(ctx, counted, m.Target); err != nil {
		return err
	}
	r.bytes.Add(counted.n)

	kind := metrics.KindPage
	if m.IsAsset() {
		kind = metrics.KindAsset
	}
	r.o.recorder.IncWritten(kind, counted.n)
	r.log.Append(eventlog.KindWrite, "%s (%d bytes)", m.Target, counted.n)

	if page != nil {
		n, err := r.auditor.Inspect(m.URL, page)
		switch {
		case err != nil:
			r.log.Append(eventlog.KindWarning, "link audit of %s failed: %v", m.URL, err)
		case n > 0:
			r.o.recorder.IncBrokenLinks(n)
			r.log.Append(eventlog.KindWarning, "%s links to %d routes outside the snapshot", m.URL, n)
		}
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
