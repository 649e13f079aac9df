package snapshot

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/backend"
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/content"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/notify"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

const baseURL = "http://blog.test/"

// countingBackend records every call made by the orchestrator.
type countingBackend struct {
	lockPath    string
	initErr     error
	finalizeErr error
	failTarget  string
	failErr     error
	writeDelay  time.Duration

	mu        sync.Mutex
	calls     []string
	written   map[string]string
	inits     int
	finalizes int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newCountingBackend(t *testing.T) *countingBackend {
	t.Helper()
	return &countingBackend{
		lockPath: filepath.Join(t.TempDir(), "site.lock"),
		written:  map[string]string{},
	}
}

func (b *countingBackend) Name() string     { return "counting" }
func (b *countingBackend) LockPath() string { return b.lockPath }

func (b *countingBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inits++
	b.calls = append(b.calls, "initialize")
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.initErr
}

func (b *countingBackend) Write(_ context.Context, r io.Reader, target string) error {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		m := b.maxInFlight.Load()
		if n <= m || b.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if b.writeDelay > 0 {
		time.Sleep(b.writeDelay)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "write")
	if target == b.failTarget {
		return b.failErr
	}
	b.written[target] = string(data)
	return nil
}

func (b *countingBackend) Finalize(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalizes++
	b.calls = append(b.calls, "finalize")
	return b.finalizeErr
}

func (b *countingBackend) factory() BackendFactory {
	return func(*config.BackendConfig, *eventlog.Log) (backend.Backend, error) { return b, nil }
}

func (b *countingBackend) writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == "write" {
			n++
		}
	}
	return n
}

// mapOpener serves a body per URL and counts opens.
type mapOpener struct {
	bodies map[string]string
	errs   map[string]error
	hook   func(routes.Mapping)
	opens  atomic.Int32
}

func (o *mapOpener) Open(_ context.Context, m routes.Mapping) (io.ReadCloser, error) {
	o.opens.Add(1)
	if o.hook != nil {
		o.hook(m)
	}
	if err := o.errs[m.URL]; err != nil {
		return nil, err
	}
	body, ok := o.bodies[m.URL]
	if !ok {
		body = "body of " + m.URL
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// openerFetcher adapts a mapOpener to the fetch.Fetcher interface.
type openerFetcher struct{ o *mapOpener }

func (f openerFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	return f.o.Open(ctx, routes.Mapping{URL: url})
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []notify.Outcome
}

func (n *recordingNotifier) Notify(_ context.Context, o notify.Outcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Site: config.SiteConfig{
			BaseURL:       baseURL,
			IndexFilename: config.DefaultIndexFilename,
			RSSFilename:   config.DefaultRSSFilename,
		},
		Backend:    &config.BackendConfig{Name: config.BackendDirectory, WorkingDir: "unused"},
		Generation: config.GenerationConfig{Concurrency: 4},
	}
}

func item(slug string, tags ...string) content.Item {
	it := content.Item{Slug: slug, Status: content.StatusPublished}
	for _, t := range tags {
		it.Tags = append(it.Tags, content.Tag{Slug: t})
	}
	return it
}

func store(perPage string, items ...content.Item) *content.Memory {
	return content.NewMemory(items, map[string]string{content.SettingPostsPerPage: perPage})
}

func stateMessages(log *eventlog.Log) []string {
	var out []string
	for _, e := range log.Filter(eventlog.KindState) {
		out = append(out, e.Message)
	}
	return out
}
