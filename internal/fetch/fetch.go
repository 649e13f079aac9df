// Package fetch retrieves the bytes of a mapping, either from the live site
// over HTTP or, for crawled assets, straight from the local file.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

// Fetcher returns the body served at an absolute URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Opener returns the bytes to write for a mapping.
type Opener interface {
	Open(ctx context.Context, m routes.Mapping) (io.ReadCloser, error)
}

// HTTPFetcher issues GET requests. Response status codes are not inspected:
// whatever body the server returns, error pages included, is the page.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option { return func(f *HTTPFetcher) { f.client = c } }

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option { return func(f *HTTPFetcher) { f.userAgent = ua } }

// WithTimeout bounds each fetch, body read included. Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(f *HTTPFetcher) { f.timeout = d } }

// NewHTTP creates an HTTPFetcher with the default timeout and user agent.
func NewHTTP(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{},
		userAgent: config.DefaultUserAgent,
		timeout:   config.DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FromConfig builds an HTTPFetcher from generation settings.
func FromConfig(cfg config.GenerationConfig) *HTTPFetcher {
	return NewHTTP(WithUserAgent(cfg.UserAgent), WithTimeout(cfg.FetchTimeoutDuration()))
}

// Fetch performs the GET. The returned body must be closed; closing it also
// releases the per-fetch deadline.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if f.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, errors.FetchError("invalid page URL").WithCause(err).WithContext("url", url).Build()
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, errors.FetchError("page fetch failed").WithCause(err).WithContext("url", url).Build()
	}
	if resp.StatusCode >= http.StatusBadRequest {
		slog.Debug("Page fetched with error status; writing body verbatim",
			logfields.URL(url), slog.Int("status", resp.StatusCode))
	}
	return &body{ReadCloser: resp.Body, cancel: cancel, url: url}, nil
}

// body turns read failures into fetch errors and ties the deadline to Close.
type body struct {
	io.ReadCloser
	cancel context.CancelFunc
	url    string
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = errors.FetchError("page body read failed").WithCause(err).WithContext("url", b.url).Build()
	}
	return n, err
}

func (b *body) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// Remote opens every mapping by fetching its URL.
func Remote(f Fetcher) Opener { return remote{f} }

type remote struct{ f Fetcher }

func (r remote) Open(ctx context.Context, m routes.Mapping) (io.ReadCloser, error) {
	return r.f.Fetch(ctx, m.URL)
}

// LocalFirst opens crawled assets from their source file and fetches every
// other mapping.
func LocalFirst(f Fetcher) Opener { return localFirst{f} }

type localFirst struct{ f Fetcher }

func (l localFirst) Open(ctx context.Context, m routes.Mapping) (io.ReadCloser, error) {
	if !m.IsAsset() {
		return l.f.Fetch(ctx, m.URL)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(m.Source)
	if err != nil {
		return nil, errors.FetchError("asset source could not be opened").
			WithCause(err).
			WithContext("path", m.Source).
			Build()
	}
	return file, nil
}
