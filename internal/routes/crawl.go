package routes

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Source is an asset directory and the route root its files are served under.
type Source struct {
	Dir   string
	Route string
}

// CrawlStats counts what a crawl saw. Symbolic links and other non-regular
// files are never followed or mapped; they are only counted in Skipped.
type CrawlStats struct {
	Files   int `json:"files"`
	Skipped int `json:"skipped"`
}

func (s *CrawlStats) add(o CrawlStats) {
	s.Files += o.Files
	s.Skipped += o.Skipped
}

// Crawl maps every regular file under src.Dir to
// baseURL + route + relative path. Results are sorted by target.
// The source directory itself may be a symbolic link; entries below it may not.
func Crawl(ctx context.Context, baseURL string, src Source) ([]Mapping, CrawlStats, error) {
	var stats CrawlStats
	route := normalizeRoute(src.Route)
	if err := validateRoute(route); err != nil {
		return nil, stats, err
	}

	root, err := filepath.Abs(src.Dir)
	if err == nil {
		root, err = filepath.EvalSymlinks(root)
	}
	if err != nil {
		return nil, stats, crawlError("asset source directory is not accessible", src, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, stats, crawlError("asset source directory is not accessible", src, err)
	}
	if !info.IsDir() {
		return nil, stats, crawlError("asset source is not a directory", src, nil)
	}

	base := withTrailingSlash(baseURL)
	var mappings []Mapping
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			stats.Skipped++
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		stats.Files++
		mappings = append(mappings, Mapping{
			URL:    base + escapePath(route+rel),
			Target: route + rel,
			Source: p,
		})
		return nil
	})
	if walkErr != nil {
		return nil, stats, crawlError("asset crawl failed", src, walkErr)
	}

	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Target < mappings[j].Target })
	return mappings, stats, nil
}

// CrawlAll crawls every source concurrently and returns the mappings in
// source order. The first failing crawl cancels the rest and its error is
// returned.
func CrawlAll(ctx context.Context, baseURL string, sources []Source) ([]Mapping, CrawlStats, error) {
	results := make([][]Mapping, len(sources))
	stats := make([]CrawlStats, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			m, s, err := Crawl(gctx, baseURL, src)
			if err != nil {
				return err
			}
			results[i] = m
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, CrawlStats{}, err
	}

	var all []Mapping
	var total CrawlStats
	for i := range results {
		all = append(all, results[i]...)
		total.add(stats[i])
	}
	return all, total, nil
}

// normalizeRoute strips leading slashes and ensures a trailing one, so
// "/assets" and "assets/" both become "assets/". The empty route is the root.
func normalizeRoute(route string) string {
	route = strings.TrimLeft(filepath.ToSlash(route), "/")
	return withTrailingSlash(route)
}

func validateRoute(route string) error {
	if route == "" {
		return nil
	}
	for _, seg := range strings.Split(strings.TrimSuffix(route, "/"), "/") {
		if seg == "" || seg == "." || seg == ".." {
			return errors.ConfigError("asset route is not a clean relative path").
				WithContext("route", route).
				Build()
		}
	}
	return nil
}

func crawlError(msg string, src Source, cause error) error {
	b := errors.EnumerationError(msg).
		WithContext("dir", src.Dir).
		WithContext("route", src.Route)
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}
