package linkaudit

import (
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

// Finding is an internal link whose route is not part of the snapshot.
type Finding struct {
	Page string `json:"page"` // URL of the page containing the link
	Link string `json:"link"` // link as written in the page
	Path string `json:"path"` // resolved path that was looked up
	Tag  string `json:"tag"`
}

// Report summarises an audit.
type Report struct {
	Pages    int       `json:"pages"`
	Links    int       `json:"links"`
	Findings []Finding `json:"findings,omitempty"`
}

// Auditor resolves links against the set of snapshot routes. It is safe for
// concurrent use by the write pool.
type Auditor struct {
	base          *url.URL
	indexFilename string
	known         map[string]struct{}

	mu       sync.Mutex
	pages    int
	links    int
	findings []Finding
}

// New builds an Auditor for the given snapshot mappings.
func New(baseURL, indexFilename string, mappings []routes.Mapping) (*Auditor, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, errors.ConfigError("invalid base URL for link audit").
			WithCause(err).
			WithContext("base_url", baseURL).
			Build()
	}
	a := &Auditor{
		base:          base,
		indexFilename: indexFilename,
		known:         make(map[string]struct{}, len(mappings)),
	}
	for _, m := range mappings {
		u, err := url.Parse(m.URL)
		if err != nil {
			continue
		}
		a.known[a.key(u.Path)] = struct{}{}
	}
	return a, nil
}

// ShouldInspect reports whether a mapping's body is an HTML page worth parsing.
func ShouldInspect(m routes.Mapping) bool {
	return !m.IsAsset() && strings.HasSuffix(m.Target, ".html")
}

// Inspect parses an HTML page served at pageURL and records every internal link
// that does not resolve to a snapshot route. It returns the number of new findings.
func (a *Auditor) Inspect(pageURL string, r io.Reader) (int, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return 0, errors.ValidationError("invalid page URL").WithCause(err).WithContext("url", pageURL).Build()
	}
	links, err := ExtractLinks(r)
	if err != nil {
		return 0, err
	}

	var found []Finding
	checked := 0
	for _, l := range links {
		if !shouldCheck(l.URL) {
			continue
		}
		abs, ok := resolveInternal(l.URL, page, a.base)
		if !ok {
			continue
		}
		checked++
		if _, ok := a.known[a.key(abs.Path)]; ok {
			continue
		}
		found = append(found, Finding{Page: pageURL, Link: l.URL, Path: abs.Path, Tag: l.Tag})
	}

	a.mu.Lock()
	a.pages++
	a.links += checked
	a.findings = append(a.findings, found...)
	a.mu.Unlock()
	return len(found), nil
}

// Report returns the findings sorted by page then link.
func (a *Auditor) Report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	findings := append([]Finding(nil), a.findings...)
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Page != findings[j].Page {
			return findings[i].Page < findings[j].Page
		}
		return findings[i].Link < findings[j].Link
	})
	return Report{Pages: a.pages, Links: a.links, Findings: findings}
}

// key normalises a URL path so "/a", "/a/" and "/a/index.html" compare equal.
func (a *Auditor) key(p string) string {
	if p == "" {
		p = "/"
	}
	if a.indexFilename != "" && path.Base(p) == a.indexFilename {
		p = strings.TrimSuffix(p, a.indexFilename)
	}
	return strings.TrimSuffix(p, "/")
}
