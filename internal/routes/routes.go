// Package routes derives the complete list of page mappings for a snapshot:
// the dynamic pages enumerated from content metadata and the static files
// found under the asset directories.
package routes

import (
	"net/url"
	"strings"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Mapping pairs a URL to fetch with the relative path it is written to.
// Target always uses forward slashes. Source is the local file an asset
// mapping was crawled from and is empty for dynamic pages.
type Mapping struct {
	URL    string `json:"url"`
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
}

// IsAsset reports whether the mapping was produced by the asset crawler.
func (m Mapping) IsAsset() bool { return m.Source != "" }

// ErrTargetCollision is returned when two mappings would write the same file,
// or one mapping's file would sit where another needs a directory.
var ErrTargetCollision = errors.EnumerationError("target path collision").Build()

func collision(target, first, second string) error {
	return ErrTargetCollision.
		WithContext("target", target).
		WithContext("first", first).
		WithContext("second", second)
}

// withTrailingSlash normalises a base URL or route root.
func withTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// escapePath percent-encodes each segment of a slash separated path.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
