package config

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint computes a stable hash of the fields that influence snapshot
// output. Secrets and ambient settings are excluded. Extra asset sources are
// order-insensitive.
func (c *Config) Fingerprint() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("site.base_url", c.Site.BaseURL)
	w("site.index_filename", c.Site.IndexFilename)
	w("site.rss_filename", c.Site.RSSFilename)
	w("paths.core", c.Paths.Core)
	w("paths.images", c.Paths.Images)
	w("paths.images_rel", c.Paths.ImagesRel)
	w("paths.theme", c.Paths.Theme)
	if len(c.Assets.Extra) > 0 {
		extras := make([]string, 0, len(c.Assets.Extra))
		for _, e := range c.Assets.Extra {
			extras = append(extras, e.Source+"->"+e.Route)
		}
		sort.Strings(extras)
		w("assets.extra", strings.Join(extras, ","))
	}
	if c.Backend != nil {
		w("backend.name", c.Backend.Name)
		w("backend.remote_repo", c.Backend.RemoteRepo)
		w("backend.branch", c.Backend.Branch, c.Backend.TargetBranch())
	}
	return hex.EncodeToString(h.Sum(nil))
}
