package daemon

import (
	"path/filepath"

	"git.home.luguber.info/inful/sitesnap/internal/config"
)

// WatchPaths lists what a running site changes when content or assets are
// edited: the asset roots and the content store.
func WatchPaths(cfg *config.Config) []string {
	var paths []string
	if cfg.Paths.Core != "" {
		paths = append(paths, filepath.Join(cfg.Paths.Core, "built", "public"))
	}
	if cfg.Paths.Images != "" {
		paths = append(paths, cfg.Paths.Images)
	}
	if cfg.Paths.Theme != "" {
		paths = append(paths, cfg.Paths.Theme)
	}
	for _, extra := range cfg.Assets.Extra {
		paths = append(paths, extra.Source)
	}
	switch cfg.Content.Source {
	case config.ContentSourceFile:
		paths = append(paths, cfg.Content.File)
	case config.ContentSourceGhostSQLite:
		paths = append(paths, cfg.Content.Database)
	}
	return paths
}
