package snapshot

import (
	"path/filepath"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

// AssetSources lists the static directories a snapshot copies, from the path
// configuration and the active theme. Unset paths are skipped.
func AssetSources(paths config.PathsConfig, assets config.AssetsConfig, activeTheme string) ([]routes.Source, error) {
	var sources []routes.Source
	if paths.Core != "" {
		sources = append(sources, routes.Source{Dir: filepath.Join(paths.Core, "built", "public"), Route: "public/"})
	}
	if paths.Images != "" {
		rel := paths.ImagesRel
		if rel == "" {
			rel = config.DefaultImagesRel
		}
		sources = append(sources, routes.Source{Dir: paths.Images, Route: rel})
	}
	if paths.Theme != "" {
		if activeTheme == "" {
			return nil, errors.EnumerationError("activeTheme setting is empty but a theme path is configured").
				WithContext("theme_path", paths.Theme).
				Build()
		}
		if filepath.Base(activeTheme) != activeTheme || activeTheme == "." || activeTheme == ".." {
			return nil, errors.EnumerationError("activeTheme setting is not a plain directory name").
				WithContext("active_theme", activeTheme).
				Build()
		}
		sources = append(sources, routes.Source{Dir: filepath.Join(paths.Theme, activeTheme, "assets"), Route: "assets/"})
	}
	for _, extra := range assets.Extra {
		sources = append(sources, routes.Source{Dir: extra.Source, Route: extra.Route})
	}
	return sources, nil
}
