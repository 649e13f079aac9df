package snapshot

import (
	"context"
	stderrors "errors"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/content"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

// Plan is the complete, checked mapping list of one snapshot: pages first,
// assets after.
type Plan struct {
	Derived  routes.Derived
	Mappings []routes.Mapping
	Pages    int
	Assets   int
	Skipped  int
}

// BuildPlan reads content and settings concurrently and derives every
// mapping of the site. Nothing is fetched.
func BuildPlan(ctx context.Context, cfg *config.Config, src content.Source) (*Plan, error) {
	var (
		items       []content.Item
		perPage     int
		activeTheme string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = src.FindAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		perPage, err = content.PostsPerPage(gctx, src)
		if stderrors.Is(err, content.ErrSettingNotFound) {
			return errors.ConfigError("postsPerPage setting is missing").WithCause(err).Build()
		}
		return err
	})
	g.Go(func() error {
		var err error
		activeTheme, err = src.Read(gctx, content.SettingActiveTheme)
		if stderrors.Is(err, content.ErrSettingNotFound) && cfg.Paths.Theme == "" {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages, err := routes.Enumerate(items, routes.EnumerateOptions{
		BaseURL:       cfg.Site.BaseURL,
		PostsPerPage:  perPage,
		IndexFilename: cfg.Site.IndexFilename,
		RSSFilename:   cfg.Site.RSSFilename,
	})
	if err != nil {
		return nil, err
	}

	sources, err := AssetSources(cfg.Paths, cfg.Assets, activeTheme)
	if err != nil {
		return nil, err
	}
	assets, stats, err := routes.CrawlAll(ctx, cfg.Site.BaseURL, sources)
	if err != nil {
		return nil, err
	}

	mappings := make([]routes.Mapping, 0, len(pages)+len(assets))
	mappings = append(mappings, pages...)
	mappings = append(mappings, assets...)
	if err := routes.Check(mappings); err != nil {
		return nil, err
	}
	return &Plan{
		Derived:  routes.Derive(items),
		Mappings: mappings,
		Pages:    len(pages),
		Assets:   len(assets),
		Skipped:  stats.Skipped,
	}, nil
}
