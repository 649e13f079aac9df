package commands

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"git.home.luguber.info/inful/sitesnap/internal/content"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
	"git.home.luguber.info/inful/sitesnap/internal/snapshot"
)

// RoutesCmd implements the 'routes' command.
type RoutesCmd struct {
	JSON       bool `name:"json" help:"Print mappings as JSON"`
	PagesOnly  bool `name:"pages-only" help:"Omit crawled asset mappings" xor:"only"`
	AssetsOnly bool `name:"assets-only" help:"Omit enumerated page mappings" xor:"only"`
}

func (r *RoutesCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	src, err := content.Open(cfg.Content)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("Failed to close content store", logfields.Error(err))
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	plan, err := snapshot.BuildPlan(ctx, cfg, src)
	if err != nil {
		return err
	}
	if plan.Skipped > 0 {
		slog.Warn("Ignored symbolic links or special files while crawling assets", logfields.Count(plan.Skipped))
	}

	mappings := r.filter(plan)
	if r.JSON {
		return writeJSON(global.Out, mappings)
	}
	tw := tabwriter.NewWriter(global.Out, 0, 4, 2, ' ', 0)
	for _, m := range mappings {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", m.URL, m.Target)
	}
	return tw.Flush()
}

func (r *RoutesCmd) filter(plan *snapshot.Plan) []routes.Mapping {
	switch {
	case r.PagesOnly:
		return plan.Mappings[:plan.Pages]
	case r.AssetsOnly:
		return plan.Mappings[plan.Pages:]
	default:
		return plan.Mappings
	}
}
