package commands

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/eventstore"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string `arg:"" optional:"" name:"run-id" help:"Show the event log of this run"`
	Limit int    `short:"n" help:"Number of runs to list" default:"20"`
	JSON  bool   `name:"json" help:"Print as JSON"`
}

func (h *HistoryCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Database == "" {
		return errors.ConfigError("history.database is not configured").Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close run history", logfields.Error(err))
		}
	}()

	ctx := context.Background()
	if h.RunID != "" {
		return h.events(ctx, global, store)
	}
	return h.runs(ctx, global, store)
}

func (h *HistoryCmd) runs(ctx context.Context, global *Global, store eventstore.Store) error {
	runs, err := store.ListRuns(ctx, h.Limit)
	if err != nil {
		return err
	}
	if h.JSON {
		if runs == nil {
			runs = []eventstore.RunSummary{}
		}
		return writeJSON(global.Out, runs)
	}
	tw := tabwriter.NewWriter(global.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tDURATION\tPAGES\tASSETS\tERROR")
	for _, r := range runs {
		errCol := "-"
		if r.ErrorStage != "" {
			errCol = fmt.Sprintf("%s (code %d): %s", r.ErrorStage, r.ErrorCode, r.Message)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.Status, r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond), r.Pages, r.Assets, errCol)
	}
	return tw.Flush()
}

func (h *HistoryCmd) events(ctx context.Context, global *Global, store eventstore.Store) error {
	events, err := store.GetByRunID(ctx, h.RunID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return errors.NewError(errors.CategoryNotFound, "no events recorded for run").
			WithContext("run_id", h.RunID).
			Build()
	}
	if h.JSON {
		return writeJSON(global.Out, events)
	}
	for _, e := range events {
		_, _ = fmt.Fprintln(global.Out, e.String())
	}
	return nil
}
