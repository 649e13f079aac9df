package commands

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/snapshot"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	JSON        bool `name:"json" help:"Print the run outcome as JSON on stdout"`
	Events      bool `name:"events" help:"Print the run's event log on stderr"`
	Concurrency int  `name:"concurrency" help:"Override generation.concurrency for this run"`
}

func (g *GenerateCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return g.report(global.Out, err)
	}
	if g.Concurrency != 0 {
		cfg.Generation.Concurrency = g.Concurrency
	}

	svc, err := openServices(cfg)
	if err != nil {
		return g.report(global.Out, err)
	}
	defer svc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.orchestrator(cfg, nil).Run(ctx)
	if err != nil {
		var runErr *snapshot.RunError
		if g.Events && stderrors.As(err, &runErr) {
			printEvents(os.Stderr, runErr.Log)
		}
		return g.report(global.Out, err)
	}
	if g.Events {
		printEvents(os.Stderr, res.Log)
	}

	if g.JSON {
		return writeJSON(global.Out, res.Output())
	}
	_, _ = fmt.Fprintf(global.Out, "Snapshot %s: %d posts, %d tags, %d pages, %d assets (%d bytes) in %s\n",
		res.RunID, len(res.Posts), len(res.Tags), res.Pages, res.Assets, res.Bytes, res.Duration.Round(time.Millisecond))
	if res.Links != nil && len(res.Links.Findings) > 0 {
		_, _ = fmt.Fprintf(global.Out, "%d links point outside the snapshot\n", len(res.Links.Findings))
	}
	return nil
}

// report prints the structured failure when --json is set and returns err
// unchanged so the exit code follows it.
func (g *GenerateCmd) report(out io.Writer, err error) error {
	if g.JSON {
		if werr := writeJSON(out, failureOf(err)); werr != nil {
			return stderrors.Join(err, werr)
		}
	}
	return err
}

func failureOf(err error) snapshot.Failure {
	var runErr *snapshot.RunError
	if stderrors.As(err, &runErr) {
		return runErr.Failure()
	}
	return snapshot.Failure{Code: errors.ExitCode(err), Message: err.Error()}
}

func printEvents(w io.Writer, log *eventlog.Log) {
	if log == nil {
		return
	}
	for _, line := range log.Lines() {
		_, _ = fmt.Fprintln(w, line)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.InternalError("failed to encode output").WithCause(err).Build()
	}
	return nil
}
