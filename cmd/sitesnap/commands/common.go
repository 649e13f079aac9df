// Package commands implements the sitesnap command line.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitesnap/internal/config"
)

// Global is shared by every subcommand.
type Global struct {
	Out io.Writer
}

// NewGlobal creates the shared command state writing results to out.
func NewGlobal(out io.Writer) *Global {
	return &Global{Out: out}
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"config.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text or json); overrides monitoring.logging.format"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" help:"Generate one snapshot of the site and publish it"`
	Routes   RoutesCmd   `cmd:"" help:"List every URL and target path without fetching anything"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	History  HistoryCmd  `cmd:"" help:"Show recorded snapshot runs"`
	Daemon   DaemonCmd   `cmd:"" help:"Regenerate the snapshot on a schedule, on change, or on request"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(c.logger(config.LoggingConfig{}))
	return nil
}

// loadConfig reads the configuration file and reapplies logging with the
// configured level and format. Command line flags win over the file.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(c.logger(cfg.Monitoring.Logging))
	return cfg, nil
}

func (c *CLI) logger(lc config.LoggingConfig) *slog.Logger {
	return newLogger(os.Stderr, c.level(lc), c.format(lc))
}

func (c *CLI) level(lc config.LoggingConfig) slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return config.NormalizeLogLevel(string(lc.Level)).SlogLevel()
}

func (c *CLI) format(lc config.LoggingConfig) config.LogFormat {
	if c.LogFormat != "" {
		return config.NormalizeLogFormat(c.LogFormat)
	}
	return config.NormalizeLogFormat(string(lc.Format))
}

func newLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
