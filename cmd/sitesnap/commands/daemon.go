package commands

import (
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/sitesnap/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	NoInitialRun bool   `name:"no-initial-run" help:"Wait for the first trigger instead of generating at startup"`
	AdminAddr    string `name:"admin-addr" help:"Override daemon.admin_addr"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if d.AdminAddr != "" {
		cfg.Daemon.AdminAddr = d.AdminAddr
	}

	svc, err := openServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []daemon.Option{
		daemon.WithWatchPaths(daemon.WatchPaths(cfg)...),
		daemon.WithRunOnStart(!d.NoInitialRun),
	}
	if cfg.Daemon.AdminAddr != "" {
		opts = append(opts, daemon.WithAdmin(daemon.NewAdminServer(cfg.Daemon.AdminAddr, reg)))
	}
	dm, err := daemon.New(cfg.Daemon, svc.orchestrator(cfg, reg), opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	slog.Info("Starting daemon mode",
		slog.String("config", root.Config),
		slog.String("interval", cfg.Daemon.Interval),
		slog.String("cron", cfg.Daemon.Cron),
		slog.Bool("watch", cfg.Daemon.Watch),
		slog.String("admin_addr", cfg.Daemon.AdminAddr))
	if err := dm.Run(ctx); err != nil {
		return err
	}
	slog.Info("Daemon stopped successfully")
	return nil
}
