package commands

import (
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/content"
	"git.home.luguber.info/inful/sitesnap/internal/eventstore"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
	"git.home.luguber.info/inful/sitesnap/internal/metrics"
	"git.home.luguber.info/inful/sitesnap/internal/notify"
	"git.home.luguber.info/inful/sitesnap/internal/snapshot"
)

// services holds everything a snapshot run depends on that must be closed
// when the command exits.
type services struct {
	source   content.Source
	history  eventstore.Store
	notifier notify.Notifier
}

func openServices(cfg *config.Config) (*services, error) {
	s := &services{notifier: notify.Nop{}}
	source, err := content.Open(cfg.Content)
	if err != nil {
		return nil, err
	}
	s.source = source

	if cfg.History.Database != "" {
		store, err := eventstore.NewSQLiteStore(cfg.History.Database)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.history = store
	}

	n, err := notify.Connect(cfg.Notify)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.notifier = n
	return s, nil
}

// orchestrator builds the snapshot orchestrator, registering metrics on reg
// when it is not nil.
func (s *services) orchestrator(cfg *config.Config, reg *prom.Registry, opts ...snapshot.Option) *snapshot.Orchestrator {
	base := []snapshot.Option{
		snapshot.WithNotifier(s.notifier),
		snapshot.WithLogger(slog.Default()),
	}
	if s.history != nil {
		base = append(base, snapshot.WithHistory(s.history))
	}
	if reg != nil {
		base = append(base, snapshot.WithRecorder(metrics.NewPrometheusRecorder(reg)))
	}
	return snapshot.New(cfg, s.source, append(base, opts...)...)
}

func (s *services) Close() {
	if s.notifier != nil {
		if err := s.notifier.Close(); err != nil {
			slog.Warn("Failed to close notifier", logfields.Error(err))
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.Warn("Failed to close run history", logfields.Error(err))
		}
	}
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			slog.Warn("Failed to close content store", logfields.Error(err))
		}
	}
}
