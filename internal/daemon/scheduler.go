package daemon

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Scheduler wraps a gocron scheduler that requests periodic runs.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobID     string
}

// NewScheduler creates the periodic trigger described by cfg. It returns nil
// when neither an interval nor a cron expression is configured.
func NewScheduler(cfg config.DaemonConfig, trigger func(reason string) bool) (*Scheduler, error) {
	var def gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		def = gocron.CronJob(cfg.Cron, false)
	case cfg.IntervalDuration() > 0:
		def = gocron.DurationJob(cfg.IntervalDuration())
	default:
		return nil, nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.DaemonError("failed to create scheduler").WithCause(err).Build()
	}
	job, err := s.NewJob(def,
		gocron.NewTask(func() { trigger(ReasonSchedule) }),
		gocron.WithName("snapshot-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, errors.ConfigError("invalid daemon schedule").
			WithCause(err).
			WithContext("cron", cfg.Cron).
			WithContext("interval", cfg.Interval).
			Build()
	}
	return &Scheduler{scheduler: s, jobID: job.ID().String()}, nil
}

// JobID identifies the scheduled job.
func (s *Scheduler) JobID() string { return s.jobID }

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", slog.String("job_id", s.jobID))
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running task to return.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
