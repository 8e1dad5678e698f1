package daemon

import (
	"log/slog"
	"sync"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// Scheduler wraps a gocron scheduler holding the single build job.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger

	mu   sync.Mutex
	job  gocron.Job
	spec string
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create scheduler").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Schedule installs task under the cron expression spec, replacing any
// previous job. Runs never overlap: a tick that fires while the task is
// still running is skipped.
func (s *Scheduler) Schedule(spec string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.scheduler.NewJob(
		gocron.CronJob(spec, false),
		gocron.NewTask(task),
		gocron.WithName("build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid daemon schedule").
			WithContext("schedule", spec).
			UserAction().
			Build()
	}
	if s.job != nil {
		if err := s.scheduler.RemoveJob(s.job.ID()); err != nil {
			s.logger.Warn("Failed to remove previous build job", logfields.Error(err))
		}
	}
	s.job, s.spec = job, spec
	s.logger.Info("Build scheduled", slog.String("schedule", spec))
	return nil
}

// Spec returns the active cron expression.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// RunNow starts the build job immediately, respecting singleton mode.
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return errors.DaemonError("no build job scheduled").Build()
	}
	if err := job.RunNow(); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to trigger build").Build()
	}
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running job to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	if err := s.scheduler.Shutdown(); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to stop scheduler").Build()
	}
	return nil
}
