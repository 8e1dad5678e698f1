package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/events"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/pipeline"
	"git.home.luguber.info/inful/docweave/internal/state"
)

// Runner performs one build.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// RunnerFactory builds a Runner for the current configuration.
type RunnerFactory func(cfg *config.Config) (Runner, error)

// Daemon owns the scheduler, the config watcher and the HTTP server.
type Daemon struct {
	configPath string
	logger     *slog.Logger
	store      *state.Store
	publisher  events.Publisher
	recorder   *metrics.PrometheusRecorder
	newRunner  RunnerFactory
	debounce   time.Duration

	mu  sync.RWMutex
	cfg *config.Config

	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc
	running   sync.WaitGroup
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithStore records runs in s and serves them under /runs.
func WithStore(s *state.Store) Option { return func(d *Daemon) { d.store = s } }

// WithPublisher publishes every run result.
func WithPublisher(p events.Publisher) Option { return func(d *Daemon) { d.publisher = p } }

// WithRunnerFactory replaces the default pipeline runner construction.
func WithRunnerFactory(f RunnerFactory) Option { return func(d *Daemon) { d.newRunner = f } }

// WithReloadDebounce sets how long the config file must be quiet before a
// reload.
func WithReloadDebounce(dur time.Duration) Option { return func(d *Daemon) { d.debounce = dur } }

// New returns a daemon for cfg, loaded from configPath. An empty configPath
// disables reloading.
func New(configPath string, cfg *config.Config, opts ...Option) *Daemon {
	d := &Daemon{
		configPath: configPath,
		cfg:        cfg,
		logger:     slog.Default(),
		recorder:   metrics.NewPrometheusRecorder(nil),
		debounce:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.newRunner == nil {
		d.newRunner = d.pipelineRunner
	}
	return d
}

func (d *Daemon) pipelineRunner(cfg *config.Config) (Runner, error) {
	opts := []pipeline.Option{
		pipeline.WithLogger(d.logger),
		pipeline.WithRecorder(d.recorder),
		pipeline.WithPublisher(d.publisher),
	}
	if d.store != nil {
		opts = append(opts, pipeline.WithHistory(d.store))
	}
	return pipeline.New(cfg, opts...)
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Addr returns the address the HTTP server listens on, once started.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Start schedules the build job, starts the config watcher and begins
// serving HTTP. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	cfg := d.Config()

	sched, err := NewScheduler(d.logger)
	if err != nil {
		return err
	}
	if err := sched.Schedule(cfg.Daemon.Schedule, func() { d.runOnce(ctx) }); err != nil {
		return err
	}
	sched.Start()
	d.scheduler = sched

	if d.configPath != "" && cfg.Daemon.Watch() {
		w, err := NewConfigWatcher(d.configPath, func(c *config.Config) error { return d.applyConfig(ctx, c) }, d.logger)
		if err != nil {
			return err
		}
		w.debounce = d.debounce
		if err := w.Start(ctx); err != nil {
			return err
		}
		d.watcher = w
	}

	ln, err := net.Listen("tcp", cfg.Daemon.HTTPAddr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to listen").
			WithContext("addr", cfg.Daemon.HTTPAddr).
			Build()
	}
	d.listener = ln
	d.server = &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := d.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			d.logger.Error("HTTP server error", logfields.Error(err))
		}
	}()
	d.logger.Info("Daemon started", logfields.URL(ln.Addr().String()), slog.String("schedule", cfg.Daemon.Schedule))
	return nil
}

// Stop shuts down the HTTP server, the watcher and the scheduler, then
// waits for an in-flight run.
func (d *Daemon) Stop(ctx context.Context) error {
	var errs []error
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			errs = append(errs, errors.WrapError(err, errors.CategoryDaemon, "failed to stop HTTP server").Build())
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			errs = append(errs, errors.WrapError(err, errors.CategoryDaemon, "failed to stop config watcher").Build())
		}
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	d.running.Wait()
	d.logger.Info("Daemon stopped")
	return stderrors.Join(errs...)
}

// Trigger starts a build now unless one is running.
func (d *Daemon) Trigger() error {
	if d.scheduler == nil {
		return errors.DaemonError("daemon not started").Build()
	}
	return d.scheduler.RunNow()
}

func (d *Daemon) runOnce(ctx context.Context) {
	d.running.Add(1)
	defer d.running.Done()

	runner, err := d.newRunner(d.Config())
	if err != nil {
		d.logger.Error("Failed to prepare run", logfields.Error(err))
		return
	}
	rep, err := runner.Run(ctx)
	switch {
	case err != nil:
		d.logger.Error("Scheduled run failed", logfields.Error(err))
	case rep != nil:
		d.logger.Info("Scheduled run complete", logfields.RunID(rep.RunID), slog.String("status", string(rep.Status)))
	}
}

// applyConfig swaps in cfg and reschedules when the schedule changed.
func (d *Daemon) applyConfig(ctx context.Context, cfg *config.Config) error {
	old := d.Config()
	if cfg.Daemon.Schedule != old.Daemon.Schedule {
		if err := d.scheduler.Schedule(cfg.Daemon.Schedule, func() { d.runOnce(ctx) }); err != nil {
			return err
		}
	}
	if cfg.Daemon.HTTPAddr != old.Daemon.HTTPAddr {
		d.logger.Warn("HTTP address changes apply after restart", slog.String("addr", cfg.Daemon.HTTPAddr))
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}
