package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// ConfigWatcher reloads the configuration file when it changes.
type ConfigWatcher struct {
	configPath string
	apply      func(*config.Config) error
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
	debounce   time.Duration

	reloadChan chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewConfigWatcher watches configPath and passes every successfully loaded
// configuration to apply.
func NewConfigWatcher(configPath string, apply func(*config.Config) error, logger *slog.Logger) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve config path").
			WithContext("path", configPath).
			Build()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create file watcher").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		configPath: absPath,
		apply:      apply,
		watcher:    watcher,
		logger:     logger,
		debounce:   2 * time.Second,
		reloadChan: make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file, which keeps working when an
// editor replaces the file on save.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to watch config directory").
			WithContext("path", dir).
			Build()
	}
	cw.logger.Info("Watching configuration", logfields.Path(cw.configPath))

	cw.wg.Add(2)
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop ends both loops and closes the watcher.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		err = cw.watcher.Close()
		cw.wg.Wait()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	defer cw.wg.Done()
	name := filepath.Base(cw.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				cw.logger.Debug("Config file changed", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				cw.trigger()
			case ev.Has(fsnotify.Remove):
				cw.logger.Warn("Config file removed", logfields.Path(ev.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", logfields.Error(err))
		}
	}
}

// reloadLoop reloads once the file has been quiet for the debounce period.
func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	defer cw.wg.Done()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-cw.stopChan:
			stopTimer(timer)
			return
		case <-cw.reloadChan:
			stopTimer(timer)
			timer = time.NewTimer(cw.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			cw.reload()
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (cw *ConfigWatcher) trigger() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) reload() {
	cw.logger.Info("Reloading configuration", logfields.Path(cw.configPath))
	cfg, err := config.Load(cw.configPath)
	if err != nil {
		cw.logger.Error("Failed to load configuration, keeping the current one", logfields.Error(err))
		return
	}
	if err := cw.apply(cfg); err != nil {
		cw.logger.Error("Failed to apply configuration", logfields.Error(err))
		return
	}
	cw.logger.Info("Configuration reloaded")
}
