package config

import (
	"net/url"
	"strconv"
	"time"
)

// DefaultApplier fills unset values for one configuration section.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Section() string
}

var defaultAppliers = []DefaultApplier{
	sourceDefaults{},
	gitDefaults{},
	outputDefaults{},
	stateDefaults{},
	eventsDefaults{},
	daemonDefaults{},
	retryDefaults{},
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

type sourceDefaults struct{}

func (sourceDefaults) Section() string { return "source" }

func (sourceDefaults) ApplyDefaults(cfg *Config) error {
	s := &cfg.Source
	if s.Type == "" {
		s.Type = SourceBitbucket
	}
	if s.Port == 0 && s.BaseURL != "" {
		s.Port = portFromURL(s.BaseURL)
	}
	if s.PageLimit <= 0 {
		s.PageLimit = 100
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	return nil
}

// portFromURL returns the explicit port of raw or the scheme default.
func portFromURL(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	if p := u.Port(); p != "" {
		n, _ := strconv.Atoi(p)
		return n
	}
	if u.Scheme == "http" {
		return 80
	}
	return 443
}

type gitDefaults struct{}

func (gitDefaults) Section() string { return "git" }

func (gitDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Git.Workspace == "" {
		cfg.Git.Workspace = "./repos"
	}
	if cfg.Git.Branch == "" {
		cfg.Git.Branch = "master"
	}
	if cfg.Git.Depth == 0 {
		cfg.Git.Depth = 1
	}
	if cfg.Git.Depth < 0 {
		cfg.Git.Depth = 0
	}
	return nil
}

type outputDefaults struct{}

func (outputDefaults) Section() string { return "output" }

func (outputDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "./book"
	}
	if cfg.Output.Title == "" {
		cfg.Output.Title = "Documentation"
	}
	return nil
}

type stateDefaults struct{}

func (stateDefaults) Section() string { return "state" }

func (stateDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.State.Path == "" {
		cfg.State.Path = "./docweave.db"
	}
	return nil
}

type eventsDefaults struct{}

func (eventsDefaults) Section() string { return "events" }

func (eventsDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "docweave.runs"
	}
	return nil
}

type daemonDefaults struct{}

func (daemonDefaults) Section() string { return "daemon" }

func (daemonDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Daemon.Schedule == "" {
		cfg.Daemon.Schedule = "0 */4 * * *"
	}
	if cfg.Daemon.HTTPAddr == "" {
		cfg.Daemon.HTTPAddr = ":8080"
	}
	return nil
}

type retryDefaults struct{}

func (retryDefaults) Section() string { return "retry" }

// An absent section gets two linear retries; an explicit max_retries of 0
// alongside a mode disables retrying.
func (retryDefaults) ApplyDefaults(cfg *Config) error {
	r := &cfg.Retry
	if *r == (RetryConfig{}) {
		r.MaxRetries = 2
	}
	if r.Mode == "" {
		r.Mode = "linear"
	}
	if r.Initial <= 0 {
		r.Initial = time.Second
	}
	if r.Max <= 0 {
		r.Max = 30 * time.Second
	}
	return nil
}
