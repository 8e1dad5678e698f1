package config

import (
	"net/url"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Validate checks a configuration after defaults were applied.
func Validate(cfg *Config) error {
	v := &validator{cfg: cfg}
	return v.validate()
}

type validator struct {
	cfg *Config
}

func (v *validator) validate() error {
	if err := v.validateSource(); err != nil {
		return err
	}
	if err := v.validatePaths(); err != nil {
		return err
	}
	if err := v.validateEvents(); err != nil {
		return err
	}
	return v.validateRetry()
}

func (v *validator) validateSource() error {
	s := v.cfg.Source
	switch s.Type {
	case SourceLocal:
		return nil
	case SourceBitbucket:
	default:
		return invalid("source.type", "unsupported source type: "+string(s.Type))
	}

	if s.BaseURL == "" {
		return invalid("source.base_url", "source.base_url is required (or BASE_GIT_URL)")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("source.base_url", "source.base_url must be an http(s) URL")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return invalid("source.port", "source.port must be between 1 and 65535")
	}
	if strings.TrimSpace(s.Project) == "" {
		return invalid("source.project", "source.project is required (or PROJECT_ID)")
	}
	return nil
}

func (v *validator) validatePaths() error {
	if v.cfg.Git.Workspace == v.cfg.Output.Directory {
		return invalid("output.directory", "output.directory must differ from git.workspace")
	}
	return nil
}

func (v *validator) validateEvents() error {
	if v.cfg.Events.Enabled && strings.TrimSpace(v.cfg.Events.Subject) == "" {
		return invalid("events.subject", "events.subject is required when events are enabled")
	}
	return nil
}

func (v *validator) validateRetry() error {
	switch v.cfg.Retry.Mode {
	case "fixed", "linear", "exponential":
	default:
		return invalid("retry.mode", "retry.mode must be fixed, linear or exponential")
	}
	if v.cfg.Retry.MaxRetries < 0 {
		return invalid("retry.max_retries", "retry.max_retries cannot be negative")
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.ConfigError(msg).
		WithContext("field", field).
		UserAction().
		Build()
}
