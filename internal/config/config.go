// Package config loads docweave configuration from YAML, .env files and the
// process environment.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// SourceType selects where repositories come from.
type SourceType string

const (
	SourceBitbucket SourceType = "bitbucket"
	SourceLocal     SourceType = "local"
)

// Config is the complete docweave configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Git      GitConfig      `yaml:"git"`
	Output   OutputConfig   `yaml:"output"`
	Markdown MarkdownConfig `yaml:"markdown"`
	Closure  ClosureConfig  `yaml:"closure"`
	State    StateConfig    `yaml:"state"`
	Events   EventsConfig   `yaml:"events"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Retry    RetryConfig    `yaml:"retry"`
}

// SourceConfig describes the Bitbucket Server project to enumerate.
type SourceConfig struct {
	Type         SourceType    `yaml:"type"`
	BaseURL      string        `yaml:"base_url"`
	Port         int           `yaml:"port"`
	Project      string        `yaml:"project"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Repositories []string      `yaml:"repositories,omitempty"`
	Exclude      []string      `yaml:"exclude,omitempty"`
	PageLimit    int           `yaml:"page_limit"`
	Timeout      time.Duration `yaml:"timeout"`
}

// GitConfig controls repository checkouts.
type GitConfig struct {
	Workspace string `yaml:"workspace"`
	Branch    string `yaml:"branch"`
	Depth     int    `yaml:"depth"`
}

// OutputConfig controls the assembled book.
type OutputConfig struct {
	Directory       string `yaml:"directory"`
	Clean           bool   `yaml:"clean"`
	Title           string `yaml:"title"`
	ReadmeTemplate  string `yaml:"readme_template,omitempty"`
	SummaryTemplate string `yaml:"summary_template,omitempty"`
}

// MarkdownConfig controls parsing.
type MarkdownConfig struct {
	HTMLLinks bool `yaml:"html_links"`
}

// ClosureConfig controls link following.
type ClosureConfig struct {
	// FragmentFallback is nil when unset so the default can apply.
	FragmentFallback *bool `yaml:"fragment_fallback,omitempty"`
	Strict           bool  `yaml:"strict"`
}

// FollowFragments reports the effective fragment fallback setting.
func (c ClosureConfig) FollowFragments() bool {
	return c.FragmentFallback == nil || *c.FragmentFallback
}

// StateConfig controls the run history store.
type StateConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig controls NATS publication of run results.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DaemonConfig controls the long-running mode.
type DaemonConfig struct {
	Schedule    string `yaml:"schedule"`
	HTTPAddr    string `yaml:"http_addr"`
	WatchConfig *bool  `yaml:"watch_config,omitempty"`
}

// Watch reports whether the config file should be watched for changes.
func (d DaemonConfig) Watch() bool {
	return d.WatchConfig == nil || *d.WatchConfig
}

// RetryConfig controls retries of forge listings and git operations.
type RetryConfig struct {
	Mode       string        `yaml:"mode"` // fixed|linear|exponential
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	MaxRetries int           `yaml:"max_retries"`
}

// Load reads the configuration at path. An empty path skips the file and
// builds the configuration from the environment and defaults alone.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	if path != "" {
		// #nosec G304 -- path is supplied by the operator.
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.ConfigError("configuration file not found").
					WithContext("path", path).
					WithCause(err).
					UserAction().
					Build()
			}
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read configuration file").
				WithContext("path", path).
				Build()
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse configuration file").
				WithContext("path", path).
				Build()
		}
	}

	applyEnvOverrides(cfg)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			UserAction().
			Build()
	}

	example := &Config{
		Source: SourceConfig{
			Type:     SourceBitbucket,
			BaseURL:  "https://git.example.com",
			Port:     443,
			Project:  "DOCS",
			Username: "${GIT_USER}",
			Password: "${GIT_PASSWORD}",
		},
	}
	if err := applyDefaults(example); err != nil {
		return err
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example configuration").Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write configuration file").
			WithContext("path", path).
			Build()
	}
	return nil
}
