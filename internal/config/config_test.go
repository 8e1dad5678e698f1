package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "docweave.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_FileWithExpansionAndDefaults(t *testing.T) {
	t.Setenv("DOCWEAVE_TEST_PASSWORD", "s3cret")
	p := writeConfig(t, `
source:
  base_url: https://git.example.com:8443
  project: DOCS
  username: reader
  password: ${DOCWEAVE_TEST_PASSWORD}
  exclude: [scratch]
closure:
  fragment_fallback: false
  strict: true
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, SourceBitbucket, cfg.Source.Type)
	require.Equal(t, 8443, cfg.Source.Port)
	require.Equal(t, "s3cret", cfg.Source.Password)
	require.Equal(t, []string{"scratch"}, cfg.Source.Exclude)
	require.Equal(t, 100, cfg.Source.PageLimit)
	require.Equal(t, 30*time.Second, cfg.Source.Timeout)
	require.Equal(t, "master", cfg.Git.Branch)
	require.Equal(t, 1, cfg.Git.Depth)
	require.Equal(t, "./book", cfg.Output.Directory)
	require.Equal(t, "docweave.runs", cfg.Events.Subject)
	require.Equal(t, "0 */4 * * *", cfg.Daemon.Schedule)
	require.False(t, cfg.Closure.FollowFragments())
	require.True(t, cfg.Closure.Strict)
	require.True(t, cfg.Daemon.Watch())
	require.Equal(t, 2, cfg.Retry.MaxRetries)
	require.Equal(t, "linear", cfg.Retry.Mode)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvBaseGitURL, "http://bitbucket.internal")
	t.Setenv(EnvBaseGitPort, "7990")
	t.Setenv(EnvProjectID, "ENG")
	t.Setenv(EnvGitDir, "/tmp/repos")
	t.Setenv(EnvOutputDir, "/tmp/book")
	t.Setenv(EnvGitUser, "bot")
	t.Setenv(EnvGitPassword, "pw")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://bitbucket.internal", cfg.Source.BaseURL)
	require.Equal(t, 7990, cfg.Source.Port)
	require.Equal(t, "ENG", cfg.Source.Project)
	require.Equal(t, "/tmp/repos", cfg.Git.Workspace)
	require.Equal(t, "/tmp/book", cfg.Output.Directory)
	require.Equal(t, "bot", cfg.Source.Username)
	require.Equal(t, "pw", cfg.Source.Password)
	require.True(t, cfg.Closure.FollowFragments())
}

func TestLoad_DotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("DOCWEAVE_TEST_PROJECT=FROMFILE\nDOCWEAVE_TEST_KEEP=file\n"), 0o600))
	t.Setenv("DOCWEAVE_TEST_KEEP", "process")
	// Registered so t.Setenv restores the unset state after the test.
	t.Setenv("DOCWEAVE_TEST_PROJECT", "")
	require.NoError(t, os.Unsetenv("DOCWEAVE_TEST_PROJECT"))

	p := writeConfig(t, "source:\n  type: local\n  project: ${DOCWEAVE_TEST_PROJECT}\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "FROMFILE", cfg.Source.Project)
	require.Equal(t, "process", os.Getenv("DOCWEAVE_TEST_KEEP"))
}

func TestLoad_LocalSourceNeedsNoServer(t *testing.T) {
	p := writeConfig(t, "source:\n  type: local\ngit:\n  workspace: ./checkouts\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, SourceLocal, cfg.Source.Type)
	require.Equal(t, "./checkouts", cfg.Git.Workspace)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing base url", "source:\n  project: DOCS\n", "source.base_url"},
		{"bad scheme", "source:\n  base_url: ftp://x\n  project: DOCS\n", "source.base_url"},
		{"missing project", "source:\n  base_url: https://git.example.com\n", "source.project"},
		{"unknown type", "source:\n  type: gitea\n", "source.type"},
		{"bad retry mode", "source:\n  type: local\nretry:\n  mode: random\n", "retry.mode"},
		{"same dirs", "source:\n  type: local\ngit:\n  workspace: out\noutput:\n  directory: out\n", "output.directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			ce, ok := errors.AsClassified(err)
			require.True(t, ok)
			require.Equal(t, errors.CategoryConfig, ce.Category())
			field, _ := ce.Context().GetString("field")
			require.Equal(t, tt.field, field)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInit_WritesLoadableExample(t *testing.T) {
	t.Setenv(EnvGitUser, "bot")
	t.Setenv(EnvGitPassword, "pw")
	p := filepath.Join(t.TempDir(), "docweave.yaml")

	require.NoError(t, Init(p, false))
	require.Error(t, Init(p, false))
	require.NoError(t, Init(p, true))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "DOCS", cfg.Source.Project)
	require.Equal(t, "bot", cfg.Source.Username)
}
