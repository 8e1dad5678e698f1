package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables recognized as overrides.
const (
	EnvGitDir      = "GIT_DIR"
	EnvOutputDir   = "OUTPUT_DIR"
	EnvProjectID   = "PROJECT_ID"
	EnvBaseGitURL  = "BASE_GIT_URL"
	EnvBaseGitPort = "BASE_GIT_PORT"
	EnvGitUser     = "GIT_USER"
	EnvGitPassword = "GIT_PASSWORD"
)

// envFiles are loaded in order when present. godotenv.Load never overrides
// variables already set, so the process environment wins, then .env.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Git.Workspace, EnvGitDir)
	setString(&cfg.Output.Directory, EnvOutputDir)
	setString(&cfg.Source.Project, EnvProjectID)
	setString(&cfg.Source.BaseURL, EnvBaseGitURL)
	setString(&cfg.Source.Username, EnvGitUser)
	setString(&cfg.Source.Password, EnvGitPassword)
	if v := strings.TrimSpace(os.Getenv(EnvBaseGitPort)); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Source.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
