/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the process configuration from the environment.
// Every credential the pipeline needs is collected here once and handed to
// the components explicitly.
package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/autopatch/gitops/credentials"
	"chainguard.dev/autopatch/gitops/hosting"
	"chainguard.dev/autopatch/workspace/settings"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
)

// Publish modes.
const (
	PublishPR     = "pr"
	PublishDirect = "direct"
)

// Config is the process configuration.
type Config struct {
	Port        int    `env:"PORT,default=8080"`
	MetricsPort int    `env:"METRICS_PORT,default=2112"`
	WorkDir     string `env:"WORK_DIR,default=."`
	BotUserID   string `env:"BOT_USER_ID"`

	// Oracle
	Model                   string  `env:"MODEL,default=gemini-2.0-flash"`
	GCPProjectID            string  `env:"GCP_PROJECT_ID"`
	GCPRegion               string  `env:"GCP_REGION,default=us-central1"`
	GoogleCredentialsBase64 string  `env:"GOOGLE_CREDENTIALS_BASE64"`
	OpenAIAPIKey            string  `env:"OPENAI_API_KEY"`
	OracleRateLimit         float64 `env:"ORACLE_RATE_LIMIT,default=1"`
	OracleBurst             int     `env:"ORACLE_BURST,default=2"`

	// Git and hosting
	RemoteURL            string `env:"GIT_REMOTE_URL"`
	Trunk                string `env:"GIT_TRUNK,default=main"`
	CommitName           string `env:"GIT_COMMIT_NAME,default=AI-Auto-Bot"`
	CommitEmail          string `env:"GIT_COMMIT_EMAIL,default=ai-bot@automation.local"`
	SignCommits          bool   `env:"SIGN_COMMITS,default=false"`
	PublishMode          string `env:"PUBLISH_MODE,default=pr"`
	AutoMerge            bool   `env:"AUTO_MERGE,default=true"`
	GitHubToken          string `env:"GITHUB_TOKEN"`
	GitHubAppID          int64  `env:"GITHUB_APP_ID"`
	GitHubInstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	GitHubAppPrivateKey  string `env:"GITHUB_APP_PRIVATE_KEY"`
	GitHubAPIURL         string `env:"GITHUB_API_URL"`
	GitHubGraphQLURL     string `env:"GITHUB_GRAPHQL_URL"`

	// Pipeline
	TestCommand  string   `env:"TEST_COMMAND"`
	Extensions   []string `env:"INDEX_EXTENSIONS"`
	IgnoreDirs   []string `env:"INDEX_IGNORE_DIRS"`
	StageExclude []string `env:"STAGE_EXCLUDE"`
	DiffArchive  string   `env:"DIFF_ARCHIVE"`

	DedupTTL       time.Duration `env:"DEDUP_TTL,default=5m"`
	OracleTimeout  time.Duration `env:"ORACLE_TIMEOUT,default=2m"`
	ApplyTimeout   time.Duration `env:"APPLY_TIMEOUT,default=30s"`
	TestTimeout    time.Duration `env:"TEST_TIMEOUT,default=10m"`
	GitTimeout     time.Duration `env:"GIT_TIMEOUT,default=2m"`
	HostingTimeout time.Duration `env:"HOSTING_TIMEOUT,default=30s"`
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	return &cfg, nil
}

// ConfigurationError lists the settings that are missing or unusable.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "incomplete configuration: " + strings.Join(parts, "; ")
}

// Validate checks that git and hosting settings are complete enough to
// publish changes.
func (c *Config) Validate() error {
	e := &ConfigurationError{}

	switch c.PublishMode {
	case PublishPR, PublishDirect:
	default:
		e.Invalid = append(e.Invalid, fmt.Sprintf("PUBLISH_MODE=%q (want pr or direct)", c.PublishMode))
	}

	if c.RemoteURL == "" {
		e.Missing = append(e.Missing, "GIT_REMOTE_URL")
	} else if c.PublishMode == PublishPR {
		if _, _, err := hosting.ParseRemote(c.RemoteURL); err != nil {
			e.Invalid = append(e.Invalid, "GIT_REMOTE_URL (does not name owner/repo)")
		}
	}

	if c.PublishMode == PublishPR || strings.HasPrefix(c.RemoteURL, "http") {
		if c.GitHubToken == "" && !c.hasApp() {
			e.Missing = append(e.Missing, "GITHUB_TOKEN (or GITHUB_APP_ID, GITHUB_INSTALLATION_ID and GITHUB_APP_PRIVATE_KEY)")
		}
	}

	if c.GoogleCredentialsBase64 != "" {
		if _, err := c.GoogleCredentials(); err != nil {
			e.Invalid = append(e.Invalid, "GOOGLE_CREDENTIALS_BASE64 (not base64)")
		}
	}

	if len(e.Missing) > 0 || len(e.Invalid) > 0 {
		return e
	}
	return nil
}

func (c *Config) hasApp() bool {
	return c.GitHubAppID != 0 && c.GitHubInstallationID != 0 && c.GitHubAppPrivateKey != ""
}

// GoogleCredentials decodes GOOGLE_CREDENTIALS_BASE64, returning nil when
// it is unset.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.GoogleCredentialsBase64 == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.GoogleCredentialsBase64))
	if err != nil {
		return nil, fmt.Errorf("decoding GOOGLE_CREDENTIALS_BASE64: %w", err)
	}
	return b, nil
}

// TokenSource returns the token source for git and hosting calls, or nil
// when no credentials are configured. A GitHub App takes precedence over a
// personal access token.
func (c *Config) TokenSource() (oauth2.TokenSource, error) {
	switch {
	case c.hasApp():
		return credentials.Installation(credentials.App{
			ID:             c.GitHubAppID,
			InstallationID: c.GitHubInstallationID,
			PrivateKey:     []byte(c.GitHubAppPrivateKey),
		})
	case c.GitHubToken != "":
		return credentials.Static(c.GitHubToken)
	}
	return nil, nil
}

// Settings returns the repository settings: built-in defaults, then the
// environment, then the working tree's settings file.
func (c *Config) Settings(root string) (settings.Settings, error) {
	base := settings.Defaults()
	if c.TestCommand != "" {
		base.TestCommand = c.TestCommand
	}
	if len(c.Extensions) > 0 {
		base.Extensions = c.Extensions
	}
	if len(c.IgnoreDirs) > 0 {
		base.IgnoreDirs = c.IgnoreDirs
	}
	if len(c.StageExclude) > 0 {
		base.StageExclude = c.StageExclude
	}
	return settings.Load(root, base)
}
