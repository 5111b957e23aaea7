// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr          string
	DBPath              string
	LogLevel            string
	GitHubAppID         int64
	GitHubPrivateKey    []byte
	GitHubAPIURL        string
	WebhookSecret       []byte
	BackfillDiscussions bool
	BackfillConcurrency int
}

// HasGitHubApp reports whether App credentials are configured. Without them
// the webhook front door still ingests payloads but installation backfills
// cannot authenticate.
func (c *Config) HasGitHubApp() bool {
	return c.GitHubAppID != 0 && len(c.GitHubPrivateKey) > 0
}

// RequireWebhookSecret fails when GITMIRROR_WEBHOOK_SECRET is unset. Only the
// webhook server needs it; the operator CLI does not.
func (c *Config) RequireWebhookSecret() error {
	if len(c.WebhookSecret) == 0 {
		return errors.New("GITMIRROR_WEBHOOK_SECRET is required")
	}
	return nil
}

// Load reads configuration from the environment after applying an optional
// .env file in the working directory. Variables already set in the process
// environment take precedence over the file.
//
// Optional variables with defaults:
// GITMIRROR_LISTEN_ADDR (127.0.0.1:8080), GITMIRROR_DB_PATH (gitmirror.db),
// GITMIRROR_LOG_LEVEL (info), GITMIRROR_BACKFILL_DISCUSSIONS (false),
// GITMIRROR_BACKFILL_CONCURRENCY (8). GITMIRROR_GITHUB_APP_ID and
// GITMIRROR_GITHUB_PRIVATE_KEY (base64 PEM) must be set together. The server
// additionally calls RequireWebhookSecret.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit .env path. A missing file is not an error.
func LoadFile(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		ListenAddr:          "127.0.0.1:8080",
		DBPath:              "gitmirror.db",
		LogLevel:            "info",
		BackfillConcurrency: 8,
	}

	if v, ok := os.LookupEnv("GITMIRROR_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("GITMIRROR_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("GITMIRROR_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("GITMIRROR_GITHUB_API_URL"); ok {
		cfg.GitHubAPIURL = v
	}

	if v := os.Getenv("GITMIRROR_WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = []byte(v)
	}

	if v, ok := os.LookupEnv("GITMIRROR_GITHUB_APP_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("GITMIRROR_GITHUB_APP_ID has invalid id %q: must be a positive integer", v)
		}
		cfg.GitHubAppID = id
	}

	if v, ok := os.LookupEnv("GITMIRROR_GITHUB_PRIVATE_KEY"); ok && v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("GITMIRROR_GITHUB_PRIVATE_KEY has invalid base64: %w", err)
		}
		cfg.GitHubPrivateKey = key
	}

	if (cfg.GitHubAppID == 0) != (len(cfg.GitHubPrivateKey) == 0) {
		return nil, errors.New("GITMIRROR_GITHUB_APP_ID and GITMIRROR_GITHUB_PRIVATE_KEY must be set together")
	}

	if v, ok := os.LookupEnv("GITMIRROR_BACKFILL_DISCUSSIONS"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("GITMIRROR_BACKFILL_DISCUSSIONS has invalid bool %q: %w", v, err)
		}
		cfg.BackfillDiscussions = enabled
	}

	if v, ok := os.LookupEnv("GITMIRROR_BACKFILL_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("GITMIRROR_BACKFILL_CONCURRENCY has invalid value %q: must be at least 1", v)
		}
		cfg.BackfillConcurrency = n
	}

	return cfg, nil
}
