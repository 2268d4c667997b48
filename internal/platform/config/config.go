// Package config provides application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Port                 int
	WebhookSecret        string
	GitHubAppID          int64
	GitHubInstallationID int64
	GitHubPrivateKey     string // PEM file contents
	LogLevel             string

	// Image registry and release policy
	RegistryURL string // e.g. "registry.example.com/retail"
	TrunkBranch string // branch whose pushes persist chart updates

	// Deploy repository holding the chart values files
	DeployRepo         string        // Git repo URL (e.g. "https://github.com/org/deploy")
	DeployLocalPath    string        // local path for the clone
	DeploySyncInterval time.Duration // how often to pull the deploy repo

	// DryRun computes and reports updates but never writes or pushes
	DryRun bool

	// OpenTelemetry (optional)
	OTelEnabled bool // OTEL_ENABLED feature flag
}

// Load reads configuration from environment variables, validates required
// fields, and applies defaults for Port (8080), LogLevel ("info"), and
// TrunkBranch ("main").
func Load() (Config, error) {
	cfg := Config{
		Port:        8080,
		LogLevel:    "info",
		TrunkBranch: "main",
	}

	if err := loadCoreConfig(&cfg); err != nil {
		return Config{}, err
	}

	if err := loadDeployConfig(&cfg); err != nil {
		return Config{}, err
	}

	cfg.DryRun = os.Getenv("DRY_RUN") == "true"
	cfg.OTelEnabled = os.Getenv("OTEL_ENABLED") == "true"

	return cfg, nil
}

func loadCoreConfig(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = p
	}

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		return errors.New("WEBHOOK_SECRET is required")
	}

	var err error
	cfg.GitHubAppID, err = parseRequiredInt64("GITHUB_APP_ID")
	if err != nil {
		return err
	}

	cfg.GitHubInstallationID, err = parseRequiredInt64("GITHUB_INSTALLATION_ID")
	if err != nil {
		return err
	}

	cfg.GitHubPrivateKey = os.Getenv("GITHUB_PRIVATE_KEY")
	if cfg.GitHubPrivateKey == "" {
		return errors.New("GITHUB_PRIVATE_KEY is required")
	}

	cfg.RegistryURL = os.Getenv("REGISTRY_URL")
	if cfg.RegistryURL == "" {
		return errors.New("REGISTRY_URL is required")
	}

	if v := os.Getenv("TRUNK_BRANCH"); v != "" {
		cfg.TrunkBranch = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return nil
}

func loadDeployConfig(cfg *Config) error {
	cfg.DeployRepo = os.Getenv("DEPLOY_REPO")
	if cfg.DeployRepo == "" {
		return errors.New("DEPLOY_REPO is required")
	}

	cfg.DeployLocalPath = getEnvOrDefault("DEPLOY_LOCAL_PATH", "/tmp/release-pilot-deploy")

	dur, err := parseDurationOrDefault("DEPLOY_SYNC_INTERVAL", 1*time.Hour)
	if err != nil {
		return err
	}
	cfg.DeploySyncInterval = dur

	return nil
}

func parseRequiredInt64(envKey string) (int64, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return 0, fmt.Errorf("%s is required", envKey)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return id, nil
}

func getEnvOrDefault(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func parseDurationOrDefault(envKey string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return defaultValue, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return dur, nil
}
