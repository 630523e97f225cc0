package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/equitylabs/equitysync/internal/common"
)

// Config represents the application configuration.
type Config struct {
	Environment string               `toml:"environment"`
	API         APIConfig            `toml:"api"`
	Sync        SyncConfig           `toml:"sync"`
	Storage     StorageConfig        `toml:"storage"`
	Logging     common.LoggingConfig `toml:"logging"`
}

// APIConfig contains backend API client settings.
type APIConfig struct {
	BaseURL      string `toml:"base_url"`
	Timeout      string `toml:"timeout"`
	MaxRetries   int    `toml:"max_retries"`
	RetryBackoff string `toml:"retry_backoff"`
}

// GetTimeout parses and returns the request timeout duration.
func (c *APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRetryBackoff parses and returns the base retry backoff duration.
func (c *APIConfig) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil {
		return 1 * time.Second
	}
	return d
}

// SyncConfig contains sync orchestration settings.
type SyncConfig struct {
	Staleness       string `toml:"staleness"`        // replica age that triggers a full sync
	RefreshInterval string `toml:"refresh_interval"` // periodic foreground-refresh cadence
}

// GetStaleness parses and returns the staleness threshold.
func (c *SyncConfig) GetStaleness() time.Duration {
	d, err := time.ParseDuration(c.Staleness)
	if err != nil {
		return common.SyncStaleness
	}
	return d
}

// GetRefreshInterval parses and returns the periodic refresh cadence.
func (c *SyncConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// StorageConfig contains storage layer settings.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig contains BadgerDB-specific settings.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies EQUITYSYNC_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("EQUITYSYNC_API_URL"); url != "" {
		config.API.BaseURL = url
	}
	if timeout := os.Getenv("EQUITYSYNC_API_TIMEOUT"); timeout != "" {
		config.API.Timeout = timeout
	}
	if retries := os.Getenv("EQUITYSYNC_API_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			config.API.MaxRetries = n
		}
	}
	if staleness := os.Getenv("EQUITYSYNC_SYNC_STALENESS"); staleness != "" {
		config.Sync.Staleness = staleness
	}
	if badgerPath := os.Getenv("EQUITYSYNC_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if level := os.Getenv("EQUITYSYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
