package config

import "github.com/equitylabs/equitysync/internal/common"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		API: APIConfig{
			BaseURL:      "https://equitylabs.app",
			Timeout:      "30s",
			MaxRetries:   3,
			RetryBackoff: "1s",
		},
		Sync: SyncConfig{
			Staleness:       "5m",
			RefreshInterval: "15m",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/equitysync",
			},
		},
		Logging: common.LoggingConfig{
			Level: "info",
		},
	}
}
