package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"

	"github.com/equitylabs/equitysync/internal/app"
	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/config"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	showVersion = flag.Bool("version", false, "Print version information")
	syncNow     = flag.Bool("sync-now", false, "Run a full sync immediately on startup")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

// envToken supplies the backend bearer token from the environment.
type envToken struct{}

func (envToken) Token() string {
	return os.Getenv("EQUITYSYNC_API_TOKEN")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("equitysync version %s\n", config.GetVersion())
		os.Exit(0)
	}

	// Optional .env for local development
	_ = godotenv.Load()

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, path := range []string{"equitysync.toml", "config/equitysync.toml"} {
			if _, err := os.Stat(path); err == nil {
				configFiles = append(configFiles, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)

	logger.Info().
		Str("version", config.GetFullVersion()).
		Str("api_url", cfg.API.BaseURL).
		Str("config_files", fmt.Sprintf("%v", configFiles)).
		Msg("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, logger, envToken{})
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize application")
		os.Exit(1)
	}

	if *syncNow {
		application.Sync.FullSync(ctx)
	} else {
		application.Sync.SyncIfStale(ctx)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error().Err(err).Msg("failed to create scheduler")
		os.Exit(1)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Sync.GetRefreshInterval()),
		gocron.NewTask(func() {
			application.Sync.SyncIfStale(ctx)
		}),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to schedule periodic sync")
		os.Exit(1)
	}
	scheduler.Start()

	logger.Info().
		Str("refresh_interval", cfg.Sync.RefreshInterval).
		Msg("sync scheduler started")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
	cancel()

	if err := scheduler.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown failed")
	}
	if err := application.Close(); err != nil {
		logger.Error().Err(err).Msg("application shutdown failed")
	}

	logger.Info().Msg("equitysync stopped")
}
