// Package app wires configuration, storage, the backend client, and the
// sync services into a single application container.
package app

import (
	"context"
	"strings"

	"github.com/equitylabs/equitysync/internal/client"
	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/config"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/service"
	"github.com/equitylabs/equitysync/internal/storage"
)

// App holds all application components and dependencies.
type App struct {
	Config  *config.Config
	Logger  *common.Logger
	Storage interfaces.StorageManager

	Client    *client.APIClient
	Queue     *service.MutationQueue
	Portfolio *service.PortfolioService
	Rates     *service.RateService
	News      *service.NewsService
	Sync      *service.SyncManager
}

// New initializes the application with all dependencies.
func New(ctx context.Context, cfg *config.Config, logger *common.Logger, creds interfaces.CredentialProvider) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if env != "" && env != "prod" && env != "dev" {
		logger.Warn().
			Str("environment", cfg.Environment).
			Msg("unrecognized environment value, defaulting to prod behavior")
	}

	store, err := storage.NewStorageManager(logger, cfg)
	if err != nil {
		return nil, err
	}
	a.Storage = store

	a.Client = client.NewAPIClient(&cfg.API, creds, logger)

	kv := store.KeyValueStorage()
	a.Queue = service.NewMutationQueue(kv, logger)
	a.Rates = service.NewRateService(ctx, a.Client, kv, logger)
	a.News = service.NewNewsService(ctx, a.Client, kv, logger)
	a.Portfolio = service.NewPortfolioService(a.Client, store.PortfolioStorage(), a.Queue, a.Rates, logger)
	a.Sync = service.NewSyncManager(a.Portfolio, a.Queue, kv, cfg.Sync.GetStaleness(), logger)

	logger.Info().
		Str("api_url", cfg.API.BaseURL).
		Str("storage_path", cfg.Storage.Badger.Path).
		Msg("application initialization complete")

	return a, nil
}

// Close closes all application resources.
func (a *App) Close() error {
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
