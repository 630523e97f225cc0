// Package interfaces defines storage and client contracts for EquitySync
package interfaces

import (
	"context"

	"github.com/equitylabs/equitysync/internal/models"
)

// StorageManager coordinates all local storage backends.
// Implementations can be swapped (BadgerDB now, another embedded store later).
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	PortfolioStorage() PortfolioStorage
	Close() error
}

// KeyValueStorage provides durable key-value operations. Values are
// serialized blobs under stable keys (e.g. "mutation-queue", "last-sync",
// "news-cache:AAPL", "rate-table").
type KeyValueStorage interface {
	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value
	Set(ctx context.Context, key, value string) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// GetAll returns all key-value pairs
	GetAll(ctx context.Context) (map[string]string, error)

	// GetPrefix returns all key-value pairs whose key starts with prefix
	GetPrefix(ctx context.Context, prefix string) (map[string]string, error)
}

// PortfolioStorage is the local replica of the remote holdings graph.
// Keys are uppercased symbols.
type PortfolioStorage interface {
	// GetAllHoldings retrieves every holding in the replica
	GetAllHoldings(ctx context.Context) ([]models.Holding, error)

	// GetHolding retrieves one holding by symbol, or ErrNotFound
	GetHolding(ctx context.Context, symbol string) (*models.Holding, error)

	// SaveHolding upserts a holding and its lots
	SaveHolding(ctx context.Context, holding models.Holding) error

	// ReplaceHoldings replaces the entire replica with the given set
	// (authoritative pull semantics)
	ReplaceHoldings(ctx context.Context, holdings []models.Holding) error

	// UpdateHoldingPrice updates price fields on an existing holding
	UpdateHoldingPrice(ctx context.Context, symbol string, quote models.HoldingQuote) error

	// DeleteHolding removes a holding and its lots
	DeleteHolding(ctx context.Context, symbol string) error

	// DeleteAll clears the replica
	DeleteAll(ctx context.Context) error

	// Count returns the number of holdings in the replica
	Count(ctx context.Context) (int, error)
}
