package interfaces

import (
	"context"

	"github.com/equitylabs/equitysync/internal/models"
)

// CredentialProvider supplies the bearer token attached to every backend
// call. An empty token is a normal (if likely-to-fail) state, not an error.
type CredentialProvider interface {
	Token() string
}

// PortfolioAPI is the remote source of truth for holdings, news, and
// exchange rates.
type PortfolioAPI interface {
	// GetPortfolio retrieves the full holdings graph. Retried on
	// connectivity-class failures.
	GetPortfolio(ctx context.Context) (*models.Portfolio, error)

	// SavePortfolio bulk-saves the holdings graph
	SavePortfolio(ctx context.Context, portfolio models.Portfolio) error

	// AddHolding creates a holding
	AddHolding(ctx context.Context, holding models.Holding) error

	// UpdateHolding updates a holding by symbol
	UpdateHolding(ctx context.Context, holding models.Holding) error

	// DeleteHolding removes a holding by symbol
	DeleteHolding(ctx context.Context, symbol string) error

	// GetHoldingDetail retrieves the current quote for one symbol.
	// Retried on connectivity-class failures.
	GetHoldingDetail(ctx context.Context, symbol string) (*models.HoldingQuote, error)

	// GetNews retrieves up to count articles for a symbol. When refresh is
	// true the backend bypasses its own cache.
	GetNews(ctx context.Context, symbol string, count int, refresh bool) (*models.NewsResponse, error)

	// GetExchangeRates retrieves the current rate table
	GetExchangeRates(ctx context.Context) (*models.RateTable, error)
}
