package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/timshannon/badgerhold/v4"

	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/models"
)

// PortfolioStorage implements interfaces.PortfolioStorage using BadgerDB.
// Holdings are keyed by uppercased symbol; lots travel with their holding,
// so deleting a holding cascades to its lots.
type PortfolioStorage struct {
	db     *BadgerDB
	logger *common.Logger
}

// NewPortfolioStorage creates the local holdings replica backed by BadgerDB.
func NewPortfolioStorage(db *BadgerDB, logger *common.Logger) *PortfolioStorage {
	return &PortfolioStorage{
		db:     db,
		logger: logger,
	}
}

// GetAllHoldings retrieves every holding in the replica, sorted by symbol.
func (s *PortfolioStorage) GetAllHoldings(_ context.Context) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := s.db.Store().Find(&holdings, nil); err != nil {
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})
	return holdings, nil
}

// GetHolding retrieves one holding by symbol.
func (s *PortfolioStorage) GetHolding(_ context.Context, symbol string) (*models.Holding, error) {
	symbol = strings.ToUpper(symbol)
	var holding models.Holding
	err := s.db.Store().Get(symbol, &holding)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("holding %s: %w", symbol, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get holding %s: %w", symbol, err)
	}
	return &holding, nil
}

// SaveHolding upserts a holding and its lots.
func (s *PortfolioStorage) SaveHolding(_ context.Context, holding models.Holding) error {
	holding.Symbol = strings.ToUpper(holding.Symbol)
	if err := s.db.Store().Upsert(holding.Symbol, &holding); err != nil {
		return fmt.Errorf("failed to save holding %s: %w", holding.Symbol, err)
	}
	s.logger.Debug().Str("symbol", holding.Symbol).Msg("saved holding")
	return nil
}

// ReplaceHoldings replaces the entire replica with the given set. The remote
// pull is authoritative: holdings absent from it are removed, not retained.
func (s *PortfolioStorage) ReplaceHoldings(ctx context.Context, holdings []models.Holding) error {
	if err := s.db.Store().DeleteMatching(&models.Holding{}, nil); err != nil {
		return fmt.Errorf("failed to clear holdings replica: %w", err)
	}
	for _, holding := range holdings {
		if err := s.SaveHolding(ctx, holding); err != nil {
			return err
		}
	}
	s.logger.Debug().Int("count", len(holdings)).Msg("replaced holdings replica")
	return nil
}

// UpdateHoldingPrice updates price fields on an existing holding.
func (s *PortfolioStorage) UpdateHoldingPrice(ctx context.Context, symbol string, quote models.HoldingQuote) error {
	holding, err := s.GetHolding(ctx, symbol)
	if err != nil {
		return err
	}
	holding.CurrentPrice = &quote.CurrentPrice
	holding.PreviousClose = &quote.PreviousClose
	updated := quote.LastUpdated
	holding.LastUpdated = &updated
	return s.SaveHolding(ctx, *holding)
}

// DeleteHolding removes a holding and its lots.
func (s *PortfolioStorage) DeleteHolding(_ context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)
	err := s.db.Store().Delete(symbol, models.Holding{})
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("holding %s: %w", symbol, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to delete holding %s: %w", symbol, err)
	}
	s.logger.Debug().Str("symbol", symbol).Msg("deleted holding")
	return nil
}

// DeleteAll clears the replica.
func (s *PortfolioStorage) DeleteAll(_ context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.Holding{}, nil); err != nil {
		return fmt.Errorf("failed to clear holdings replica: %w", err)
	}
	s.logger.Warn().Msg("deleted all portfolio data")
	return nil
}

// Count returns the number of holdings in the replica.
func (s *PortfolioStorage) Count(ctx context.Context) (int, error) {
	holdings, err := s.GetAllHoldings(ctx)
	if err != nil {
		return 0, err
	}
	return len(holdings), nil
}
