package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/equitylabs/equitysync/internal/client"
	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/models"
)

// PortfolioService owns the portfolio: reads are remote-first with a local
// replica fallback, writes are remote-first with offline queueing. The
// backend is always the source of truth; the local store is a replica that
// keeps the portfolio usable without connectivity.
//
// Every replica write happens under mu, including the sync pull and queue
// replay, so an optimistic write can never interleave with a pull's
// replace-all and get reverted. Lock order is mu then the queue's lock.
type PortfolioService struct {
	api      interfaces.PortfolioAPI
	store    interfaces.PortfolioStorage
	queue    *MutationQueue
	rates    *RateService
	logger   *common.Logger
	currency string
	mu       sync.Mutex
}

// NewPortfolioService creates the portfolio service. currency is the
// display currency used for portfolios assembled from the local replica.
func NewPortfolioService(api interfaces.PortfolioAPI, store interfaces.PortfolioStorage, queue *MutationQueue, rates *RateService, logger *common.Logger) *PortfolioService {
	return &PortfolioService{
		api:      api,
		store:    store,
		queue:    queue,
		rates:    rates,
		logger:   logger,
		currency: models.BaseCurrency,
	}
}

// Refresh pulls the portfolio from the backend and replaces the local
// replica wholesale, so deletions made on other devices propagate. Returns
// an error when the backend is unreachable; callers that want the offline
// fallback use Load instead. Holds the service lock across the pull so a
// concurrent optimistic write cannot land between the fetch and the
// replace and be silently undone.
func (s *PortfolioService) Refresh(ctx context.Context) (*models.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	portfolio, err := s.api.GetPortfolio(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplaceHoldings(ctx, portfolio.Holdings); err != nil {
		s.logger.Error().Err(err).Msg("failed to update local replica after backend pull")
	}
	return portfolio, nil
}

// Load returns the portfolio, preferring the backend and falling back to
// the local replica when the backend is unreachable. An empty replica is
// not an error: a fresh install with no connectivity gets an empty
// portfolio.
func (s *PortfolioService) Load(ctx context.Context) (*models.Portfolio, error) {
	portfolio, err := s.Refresh(ctx)
	if err == nil {
		return portfolio, nil
	}

	s.logger.Warn().Err(err).Msg("backend load failed, using local replica")

	holdings, lerr := s.store.GetAllHoldings(ctx)
	if lerr != nil {
		return nil, fmt.Errorf("failed to load local replica: %w", lerr)
	}
	return &models.Portfolio{
		Holdings: holdings,
		Currency: s.currency,
	}, nil
}

// SaveAll replaces the entire remote portfolio. Bulk replacement is not
// queued offline: a failure is surfaced to the caller instead.
func (s *PortfolioService) SaveAll(ctx context.Context, portfolio *models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.api.SavePortfolio(ctx, *portfolio); err != nil {
		return err
	}
	if err := s.store.ReplaceHoldings(ctx, portfolio.Holdings); err != nil {
		s.logger.Error().Err(err).Msg("failed to update local replica after save")
	}
	return nil
}

// Add creates a holding, remote-first. On a connectivity-class failure the
// mutation is queued for replay and the call succeeds optimistically; a
// definitive rejection (validation, auth) is returned to the caller.
func (s *PortfolioService) Add(ctx context.Context, holding *models.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.api.AddHolding(ctx, *holding)
	if err == nil {
		s.mirrorSave(ctx, holding)
		return nil
	}
	if !client.IsRetryable(err) {
		return err
	}

	s.logger.Warn().Err(err).Str("symbol", holding.Symbol).Msg("backend unreachable, accepting holding offline")
	if qerr := s.queue.Enqueue(ctx, models.NewHoldingMutation(models.MutationCreateHolding, *holding)); qerr != nil {
		return qerr
	}
	s.mirrorSave(ctx, holding)
	return nil
}

// Update modifies a holding, remote-first with offline queueing.
func (s *PortfolioService) Update(ctx context.Context, holding *models.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.api.UpdateHolding(ctx, *holding)
	if err == nil {
		s.mirrorSave(ctx, holding)
		return nil
	}
	if !client.IsRetryable(err) {
		return err
	}

	s.logger.Warn().Err(err).Str("symbol", holding.Symbol).Msg("backend unreachable, accepting update offline")
	if qerr := s.queue.Enqueue(ctx, models.NewHoldingMutation(models.MutationUpdateHolding, *holding)); qerr != nil {
		return qerr
	}
	s.mirrorSave(ctx, holding)
	return nil
}

// Delete removes a holding by symbol, remote-first with offline queueing.
func (s *PortfolioService) Delete(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.api.DeleteHolding(ctx, symbol)
	if err == nil {
		s.mirrorDelete(ctx, symbol)
		return nil
	}
	if !client.IsRetryable(err) {
		return err
	}

	s.logger.Warn().Err(err).Str("symbol", symbol).Msg("backend unreachable, accepting delete offline")
	if qerr := s.queue.Enqueue(ctx, models.NewDeleteMutation(symbol)); qerr != nil {
		return qerr
	}
	s.mirrorDelete(ctx, symbol)
	return nil
}

// ReplayQueue applies queued mutations in FIFO order under the service
// lock and returns how many remain. Sync drives replay through here rather
// than through the queue directly so replayed replica writes cannot
// interleave with user-facing operations.
func (s *PortfolioService) ReplayQueue(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.ReplayAll(ctx, s.applyMutation)
}

// ApplyMutation executes one queued mutation against the backend. This is
// the replay path: failures are returned so the queue can retain the
// mutation, never re-queued.
func (s *PortfolioService) ApplyMutation(ctx context.Context, mutation models.PendingMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyMutation(ctx, mutation)
}

// applyMutation is ApplyMutation without the lock. Must be called with mu
// held.
func (s *PortfolioService) applyMutation(ctx context.Context, mutation models.PendingMutation) error {
	switch mutation.Kind {
	case models.MutationCreateHolding:
		if mutation.Holding == nil {
			s.logger.Warn().Str("id", mutation.ID).Msg("dropping create mutation without holding payload")
			return nil
		}
		if err := s.api.AddHolding(ctx, *mutation.Holding); err != nil {
			return err
		}
		s.mirrorSave(ctx, mutation.Holding)
		return nil

	case models.MutationUpdateHolding:
		if mutation.Holding == nil {
			s.logger.Warn().Str("id", mutation.ID).Msg("dropping update mutation without holding payload")
			return nil
		}
		if err := s.api.UpdateHolding(ctx, *mutation.Holding); err != nil {
			return err
		}
		s.mirrorSave(ctx, mutation.Holding)
		return nil

	case models.MutationDeleteHolding:
		if err := s.api.DeleteHolding(ctx, mutation.Symbol); err != nil {
			return err
		}
		s.mirrorDelete(ctx, mutation.Symbol)
		return nil

	default:
		s.logger.Warn().Str("kind", string(mutation.Kind)).Msg("dropping mutation with unknown kind")
		return nil
	}
}

// RefreshPrices fetches current quotes for the given symbols concurrently
// and writes them through to the local replica. One symbol failing does
// not abort the rest; failed symbols are logged and omitted from the
// result.
func (s *PortfolioService) RefreshPrices(ctx context.Context, symbols []string) (map[string]models.HoldingQuote, error) {
	quotes := make(map[string]models.HoldingQuote, len(symbols))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(symbol))
		g.Go(func() error {
			quote, err := s.api.GetHoldingDetail(ctx, symbol)
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("price refresh failed for symbol")
				return nil
			}
			if err := s.store.UpdateHoldingPrice(ctx, symbol, *quote); err != nil {
				if !errors.Is(err, interfaces.ErrNotFound) {
					s.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to store refreshed price")
				}
			}
			mu.Lock()
			quotes[symbol] = *quote
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return quotes, err
	}
	return quotes, nil
}

// Summary computes portfolio totals from the local replica.
func (s *PortfolioService) Summary(ctx context.Context) (*models.PortfolioSummary, error) {
	holdings, err := s.store.GetAllHoldings(ctx)
	if err != nil {
		return nil, err
	}
	summary := models.NewPortfolioSummary(models.Portfolio{
		Holdings: holdings,
		Currency: s.currency,
	})
	return &summary, nil
}

// ValueIn returns the current portfolio value converted into the target
// currency. Holdings without a live price are valued at cost.
func (s *PortfolioService) ValueIn(ctx context.Context, currency string) (float64, error) {
	holdings, err := s.store.GetAllHoldings(ctx)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, holding := range holdings {
		value := holding.CurrentValue()
		if holding.CurrentPrice == nil {
			value = holding.TotalCost()
		}
		converted, err := s.rates.Convert(ctx, value, holding.Currency, currency)
		if err != nil {
			return 0, fmt.Errorf("failed to convert %s value: %w", holding.Symbol, err)
		}
		total += converted
	}
	return total, nil
}

func (s *PortfolioService) mirrorSave(ctx context.Context, holding *models.Holding) {
	if err := s.store.SaveHolding(ctx, *holding); err != nil {
		s.logger.Error().Err(err).Str("symbol", holding.Symbol).Msg("failed to mirror holding to local replica")
	}
}

func (s *PortfolioService) mirrorDelete(ctx context.Context, symbol string) {
	if err := s.store.DeleteHolding(ctx, symbol); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to remove holding from local replica")
	}
}
