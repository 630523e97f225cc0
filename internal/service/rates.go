package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/equitylabs/equitysync/internal/cache"
	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/models"
)

// ErrRateUnavailable is returned when a conversion involves a currency the
// current rate table does not carry.
var ErrRateUnavailable = errors.New("exchange rate not available")

const (
	ratesCacheKey    = "rates"
	ratesCachePrefix = "rate-table:"
)

// RateService serves exchange rates from a short-TTL cache backed by the
// backend's rate endpoint. Rates survive restarts via the local store and
// stale rates are served when a refresh fails.
type RateService struct {
	api    interfaces.PortfolioAPI
	cache  *cache.ContentCache[models.RateTable]
	logger *common.Logger
}

// NewRateService creates the rate service and warms its cache index from
// the local store.
func NewRateService(ctx context.Context, api interfaces.PortfolioAPI, kv interfaces.KeyValueStorage, logger *common.Logger) *RateService {
	return &RateService{
		api:    api,
		cache:  cache.New[models.RateTable](ctx, kv, ratesCachePrefix, logger),
		logger: logger,
	}
}

// EnsureFresh returns the current rate table, refreshing it from the
// backend when the cached copy is older than the rate TTL. When the
// refresh fails and a stale table exists, the stale table is served.
func (s *RateService) EnsureFresh(ctx context.Context, force bool) (models.RateTable, error) {
	return s.cache.FetchOrRefresh(ctx, ratesCacheKey, common.FreshnessRates, force, func(ctx context.Context) (models.RateTable, error) {
		table, err := s.api.GetExchangeRates(ctx)
		if err != nil {
			return models.RateTable{}, err
		}
		return *table, nil
	})
}

// Convert converts an amount between currencies via the base currency.
// Same-currency conversion is an identity and never touches the network.
func (s *RateService) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return amount, nil
	}

	table, err := s.EnsureFresh(ctx, false)
	if err != nil {
		return 0, err
	}

	fromRate, ok := table.Rate(from)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
	}
	toRate, ok := table.Rate(to)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
	}
	return amount / fromRate * toRate, nil
}

// RateBetween returns the multiplier that converts one unit of from into
// to. Same-currency pairs are always 1.
func (s *RateService) RateBetween(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return 1, nil
	}

	table, err := s.EnsureFresh(ctx, false)
	if err != nil {
		return 0, err
	}

	fromRate, ok := table.Rate(from)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
	}
	toRate, ok := table.Rate(to)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
	}
	return toRate / fromRate, nil
}

// HasFresh reports whether a rate table within TTL is cached.
func (s *RateService) HasFresh() bool {
	return s.cache.HasFresh(ratesCacheKey, common.FreshnessRates)
}

// ClearCache drops the cached rate table from memory and the local store.
func (s *RateService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx, ratesCacheKey)
}
