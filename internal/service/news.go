package service

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/equitylabs/equitysync/internal/cache"
	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/models"
)

const newsCachePrefix = "news-cache:"

// NewsService serves per-symbol news with sentiment from a long-TTL cache.
// Cache keys are uppercased symbols so lookups are case-insensitive, and
// stale articles are served when the backend is unreachable.
type NewsService struct {
	api    interfaces.PortfolioAPI
	cache  *cache.ContentCache[models.NewsResponse]
	logger *common.Logger
}

// NewNewsService creates the news service and warms its cache index from
// the local store.
func NewNewsService(ctx context.Context, api interfaces.PortfolioAPI, kv interfaces.KeyValueStorage, logger *common.Logger) *NewsService {
	return &NewsService{
		api:    api,
		cache:  cache.New[models.NewsResponse](ctx, kv, newsCachePrefix, logger),
		logger: logger,
	}
}

// FetchNews returns news for one symbol, served from cache when fresh.
// force bypasses the cache and asks the backend to regenerate sentiment.
func (s *NewsService) FetchNews(ctx context.Context, symbol string, count int, force bool) (*models.NewsResponse, error) {
	key := newsCacheKey(symbol)

	response, err := s.cache.FetchOrRefresh(ctx, key, common.FreshnessNews, force, func(ctx context.Context) (models.NewsResponse, error) {
		fetched, err := s.api.GetNews(ctx, key, count, force)
		if err != nil {
			return models.NewsResponse{}, err
		}
		return *fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// FetchNewsBatch fetches news for several symbols concurrently. A symbol
// that fails is logged and omitted from the result rather than failing
// the batch.
func (s *NewsService) FetchNewsBatch(ctx context.Context, symbols []string, count int) map[string][]models.NewsArticle {
	articles := make(map[string][]models.NewsArticle, len(symbols))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		key := newsCacheKey(symbol)
		g.Go(func() error {
			response, err := s.FetchNews(ctx, key, count, false)
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", key).Msg("news fetch failed for symbol")
				return nil
			}
			mu.Lock()
			articles[key] = response.Articles
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return articles
}

// HasFresh reports whether cached news within TTL exists for the symbol.
func (s *NewsService) HasFresh(symbol string) bool {
	return s.cache.HasFresh(newsCacheKey(symbol), common.FreshnessNews)
}

// CachedSymbols returns symbols with cached news, most recent first.
func (s *NewsService) CachedSymbols() []string {
	return s.cache.Keys()
}

// Stats summarizes the news cache by freshness.
func (s *NewsService) Stats() cache.Stats {
	return s.cache.GetStats(common.FreshnessNews)
}

// ClearCache drops cached news for one symbol.
func (s *NewsService) ClearCache(ctx context.Context, symbol string) error {
	return s.cache.Clear(ctx, newsCacheKey(symbol))
}

// ClearAllCache drops all cached news.
func (s *NewsService) ClearAllCache(ctx context.Context) error {
	return s.cache.ClearAll(ctx)
}

func newsCacheKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
