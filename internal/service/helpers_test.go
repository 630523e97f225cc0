package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/equitylabs/equitysync/internal/client"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/models"
)

// memoryKV is an in-memory KeyValueStorage for tests.
type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	return value, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryKV) GetAll(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

func (m *memoryKV) GetPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	all, _ := m.GetAll(ctx)
	out := make(map[string]string)
	for k, v := range all {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

// memoryStore is an in-memory PortfolioStorage for tests.
type memoryStore struct {
	mu       sync.Mutex
	holdings map[string]models.Holding
}

func newMemoryStore() *memoryStore {
	return &memoryStore{holdings: make(map[string]models.Holding)}
}

func (m *memoryStore) GetAllHoldings(_ context.Context) ([]models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Holding, 0, len(m.holdings))
	for _, h := range m.holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *memoryStore) GetHolding(_ context.Context, symbol string) (*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holdings[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("holding %s: %w", symbol, interfaces.ErrNotFound)
	}
	return &h, nil
}

func (m *memoryStore) SaveHolding(_ context.Context, holding models.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	holding.Symbol = strings.ToUpper(holding.Symbol)
	m.holdings[holding.Symbol] = holding
	return nil
}

func (m *memoryStore) ReplaceHoldings(ctx context.Context, holdings []models.Holding) error {
	m.mu.Lock()
	m.holdings = make(map[string]models.Holding)
	m.mu.Unlock()
	for _, h := range holdings {
		if err := m.SaveHolding(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryStore) UpdateHoldingPrice(ctx context.Context, symbol string, quote models.HoldingQuote) error {
	holding, err := m.GetHolding(ctx, symbol)
	if err != nil {
		return err
	}
	holding.CurrentPrice = &quote.CurrentPrice
	holding.PreviousClose = &quote.PreviousClose
	updated := quote.LastUpdated
	holding.LastUpdated = &updated
	return m.SaveHolding(ctx, *holding)
}

func (m *memoryStore) DeleteHolding(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	if _, ok := m.holdings[symbol]; !ok {
		return fmt.Errorf("holding %s: %w", symbol, interfaces.ErrNotFound)
	}
	delete(m.holdings, symbol)
	return nil
}

func (m *memoryStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings = make(map[string]models.Holding)
	return nil
}

func (m *memoryStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holdings), nil
}

// fakeAPI is a scriptable PortfolioAPI for tests.
type fakeAPI struct {
	mu sync.Mutex

	portfolio    *models.Portfolio
	portfolioErr error

	addErr    error
	updateErr error
	deleteErr error

	quotes    map[string]models.HoldingQuote
	quoteErrs map[string]error

	news     map[string]models.NewsResponse
	newsErrs map[string]error
	// per-symbol channels; GetNews blocks on one until it closes or the
	// request context ends
	newsBlocks map[string]chan struct{}

	rates    *models.RateTable
	ratesErr error

	getPortfolioCalls int
	addCalls          int
	updateCalls       int
	deleteCalls       int
	newsCalls         int
	ratesCalls        int

	// when non-nil, GetPortfolio blocks until the channel closes
	blockPortfolio chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		quotes:     make(map[string]models.HoldingQuote),
		quoteErrs:  make(map[string]error),
		news:       make(map[string]models.NewsResponse),
		newsErrs:   make(map[string]error),
		newsBlocks: make(map[string]chan struct{}),
	}
}

func (f *fakeAPI) GetPortfolio(_ context.Context) (*models.Portfolio, error) {
	f.mu.Lock()
	f.getPortfolioCalls++
	block := f.blockPortfolio
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.portfolioErr != nil {
		return nil, f.portfolioErr
	}
	if f.portfolio == nil {
		return &models.Portfolio{Holdings: []models.Holding{}, Currency: models.BaseCurrency}, nil
	}
	snapshot := *f.portfolio
	return &snapshot, nil
}

func (f *fakeAPI) SavePortfolio(_ context.Context, portfolio models.Portfolio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portfolio = &portfolio
	return nil
}

func (f *fakeAPI) AddHolding(_ context.Context, holding models.Holding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	return f.addErr
}

func (f *fakeAPI) UpdateHolding(_ context.Context, holding models.Holding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	return f.updateErr
}

func (f *fakeAPI) DeleteHolding(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeAPI) GetHoldingDetail(_ context.Context, symbol string) (*models.HoldingQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	if err, ok := f.quoteErrs[symbol]; ok {
		return nil, err
	}
	quote, ok := f.quotes[symbol]
	if !ok {
		return nil, &client.APIError{Kind: client.KindNotFound, StatusCode: 404}
	}
	return &quote, nil
}

func (f *fakeAPI) GetNews(ctx context.Context, symbol string, count int, refresh bool) (*models.NewsResponse, error) {
	symbol = strings.ToUpper(symbol)

	f.mu.Lock()
	f.newsCalls++
	block := f.newsBlocks[symbol]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.newsErrs[symbol]; ok {
		return nil, err
	}
	response, ok := f.news[symbol]
	if !ok {
		return &models.NewsResponse{Articles: []models.NewsArticle{}}, nil
	}
	return &response, nil
}

func (f *fakeAPI) GetExchangeRates(_ context.Context) (*models.RateTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratesCalls++
	if f.ratesErr != nil {
		return nil, f.ratesErr
	}
	if f.rates == nil {
		table := models.NewRateTable("USD", map[string]float64{"EUR": 0.9, "GBP": 0.8})
		return &table, nil
	}
	snapshot := *f.rates
	return &snapshot, nil
}

func transportErr() error {
	return &client.APIError{Kind: client.KindTransport, Err: errors.New("connection refused")}
}

func rejectionErr() error {
	return &client.APIError{Kind: client.KindInvalidRequest, StatusCode: 400}
}

func pricedHolding(symbol string, shares, cost, price float64) models.Holding {
	holding := models.NewHolding(symbol, symbol+" Inc", "USD")
	holding.Lots = []models.Lot{
		models.NewLot(shares, cost, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "USD"),
	}
	holding.CurrentPrice = &price
	return holding
}
