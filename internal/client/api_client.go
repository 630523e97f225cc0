package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/config"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/models"
)

// APIClient communicates with the EquityLabs backend REST API and implements
// interfaces.PortfolioAPI. Reads go through a retrying client; writes are
// issued exactly once, with queue-and-replay handled above this layer.
type APIClient struct {
	read   *resty.Client
	write  *resty.Client
	logger *common.Logger
}

// NewAPIClient creates a client targeting the configured backend URL.
// The credential provider is consulted on every request; an absent token is
// sent without an Authorization header.
func NewAPIClient(cfg *config.APIConfig, creds interfaces.CredentialProvider, logger *common.Logger) *APIClient {
	retries := cfg.MaxRetries - 1
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.GetRetryBackoff()

	read := newRestyClient(cfg, creds).
		SetRetryCount(retries).
		SetRetryWaitTime(backoff).
		SetRetryMaxWaitTime(backoff * (1 << 3)).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				// Cancelled or expired contexts never recover on retry
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			code := r.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})

	return &APIClient{
		read:   read,
		write:  newRestyClient(cfg, creds),
		logger: logger,
	}
}

// newRestyClient builds a resty client with timeout and auth middleware.
func newRestyClient(cfg *config.APIConfig, creds interfaces.CredentialProvider) *resty.Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.GetTimeout()).
		SetHeader("Accept", "application/json")

	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if token := creds.Token(); token != "" {
			r.SetAuthToken(token)
		}
		return nil
	})

	return c
}

// portfolioResponse tolerates a missing holdings field; an empty graph is a
// valid first-launch state on the backend too.
type portfolioResponse struct {
	Holdings   []models.Holding `json:"holdings"`
	Currency   string           `json:"currency"`
	LastSynced *time.Time       `json:"last_synced"`
}

// GetPortfolio retrieves the full holdings graph.
func (c *APIClient) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	body, err := c.do(ctx, c.read, "GET", "/api/portfolio", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp portfolioResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error().Err(err).Msg("failed to decode portfolio response")
		return nil, decodeError(err)
	}

	if resp.Holdings == nil {
		c.logger.Debug().Msg("portfolio response carried no holdings field, treating as empty")
		resp.Holdings = []models.Holding{}
	}
	if resp.Currency == "" {
		c.logger.Debug().Msg("portfolio response carried no currency, defaulting to USD")
		resp.Currency = models.BaseCurrency
	}

	return &models.Portfolio{
		Holdings:   resp.Holdings,
		Currency:   resp.Currency,
		LastSynced: resp.LastSynced,
	}, nil
}

// SavePortfolio bulk-saves the holdings graph.
func (c *APIClient) SavePortfolio(ctx context.Context, portfolio models.Portfolio) error {
	_, err := c.do(ctx, c.write, "POST", "/api/portfolio", portfolio, nil)
	return err
}

// AddHolding creates a holding.
func (c *APIClient) AddHolding(ctx context.Context, holding models.Holding) error {
	_, err := c.do(ctx, c.write, "POST", "/api/portfolio", holding, nil)
	return err
}

// UpdateHolding updates a holding by symbol.
func (c *APIClient) UpdateHolding(ctx context.Context, holding models.Holding) error {
	_, err := c.do(ctx, c.write, "PATCH", "/api/portfolio/"+strings.ToUpper(holding.Symbol), holding, nil)
	return err
}

// DeleteHolding removes a holding by symbol.
func (c *APIClient) DeleteHolding(ctx context.Context, symbol string) error {
	_, err := c.do(ctx, c.write, "DELETE", "/api/portfolio/"+strings.ToUpper(symbol), nil, nil)
	return err
}

// quoteResponse tolerates the backend's alternative field names for prices.
type quoteResponse struct {
	Symbol        string   `json:"symbol"`
	CurrentPrice  *float64 `json:"current_price"`
	PreviousClose *float64 `json:"previous_close"`
	Price         *float64 `json:"price"`
	Close         *float64 `json:"close"`
}

// GetHoldingDetail retrieves the current quote for one symbol.
func (c *APIClient) GetHoldingDetail(ctx context.Context, symbol string) (*models.HoldingQuote, error) {
	symbol = strings.ToUpper(symbol)
	body, err := c.do(ctx, c.read, "GET", "/api/stocks/"+symbol, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError(err)
	}

	quote := &models.HoldingQuote{Symbol: symbol, LastUpdated: time.Now()}
	switch {
	case resp.CurrentPrice != nil:
		quote.CurrentPrice = *resp.CurrentPrice
	case resp.Price != nil:
		quote.CurrentPrice = *resp.Price
	default:
		c.logger.Debug().Str("symbol", symbol).Msg("quote carried no current price, defaulting to 0")
	}
	switch {
	case resp.PreviousClose != nil:
		quote.PreviousClose = *resp.PreviousClose
	case resp.Close != nil:
		quote.PreviousClose = *resp.Close
	}

	return quote, nil
}

// GetNews retrieves up to count articles for a symbol.
func (c *APIClient) GetNews(ctx context.Context, symbol string, count int, refresh bool) (*models.NewsResponse, error) {
	refreshFlag := "0"
	if refresh {
		refreshFlag = "1"
	}
	params := map[string]string{
		"count":   strconv.Itoa(count),
		"refresh": refreshFlag,
	}

	body, err := c.do(ctx, c.read, "GET", "/api/news/"+strings.ToUpper(symbol), nil, params)
	if err != nil {
		return nil, err
	}

	var resp models.NewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError(err)
	}
	if resp.Articles == nil {
		resp.Articles = []models.NewsArticle{}
	}
	return &resp, nil
}

// ratesResponse is the exchange rate payload.
type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// GetExchangeRates retrieves the current rate table.
func (c *APIClient) GetExchangeRates(ctx context.Context) (*models.RateTable, error) {
	body, err := c.do(ctx, c.read, "GET", "/api/exchange-rate", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp ratesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError(err)
	}

	table := models.NewRateTable(resp.Base, resp.Rates)
	return &table, nil
}

// do issues one request and maps the outcome into the error taxonomy.
// The response body is returned raw; callers own decoding.
func (c *APIClient) do(ctx context.Context, rc *resty.Client, method, path string, body interface{}, params map[string]string) ([]byte, error) {
	req := rc.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("backend unreachable")
		return nil, transportError(err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		apiErr := statusError(resp.StatusCode())
		c.logger.Warn().
			Int("status", resp.StatusCode()).
			Str("method", method).
			Str("path", path).
			Msg("backend returned error status")
		return nil, apiErr
	}

	return resp.Body(), nil
}
