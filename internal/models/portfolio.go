// Package models defines data structures for EquitySync
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lot is a discrete purchase record contributing to a holding's cost basis.
// A lot belongs to exactly one holding; deleting the holding removes its lots.
type Lot struct {
	ID            string    `json:"id"`
	Shares        float64   `json:"shares"`
	PricePerShare float64   `json:"price_per_share"`
	PurchaseDate  time.Time `json:"purchase_date"`
	Currency      string    `json:"currency"`
	Notes         string    `json:"notes,omitempty"`
}

// NewLot creates a lot with a generated ID.
func NewLot(shares, pricePerShare float64, purchaseDate time.Time, currency string) Lot {
	return Lot{
		ID:            uuid.NewString(),
		Shares:        shares,
		PricePerShare: pricePerShare,
		PurchaseDate:  purchaseDate,
		Currency:      currency,
	}
}

// TotalCost returns the acquisition cost of the lot.
func (l Lot) TotalCost() float64 {
	return l.Shares * l.PricePerShare
}

// Holding is a tracked instrument position with one or more acquisition lots.
// Symbol is stored uppercased and is unique within a portfolio.
type Holding struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Lots          []Lot      `json:"lots"`
	CurrentPrice  *float64   `json:"current_price,omitempty"`
	PreviousClose *float64   `json:"previous_close,omitempty"`
	Currency      string     `json:"currency"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}

// NewHolding creates a holding with a generated ID and normalized symbol.
func NewHolding(symbol, name, currency string) Holding {
	return Holding{
		ID:       uuid.NewString(),
		Symbol:   strings.ToUpper(symbol),
		Name:     name,
		Currency: currency,
	}
}

// TotalShares returns the share count across all lots.
func (h Holding) TotalShares() float64 {
	var total float64
	for _, lot := range h.Lots {
		total += lot.Shares
	}
	return total
}

// TotalCost returns the cost basis across all lots.
func (h Holding) TotalCost() float64 {
	var total float64
	for _, lot := range h.Lots {
		total += lot.TotalCost()
	}
	return total
}

// AverageCost returns the per-share cost basis, or 0 when there are no shares.
func (h Holding) AverageCost() float64 {
	shares := h.TotalShares()
	if shares <= 0 {
		return 0
	}
	return h.TotalCost() / shares
}

// CurrentValue returns the market value, or 0 when no price is known.
func (h Holding) CurrentValue() float64 {
	if h.CurrentPrice == nil {
		return 0
	}
	return h.TotalShares() * *h.CurrentPrice
}

// ProfitLoss returns unrealized P/L against cost basis.
func (h Holding) ProfitLoss() float64 {
	return h.CurrentValue() - h.TotalCost()
}

// ProfitLossPct returns unrealized P/L as a percentage of cost basis.
func (h Holding) ProfitLossPct() float64 {
	cost := h.TotalCost()
	if cost <= 0 {
		return 0
	}
	return h.ProfitLoss() / cost * 100
}

// DayChange returns today's per-share move, or nil when either price is unknown.
func (h Holding) DayChange() *float64 {
	if h.CurrentPrice == nil || h.PreviousClose == nil {
		return nil
	}
	change := *h.CurrentPrice - *h.PreviousClose
	return &change
}

// DayChangePct returns today's per-share move as a percentage of previous close.
func (h Holding) DayChangePct() *float64 {
	change := h.DayChange()
	if change == nil || h.PreviousClose == nil || *h.PreviousClose <= 0 {
		return nil
	}
	pct := *change / *h.PreviousClose * 100
	return &pct
}

// Portfolio is the holdings snapshot plus display currency. All totals are
// derived, never stored.
type Portfolio struct {
	Holdings   []Holding  `json:"holdings"`
	Currency   string     `json:"currency"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
}

// FindHolding returns the holding matching symbol (case-insensitive), or nil.
func (p Portfolio) FindHolding(symbol string) *Holding {
	symbol = strings.ToUpper(symbol)
	for i := range p.Holdings {
		if p.Holdings[i].Symbol == symbol {
			return &p.Holdings[i]
		}
	}
	return nil
}

// TotalValue returns the market value across all holdings.
func (p Portfolio) TotalValue() float64 {
	var total float64
	for _, h := range p.Holdings {
		total += h.CurrentValue()
	}
	return total
}

// TotalCost returns the cost basis across all holdings.
func (p Portfolio) TotalCost() float64 {
	var total float64
	for _, h := range p.Holdings {
		total += h.TotalCost()
	}
	return total
}

// TotalProfitLoss returns unrealized P/L across all holdings.
func (p Portfolio) TotalProfitLoss() float64 {
	return p.TotalValue() - p.TotalCost()
}

// TotalProfitLossPct returns unrealized P/L as a percentage of cost basis.
func (p Portfolio) TotalProfitLossPct() float64 {
	cost := p.TotalCost()
	if cost <= 0 {
		return 0
	}
	return p.TotalProfitLoss() / cost * 100
}

// TotalDayChange sums share-weighted day moves across holdings with known
// prices. Nil when no holding has both prices.
func (p Portfolio) TotalDayChange() *float64 {
	var total float64
	found := false
	for _, h := range p.Holdings {
		if change := h.DayChange(); change != nil {
			total += *change * h.TotalShares()
			found = true
		}
	}
	if !found {
		return nil
	}
	return &total
}

// TotalDayChangePct returns the day move as a percentage of yesterday's value.
func (p Portfolio) TotalDayChangePct() *float64 {
	change := p.TotalDayChange()
	value := p.TotalValue()
	if change == nil || value <= 0 {
		return nil
	}
	previous := value - *change
	if previous <= 0 {
		return nil
	}
	pct := *change / previous * 100
	return &pct
}

// PortfolioSummary is a point-in-time snapshot of derived portfolio totals.
type PortfolioSummary struct {
	TotalValue         float64   `json:"total_value"`
	TotalCost          float64   `json:"total_cost"`
	TotalProfitLoss    float64   `json:"total_profit_loss"`
	TotalProfitLossPct float64   `json:"total_profit_loss_pct"`
	TotalDayChange     *float64  `json:"total_day_change,omitempty"`
	TotalDayChangePct  *float64  `json:"total_day_change_pct,omitempty"`
	HoldingCount       int       `json:"holding_count"`
	Currency           string    `json:"currency"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// NewPortfolioSummary computes a summary snapshot from a portfolio.
func NewPortfolioSummary(p Portfolio) PortfolioSummary {
	return PortfolioSummary{
		TotalValue:         p.TotalValue(),
		TotalCost:          p.TotalCost(),
		TotalProfitLoss:    p.TotalProfitLoss(),
		TotalProfitLossPct: p.TotalProfitLossPct(),
		TotalDayChange:     p.TotalDayChange(),
		TotalDayChangePct:  p.TotalDayChangePct(),
		HoldingCount:       len(p.Holdings),
		Currency:           p.Currency,
		GeneratedAt:        time.Now(),
	}
}

// HoldingQuote carries the refreshed price fields for one symbol.
type HoldingQuote struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousClose float64   `json:"previous_close"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Change returns the day move for the quote.
func (q HoldingQuote) Change() float64 {
	return q.CurrentPrice - q.PreviousClose
}
