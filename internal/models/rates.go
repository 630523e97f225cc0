package models

import (
	"strings"
	"time"
)

// BaseCurrency is the fixed base for the exchange rate table.
const BaseCurrency = "USD"

// RateTable maps currency codes to their rate relative to the base currency.
// The base currency always maps to exactly 1.0.
type RateTable struct {
	Base       string             `json:"base"`
	Rates      map[string]float64 `json:"rates"`
	CapturedAt time.Time          `json:"captured_at"`
}

// NewRateTable builds a table from backend rates, pinning the base to 1.0.
func NewRateTable(base string, rates map[string]float64) RateTable {
	base = strings.ToUpper(base)
	if base == "" {
		base = BaseCurrency
	}
	normalized := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	normalized[base] = 1.0
	return RateTable{
		Base:       base,
		Rates:      normalized,
		CapturedAt: time.Now(),
	}
}

// Rate returns the rate for a currency code relative to the base.
func (t RateTable) Rate(code string) (float64, bool) {
	rate, ok := t.Rates[strings.ToUpper(code)]
	return rate, ok
}
