// Package common provides shared utilities for EquitySync
package common

import "time"

// Freshness TTLs for cached data categories. News is slow-moving upstream
// fact data; exchange rates and the portfolio replica track market hours
// and are re-fetched aggressively.
const (
	FreshnessNews  = 6 * time.Hour
	FreshnessRates = 5 * time.Minute

	// SyncStaleness is how long the local replica is trusted before a
	// foreground trigger starts a full sync.
	SyncStaleness = 5 * time.Minute
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
