// Package cache provides a generic TTL content cache with durable
// persistence and stale-on-error fallback.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/interfaces"
)

// Entry wraps a cached payload with its capture time.
type Entry[T any] struct {
	Key        string    `json:"key"`
	Payload    T         `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
}

// Expired reports whether the entry is older than the given TTL.
func (e Entry[T]) Expired(ttl time.Duration) bool {
	return !common.IsFresh(e.CapturedAt, ttl)
}

// FetchFunc produces a fresh payload from the backend.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Stats summarizes cache occupancy for a given TTL.
type Stats struct {
	Total   int
	Fresh   int
	Expired int
}

// ContentCache is an in-memory TTL cache mirrored to the local store under
// a key prefix. The index and the durable copy are written together: every
// successful refresh is persisted synchronously before the caller sees it.
// Thread-safe with sync.Mutex; fetchers run outside the lock so concurrent
// lookups of different keys do not serialize on the network.
type ContentCache[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
	kv      interfaces.KeyValueStorage
	prefix  string
	logger  *common.Logger
}

// New creates a content cache under the given store prefix and warms the
// in-memory index from the local store. A load failure degrades to an empty
// cache rather than failing construction.
func New[T any](ctx context.Context, kv interfaces.KeyValueStorage, prefix string, logger *common.Logger) *ContentCache[T] {
	c := &ContentCache[T]{
		entries: make(map[string]Entry[T]),
		kv:      kv,
		prefix:  prefix,
		logger:  logger,
	}
	c.loadFromStore(ctx)
	return c
}

// loadFromStore populates the index from persisted entries.
func (c *ContentCache[T]) loadFromStore(ctx context.Context) {
	stored, err := c.kv.GetPrefix(ctx, c.prefix)
	if err != nil {
		c.logger.Warn().Err(err).Str("prefix", c.prefix).Msg("failed to load cache from store, starting empty")
		return
	}

	for key, value := range stored {
		var entry Entry[T]
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("dropping unreadable cache entry")
			continue
		}
		c.entries[strings.TrimPrefix(key, c.prefix)] = entry
	}

	if len(c.entries) > 0 {
		c.logger.Debug().Int("entries", len(c.entries)).Str("prefix", c.prefix).Msg("loaded cache from store")
	}
}

// FetchOrRefresh returns the cached payload when fresh, otherwise calls
// fetch. A successful fetch is stored and persisted before returning. A
// failed fetch falls back to any cached entry, even an expired one; the
// error propagates only when there is nothing to serve.
func (c *ContentCache[T]) FetchOrRefresh(ctx context.Context, key string, ttl time.Duration, force bool, fetch FetchFunc[T]) (T, error) {
	if !force {
		c.mu.Lock()
		entry, ok := c.entries[key]
		c.mu.Unlock()
		if ok && !entry.Expired(ttl) {
			return entry.Payload, nil
		}
	}

	payload, err := fetch(ctx)
	if err != nil {
		c.mu.Lock()
		entry, ok := c.entries[key]
		c.mu.Unlock()
		if ok {
			c.logger.Warn().Err(err).Str("key", key).Msg("refresh failed, serving cached entry")
			return entry.Payload, nil
		}
		var zero T
		return zero, err
	}

	entry := Entry[T]{Key: key, Payload: payload, CapturedAt: time.Now()}

	c.mu.Lock()
	c.entries[key] = entry
	persistErr := c.persist(ctx, entry)
	c.mu.Unlock()

	if persistErr != nil {
		c.logger.Error().Err(persistErr).Str("key", key).Msg("failed to persist cache entry")
	}
	return payload, nil
}

// persist writes one entry to the local store. Must be called with mu held.
func (c *ContentCache[T]) persist(ctx context.Context, entry Entry[T]) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, c.prefix+entry.Key, string(data))
}

// HasFresh reports whether a non-expired entry exists for key.
func (c *ContentCache[T]) HasFresh(key string, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return ok && !entry.Expired(ttl)
}

// Keys returns the cached keys, most recently captured first.
func (c *ContentCache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry[T], 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CapturedAt.After(entries[j].CapturedAt)
	})

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// GetStats summarizes cache occupancy against the given TTL.
func (c *ContentCache[T]) GetStats(ttl time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Total: len(c.entries)}
	for _, entry := range c.entries {
		if entry.Expired(ttl) {
			stats.Expired++
		} else {
			stats.Fresh++
		}
	}
	return stats
}

// Clear removes one entry from the index and the local store.
func (c *ContentCache[T]) Clear(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return c.kv.Delete(ctx, c.prefix+key)
}

// ClearAll removes every entry under the cache's prefix. On a store
// failure the entries already deleted stay removed from the index, so the
// index never claims a key the store no longer holds.
func (c *ContentCache[T]) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if err := c.kv.Delete(ctx, c.prefix+key); err != nil {
			return err
		}
		delete(c.entries, key)
	}
	return nil
}
