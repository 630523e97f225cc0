package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/interfaces"
)

const lastSyncKey = "last-sync"

// SyncManager orchestrates full synchronization: replay queued mutations,
// pull the authoritative portfolio, stamp the sync time. Only one sync
// runs at a time; a sync requested while another is in flight is a no-op.
type SyncManager struct {
	portfolio *PortfolioService
	queue     *MutationQueue
	kv        interfaces.KeyValueStorage
	staleness time.Duration
	logger    *common.Logger
	mu        sync.Mutex
}

// NewSyncManager creates the sync manager. staleness controls how old the
// last successful sync may be before SyncIfStale triggers a new one.
func NewSyncManager(portfolio *PortfolioService, queue *MutationQueue, kv interfaces.KeyValueStorage, staleness time.Duration, logger *common.Logger) *SyncManager {
	if staleness <= 0 {
		staleness = common.SyncStaleness
	}
	return &SyncManager{
		portfolio: portfolio,
		queue:     queue,
		kv:        kv,
		staleness: staleness,
		logger:    logger,
	}
}

// SyncIfStale runs a full sync unless the last successful sync is within
// the staleness window.
func (m *SyncManager) SyncIfStale(ctx context.Context) {
	if last := m.LastSync(ctx); last != nil && time.Since(*last) < m.staleness {
		m.logger.Debug().
			Str("last_sync", last.Format(time.RFC3339)).
			Msg("portfolio still fresh, skipping sync")
		return
	}
	m.FullSync(ctx)
}

// FullSync replays pending mutations, pulls the portfolio from the
// backend, and records the sync time on success. Failures are logged, not
// surfaced: sync runs in the background and the next trigger retries.
func (m *SyncManager) FullSync(ctx context.Context) {
	if !m.mu.TryLock() {
		m.logger.Debug().Msg("sync already in progress, skipping")
		return
	}
	defer m.mu.Unlock()

	m.logger.Info().Msg("starting portfolio sync")

	remaining, err := m.portfolio.ReplayQueue(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("mutation replay aborted")
	} else if remaining > 0 {
		m.logger.Warn().Int("remaining", remaining).Msg("some mutations still pending after replay")
	}

	portfolio, err := m.portfolio.Refresh(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("portfolio sync failed")
		return
	}

	m.recordSync(ctx)
	m.logger.Info().Int("holdings", len(portfolio.Holdings)).Msg("portfolio sync complete")
}

// LastSync returns the time of the last successful sync, or nil when no
// sync has succeeded yet.
func (m *SyncManager) LastSync(ctx context.Context) *time.Time {
	value, err := m.kv.Get(ctx, lastSyncKey)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			m.logger.Warn().Err(err).Msg("failed to read last sync time")
		}
		return nil
	}
	last, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		m.logger.Warn().Err(err).Msg("discarding unreadable last sync time")
		return nil
	}
	return &last
}

// PendingMutations returns the number of mutations awaiting replay.
func (m *SyncManager) PendingMutations(ctx context.Context) int {
	pending, err := m.queue.Pending(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to count pending mutations")
		return 0
	}
	return pending
}

// Reset clears the sync stamp so the next SyncIfStale runs a full sync.
func (m *SyncManager) Reset(ctx context.Context) error {
	return m.kv.Delete(ctx, lastSyncKey)
}

func (m *SyncManager) recordSync(ctx context.Context) {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := m.kv.Set(ctx, lastSyncKey, stamp); err != nil {
		m.logger.Warn().Err(err).Msg("failed to record sync time")
	}
}
