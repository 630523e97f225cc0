// Package service implements the offline-first sync core: the remote-first
// portfolio service, the TTL-cached news and exchange rate services, the
// durable mutation queue, and the sync manager that ties them together.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/equitylabs/equitysync/internal/common"
	"github.com/equitylabs/equitysync/internal/interfaces"
	"github.com/equitylabs/equitysync/internal/models"
)

const mutationQueueKey = "mutation-queue"

// MutationExecutor applies one pending mutation against the backend.
type MutationExecutor func(ctx context.Context, mutation models.PendingMutation) error

// MutationQueue is a durable FIFO of writes awaiting successful remote
// application. Every change is flushed to the local store synchronously so
// a crash cannot drop an accepted edit. The queue is never reordered or
// coalesced: a create/update/delete sequence for one symbol replays as
// three discrete operations.
type MutationQueue struct {
	kv     interfaces.KeyValueStorage
	logger *common.Logger
	mu     sync.Mutex
}

// NewMutationQueue creates a mutation queue over the local store.
func NewMutationQueue(kv interfaces.KeyValueStorage, logger *common.Logger) *MutationQueue {
	return &MutationQueue{
		kv:     kv,
		logger: logger,
	}
}

// Enqueue appends a mutation and persists the queue immediately.
func (q *MutationQueue) Enqueue(ctx context.Context, mutation models.PendingMutation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, err := q.load(ctx)
	if err != nil {
		return err
	}
	queue = append(queue, mutation)
	if err := q.save(ctx, queue); err != nil {
		return err
	}

	q.logger.Info().
		Str("kind", string(mutation.Kind)).
		Str("symbol", mutation.Symbol).
		Int("pending", len(queue)).
		Msg("queued offline mutation")
	return nil
}

// ReplayAll executes queued mutations in FIFO order. A mutation that
// succeeds is dropped; one that fails is retained in its original relative
// order so it is attempted first next time. Returns the remaining count.
func (q *MutationQueue) ReplayAll(ctx context.Context, exec MutationExecutor) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	if len(queue) == 0 {
		return 0, nil
	}

	q.logger.Info().Int("pending", len(queue)).Msg("replaying pending mutations")

	remaining := make([]models.PendingMutation, 0, len(queue))
	for _, mutation := range queue {
		if err := exec(ctx, mutation); err != nil {
			q.logger.Warn().
				Err(err).
				Str("kind", string(mutation.Kind)).
				Str("symbol", mutation.Symbol).
				Msg("mutation replay failed, keeping in queue")
			remaining = append(remaining, mutation)
			continue
		}
		q.logger.Debug().
			Str("kind", string(mutation.Kind)).
			Str("symbol", mutation.Symbol).
			Msg("replayed mutation")
	}

	if err := q.save(ctx, remaining); err != nil {
		return len(remaining), err
	}
	return len(remaining), nil
}

// Pending returns the number of queued mutations.
func (q *MutationQueue) Pending(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(queue), nil
}

// Clear discards the entire queue (used on sign-out).
func (q *MutationQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.kv.Delete(ctx, mutationQueueKey); err != nil {
		return fmt.Errorf("failed to clear mutation queue: %w", err)
	}
	q.logger.Info().Msg("cleared mutation queue")
	return nil
}

// load reads the persisted queue. Must be called with mu held.
func (q *MutationQueue) load(ctx context.Context) ([]models.PendingMutation, error) {
	value, err := q.kv.Get(ctx, mutationQueueKey)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load mutation queue: %w", err)
	}

	var queue []models.PendingMutation
	if err := json.Unmarshal([]byte(value), &queue); err != nil {
		return nil, fmt.Errorf("failed to decode mutation queue: %w", err)
	}
	return queue, nil
}

// save persists the queue. Must be called with mu held.
func (q *MutationQueue) save(ctx context.Context, queue []models.PendingMutation) error {
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to encode mutation queue: %w", err)
	}
	if err := q.kv.Set(ctx, mutationQueueKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist mutation queue: %w", err)
	}
	return nil
}
