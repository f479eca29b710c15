package es

import (
	"context"
	"errors"
	"sync"
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointStore persists subscription progress through the global log.
// One row per subscription id, single-row granularity, no batching.
type CheckpointStore interface {
	// Load returns the last persisted position for the subscription.
	// Returns ErrCheckpointNotFound when no checkpoint exists yet.
	Load(ctx context.Context, subscriptionID string) (Position, error)
	// Save upserts the position for the subscription.
	Save(ctx context.Context, subscriptionID string, pos Position) error
}

type InMemoryCheckpointStore struct {
	mu sync.RWMutex
	m  map[string]Position
}

func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{m: map[string]Position{}}
}

func (s *InMemoryCheckpointStore) Load(_ context.Context, subscriptionID string) (Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.m[subscriptionID]
	if !ok {
		return 0, ErrCheckpointNotFound
	}
	return pos, nil
}

func (s *InMemoryCheckpointStore) Save(_ context.Context, subscriptionID string, pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[subscriptionID] = pos
	return nil
}

var _ CheckpointStore = (*InMemoryCheckpointStore)(nil)
