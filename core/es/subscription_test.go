package es

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingProjection struct {
	mu      sync.Mutex
	seen    []Position
	failAt  Position
	failErr error
}

func (p *recordingProjection) Name() string { return "recording" }

func (p *recordingProjection) Handle(_ context.Context, re RecordedEvent, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt != 0 && re.Position == p.failAt {
		return p.failErr
	}
	p.seen = append(p.seen, re.Position)
	return nil
}

func (p *recordingProjection) positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, len(p.seen))
	copy(out, p.seen)
	return out
}

func newSubTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	registry := NewRegistry()
	require.NoError(t, RegisterEvents(registry, Event[counterBumped]()))
	return registry
}

func TestCatchUpSubscription_CatchUpThenLive(t *testing.T) {
	store := NewInMemoryStore()
	registry := newSubTestRegistry(t)
	cps := NewInMemoryCheckpointStore()
	proj := &recordingProjection{}

	for range 3 {
		_, err := store.Append(t.Context(), "c-1", ExpectedAny, []ProposedEvent{proposeBump(t, 1)})
		require.NoError(t, err)
	}

	sub := NewCatchUpSubscription("test", store, registry, cps, []Projection{proj})
	require.NoError(t, sub.Start(t.Context()))
	defer sub.Stop()

	require.Eventually(t, func() bool {
		return len(proj.positions()) == 3 && sub.Live()
	}, time.Second, 5*time.Millisecond)

	// a live append flows through and moves the checkpoint
	_, err := store.Append(t.Context(), "c-1", ExpectedAny, []ProposedEvent{proposeBump(t, 1)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pos, err := cps.Load(t.Context(), "test")
		return err == nil && pos == Position(4)
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []Position{1, 2, 3, 4}, proj.positions())
}

func TestCatchUpSubscription_ResumesFromCheckpoint(t *testing.T) {
	store := NewInMemoryStore()
	registry := newSubTestRegistry(t)
	cps := NewInMemoryCheckpointStore()

	for range 3 {
		_, err := store.Append(t.Context(), "c-1", ExpectedAny, []ProposedEvent{proposeBump(t, 1)})
		require.NoError(t, err)
	}
	require.NoError(t, cps.Save(t.Context(), "test", 2))

	proj := &recordingProjection{}
	sub := NewCatchUpSubscription("test", store, registry, cps, []Projection{proj})
	require.NoError(t, sub.Start(t.Context()))
	defer sub.Stop()

	require.Eventually(t, func() bool {
		return len(proj.positions()) == 1
	}, time.Second, 5*time.Millisecond)

	// only the event past the checkpoint is delivered
	require.Equal(t, []Position{3}, proj.positions())
}

func TestCatchUpSubscription_FailureStopsWithoutCheckpoint(t *testing.T) {
	store := NewInMemoryStore()
	registry := newSubTestRegistry(t)
	cps := NewInMemoryCheckpointStore()

	for range 3 {
		_, err := store.Append(t.Context(), "c-1", ExpectedAny, []ProposedEvent{proposeBump(t, 1)})
		require.NoError(t, err)
	}

	boom := errors.New("projection broken")
	proj := &recordingProjection{failAt: 2, failErr: boom}

	sub := NewCatchUpSubscription("test", store, registry, cps, []Projection{proj})
	require.NoError(t, sub.Start(t.Context()))

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop on projection failure")
	}

	// checkpoint stuck before the failed event
	pos, err := cps.Load(t.Context(), "test")
	require.NoError(t, err)
	require.Equal(t, Position(1), pos)

	// a fresh start redelivers the failed event and everything after it
	proj2 := &recordingProjection{}
	sub2 := NewCatchUpSubscription("test", store, registry, cps, []Projection{proj2})
	require.NoError(t, sub2.Start(t.Context()))
	defer sub2.Stop()

	require.Eventually(t, func() bool {
		return len(proj2.positions()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []Position{2, 3}, proj2.positions())
}

func TestCatchUpSubscription_LiveOnEmptyLog(t *testing.T) {
	store := NewInMemoryStore()
	registry := newSubTestRegistry(t)

	sub := NewCatchUpSubscription(
		"test", store, registry, NewInMemoryCheckpointStore(), nil,
	)
	require.NoError(t, sub.Start(t.Context()))
	defer sub.Stop()

	require.True(t, sub.Live())
}

type failingCheckpointStore struct{ err error }

func (f failingCheckpointStore) Load(context.Context, string) (Position, error) { return 0, f.err }
func (f failingCheckpointStore) Save(context.Context, string, Position) error   { return f.err }

func TestCatchUpSubscription_StopWithoutStart(t *testing.T) {
	store := NewInMemoryStore()
	sub := NewCatchUpSubscription(
		"test", store, newSubTestRegistry(t), NewInMemoryCheckpointStore(), nil,
	)

	stopped := make(chan struct{})
	go func() {
		sub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return without a prior Start")
	}
}

func TestCatchUpSubscription_StopAfterFailedStart(t *testing.T) {
	store := NewInMemoryStore()
	cps := failingCheckpointStore{err: errors.New("checkpoint store down")}
	sub := NewCatchUpSubscription("test", store, newSubTestRegistry(t), cps, nil)

	require.Error(t, sub.Start(t.Context()))

	stopped := make(chan struct{})
	go func() {
		sub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after a failed Start")
	}
}
