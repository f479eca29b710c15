package es

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregateStream(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, RegisterEvents(registry, Event[counterBumped]()))

	store := NewInMemoryStore()
	for _, v := range []int{3, 4, 5} {
		_, err := store.Append(t.Context(), "c-1", ExpectedAny, []ProposedEvent{proposeBump(t, v)})
		require.NoError(t, err)
	}

	events, err := store.ReadStream(t.Context(), "c-1")
	require.NoError(t, err)

	state, err := AggregateStream(registry, events, reduceCounter)
	require.NoError(t, err)
	require.Equal(t, 12, state.Total)
}

func TestAggregateStream_Empty(t *testing.T) {
	registry := NewRegistry()
	_, err := AggregateStream(registry, nil, reduceCounter)
	require.ErrorIs(t, err, ErrAggregationEmpty)
}

func TestRegistry_DecodeUnknownType(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Decode(RecordedEvent{Type: "ghost"})
	require.ErrorIs(t, err, ErrUnknownEventType)
}
