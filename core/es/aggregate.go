package es

import (
	"errors"
	"fmt"
)

var ErrAggregationEmpty = errors.New("aggregation yielded no state")

// Reducer folds one decoded event into the current state. A nil state means
// the stream has not produced state yet (the event at hand is expected to be
// the creation event). The reducer must be pure and total over the declared
// event set; an unrecognized event is a programming error, not recoverable.
type Reducer[T any] func(state *T, event any) (*T, error)

// AggregateStream folds an ordered event sequence into the final state.
// It fails with ErrAggregationEmpty when the sequence yields no events,
// which means a command was issued against a nonexistent stream.
func AggregateStream[T any](decoder Decoder, events []RecordedEvent, reduce Reducer[T]) (*T, error) {
	var state *T
	for _, re := range events {
		ev, err := decoder.Decode(re)
		if err != nil {
			return nil, fmt.Errorf("aggregate stream %s: %w", re.StreamID, err)
		}
		state, err = reduce(state, ev)
		if err != nil {
			return nil, err
		}
	}
	if state == nil {
		return nil, ErrAggregationEmpty
	}
	return state, nil
}
