package es

import (
	"context"
	"errors"
)

var (
	ErrStoreNoEvents       = errors.New("no events to store")
	ErrStreamNotFound      = errors.New("stream not found")
	ErrStreamAlreadyExists = errors.New("stream already exists")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrUnknownEventType    = errors.New("unknown event type")
)

type (
	// AppendResult reports where an append landed.
	AppendResult struct {
		// NextRevision is the revision of the last event appended.
		NextRevision Revision
		// Position is the global log position of the last event appended.
		Position Position
	}

	// EventStore is the append-only, per-stream ordered log boundary.
	//
	// Append is linearized per stream via the expected revision: concurrent
	// writers race and the loser observes ErrConcurrencyConflict (or
	// ErrStreamAlreadyExists when expecting no stream). ReadStream returns
	// the full ordered history of one stream. SubscribeAll tails the global
	// log live and unbounded, starting at the given position (inclusive;
	// zero means the start of the log).
	EventStore interface {
		ReadStream(ctx context.Context, streamID string) ([]RecordedEvent, error)
		Append(ctx context.Context, streamID string, expect ExpectedRevision, events []ProposedEvent) (*AppendResult, error)
		SubscribeAll(ctx context.Context, from Position) (Subscription, error)
	}

	// Subscription delivers recorded events in global log order.
	Subscription interface {
		// Chan yields events; closed when the subscription is cancelled.
		Chan() <-chan RecordedEvent
		// MaxPosition is the highest log position at subscribe time; events
		// at or below it are catch-up, everything after is live.
		MaxPosition() Position
		Cancel()
	}
)

// AppendOne marshals a single domain event and appends it at the expected
// revision.
func AppendOne(ctx context.Context, store EventStore, streamID string, expect ExpectedRevision, ev TypedEvent) (*AppendResult, error) {
	pe, err := Propose(ev)
	if err != nil {
		return nil, err
	}
	return store.Append(ctx, streamID, expect, []ProposedEvent{pe})
}
