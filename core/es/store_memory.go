package es

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryStore is a simple, correct (optimistic) store for tests/dev.
// It keeps the global log as one ordered slice and serves subscriptions
// with a cursor-based tail, so catch-up and live delivery share one path.
type InMemoryStore struct {
	mu      sync.Mutex
	cond    *sync.Cond
	log     *slog.Logger
	events  []RecordedEvent
	streams map[string][]RecordedEvent
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{
		log:     slog.Default().With(slog.String("store", "memory")),
		streams: map[string][]RecordedEvent{},
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *InMemoryStore) ReadStream(_ context.Context, streamID string) ([]RecordedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[streamID]
	if !ok {
		return nil, ErrStreamNotFound
	}
	out := make([]RecordedEvent, len(stream))
	copy(out, stream)
	return out, nil
}

func (s *InMemoryStore) Append(
	_ context.Context,
	streamID string,
	expect ExpectedRevision,
	events []ProposedEvent,
) (*AppendResult, error) {
	if len(events) == 0 {
		return nil, ErrStoreNoEvents
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream, exists := s.streams[streamID]

	switch {
	case expect == ExpectedAny:
	case expect == ExpectedNoStream:
		if exists {
			return nil, ErrStreamAlreadyExists
		}
	default:
		if !exists {
			return nil, ErrStreamNotFound
		}
		last := stream[len(stream)-1].Revision
		if Expect(last) != expect {
			return nil, ErrConcurrencyConflict
		}
	}

	var res AppendResult
	for _, pe := range events {
		re := RecordedEvent{
			ID:         pe.ID,
			StreamID:   streamID,
			Type:       pe.Type,
			Revision:   Revision(len(stream)),
			Position:   Position(len(s.events) + 1),
			OccurredAt: pe.OccurredAt,
			Data:       pe.Data,
		}
		if err := re.Validate(); err != nil {
			return nil, err
		}
		stream = append(stream, re)
		s.events = append(s.events, re)
		res = AppendResult{NextRevision: re.Revision, Position: re.Position}
	}
	s.streams[streamID] = stream

	s.log.Debug(
		"append",
		slog.String("stream", streamID),
		slog.Int("num_events", len(events)),
		res.NextRevision.SlogAttr(),
	)

	// wake up tailing subscriptions
	s.cond.Broadcast()

	return &res, nil
}

func (s *InMemoryStore) SubscribeAll(ctx context.Context, from Position) (Subscription, error) {
	s.mu.Lock()
	maxPos := Position(len(s.events))
	s.mu.Unlock()

	sub := &inMemorySubscription{
		ch:     make(chan RecordedEvent, 64),
		done:   make(chan struct{}),
		maxPos: maxPos,
		wake: func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		},
	}

	go s.tail(ctx, sub, from)

	context.AfterFunc(ctx, sub.Cancel)

	return sub, nil
}

// tail delivers events in global order starting at from, then blocks for
// new appends. It runs until the subscription is cancelled.
func (s *InMemoryStore) tail(ctx context.Context, sub *inMemorySubscription, from Position) {
	defer close(sub.ch)

	cursor := int(from)
	if cursor > 0 {
		cursor-- // positions are 1-based, the slice is not
	}
	for {
		s.mu.Lock()
		for cursor >= len(s.events) && !sub.cancelled() && ctx.Err() == nil {
			s.cond.Wait()
		}
		if sub.cancelled() || ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		ev := s.events[cursor]
		cursor++
		s.mu.Unlock()

		select {
		case sub.ch <- ev:
		case <-sub.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

type inMemorySubscription struct {
	ch     chan RecordedEvent
	done   chan struct{}
	once   sync.Once
	maxPos Position
	wake   func()
}

func (s *inMemorySubscription) Chan() <-chan RecordedEvent { return s.ch }
func (s *inMemorySubscription) MaxPosition() Position      { return s.maxPos }
func (s *inMemorySubscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.wake()
	})
}

func (s *inMemorySubscription) cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

var _ EventStore = (*InMemoryStore)(nil)
