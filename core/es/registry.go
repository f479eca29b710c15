package es

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TypedEvent is implemented by domain events that carry their own wire tag.
type TypedEvent interface {
	EventType() string
}

// EventRegistry maps event type tags to constructors so persisted events can
// be decoded back into their domain types.
type EventRegistry struct {
	mu   sync.RWMutex
	news map[string]func() any
}

func NewRegistry() *EventRegistry {
	return &EventRegistry{news: map[string]func() any{}}
}

func (r *EventRegistry) Register(eventType string, ctor func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.news[eventType] = ctor
}

func (r *EventRegistry) Decode(e RecordedEvent) (any, error) {
	r.mu.RLock()
	ctor, ok := r.news[e.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, e.Type)
	}
	ev := ctor()
	if e.Data != nil {
		if err := json.Unmarshal(e.Data, ev); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

type Registrar interface {
	Register(eventType string, ctor func() any)
}

// RegisterEvents registers event constructors by their wire tag. Each
// constructor is called once to derive the tag and then kept so future
// decodes produce fresh instances per call.
func RegisterEvents(r Registrar, ctors ...func() any) error {
	for _, ctor := range ctors {
		sample := ctor()
		te, ok := sample.(TypedEvent)
		if !ok {
			return fmt.Errorf("event %T does not declare a wire tag", sample)
		}
		r.Register(te.EventType(), ctor)
	}
	return nil
}

// Event returns a constructor for an event of type T.
func Event[T any]() func() any { return func() any { return new(T) } }

// Propose marshals a domain event into a ProposedEvent with a fresh id.
func Propose(ev TypedEvent) (ProposedEvent, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return ProposedEvent{}, err
	}
	return ProposedEvent{
		ID:         gonanoid.Must(),
		Type:       ev.EventType(),
		OccurredAt: time.Now(),
		Data:       data,
	}, nil
}

var _ Decoder = (*EventRegistry)(nil)
