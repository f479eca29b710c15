package es

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecordedEvent is an event as read back from the store. It is the unit of
// storage: immutable once appended, ordered within its stream by Revision
// and across the whole log by Position.
type RecordedEvent struct {
	// ID is the unique identifier of this event.
	ID string `json:"id"`
	// StreamID identifies the stream this event belongs to.
	StreamID string `json:"stream_id"`
	// Type is the event type tag used for deserialization routing.
	Type string `json:"type"`
	// Revision is the zero-based position of this event within its stream.
	Revision Revision `json:"revision"`
	// Position is the global log position assigned by the store.
	Position Position `json:"position"`
	// OccurredAt is when the event was created.
	OccurredAt time.Time `json:"occurred_at"`
	// Data contains the JSON-encoded event payload.
	Data json.RawMessage `json:"data"`
}

func (e RecordedEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is empty")
	}
	if e.StreamID == "" {
		return fmt.Errorf("event stream id is empty")
	}
	if e.Type == "" {
		return fmt.Errorf("event type is empty")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("event occurred at is zero")
	}
	return nil
}

// ProposedEvent is an event not yet appended. Revision and Position are
// assigned by the store at append time.
type ProposedEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type Decoder interface {
	Decode(e RecordedEvent) (any, error)
}
