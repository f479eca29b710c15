package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SE121-UIT/inventory-service/core/es"
)

type fakeConsumeContext struct {
	drained chan struct{}
	closed  chan struct{}
}

func (f *fakeConsumeContext) Drain()                  { close(f.drained) }
func (f *fakeConsumeContext) Closed() <-chan struct{} { return f.closed }

func TestStopConsume_WaitsForConsumeLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	ch := make(chan es.RecordedEvent)

	fc := &fakeConsumeContext{
		drained: make(chan struct{}),
		closed:  make(chan struct{}),
	}

	// a callback stuck on its delivery send, as Consume would leave it
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		select {
		case ch <- es.RecordedEvent{}:
		case <-ctx.Done():
		}
	}()

	stopDone := make(chan struct{})
	go func() {
		stopConsume(cancel, fc, ch)
		close(stopDone)
	}()

	select {
	case <-senderDone:
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock the callback")
	}
	select {
	case <-fc.drained:
	case <-time.After(time.Second):
		t.Fatal("consumer was not drained")
	}

	// the channel must stay open until the consume loop reports closed
	select {
	case <-stopDone:
		t.Fatal("teardown finished before the consume loop closed")
	case <-time.After(50 * time.Millisecond):
	}

	close(fc.closed)

	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("teardown did not finish")
	}

	_, open := <-ch
	require.False(t, open)
}

func TestEventStore_AppendRejectsBatch(t *testing.T) {
	store := &EventStore{}

	_, err := store.Append(t.Context(), "inventory-1", es.ExpectedAny, []es.ProposedEvent{
		{ID: "a", Type: "product-created", Data: []byte(`{}`)},
		{ID: "b", Type: "product-quantity-added", Data: []byte(`{}`)},
	})
	require.ErrorContains(t, err, "one event per call")

	_, err = store.Append(t.Context(), "inventory-1", es.ExpectedAny, nil)
	require.ErrorIs(t, err, es.ErrStoreNoEvents)
}
