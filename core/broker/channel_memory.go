package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// InMemoryChannel is a broker channel for tests/dev: direct routing by key,
// reply inboxes correlated by id, handlers invoked asynchronously like a
// real consumer callback.
type InMemoryChannel struct {
	mu      sync.RWMutex
	subs    map[string][]HandlerFunc
	inboxes map[string]chan Message
	closed  bool
}

func NewInMemoryChannel() *InMemoryChannel {
	return &InMemoryChannel{
		subs:    map[string][]HandlerFunc{},
		inboxes: map[string]chan Message{},
	}
}

func (c *InMemoryChannel) Publish(ctx context.Context, routingKey string, msg Message) error {
	return c.deliver(ctx, routingKey, Delivery{Msg: msg})
}

func (c *InMemoryChannel) Consume(_ context.Context, routingKey string, handler HandlerFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	c.subs[routingKey] = append(c.subs[routingKey], handler)
	return nil
}

func (c *InMemoryChannel) Reply(_ context.Context, replyTo, correlationID string, msg Message) error {
	c.mu.RLock()
	inbox, ok := c.inboxes[replyTo]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown reply destination %s", replyTo)
	}
	_ = correlationID // one inbox per request, correlation is implicit
	inbox <- msg
	return nil
}

func (c *InMemoryChannel) Request(ctx context.Context, routingKey string, msg Message) (Message, error) {
	inboxID := gonanoid.Must()
	inbox := make(chan Message, 1)

	c.mu.Lock()
	c.inboxes[inboxID] = inbox
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inboxes, inboxID)
		c.mu.Unlock()
	}()

	if err := c.deliver(ctx, routingKey, Delivery{
		Msg:           msg,
		ReplyTo:       inboxID,
		CorrelationID: gonanoid.Must(),
	}); err != nil {
		return Message{}, err
	}

	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case reply := <-inbox:
		return reply, nil
	}
}

func (c *InMemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *InMemoryChannel) deliver(ctx context.Context, routingKey string, d Delivery) error {
	c.mu.RLock()
	handlers := append([]HandlerFunc(nil), c.subs[routingKey]...)
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return errors.New("channel closed")
	}

	for _, h := range handlers {
		go h(ctx, d)
	}
	return nil
}

var _ Channel = (*InMemoryChannel)(nil)
