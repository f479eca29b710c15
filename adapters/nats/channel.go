package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	gonanoid "github.com/matoous/go-nanoid/v2"
	natsgo "github.com/nats-io/nats.go"

	"github.com/SE121-UIT/inventory-service/core/broker"
)

const (
	defaultExchange      = "ONLINE_SHOPPING_CART"
	correlationIDHeader  = "Correlation-Id"
	defaultRequestBuffer = 1
)

var ErrChannelClosed = errors.New("nats: channel closed")

type ChannelConfig struct {
	Connect  Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log      *slog.Logger // Log for diagnostics (optional)
	Exchange string       // Exchange name prefixing all routing keys
}

// Channel routes broker messages over core NATS. Routing keys map to
// subjects under the exchange prefix, reply addresses are NATS inboxes,
// and the correlation id rides in a message header.
type Channel struct {
	nc       *natsgo.Conn
	closeNc  closeFunc
	log      *slog.Logger
	exchange string

	mu   sync.Mutex
	subs map[*natsgo.Subscription]struct{}

	closed atomic.Bool
}

func NewChannel(cfg ChannelConfig) (*Channel, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, err
	}

	return &Channel{
		nc:       nc,
		closeNc:  closeNc,
		log:      log.With(slog.String("channel", "nats"), slog.String("exchange", exchange)),
		exchange: exchange,
		subs:     make(map[*natsgo.Subscription]struct{}),
	}, nil
}

func (c *Channel) subject(routingKey string) string {
	return c.exchange + "." + routingKey
}

func (c *Channel) Publish(_ context.Context, routingKey string, msg broker.Message) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := c.nc.Publish(c.subject(routingKey), payload); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	return nil
}

func (c *Channel) Consume(ctx context.Context, routingKey string, handler broker.HandlerFunc) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	subj := c.subject(routingKey)

	sub, err := c.nc.Subscribe(subj, func(msg *natsgo.Msg) {
		var m broker.Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			c.log.Error("failed to decode message", slog.Any("error", err))
			return
		}

		handler(ctx, broker.Delivery{
			Msg:           m,
			ReplyTo:       msg.Reply,
			CorrelationID: msg.Header.Get(correlationIDHeader),
		})
	})
	if err != nil {
		return fmt.Errorf("nats: subscribe %s: %w", subj, err)
	}

	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
	}()

	return nil
}

func (c *Channel) Reply(_ context.Context, replyTo, correlationID string, msg broker.Message) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	if replyTo == "" {
		return errors.New("nats: reply address is empty")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	out := natsgo.NewMsg(replyTo)
	out.Header.Set(correlationIDHeader, correlationID)
	out.Data = payload

	if err := c.nc.PublishMsg(out); err != nil {
		return fmt.Errorf("nats: publish reply: %w", err)
	}
	return nil
}

func (c *Channel) Request(ctx context.Context, routingKey string, msg broker.Message) (broker.Message, error) {
	if c.closed.Load() {
		return broker.Message{}, ErrChannelClosed
	}

	// Create a reply inbox and subscription
	inbox := natsgo.NewInbox()
	ch := make(chan *natsgo.Msg, defaultRequestBuffer)
	sub, err := c.nc.ChanSubscribe(inbox, ch)
	if err != nil {
		return broker.Message{}, fmt.Errorf("nats: subscribe inbox: %w", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	payload, err := json.Marshal(msg)
	if err != nil {
		return broker.Message{}, fmt.Errorf("encode message: %w", err)
	}

	out := natsgo.NewMsg(c.subject(routingKey))
	out.Reply = inbox
	out.Header.Set(correlationIDHeader, gonanoid.Must())
	out.Data = payload

	if err := c.nc.PublishMsg(out); err != nil {
		return broker.Message{}, fmt.Errorf("nats: publish request: %w", err)
	}

	select {
	case <-ctx.Done():
		return broker.Message{}, ctx.Err()
	case reply, ok := <-ch:
		if !ok {
			return broker.Message{}, ErrChannelClosed
		}
		var m broker.Message
		if err := json.Unmarshal(reply.Data, &m); err != nil {
			return broker.Message{}, fmt.Errorf("decode reply: %w", err)
		}
		return m, nil
	}
}

func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return ErrChannelClosed
	}
	c.mu.Lock()
	for s := range c.subs {
		_ = s.Unsubscribe()
	}
	c.subs = map[*natsgo.Subscription]struct{}{}
	c.mu.Unlock()
	// the connection may be shared with the event store, so only the lease
	// is returned here
	c.closeNc()
	return nil
}

var _ broker.Channel = (*Channel)(nil)
