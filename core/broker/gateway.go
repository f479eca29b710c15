package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SE121-UIT/inventory-service/core/cart"
	"github.com/SE121-UIT/inventory-service/core/inventory"
	"github.com/SE121-UIT/inventory-service/core/sf"
)

const defaultHandleTimeout = 30 * time.Second

// ConnectFunc creates the shared broker channel.
type ConnectFunc func(ctx context.Context) (Channel, error)

// Gateway owns the process-wide broker channel and dispatches inbound
// messages to the read model and the cart orchestrator.
//
// The channel is created lazily on first use, guarded by singleflight so
// concurrent callers share one connection attempt. A failed creation is not
// cached: the next caller retries.
type Gateway struct {
	log        *slog.Logger
	connect    ConnectFunc
	routingKey string
	rows       inventory.RowStore
	carts      *cart.Orchestrator
	timeout    time.Duration

	flight *sf.Singleflight[channelHolder]
	mu     sync.RWMutex
	ch     Channel
}

type channelHolder struct{ ch Channel }

type GatewayConfig struct {
	Log        *slog.Logger
	Connect    ConnectFunc
	RoutingKey string // routing key identifying this service instance's binding
	Rows       inventory.RowStore
	Carts      *cart.Orchestrator
	// HandleTimeout bounds the processing of one inbound message.
	HandleTimeout time.Duration
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Connect == nil {
		return nil, errors.New("broker: connect func is required")
	}
	if cfg.RoutingKey == "" {
		return nil, errors.New("broker: routing key is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.HandleTimeout
	if timeout == 0 {
		timeout = defaultHandleTimeout
	}
	return &Gateway{
		log:        log.With(slog.String("gateway", "broker"), slog.String("routing_key", cfg.RoutingKey)),
		connect:    cfg.Connect,
		routingKey: cfg.RoutingKey,
		rows:       cfg.Rows,
		carts:      cfg.Carts,
		timeout:    timeout,
		flight:     sf.New[channelHolder](),
	}, nil
}

// Channel returns the shared channel, creating it on first use.
func (g *Gateway) Channel(ctx context.Context) (Channel, error) {
	g.mu.RLock()
	ch := g.ch
	g.mu.RUnlock()
	if ch != nil {
		return ch, nil
	}

	holder, err := g.flight.Do("channel", func() (*channelHolder, error) {
		ch, err := g.connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("create broker channel: %w", err)
		}
		g.mu.Lock()
		g.ch = ch
		g.mu.Unlock()
		return &channelHolder{ch: ch}, nil
	})
	if err != nil {
		return nil, err
	}
	return holder.ch, nil
}

// Start binds this service's queue and begins consuming. Delivery is
// at-most-once: messages are acknowledged on receipt.
func (g *Gateway) Start(ctx context.Context) error {
	ch, err := g.Channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.Consume(ctx, g.routingKey, g.dispatch); err != nil {
		return fmt.Errorf("consume %s: %w", g.routingKey, err)
	}
	g.log.Info("consuming")
	return nil
}

// Close tears the shared channel down. Safe to call before first use.
func (g *Gateway) Close() error {
	g.mu.Lock()
	ch := g.ch
	g.ch = nil
	g.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Close()
}

// dispatch is the closed switch over inbound message tags.
func (g *Gateway) dispatch(ctx context.Context, d Delivery) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	log := g.log.With(
		slog.String("name", d.Msg.Name),
		slog.String("correlation_id", d.CorrelationID),
	)

	var err error
	switch d.Msg.Name {
	case MsgProductIDCheck:
		err = g.handleProductIDCheck(ctx, d)
	case MsgCartConfirmation:
		err = g.handleCartConfirmation(ctx, d)
	default:
		err = fmt.Errorf("%w: %s", ErrBrokerNotMapped, d.Msg.Name)
	}
	if err != nil {
		// no dead-lettering: the message is gone
		log.Error("message dropped", slog.Any("error", err))
		return
	}
	log.Debug("handled")
}

func (g *Gateway) handleProductIDCheck(ctx context.Context, d Delivery) error {
	var req ProductIDCheck
	if err := json.Unmarshal(d.Msg.Data, &req); err != nil {
		return fmt.Errorf("decode %s: %w", MsgProductIDCheck, err)
	}

	exists := true
	if _, err := g.rows.GetByID(ctx, req.ProductID); err != nil {
		if !errors.Is(err, inventory.ErrRowNotFound) {
			return err
		}
		exists = false
	}

	return g.reply(ctx, d, MsgProductIDCheckReply, ProductIDCheckReply{
		ProductID: req.ProductID,
		Result:    exists,
	})
}

func (g *Gateway) handleCartConfirmation(ctx context.Context, d Delivery) error {
	var req CartConfirmation
	if err := json.Unmarshal(d.Msg.Data, &req); err != nil {
		return fmt.Errorf("decode %s: %w", MsgCartConfirmation, err)
	}

	items := make([]cart.ProductItem, len(req.ProductItems))
	for i, it := range req.ProductItems {
		items[i] = cart.ProductItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	res, err := g.carts.Deduct(ctx, items)
	if err != nil {
		return err
	}

	return g.reply(ctx, d, MsgCartConfirmationReply, CartConfirmationReply{
		Message: res.Message,
		Result:  res.Result,
	})
}

func (g *Gateway) reply(ctx context.Context, d Delivery, name string, data any) error {
	msg, err := NewMessage(name, data)
	if err != nil {
		return err
	}
	ch, err := g.Channel(ctx)
	if err != nil {
		return err
	}
	return ch.Reply(ctx, d.ReplyTo, d.CorrelationID, msg)
}
