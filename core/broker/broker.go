// Package broker exposes the inventory service to other services over a
// message broker: a tagged request/reply protocol for product existence
// checks and cart-confirmation deductions.
package broker

import (
	"context"
	"encoding/json"
	"errors"
)

// Message tags of the broker protocol. The tags and the JSON envelope
// {"name": ..., "data": ...} are wire-exact contracts with other services.
const (
	MsgProductIDCheck        = "product_id_check"
	MsgProductIDCheckReply   = "product_id_check_reply"
	MsgCartConfirmation      = "cart_confirmation"
	MsgCartConfirmationReply = "cart_confirmation_reply"
)

// ErrBrokerNotMapped: an inbound message carried a tag outside the closed
// dispatch set. Programming-level defect; the message is logged and dropped.
var ErrBrokerNotMapped = errors.New("broker message tag not mapped")

// Message is the tagged wire envelope of every broker message.
type Message struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// NewMessage marshals data into a tagged message.
func NewMessage(name string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Name: name, Data: raw}, nil
}

// Delivery is one inbound message plus the reply metadata carried in broker
// message properties (not in the payload body). It is transient: it exists
// only for the duration of one round trip.
type Delivery struct {
	Msg           Message
	ReplyTo       string
	CorrelationID string
}

// HandlerFunc processes one delivery. Messages are acknowledged on receipt
// (fire-and-forget): a crashing handler loses the message.
type HandlerFunc func(ctx context.Context, d Delivery)

// Channel is the process-wide broker boundary: one durable direct-routed
// exchange, publish by routing key, consume via an exclusive auto-named
// queue bound under a routing key, and request/reply correlation carried in
// message metadata.
type Channel interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
	Consume(ctx context.Context, routingKey string, handler HandlerFunc) error
	Reply(ctx context.Context, replyTo, correlationID string, msg Message) error
	// Request publishes msg and blocks for the correlated reply.
	Request(ctx context.Context, routingKey string, msg Message) (Message, error)
	Close() error
}

// Payload shapes of the protocol.
type (
	ProductIDCheck struct {
		ProductID string `json:"productId"`
	}

	ProductIDCheckReply struct {
		ProductID string `json:"productId"`
		Result    bool   `json:"result"`
	}

	CartConfirmation struct {
		ProductItems []CartItem `json:"productItems"`
	}

	CartItem struct {
		ProductID string `json:"productId"`
		Quantity  int64  `json:"quantity"`
	}

	CartConfirmationReply struct {
		Message string `json:"message"`
		Result  bool   `json:"result"`
	}
)
