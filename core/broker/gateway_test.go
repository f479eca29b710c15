package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SE121-UIT/inventory-service/core/cart"
	"github.com/SE121-UIT/inventory-service/core/es"
	"github.com/SE121-UIT/inventory-service/core/inventory"
)

const testRoutingKey = "INVENTORY_SERVICE"

type gatewayFixture struct {
	gw      *Gateway
	channel *InMemoryChannel
	svc     *inventory.Service
	rows    *inventory.InMemoryRowStore
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	registry := es.NewRegistry()
	require.NoError(t, inventory.RegisterEvents(registry))
	store := es.NewInMemoryStore()
	rows := inventory.NewInMemoryRowStore()
	svc := inventory.NewService(slog.Default(), store, registry)

	channel := NewInMemoryChannel()
	gw, err := NewGateway(GatewayConfig{
		Log:        slog.Default(),
		RoutingKey: testRoutingKey,
		Rows:       rows,
		Carts:      cart.NewOrchestrator(slog.Default(), rows, svc),
		Connect: func(context.Context) (Channel, error) {
			return channel, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, gw.Start(t.Context()))
	t.Cleanup(func() { _ = gw.Close() })

	return &gatewayFixture{gw: gw, channel: channel, svc: svc, rows: rows}
}

func (f *gatewayFixture) seedProduct(t *testing.T, id string, quantity int64) {
	t.Helper()
	_, err := f.svc.Create(t.Context(), inventory.CreateProduct{
		ProductID: id, Name: "widget", Price: 100, Quantity: quantity,
	})
	require.NoError(t, err)

	err = f.rows.Tx(t.Context(), func(tx inventory.RowTx) error {
		return tx.Insert(inventory.ProductRow{
			ProductID: id, Name: "widget", Price: 100, Quantity: quantity,
			Status: inventory.StatusAvailable, CreatedAt: time.Now(), LastUpdated: time.Now(),
		})
	})
	require.NoError(t, err)
}

func (f *gatewayFixture) request(t *testing.T, name string, payload any) Message {
	t.Helper()
	msg, err := NewMessage(name, payload)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	reply, err := f.channel.Request(ctx, testRoutingKey, msg)
	require.NoError(t, err)
	return reply
}

func TestGateway_ProductIDCheck(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedProduct(t, "p-1", 5)

	reply := f.request(t, MsgProductIDCheck, ProductIDCheck{ProductID: "p-1"})
	require.Equal(t, MsgProductIDCheckReply, reply.Name)

	var res ProductIDCheckReply
	require.NoError(t, json.Unmarshal(reply.Data, &res))
	require.True(t, res.Result)
	require.Equal(t, "p-1", res.ProductID)

	reply = f.request(t, MsgProductIDCheck, ProductIDCheck{ProductID: "ghost"})
	require.NoError(t, json.Unmarshal(reply.Data, &res))
	require.False(t, res.Result)
}

func TestGateway_CartConfirmation(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedProduct(t, "p-1", 10)

	reply := f.request(t, MsgCartConfirmation, CartConfirmation{
		ProductItems: []CartItem{{ProductID: "p-1", Quantity: 4}},
	})
	require.Equal(t, MsgCartConfirmationReply, reply.Name)

	var res CartConfirmationReply
	require.NoError(t, json.Unmarshal(reply.Data, &res))
	require.True(t, res.Result)
	require.Equal(t, cart.MessageSuccess, res.Message)

	state, err := f.svc.CurrentState(t.Context(), "p-1")
	require.NoError(t, err)
	require.Equal(t, int64(6), state.Quantity)
}

func TestGateway_CartConfirmationNotAvailable(t *testing.T) {
	f := newGatewayFixture(t)
	f.seedProduct(t, "p-1", 2)

	reply := f.request(t, MsgCartConfirmation, CartConfirmation{
		ProductItems: []CartItem{{ProductID: "p-1", Quantity: 5}},
	})

	var res CartConfirmationReply
	require.NoError(t, json.Unmarshal(reply.Data, &res))
	require.False(t, res.Result)
	require.Equal(t, cart.MessageProductsNotAvailable, res.Message)
}

func TestGateway_UnmappedTagIsDropped(t *testing.T) {
	f := newGatewayFixture(t)

	msg, err := NewMessage("unknown_tag", struct{}{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	// no reply ever comes; the message is logged and dropped
	_, err = f.channel.Request(ctx, testRoutingKey, msg)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
