package cart

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SE121-UIT/inventory-service/core/es"
	"github.com/SE121-UIT/inventory-service/core/inventory"
)

type cartFixture struct {
	orch  *Orchestrator
	svc   *inventory.Service
	store *es.InMemoryStore
	rows  *inventory.InMemoryRowStore
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	registry := es.NewRegistry()
	require.NoError(t, inventory.RegisterEvents(registry))
	store := es.NewInMemoryStore()
	rows := inventory.NewInMemoryRowStore()
	svc := inventory.NewService(slog.Default(), store, registry)
	return &cartFixture{
		orch:  NewOrchestrator(slog.Default(), rows, svc),
		svc:   svc,
		store: store,
		rows:  rows,
	}
}

// seedProduct creates the product stream and mirrors it into the read model,
// standing in for the projection.
func (f *cartFixture) seedProduct(t *testing.T, id string, quantity int64) {
	t.Helper()
	_, err := f.svc.Create(t.Context(), inventory.CreateProduct{
		ProductID: id,
		Name:      "widget",
		Price:     100,
		Quantity:  quantity,
	})
	require.NoError(t, err)

	err = f.rows.Tx(t.Context(), func(tx inventory.RowTx) error {
		return tx.Insert(inventory.ProductRow{
			ProductID:   id,
			Name:        "widget",
			Price:       100,
			Quantity:    quantity,
			Status:      inventory.StatusAvailable,
			Revision:    0,
			CreatedAt:   time.Now(),
			LastUpdated: time.Now(),
		})
	})
	require.NoError(t, err)
}

func (f *cartFixture) streamLen(t *testing.T, id string) int {
	t.Helper()
	events, err := f.store.ReadStream(t.Context(), inventory.StreamName(id))
	require.NoError(t, err)
	return len(events)
}

func TestOrchestrator_DeductSuccess(t *testing.T) {
	f := newCartFixture(t)
	f.seedProduct(t, "p-1", 10)
	f.seedProduct(t, "p-2", 4)

	res, err := f.orch.Deduct(t.Context(), []ProductItem{
		{ProductID: "p-1", Quantity: 3},
		{ProductID: "p-2", Quantity: 4},
	})
	require.NoError(t, err)
	require.True(t, res.Result)
	require.Equal(t, MessageSuccess, res.Message)

	state, err := f.svc.CurrentState(t.Context(), "p-1")
	require.NoError(t, err)
	require.Equal(t, int64(7), state.Quantity)

	state, err = f.svc.CurrentState(t.Context(), "p-2")
	require.NoError(t, err)
	require.Equal(t, int64(0), state.Quantity)
	require.Equal(t, inventory.StatusOutOfStock, state.Status)
}

func TestOrchestrator_UnknownProductID(t *testing.T) {
	f := newCartFixture(t)
	f.seedProduct(t, "p-1", 10)

	res, err := f.orch.Deduct(t.Context(), []ProductItem{
		{ProductID: "p-1", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})
	require.NoError(t, err)
	require.False(t, res.Result)
	require.Equal(t, MessageProductIDInCart, res.Message)

	// validation failed before any deduction
	require.Equal(t, 1, f.streamLen(t, "p-1"))
}

func TestOrchestrator_InsufficientStock(t *testing.T) {
	f := newCartFixture(t)
	f.seedProduct(t, "p-1", 10)
	f.seedProduct(t, "p-2", 2)

	res, err := f.orch.Deduct(t.Context(), []ProductItem{
		{ProductID: "p-1", Quantity: 3},
		{ProductID: "p-2", Quantity: 5},
	})
	require.NoError(t, err)
	require.False(t, res.Result)
	require.Equal(t, MessageProductsNotAvailable, res.Message)

	// no event-log writes for either product
	require.Equal(t, 1, f.streamLen(t, "p-1"))
	require.Equal(t, 1, f.streamLen(t, "p-2"))
}
