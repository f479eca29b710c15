package inventory

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SE121-UIT/inventory-service/core/es"
)

func newTestService(t *testing.T) (*Service, *es.InMemoryStore) {
	t.Helper()
	registry := es.NewRegistry()
	require.NoError(t, RegisterEvents(registry))
	store := es.NewInMemoryStore()
	return NewService(slog.Default(), store, registry), store
}

func createTestProduct(t *testing.T, svc *Service, id string, quantity int64) {
	t.Helper()
	_, err := svc.Create(t.Context(), CreateProduct{
		ProductID: id,
		Name:      "widget",
		Price:     100,
		Quantity:  quantity,
	})
	require.NoError(t, err)
}

func TestService_CreateAndMutate(t *testing.T) {
	svc, _ := newTestService(t)
	createTestProduct(t, svc, "p-1", 10)

	_, err := svc.AddQuantity(t.Context(), AddQuantityProduct{ProductID: "p-1", Quantity: 5})
	require.NoError(t, err)

	_, err = svc.DeductQuantity(t.Context(), DeductQuantityProduct{ProductID: "p-1", Quantity: 3})
	require.NoError(t, err)

	state, err := svc.CurrentState(t.Context(), "p-1")
	require.NoError(t, err)
	require.Equal(t, int64(12), state.Quantity)
	require.Equal(t, StatusAvailable, state.Status)
}

func TestService_CreateTwice(t *testing.T) {
	svc, _ := newTestService(t)
	createTestProduct(t, svc, "p-1", 1)

	_, err := svc.Create(t.Context(), CreateProduct{
		ProductID: "p-1", Name: "again", Price: 1, Quantity: 1,
	})
	require.ErrorIs(t, err, es.ErrStreamAlreadyExists)
}

func TestService_OverDeductAppendsNothing(t *testing.T) {
	svc, store := newTestService(t)
	createTestProduct(t, svc, "p-1", 2)

	_, err := svc.DeductQuantity(t.Context(), DeductQuantityProduct{ProductID: "p-1", Quantity: 3})
	require.ErrorIs(t, err, ErrProductNotEnough)

	events, err := store.ReadStream(t.Context(), StreamName("p-1"))
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestService_DeletedProductRejectsCommands(t *testing.T) {
	svc, _ := newTestService(t)
	createTestProduct(t, svc, "p-1", 5)

	_, err := svc.Delete(t.Context(), DeleteProduct{ProductID: "p-1"})
	require.NoError(t, err)

	_, err = svc.AddQuantity(t.Context(), AddQuantityProduct{ProductID: "p-1", Quantity: 1})
	require.ErrorIs(t, err, ErrProductIsAlreadyDeleted)

	_, err = svc.Delete(t.Context(), DeleteProduct{ProductID: "p-1"})
	require.ErrorIs(t, err, ErrProductIsAlreadyDeleted)
}

func TestService_UpdateInfo(t *testing.T) {
	svc, _ := newTestService(t)
	createTestProduct(t, svc, "p-1", 5)

	name := "gadget"
	_, err := svc.UpdateInfo(t.Context(), UpdateInfoProduct{ProductID: "p-1", Name: &name})
	require.NoError(t, err)

	state, err := svc.CurrentState(t.Context(), "p-1")
	require.NoError(t, err)
	require.Equal(t, "gadget", state.Name)
	require.Equal(t, int64(100), state.Price)
}

func TestService_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddQuantity(t.Context(), AddQuantityProduct{ProductID: "ghost", Quantity: 1})
	require.ErrorIs(t, err, es.ErrStreamNotFound)
}
