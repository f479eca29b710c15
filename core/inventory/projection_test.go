package inventory

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SE121-UIT/inventory-service/core/es"
)

func handleEvent(t *testing.T, p *Projection, revision es.Revision, event any) error {
	t.Helper()
	var typ string
	if te, ok := event.(es.TypedEvent); ok {
		typ = te.EventType()
	}
	return p.Handle(context.Background(), es.RecordedEvent{
		ID:         "ev",
		StreamID:   StreamName("p-1"),
		Type:       typ,
		Revision:   revision,
		OccurredAt: time.Now(),
	}, event)
}

func newTestProjection(t *testing.T) (*Projection, *InMemoryRowStore) {
	t.Helper()
	rows := NewInMemoryRowStore()
	return NewProjection(slog.Default(), rows), rows
}

func TestProjection_CreateThenMutate(t *testing.T) {
	p, rows := newTestProjection(t)

	require.NoError(t, handleEvent(t, p, 0, createdEvent(10)))
	require.NoError(t, handleEvent(t, p, 1, &ProductAddQuantity{ProductID: "p-1", Quantity: 5}))
	require.NoError(t, handleEvent(t, p, 2, &ProductDeductQuantity{ProductID: "p-1", Quantity: 15}))

	row, err := rows.GetByID(t.Context(), "p-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), row.Quantity)
	require.Equal(t, StatusOutOfStock, row.Status)
	require.Equal(t, es.Revision(2), row.Revision)
}

func TestProjection_DuplicateCreateIsBenign(t *testing.T) {
	p, rows := newTestProjection(t)

	require.NoError(t, handleEvent(t, p, 0, createdEvent(10)))
	require.NoError(t, handleEvent(t, p, 0, createdEvent(10)))

	all, err := rows.List(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestProjection_RedeliveredMutationIsSkipped(t *testing.T) {
	p, rows := newTestProjection(t)

	require.NoError(t, handleEvent(t, p, 0, createdEvent(10)))
	add := &ProductAddQuantity{ProductID: "p-1", Quantity: 5}
	require.NoError(t, handleEvent(t, p, 1, add))
	// same event again: the row is already past the watermark
	require.NoError(t, handleEvent(t, p, 1, add))

	row, err := rows.GetByID(t.Context(), "p-1")
	require.NoError(t, err)
	require.Equal(t, int64(15), row.Quantity)
	require.Equal(t, es.Revision(1), row.Revision)
}

func TestProjection_MutationWithoutRowFails(t *testing.T) {
	p, _ := newTestProjection(t)

	err := handleEvent(t, p, 1, &ProductAddQuantity{ProductID: "p-1", Quantity: 5})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestProjection_UpdateInfoOverwritesDesc(t *testing.T) {
	p, rows := newTestProjection(t)

	desc := "first"
	created := createdEvent(3)
	created.Desc = &desc
	require.NoError(t, handleEvent(t, p, 0, created))

	name := "gadget"
	require.NoError(t, handleEvent(t, p, 1, &ProductUpdateInfo{ProductID: "p-1", Name: &name}))

	row, err := rows.GetByID(t.Context(), "p-1")
	require.NoError(t, err)
	require.Equal(t, "gadget", row.Name)
	require.Nil(t, row.Desc)
}

func TestProjection_DeleteRemovesRow(t *testing.T) {
	p, rows := newTestProjection(t)

	require.NoError(t, handleEvent(t, p, 0, createdEvent(3)))
	require.NoError(t, handleEvent(t, p, 1, &ProductDeleted{ProductID: "p-1"}))

	_, err := rows.GetByID(t.Context(), "p-1")
	require.ErrorIs(t, err, ErrRowNotFound)

	// redelivered delete is benign
	require.NoError(t, handleEvent(t, p, 1, &ProductDeleted{ProductID: "p-1"}))
}
