package inventory

import (
	"context"
	"log/slog"

	"github.com/SE121-UIT/inventory-service/core/es"
)

// Service binds the inventory command functions to the command handler.
// It is the single write surface of the domain: the HTTP layer and the cart
// orchestrator both go through it.
type Service struct {
	handler *es.CommandHandler[State]
}

func NewService(log *slog.Logger, store es.EventStore, registry *es.EventRegistry, opts ...es.CommandHandlerOption) *Service {
	return &Service{
		handler: es.NewCommandHandler(log, store, registry, When, opts...),
	}
}

func (s *Service) Create(ctx context.Context, cmd CreateProduct) (*es.AppendResult, error) {
	return s.handler.Create(ctx, StreamName(cmd.ProductID), func() (es.TypedEvent, error) {
		return NewProductCreated(cmd)
	})
}

func (s *Service) Delete(ctx context.Context, cmd DeleteProduct) (*es.AppendResult, error) {
	return s.handler.Update(ctx, StreamName(cmd.ProductID), DecideDeleteProduct(cmd))
}

func (s *Service) AddQuantity(ctx context.Context, cmd AddQuantityProduct) (*es.AppendResult, error) {
	return s.handler.Update(ctx, StreamName(cmd.ProductID), DecideAddQuantity(cmd))
}

func (s *Service) DeductQuantity(ctx context.Context, cmd DeductQuantityProduct) (*es.AppendResult, error) {
	return s.handler.Update(ctx, StreamName(cmd.ProductID), DecideDeductQuantity(cmd))
}

func (s *Service) UpdateInfo(ctx context.Context, cmd UpdateInfoProduct) (*es.AppendResult, error) {
	return s.handler.Update(ctx, StreamName(cmd.ProductID), DecideUpdateInfo(cmd))
}

// CurrentState rebuilds a product's state by folding its full stream.
func (s *Service) CurrentState(ctx context.Context, productID string) (*State, error) {
	return s.handler.GetState(ctx, StreamName(productID))
}
