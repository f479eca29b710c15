package inventory

import (
	"time"

	"github.com/SE121-UIT/inventory-service/core/es"
)

// Command payloads. Each maps 1:1 to an API operation and produces at most
// one event. Invariant checks happen twice on purpose: once here against the
// freshest read, and again in the reducer when the stream is re-folded.
type (
	CreateProduct struct {
		ProductID string
		Name      string
		Price     int64
		Desc      *string
		Quantity  int64
	}

	DeleteProduct struct {
		ProductID string
	}

	AddQuantityProduct struct {
		ProductID string
		Quantity  int64
	}

	DeductQuantityProduct struct {
		ProductID string
		Quantity  int64
	}

	UpdateInfoProduct struct {
		ProductID string
		Name      *string
		Price     *int64
		Desc      *string
	}
)

// NewProductCreated builds the creation event for a new product stream.
func NewProductCreated(cmd CreateProduct) (es.TypedEvent, error) {
	return &ProductCreated{
		ProductID: cmd.ProductID,
		Name:      cmd.Name,
		Price:     cmd.Price,
		Desc:      cmd.Desc,
		Quantity:  cmd.Quantity,
		CreatedAt: time.Now(),
	}, nil
}

// DecideDeleteProduct marks a product deleted unless it already is.
func DecideDeleteProduct(cmd DeleteProduct) func(state *State) (es.TypedEvent, error) {
	return func(state *State) (es.TypedEvent, error) {
		if err := assertProductIsNotDeleted(state); err != nil {
			return nil, err
		}
		return &ProductDeleted{ProductID: cmd.ProductID}, nil
	}
}

// DecideAddQuantity increases stock for a live product.
func DecideAddQuantity(cmd AddQuantityProduct) func(state *State) (es.TypedEvent, error) {
	return func(state *State) (es.TypedEvent, error) {
		if err := assertProductIsNotDeleted(state); err != nil {
			return nil, err
		}
		return &ProductAddQuantity{ProductID: cmd.ProductID, Quantity: cmd.Quantity}, nil
	}
}

// DecideDeductQuantity decreases stock, guarding sufficient quantity before
// any event is emitted.
func DecideDeductQuantity(cmd DeductQuantityProduct) func(state *State) (es.TypedEvent, error) {
	return func(state *State) (es.TypedEvent, error) {
		if err := assertProductIsNotDeleted(state); err != nil {
			return nil, err
		}
		if _, err := deductQuantity(state.Quantity, cmd.Quantity); err != nil {
			return nil, err
		}
		return &ProductDeductQuantity{ProductID: cmd.ProductID, Quantity: cmd.Quantity}, nil
	}
}

// DecideUpdateInfo overwrites product info for a live product.
func DecideUpdateInfo(cmd UpdateInfoProduct) func(state *State) (es.TypedEvent, error) {
	return func(state *State) (es.TypedEvent, error) {
		if err := assertProductIsNotDeleted(state); err != nil {
			return nil, err
		}
		return &ProductUpdateInfo{
			ProductID: cmd.ProductID,
			Name:      cmd.Name,
			Price:     cmd.Price,
			Desc:      cmd.Desc,
		}, nil
	}
}

func assertProductIsNotDeleted(state *State) error {
	if state.Status == StatusDeleted {
		return ErrProductIsAlreadyDeleted
	}
	return nil
}
