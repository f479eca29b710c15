package inventory

import (
	"fmt"
	"time"
)

// Status of a product in inventory.
type Status int

const (
	StatusAvailable    Status = 1
	StatusOutOfStock   Status = 2
	StatusStopProvider Status = 3
	StatusDeleted      Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusOutOfStock:
		return "OutOfStock"
	case StatusStopProvider:
		return "StopProvider"
	case StatusDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// State is the aggregate state of one product. It is ephemeral: rebuilt on
// demand by folding the product's stream from empty, never persisted.
type State struct {
	ProductID   string
	Name        string
	Price       int64
	Desc        *string
	Quantity    int64
	Status      Status
	CreatedAt   time.Time
	LastUpdated time.Time
}

// When is the pure reducer folding one event into the current state. It is
// total over the closed event set; an unrecognized event type is a
// programming error. The reducer re-checks invariants that commands already
// guarded, so replays of a corrupted stream fail loudly instead of
// producing wrong state.
func When(state *State, event any) (*State, error) {
	if created, ok := event.(*ProductCreated); ok {
		if state != nil {
			return nil, ErrCreatedExistingProduct
		}
		return &State{
			ProductID:   created.ProductID,
			Name:        created.Name,
			Price:       created.Price,
			Desc:        created.Desc,
			Quantity:    created.Quantity,
			Status:      StatusAvailable,
			CreatedAt:   created.CreatedAt,
			LastUpdated: created.CreatedAt,
		}, nil
	}

	if state == nil {
		return nil, ErrInventoryNotFound
	}

	next := *state
	next.LastUpdated = time.Now()

	switch e := event.(type) {
	case *ProductAddQuantity:
		next.Quantity = addQuantity(state.Quantity, e.Quantity)
		next.Status = StatusAvailable

	case *ProductDeductQuantity:
		q, err := deductQuantity(state.Quantity, e.Quantity)
		if err != nil {
			return nil, err
		}
		next.Quantity = q
		if q == 0 {
			next.Status = StatusOutOfStock
		} else {
			next.Status = StatusAvailable
		}

	case *ProductDeleted:
		// quantity/price/name stay: we keep the historical record
		next.Status = StatusDeleted

	case *ProductUpdateInfo:
		if e.Name != nil {
			next.Name = *e.Name
		}
		if e.Price != nil {
			next.Price = *e.Price
		}
		next.Desc = e.Desc

	default:
		return nil, fmt.Errorf("%s: %T", CodeUnknownEventType, event)
	}

	return &next, nil
}

func addQuantity(current, added int64) int64 { return current + added }

// deductQuantity subtracts deducted from current, guarding the quantity >= 0
// invariant.
func deductQuantity(current, deducted int64) (int64, error) {
	if current < deducted {
		return 0, ErrProductNotEnough
	}
	return current - deducted, nil
}
