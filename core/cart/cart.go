// Package cart implements the shopping-cart deduction orchestration: check
// availability against the read model, then deduct every item through the
// event-sourced command path.
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SE121-UIT/inventory-service/core/inventory"
)

// Reply messages for the cart confirmation round trip. The strings are part
// of the broker wire contract.
const (
	MessageSuccess              = "Success"
	MessageProductsNotAvailable = "PRODUCTS_NOT_AVAILABLE"
	MessageProductIDInCart      = "PRODUCT_ID_IN_CART_INVALID"
)

// ProductItem is one reservation request: deduct Quantity units of ProductID.
type ProductItem struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// Result of a cart deduction attempt.
type Result struct {
	Message string `json:"message"`
	Result  bool   `json:"result"`
}

// Orchestrator validates a cart against the read model and deducts each item
// via the inventory command path.
//
// The relational availability check and the event-log deductions are not one
// atomic unit: a concurrent writer racing between check and append surfaces
// as a concurrency conflict error from the deduct command, failing the whole
// orchestration without compensation for items already deducted. Callers see
// the failing product id in the wrapped error.
type Orchestrator struct {
	log  *slog.Logger
	rows inventory.RowStore
	svc  *inventory.Service
}

func NewOrchestrator(log *slog.Logger, rows inventory.RowStore, svc *inventory.Service) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		log:  log.With(slog.String("orchestrator", "cart")),
		rows: rows,
		svc:  svc,
	}
}

// Deduct reserves every requested item or none of them (at the validation
// stage). Unknown ids and insufficient stock fail fast with zero event-log
// writes; only a fully available cart proceeds to the sequential deductions.
func (o *Orchestrator) Deduct(ctx context.Context, items []ProductItem) (Result, error) {
	var res Result

	err := o.rows.Tx(ctx, func(tx inventory.RowTx) error {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.ProductID
		}

		rows, err := tx.FindMany(ids)
		if err != nil {
			return err
		}

		if len(rows) < len(items) {
			res = Result{Message: MessageProductIDInCart, Result: false}
			return nil
		}

		if !allAvailable(rows, items) {
			res = Result{Message: MessageProductsNotAvailable, Result: false}
			return nil
		}

		for _, row := range rows {
			required := findItem(items, row.ProductID).Quantity
			if _, err := o.svc.DeductQuantity(ctx, inventory.DeductQuantityProduct{
				ProductID: row.ProductID,
				Quantity:  required,
			}); err != nil {
				return fmt.Errorf("deduct product %s: %w", row.ProductID, err)
			}
		}

		res = Result{Message: MessageSuccess, Result: true}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	o.log.Info(
		"cart deduction",
		slog.Int("items", len(items)),
		slog.Bool("result", res.Result),
		slog.String("message", res.Message),
	)
	return res, nil
}

func allAvailable(rows []inventory.ProductRow, items []ProductItem) bool {
	for _, row := range rows {
		if row.Quantity < findItem(items, row.ProductID).Quantity {
			return false
		}
	}
	return true
}

func findItem(items []ProductItem, productID string) ProductItem {
	for _, item := range items {
		if item.ProductID == productID {
			return item
		}
	}
	return ProductItem{}
}
