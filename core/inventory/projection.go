package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SE121-UIT/inventory-service/core/es"
)

// Projection applies inventory events to the relational read model, one
// transaction per event.
//
// Idempotency protocol for every event except product-created: look up the
// row at (productId, event.revision-1) inside the transaction. A row already
// past that watermark means a redundant redelivery and the event is skipped;
// no row at all is ErrProductNotFound, which rolls back and blocks the
// checkpoint so the event is redelivered. product-created inserts
// unconditionally and treats a uniqueness collision as a benign duplicate.
type Projection struct {
	log  *slog.Logger
	rows RowStore
}

func NewProjection(log *slog.Logger, rows RowStore) *Projection {
	if log == nil {
		log = slog.Default()
	}
	return &Projection{
		log:  log.With(slog.String("projection", "inventory")),
		rows: rows,
	}
}

func (p *Projection) Name() string { return "inventory" }

func (p *Projection) Handle(ctx context.Context, re es.RecordedEvent, event any) error {
	switch e := event.(type) {
	case *ProductCreated:
		return p.projectCreated(ctx, e, re.Revision)
	case *ProductAddQuantity:
		return p.projectMutation(ctx, e.ProductID, re.Revision, func(row *ProductRow) error {
			row.Quantity = addQuantity(row.Quantity, e.Quantity)
			row.Status = StatusAvailable
			return nil
		})
	case *ProductDeductQuantity:
		return p.projectMutation(ctx, e.ProductID, re.Revision, func(row *ProductRow) error {
			q, err := deductQuantity(row.Quantity, e.Quantity)
			if err != nil {
				return err
			}
			row.Quantity = q
			if q == 0 {
				row.Status = StatusOutOfStock
			} else {
				row.Status = StatusAvailable
			}
			return nil
		})
	case *ProductUpdateInfo:
		return p.projectMutation(ctx, e.ProductID, re.Revision, func(row *ProductRow) error {
			if e.Name != nil {
				row.Name = *e.Name
			}
			if e.Price != nil {
				row.Price = *e.Price
			}
			row.Desc = e.Desc
			return nil
		})
	case *ProductDeleted:
		return p.projectDeleted(ctx, e.ProductID, re.Revision)
	default:
		return fmt.Errorf("%s: %T", CodeUnknownEventType, event)
	}
}

func (p *Projection) projectCreated(ctx context.Context, e *ProductCreated, revision es.Revision) error {
	err := p.rows.Tx(ctx, func(tx RowTx) error {
		return tx.Insert(ProductRow{
			ProductID:   e.ProductID,
			Name:        e.Name,
			Price:       e.Price,
			Desc:        e.Desc,
			Quantity:    e.Quantity,
			Status:      StatusAvailable,
			Revision:    revision,
			CreatedAt:   e.CreatedAt,
			LastUpdated: e.CreatedAt,
		})
	})
	if errors.Is(err, ErrDuplicateRow) {
		// redelivered creation, the row is already there
		p.log.Debug("duplicate create skipped", slog.String("product_id", e.ProductID))
		return nil
	}
	return err
}

// projectMutation runs the watermark protocol and the field-level change for
// one event inside a single transaction.
func (p *Projection) projectMutation(
	ctx context.Context,
	productID string,
	revision es.Revision,
	mutate func(row *ProductRow) error,
) error {
	return p.rows.Tx(ctx, func(tx RowTx) error {
		row, skip, err := p.rowAtWatermark(tx, productID, revision)
		if err != nil || skip {
			return err
		}

		if err := mutate(row); err != nil {
			return err
		}
		row.Revision = revision
		row.LastUpdated = time.Now()
		return tx.Update(*row)
	})
}

func (p *Projection) projectDeleted(ctx context.Context, productID string, revision es.Revision) error {
	return p.rows.Tx(ctx, func(tx RowTx) error {
		current, err := tx.Find(productID)
		if err != nil {
			return err
		}
		if current == nil {
			// redelivered delete, the row is already gone
			p.log.Debug("duplicate delete skipped", slog.String("product_id", productID))
			return nil
		}

		_, skip, err := p.rowAtWatermark(tx, productID, revision)
		if err != nil || skip {
			return err
		}
		// the row goes away entirely; history stays in the event log
		return tx.Delete(productID)
	})
}

// rowAtWatermark fetches the row expected at revision-1. skip=true means the
// row already moved past the watermark (redundant redelivery).
func (p *Projection) rowAtWatermark(tx RowTx, productID string, revision es.Revision) (row *ProductRow, skip bool, err error) {
	lastRevision := revision - 1

	row, err = tx.FindAtRevision(productID, lastRevision)
	if err != nil {
		return nil, false, err
	}
	if row != nil {
		return row, false, nil
	}

	current, err := tx.Find(productID)
	if err != nil {
		return nil, false, err
	}
	if current != nil && current.Revision > lastRevision {
		p.log.Debug(
			"stale event skipped",
			slog.String("product_id", productID),
			revision.SlogAttr(),
			current.Revision.SlogAttrWithKey("row_revision"),
		)
		return nil, true, nil
	}

	// either true data loss or an ordering defect; surface for redelivery
	return nil, false, fmt.Errorf("%w: product %s at revision %d", ErrProductNotFound, productID, lastRevision)
}

var _ es.Projection = (*Projection)(nil)
