package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/SE121-UIT/inventory-service/core/es"
)

var (
	// ErrRowNotFound: no read-model row matched the filter.
	ErrRowNotFound = errors.New("read model row not found")
	// ErrDuplicateRow: an insert hit the product id uniqueness constraint.
	ErrDuplicateRow = errors.New("read model row already exists")
)

// ProductRow is the eventually consistent read-model view of one product.
// Revision is the last stream revision applied to the row; it is a pure
// idempotency watermark, never business state.
type ProductRow struct {
	ProductID   string      `db:"product_id" json:"productId"`
	Name        string      `db:"name" json:"name"`
	Price       int64       `db:"price" json:"price"`
	Desc        *string     `db:"desc" json:"desc,omitempty"`
	Quantity    int64       `db:"quantity" json:"quantity"`
	Status      Status      `db:"status" json:"status"`
	Revision    es.Revision `db:"revision" json:"revision"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	LastUpdated time.Time   `db:"last_updated" json:"lastUpdated"`
}

// RowStore is the relational read-model boundary: row-level CRUD with a
// composite (productId, revision) filter, full listing, and transactions
// with commit/rollback.
type RowStore interface {
	// Tx runs fn in one transaction; an error from fn rolls back every
	// change, nil commits.
	Tx(ctx context.Context, fn func(tx RowTx) error) error
	// List returns all rows.
	List(ctx context.Context) ([]ProductRow, error)
	// GetByID returns one row, or ErrRowNotFound.
	GetByID(ctx context.Context, productID string) (*ProductRow, error)
}

// RowTx is the per-transaction row surface.
type RowTx interface {
	// Insert adds a new row; a productId collision returns ErrDuplicateRow.
	Insert(row ProductRow) error
	// Find returns the row for productID, or nil when absent.
	Find(productID string) (*ProductRow, error)
	// FindAtRevision returns the row matching (productID, revision), or nil
	// when no row matches that exact filter.
	FindAtRevision(productID string, revision es.Revision) (*ProductRow, error)
	// FindMany bulk-reads the rows for the given product ids; missing ids
	// are simply absent from the result.
	FindMany(productIDs []string) ([]ProductRow, error)
	// Update overwrites the row identified by row.ProductID.
	Update(row ProductRow) error
	// Delete removes the row for productID.
	Delete(productID string) error
}
