package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/SE121-UIT/inventory-service/core/es"
	"github.com/SE121-UIT/inventory-service/core/inventory"
)

const rowColumns = `product_id, name, price, "desc", quantity, status, revision, created_at, last_updated`

// RowStore is the Postgres read-model store.
type RowStore struct {
	db *sqlx.DB
}

func NewRowStore(db *sqlx.DB) *RowStore {
	return &RowStore{db: db}
}

func (s *RowStore) Tx(ctx context.Context, fn func(tx inventory.RowTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("tx failed: %w, rollback failed: %v", err, rbErr)
			}
			return
		}

		err = tx.Commit()
		if err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	err = fn(&rowTx{ctx: ctx, tx: tx})
	return err
}

func (s *RowStore) List(ctx context.Context) ([]inventory.ProductRow, error) {
	rows := []inventory.ProductRow{}
	q := fmt.Sprintf("SELECT %s FROM inventory ORDER BY created_at", rowColumns)
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *RowStore) GetByID(ctx context.Context, productID string) (*inventory.ProductRow, error) {
	row := inventory.ProductRow{}
	q := fmt.Sprintf("SELECT %s FROM inventory WHERE product_id = $1", rowColumns)
	if err := s.db.GetContext(ctx, &row, q, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrRowNotFound
		}
		return nil, err
	}
	return &row, nil
}

type rowTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *rowTx) Insert(row inventory.ProductRow) error {
	q := fmt.Sprintf(
		"INSERT INTO inventory (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		rowColumns,
	)
	_, err := t.tx.ExecContext(t.ctx, q,
		row.ProductID, row.Name, row.Price, row.Desc, row.Quantity,
		row.Status, row.Revision, row.CreatedAt, row.LastUpdated,
	)
	if isDuplicateKeyErr(err) {
		return inventory.ErrDuplicateRow
	}
	return err
}

func (t *rowTx) Find(productID string) (*inventory.ProductRow, error) {
	row := inventory.ProductRow{}
	q := fmt.Sprintf("SELECT %s FROM inventory WHERE product_id = $1", rowColumns)
	if err := t.tx.GetContext(t.ctx, &row, q, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (t *rowTx) FindAtRevision(productID string, revision es.Revision) (*inventory.ProductRow, error) {
	row := inventory.ProductRow{}
	q := fmt.Sprintf("SELECT %s FROM inventory WHERE product_id = $1 AND revision = $2", rowColumns)
	if err := t.tx.GetContext(t.ctx, &row, q, productID, revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (t *rowTx) FindMany(productIDs []string) ([]inventory.ProductRow, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM inventory WHERE product_id IN (?)", rowColumns),
		productIDs,
	)
	if err != nil {
		return nil, err
	}
	rows := []inventory.ProductRow{}
	if err := t.tx.SelectContext(t.ctx, &rows, t.tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *rowTx) Update(row inventory.ProductRow) error {
	q := `UPDATE inventory
		SET name = $2, price = $3, "desc" = $4, quantity = $5,
		    status = $6, revision = $7, last_updated = $8
		WHERE product_id = $1`
	res, err := t.tx.ExecContext(t.ctx, q,
		row.ProductID, row.Name, row.Price, row.Desc, row.Quantity,
		row.Status, row.Revision, row.LastUpdated,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return inventory.ErrRowNotFound
	}
	return nil
}

func (t *rowTx) Delete(productID string) error {
	_, err := t.tx.ExecContext(t.ctx, "DELETE FROM inventory WHERE product_id = $1", productID)
	return err
}

var (
	_ inventory.RowStore = (*RowStore)(nil)
	_ inventory.RowTx    = (*rowTx)(nil)
)
