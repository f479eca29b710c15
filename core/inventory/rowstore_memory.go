package inventory

import (
	"context"
	"sync"

	"github.com/SE121-UIT/inventory-service/core/es"
)

// InMemoryRowStore is a transactional read-model store for tests/dev.
// Transactions copy the whole table and swap it back on commit, which is
// plenty for test-sized data sets.
type InMemoryRowStore struct {
	mu   sync.Mutex
	rows map[string]ProductRow
}

func NewInMemoryRowStore() *InMemoryRowStore {
	return &InMemoryRowStore{rows: map[string]ProductRow{}}
}

func (s *InMemoryRowStore) Tx(_ context.Context, fn func(tx RowTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := make(map[string]ProductRow, len(s.rows))
	for k, v := range s.rows {
		work[k] = v
	}

	if err := fn(&inMemoryRowTx{rows: work}); err != nil {
		return err
	}

	s.rows = work
	return nil
}

func (s *InMemoryRowStore) List(_ context.Context) ([]ProductRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProductRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryRowStore) GetByID(_ context.Context, productID string) (*ProductRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[productID]
	if !ok {
		return nil, ErrRowNotFound
	}
	return &r, nil
}

type inMemoryRowTx struct {
	rows map[string]ProductRow
}

func (t *inMemoryRowTx) Insert(row ProductRow) error {
	if _, ok := t.rows[row.ProductID]; ok {
		return ErrDuplicateRow
	}
	t.rows[row.ProductID] = row
	return nil
}

func (t *inMemoryRowTx) Find(productID string) (*ProductRow, error) {
	r, ok := t.rows[productID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *inMemoryRowTx) FindAtRevision(productID string, revision es.Revision) (*ProductRow, error) {
	r, ok := t.rows[productID]
	if !ok || r.Revision != revision {
		return nil, nil
	}
	return &r, nil
}

func (t *inMemoryRowTx) FindMany(productIDs []string) ([]ProductRow, error) {
	out := make([]ProductRow, 0, len(productIDs))
	for _, id := range productIDs {
		if r, ok := t.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *inMemoryRowTx) Update(row ProductRow) error {
	if _, ok := t.rows[row.ProductID]; !ok {
		return ErrRowNotFound
	}
	t.rows[row.ProductID] = row
	return nil
}

func (t *inMemoryRowTx) Delete(productID string) error {
	delete(t.rows, productID)
	return nil
}

var (
	_ RowStore = (*InMemoryRowStore)(nil)
	_ RowTx    = (*inMemoryRowTx)(nil)
)
