package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/SE121-UIT/inventory-service/core/es"
)

// CheckpointStore persists subscription positions, one row per
// subscription id.
type CheckpointStore struct {
	db *sqlx.DB
}

func NewCheckpointStore(db *sqlx.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func (s *CheckpointStore) Load(ctx context.Context, subscriptionID string) (es.Position, error) {
	var pos uint64
	err := s.db.GetContext(ctx, &pos, "SELECT position FROM checkpoint WHERE id = $1", subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, es.ErrCheckpointNotFound
		}
		return 0, err
	}
	return es.Position(pos), nil
}

func (s *CheckpointStore) Save(ctx context.Context, subscriptionID string, pos es.Position) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoint (id, position) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position`,
		subscriptionID, pos.Uint64(),
	)
	return err
}

var _ es.CheckpointStore = (*CheckpointStore)(nil)
