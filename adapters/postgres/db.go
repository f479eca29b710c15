// Package postgres backs the read model and subscription checkpoints with
// a relational store via sqlx and lib/pq.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const duplicateKeyCode = "23505"

// Open connects and verifies the connection.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the inventory and checkpoint tables if missing.
// "desc" is a reserved word and stays quoted everywhere.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS inventory (
			product_id   TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			price        BIGINT NOT NULL,
			"desc"       TEXT,
			quantity     BIGINT NOT NULL,
			status       INT NOT NULL,
			revision     BIGINT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoint (
			id       TEXT PRIMARY KEY,
			position BIGINT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func isDuplicateKeyErr(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == pq.ErrorCode(duplicateKeyCode)
	}
	return false
}
