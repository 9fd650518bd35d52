// Package store wraps db.Querier with transaction support and maps domain
// audit records onto the generated query parameters.
//
// Dependency rule: store imports db only. It never imports api, worker,
// explain, ai, or mlapi.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nyashahama/gati-explain-gateway/internal/db"
)

// Store holds a *sql.DB for starting transactions and a db.Querier for
// executing queries outside of transactions. The operation files attach
// methods to this type.
type Store struct {
	// pool is the raw connection pool, used only to begin transactions.
	pool *sql.DB

	q db.Querier
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via PingContext) before calling New.
func New(pool *sql.DB, q db.Querier) *Store {
	return &Store{pool: pool, q: q}
}

// Q exposes the underlying Querier for single-query reads.
//
//	rec, err := s.Q().GetExplanationByID(ctx, id)
func (s *Store) Q() db.Querier {
	return s.q
}

// Migrate applies db.Schema inside a single transaction. The schema is
// idempotent, so Migrate is safe to run on every startup. It must run before
// db.Prepare, which validates statements against the live tables.
func Migrate(ctx context.Context, pool *sql.DB) error {
	return withTx(ctx, pool, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, db.Schema); err != nil {
			return fmt.Errorf("store: apply schema: %w", err)
		}
		return nil
	})
}

// withTx begins a transaction, passes it to fn, and commits on success or
// rolls back on any error (including panics).
func withTx(ctx context.Context, pool *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
