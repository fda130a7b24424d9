// tx.go provides the transaction runner used by the mutation pipeline. Every
// repository in this package can be rebound into an open transaction, so a
// status change, its history row and its audit row commit or roll back as one.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DBTX is the subset of query methods repositories need. *sqlx.DB and
// *sqlx.Tx both satisfy it, which lets a repository run against the shared
// pool or inside a transaction without separate code paths.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxRunner opens and finalizes transactions over the shared pool.
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner creates a new TxRunner
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithinTx runs fn inside a single transaction. The transaction commits only
// if fn returns nil; any error rolls everything back, so a failed mutation
// leaves no partial history or audit rows behind.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
