// Package pgxutil holds small pgx transaction helpers shared by the PostgreSQL adapters.
package pgxutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions. *pgxpool.Pool, *pgx.Conn and pgxmock satisfy it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxConfig groups parameters for WithTx.
type TxConfig struct {
	Opts pgx.TxOptions
	Fn   func(pgx.Tx) error
}

// WithTx runs cfg.Fn inside a transaction. It commits when Fn returns nil and rolls
// back otherwise; a rollback failure is joined onto Fn's error.
func WithTx(ctx context.Context, db Beginner, cfg TxConfig) error {
	tx, err := db.BeginTx(ctx, cfg.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if fnErr := cfg.Fn(tx); fnErr != nil {
		if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			return errors.Join(fnErr, fmt.Errorf("rollback: %w", rerr))
		}
		return fnErr
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReadCommitted is the isolation used for single-row session writes.
func ReadCommitted() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
}
