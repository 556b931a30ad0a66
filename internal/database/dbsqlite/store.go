// Package dbsqlite is the relational RecoveryDB backend. All multi-write
// operations run inside a single immediate transaction; cross-process
// invariants (one primary per key, idempotent ingestion, one active rng
// record per account) are carried by the schema's unique indexes.
package dbsqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/veilscan/fogstore/internal/config"
	"github.com/veilscan/fogstore/internal/database"
)

type Store struct {
	db *sql.DB
}

var _ database.RecoveryDB = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside one transaction bounded by the configured timeout.
// A rollback on error is the cancellation safety net: partial writes are
// never visible.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, config.TxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

// withRead bounds a read-only call by the same timeout.
func (s *Store) withRead(ctx context.Context, fn func(ctx context.Context, q querier) error) error {
	ctx, cancel := context.WithTimeout(ctx, config.TxTimeout)
	defer cancel()
	return mapErr(fn(ctx, s.db))
}

// mapErr folds driver-level contention and timeouts into the transient
// kind so callers can retry with backoff. Kinded errors pass through
// untouched.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var kinded *database.Error
	if errors.As(err, &kinded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return database.Wrap(database.KindTransient, "transaction timed out", err)
	}
	if database.IsRetryable(err) {
		return database.Wrap(database.KindTransient, "sqlite busy", err)
	}
	return err
}
