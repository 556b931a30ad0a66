package dbsqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/veilscan/fogstore/internal/database"
)

// RegisterIngressKey records a new ingest trust domain. The start block is
// immutable: re-registering with the same start block is an idempotent
// no-op, any other start block is a conflict.
func (s *Store) RegisterIngressKey(ctx context.Context, key []byte, startBlock uint64) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := getIngressKey(ctx, tx, key)
		switch {
		case err == nil:
			if existing.Decommissioned {
				return database.ErrKeyDecommissioned
			}
			if existing.StartBlock != startBlock {
				return database.ErrAlreadyRegistered
			}
			return nil
		case !errors.Is(err, database.ErrKeyNotFound):
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO ingress_keys (ingress_key, start_block) VALUES (?, ?)`,
			key, int64(startBlock))
		return err
	})
}

// DecommissionIngressKey is monotone and one-way; repeating it is a no-op.
func (s *Store) DecommissionIngressKey(ctx context.Context, key []byte) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE ingress_keys SET decommissioned = 1 WHERE ingress_key = ?`, key)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return database.ErrKeyNotFound
		}
		return nil
	})
}

func (s *Store) GetIngressKey(ctx context.Context, key []byte) (*database.IngressKey, error) {
	var rec *database.IngressKey
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		var err error
		rec, err = getIngressKey(ctx, q, key)
		return err
	})
	return rec, err
}

func (s *Store) ListIngressKeys(ctx context.Context) ([]*database.IngressKey, error) {
	var out []*database.IngressKey
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT ingress_key, start_block, decommissioned, last_scanned
			 FROM ingress_keys ORDER BY ingress_key`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanIngressKey(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

func getIngressKey(ctx context.Context, q querier, key []byte) (*database.IngressKey, error) {
	row := q.QueryRowContext(ctx,
		`SELECT ingress_key, start_block, decommissioned, last_scanned
		 FROM ingress_keys WHERE ingress_key = ?`, key)
	rec, err := scanIngressKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrKeyNotFound
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIngressKey(row rowScanner) (*database.IngressKey, error) {
	var rec database.IngressKey
	var startBlock int64
	var decommissioned int
	var lastScanned sql.NullInt64
	if err := row.Scan(&rec.Key, &startBlock, &decommissioned, &lastScanned); err != nil {
		return nil, err
	}
	rec.StartBlock = uint64(startBlock)
	rec.Decommissioned = decommissioned != 0
	rec.LastScanned = -1
	if lastScanned.Valid {
		rec.LastScanned = lastScanned.Int64
	}
	return &rec, nil
}
