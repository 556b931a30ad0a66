package dbsqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/veilscan/fogstore/internal/database"
)

// AddRngRecord issues a fresh generator state for an account. Exactly one
// active record may exist per account; after RetireRngRecord a new one can
// be issued (key rotation).
func (s *Store) AddRngRecord(ctx context.Context, invocationID string, accountPubkey []byte, startBlock uint64, state []byte) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		inv, err := getInvocation(ctx, tx, invocationID)
		if err != nil {
			return err
		}
		if inv.Decommissioned {
			return database.ErrInvocationRetired
		}
		keyRec, err := getIngressKey(ctx, tx, inv.IngressKey)
		if err != nil {
			return err
		}
		if keyRec.Decommissioned {
			return database.ErrKeyDecommissioned
		}

		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM rng_records WHERE account_pubkey = ? AND retired = 0`,
			accountPubkey).Scan(&one)
		switch {
		case err == nil:
			return database.ErrDuplicateActiveRecord
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO rng_records (account_pubkey, invocation_id, start_block, state)
			 VALUES (?, ?, ?, ?)`,
			accountPubkey, invocationID, int64(startBlock), state)
		return err
	})
}

// GetAllRngRecords returns the active records of every invocation of an
// ingress key, ordered by account identifier for deterministic pagination.
func (s *Store) GetAllRngRecords(ctx context.Context, key []byte) ([]*database.RngRecord, error) {
	var out []*database.RngRecord
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT r.account_pubkey, r.invocation_id, r.start_block, r.state
			 FROM rng_records r
			 JOIN ingest_invocations i ON i.invocation_id = r.invocation_id
			 WHERE i.ingress_key = ? AND r.retired = 0
			 ORDER BY r.account_pubkey`, key)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec database.RngRecord
			var startBlock int64
			if err := rows.Scan(&rec.AccountPubkey, &rec.InvocationID, &startBlock, &rec.State); err != nil {
				return err
			}
			rec.StartBlock = uint64(startBlock)
			out = append(out, &rec)
		}
		return rows.Err()
	})
	return out, err
}

// RetireRngRecord is idempotent; retiring an account with no active record
// is a no-op success.
func (s *Store) RetireRngRecord(ctx context.Context, accountPubkey []byte) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE rng_records SET retired = 1 WHERE account_pubkey = ? AND retired = 0`,
			accountPubkey)
		return err
	})
}
