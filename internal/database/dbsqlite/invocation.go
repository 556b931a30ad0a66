package dbsqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/veilscan/fogstore/internal/database"
)

// RegisterInvocation creates a new, non-primary worker session for an
// ingress key.
func (s *Store) RegisterInvocation(ctx context.Context, key []byte, startBlock uint64) (string, error) {
	id := uuid.NewString()
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := getIngressKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if rec.Decommissioned {
			return database.ErrKeyDecommissioned
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ingest_invocations (invocation_id, ingress_key, start_block, is_primary, last_active)
			 VALUES (?, ?, ?, 0, ?)`,
			id, key, int64(startBlock), time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetPrimary atomically hands the single-writer token to the target
// invocation: every other live invocation of the same key is demoted and
// the target promoted inside one transaction, so readers never observe
// zero or two primaries while an active invocation exists.
func (s *Store) SetPrimary(ctx context.Context, invocationID string) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		inv, err := getInvocation(ctx, tx, invocationID)
		if err != nil {
			return err
		}
		if inv.Decommissioned {
			return database.ErrInvocationRetired
		}
		key, err := getIngressKey(ctx, tx, inv.IngressKey)
		if err != nil {
			return err
		}
		if key.Decommissioned {
			return database.ErrKeyDecommissioned
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE ingest_invocations SET is_primary = 0
			 WHERE ingress_key = ? AND invocation_id <> ? AND is_primary = 1`,
			inv.IngressKey, invocationID); err != nil {
			return err
		}

		// Conditional update: a concurrent decommission loses the race here
		// and the whole swap rolls back.
		res, err := tx.ExecContext(ctx,
			`UPDATE ingest_invocations SET is_primary = 1, last_active = ?
			 WHERE invocation_id = ? AND decommissioned = 0`,
			time.Now().UnixMilli(), invocationID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return database.ErrInvocationRetired
		}
		return nil
	})
}

// DecommissionInvocation marks the session retired and drops its primary
// flag. Decommissioning twice is a no-op success.
func (s *Store) DecommissionInvocation(ctx context.Context, invocationID string) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE ingest_invocations SET decommissioned = 1, is_primary = 0
			 WHERE invocation_id = ?`, invocationID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return database.ErrInvocationNotFound
		}
		return nil
	})
}

func (s *Store) GetInvocation(ctx context.Context, invocationID string) (*database.IngestInvocation, error) {
	var rec *database.IngestInvocation
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		var err error
		rec, err = getInvocation(ctx, q, invocationID)
		return err
	})
	return rec, err
}

// GetInvocations lists every session of an ingress key, newest activity
// first. Observing more than one live primary means the schema invariant
// has been violated and is surfaced as corruption, never repaired.
func (s *Store) GetInvocations(ctx context.Context, key []byte) ([]*database.IngestInvocation, error) {
	var out []*database.IngestInvocation
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT invocation_id, ingress_key, start_block, is_primary, last_active, decommissioned
			 FROM ingest_invocations WHERE ingress_key = ?
			 ORDER BY last_active DESC, invocation_id`, key)
		if err != nil {
			return err
		}
		defer rows.Close()
		primaries := 0
		for rows.Next() {
			rec, err := scanInvocation(rows)
			if err != nil {
				return err
			}
			if rec.Primary && !rec.Decommissioned {
				primaries++
			}
			out = append(out, rec)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if primaries > 1 {
			return database.ErrTwoPrimaries
		}
		return nil
	})
	return out, err
}

func getInvocation(ctx context.Context, q querier, invocationID string) (*database.IngestInvocation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT invocation_id, ingress_key, start_block, is_primary, last_active, decommissioned
		 FROM ingest_invocations WHERE invocation_id = ?`, invocationID)
	rec, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrInvocationNotFound
	}
	return rec, err
}

func scanInvocation(row rowScanner) (*database.IngestInvocation, error) {
	var rec database.IngestInvocation
	var startBlock, lastActive int64
	var primary, decommissioned int
	if err := row.Scan(&rec.ID, &rec.IngressKey, &startBlock, &primary, &lastActive, &decommissioned); err != nil {
		return nil, err
	}
	rec.StartBlock = uint64(startBlock)
	rec.Primary = primary != 0
	rec.LastActive = time.UnixMilli(lastActive)
	rec.Decommissioned = decommissioned != 0
	return &rec, nil
}
