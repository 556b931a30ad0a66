package dbsqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/veilscan/fogstore/internal/database"
)

// AddBlockData is the single atomic ingest write: it verifies the calling
// invocation still holds the primary token, appends the block's output
// records, applies rng-record updates and advances the processed range —
// all in one transaction. Replaying an already-ingested block with the
// same content is a no-op success; the same index with different content
// is rejected as a divergent ingest.
func (s *Store) AddBlockData(ctx context.Context, key []byte, invocationID string, blockIndex uint64, outputs []*database.ETxOutRecord, rngUpdates []*database.RngUpdate) (*database.ProcessedBlockRange, error) {
	contentHash := database.ContentHash(blockIndex, outputs, rngUpdates)

	var result *database.ProcessedBlockRange
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		keyRec, err := getIngressKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if keyRec.Decommissioned {
			return database.ErrKeyDecommissioned
		}

		inv, err := getInvocation(ctx, tx, invocationID)
		if err != nil {
			return err
		}
		if !bytes.Equal(inv.IngressKey, key) {
			return database.ErrNotPrimary
		}
		if inv.Decommissioned {
			return database.ErrInvocationRetired
		}
		if !inv.Primary {
			return database.ErrNotPrimary
		}

		// Idempotency ledger: one row per (key, block index).
		var existing []byte
		err = tx.QueryRowContext(ctx,
			`SELECT content_hash FROM ingested_blocks WHERE ingress_key = ? AND block_index = ?`,
			key, int64(blockIndex)).Scan(&existing)
		switch {
		case err == nil:
			if !bytes.Equal(existing, contentHash) {
				return database.ErrBlockContentMismatch
			}
			result, err = loadBlockRange(ctx, tx, key)
			return err
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ingested_blocks (ingress_key, block_index, content_hash, invocation_id)
			 VALUES (?, ?, ?, ?)`,
			key, int64(blockIndex), contentHash, invocationID); err != nil {
			return err
		}

		if err := appendOutputs(ctx, tx, invocationID, blockIndex, outputs); err != nil {
			return err
		}
		if err := applyRngUpdates(ctx, tx, invocationID, blockIndex, rngUpdates); err != nil {
			return err
		}

		tracker, err := loadTracker(ctx, tx, key, keyRec.StartBlock)
		if err != nil {
			return err
		}
		obs := tracker.Observe(blockIndex)
		if err := persistObservation(ctx, tx, key, tracker, obs, blockIndex); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE ingress_keys SET last_scanned = MAX(COALESCE(last_scanned, -1), ?)
			 WHERE ingress_key = ?`, int64(blockIndex), key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE ingest_invocations SET last_active = ? WHERE invocation_id = ?`,
			time.Now().UnixMilli(), invocationID); err != nil {
			return err
		}

		result = tracker.Range()
		return nil
	})
	return result, err
}

func (s *Store) GetBlockRange(ctx context.Context, key []byte) (*database.ProcessedBlockRange, error) {
	var result *database.ProcessedBlockRange
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		if _, err := getIngressKey(ctx, q, key); err != nil {
			return err
		}
		var err error
		result, err = loadBlockRange(ctx, q, key)
		return err
	})
	return result, err
}

// appendOutputs bulk-inserts the block's output records within the
// caller's transaction. INSERT OR IGNORE against the
// (block_index, invocation_id, payload_hash) primary key suppresses
// duplicates from retried writes.
func appendOutputs(ctx context.Context, tx *sql.Tx, invocationID string, blockIndex uint64, outputs []*database.ETxOutRecord) error {
	if len(outputs) == 0 {
		return nil
	}
	ins, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO etxo_records
		 (search_key, payload, payload_hash, block_index, invocation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	now := time.Now().UnixMilli()
	for _, o := range outputs {
		if _, err := ins.ExecContext(ctx,
			o.SearchKey, o.Payload, database.PayloadHash(o), int64(blockIndex), invocationID, now); err != nil {
			return err
		}
	}
	return nil
}

// applyRngUpdates advances active generator states and issues records for
// accounts that have none. Retired records are never touched.
func applyRngUpdates(ctx context.Context, tx *sql.Tx, invocationID string, blockIndex uint64, updates []*database.RngUpdate) error {
	for _, u := range updates {
		res, err := tx.ExecContext(ctx,
			`UPDATE rng_records SET state = ? WHERE account_pubkey = ? AND retired = 0`,
			u.State, u.AccountPubkey)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		startBlock := u.StartBlock
		if startBlock == 0 {
			startBlock = blockIndex
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rng_records (account_pubkey, invocation_id, start_block, state)
			 VALUES (?, ?, ?, ?)`,
			u.AccountPubkey, invocationID, int64(startBlock), u.State); err != nil {
			return err
		}
	}
	return nil
}

func loadTracker(ctx context.Context, q querier, key []byte, startBlock uint64) (*database.RangeTracker, error) {
	var highWater int64
	ingested := true
	err := q.QueryRowContext(ctx,
		`SELECT high_water FROM block_ranges WHERE ingress_key = ?`, key).Scan(&highWater)
	if errors.Is(err, sql.ErrNoRows) {
		ingested = false
		err = nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT block_index FROM block_gaps WHERE ingress_key = ? ORDER BY block_index`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var gaps []uint64
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		gaps = append(gaps, uint64(idx))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return database.RestoreRangeTracker(startBlock, uint64(highWater), ingested, gaps), nil
}

func persistObservation(ctx context.Context, tx *sql.Tx, key []byte, tracker *database.RangeTracker, obs database.Observation, blockIndex uint64) error {
	if obs.Pending {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO block_gaps (ingress_key, block_index) VALUES (?, ?)`,
			key, int64(blockIndex))
		return err
	}
	if !obs.Advanced {
		return nil
	}
	hw, _ := tracker.HighWater()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO block_ranges (ingress_key, high_water) VALUES (?, ?)
		 ON CONFLICT(ingress_key) DO UPDATE SET high_water = excluded.high_water`,
		key, int64(hw)); err != nil {
		return err
	}
	if len(obs.Merged) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM block_gaps WHERE ingress_key = ? AND block_index <= ?`,
			key, int64(hw)); err != nil {
			return err
		}
	}
	return nil
}

func loadBlockRange(ctx context.Context, q querier, key []byte) (*database.ProcessedBlockRange, error) {
	result := &database.ProcessedBlockRange{}
	var highWater int64
	err := q.QueryRowContext(ctx,
		`SELECT high_water FROM block_ranges WHERE ingress_key = ?`, key).Scan(&highWater)
	switch {
	case err == nil:
		result.Ingested = true
		result.HighWater = uint64(highWater)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT block_index FROM block_gaps WHERE ingress_key = ? ORDER BY block_index`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		result.Gaps = append(result.Gaps, uint64(idx))
	}
	return result, rows.Err()
}
