package dbsqlite

import (
	"context"
	"database/sql"

	"github.com/veilscan/fogstore/internal/database"
)

// ReportMissedBlockRange records a half-open range of blocks an enclave
// permanently skipped. Allowed for decommissioned keys: a key usually
// misses its tail ranges precisely because it was retired.
func (s *Store) ReportMissedBlockRange(ctx context.Context, key []byte, r database.BlockRange) error {
	if !r.IsValid() {
		return database.ErrInvalidBlockRange
	}
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := getIngressKey(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO missed_ranges (ingress_key, start_block, end_block)
			 VALUES (?, ?, ?)`,
			key, int64(r.Start), int64(r.End))
		return err
	})
}

func (s *Store) GetMissedBlockRanges(ctx context.Context, key []byte) ([]database.BlockRange, error) {
	var out []database.BlockRange
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		if _, err := getIngressKey(ctx, q, key); err != nil {
			return err
		}
		rows, err := q.QueryContext(ctx,
			`SELECT start_block, end_block FROM missed_ranges
			 WHERE ingress_key = ? ORDER BY start_block, end_block`, key)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var start, end int64
			if err := rows.Scan(&start, &end); err != nil {
				return err
			}
			out = append(out, database.BlockRange{Start: uint64(start), End: uint64(end)})
		}
		return rows.Err()
	})
	return out, err
}
