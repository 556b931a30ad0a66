package dbsqlite

import (
	"context"
	"strings"
	"time"

	"github.com/veilscan/fogstore/internal/database"
)

// GetOutputs is the view-side read path. Results are clamped to each
// owning key's contiguous high-water mark so partially-ingested state is
// never exposed: a record above its key's mark does not exist yet as far
// as view workers are concerned.
func (s *Store) GetOutputs(ctx context.Context, searchKeys [][]byte, blockRange database.BlockRange) ([]*database.ETxOutRecord, error) {
	if !blockRange.IsValid() {
		return nil, database.ErrInvalidBlockRange
	}
	if len(searchKeys) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(searchKeys)), ",")
	args := make([]any, 0, len(searchKeys)+2)
	args = append(args, int64(blockRange.Start), int64(blockRange.End))
	for _, k := range searchKeys {
		args = append(args, k)
	}

	var out []*database.ETxOutRecord
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT e.search_key, e.payload, e.block_index, e.created_at
			 FROM etxo_records e
			 JOIN ingest_invocations i ON i.invocation_id = e.invocation_id
			 JOIN block_ranges r ON r.ingress_key = i.ingress_key
			 WHERE e.block_index >= ? AND e.block_index < ?
			   AND e.block_index <= r.high_water
			   AND e.search_key IN (`+placeholders+`)
			 ORDER BY e.search_key, e.block_index`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec database.ETxOutRecord
			var blockIndex, createdAt int64
			if err := rows.Scan(&rec.SearchKey, &rec.Payload, &blockIndex, &createdAt); err != nil {
				return err
			}
			rec.BlockIndex = uint64(blockIndex)
			rec.Timestamp = time.UnixMilli(createdAt)
			out = append(out, &rec)
		}
		return rows.Err()
	})
	return out, err
}
