package dbsqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/veilscan/fogstore/internal/database"
)

// StoreReport appends an attestation verification report for an ingress
// key. Reports are never overwritten; superseding reports coexist and
// LatestReport picks the winner by validity window.
func (s *Store) StoreReport(ctx context.Context, key []byte, report []byte, validFrom, validUntil time.Time) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := getIngressKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if rec.Decommissioned {
			return database.ErrKeyDecommissioned
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reports (ingress_key, report, valid_from, valid_until, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			key, report, validFrom.UnixMilli(), validUntil.UnixMilli(), time.Now().UnixMilli())
		return err
	})
}

// LatestReport returns the report valid at the given instant with the
// furthest validity horizon.
func (s *Store) LatestReport(ctx context.Context, key []byte, at time.Time) (*database.AttestationReport, error) {
	var rec *database.AttestationReport
	err := s.withRead(ctx, func(ctx context.Context, q querier) error {
		if _, err := getIngressKey(ctx, q, key); err != nil {
			return err
		}
		row := q.QueryRowContext(ctx,
			`SELECT ingress_key, report, valid_from, valid_until, created_at
			 FROM reports
			 WHERE ingress_key = ? AND valid_from <= ?
			 ORDER BY valid_until DESC, created_at DESC
			 LIMIT 1`, key, at.UnixMilli())
		var r database.AttestationReport
		var validFrom, validUntil, createdAt int64
		err := row.Scan(&r.IngressKey, &r.Report, &validFrom, &validUntil, &createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrReportNotFound
		}
		if err != nil {
			return err
		}
		r.ValidFrom = time.UnixMilli(validFrom)
		r.ValidUntil = time.UnixMilli(validUntil)
		r.CreatedAt = time.UnixMilli(createdAt)
		rec = &r
		return nil
	})
	return rec, err
}
