package dbsqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrations are forward-only. The applied version lives in PRAGMA
// user_version; the running server never alters the schema itself, it only
// verifies the version at startup (CheckSchema). cmd/db applies pending
// migrations.
var migrations = []string{schemaV1}

func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// Migrate applies all pending migrations, each in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	v, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	for i := v; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// CheckSchema fails when the database is not at the current schema
// version.
func CheckSchema(ctx context.Context, db *sql.DB) error {
	v, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if v != len(migrations) {
		return fmt.Errorf("schema version %d, want %d: run the db migrate tool", v, len(migrations))
	}
	return nil
}

const schemaV1 = `
-- Ingress keys: one row per ingest trust domain. start_block is immutable
-- after registration; last_scanned is NULL until the first block write.
CREATE TABLE IF NOT EXISTS ingress_keys (
  ingress_key    BLOB PRIMARY KEY,
  start_block    INTEGER NOT NULL,
  decommissioned INTEGER NOT NULL DEFAULT 0,
  last_scanned   INTEGER
) STRICT, WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS ingest_invocations (
  invocation_id  TEXT PRIMARY KEY,
  ingress_key    BLOB NOT NULL REFERENCES ingress_keys(ingress_key),
  start_block    INTEGER NOT NULL,
  is_primary     INTEGER NOT NULL DEFAULT 0,
  last_active    INTEGER NOT NULL,
  decommissioned INTEGER NOT NULL DEFAULT 0
) STRICT, WITHOUT ROWID;

-- At most one live primary per ingress key, enforced by the schema and not
-- only in application logic.
CREATE UNIQUE INDEX IF NOT EXISTS ux_invocations_primary
  ON ingest_invocations(ingress_key) WHERE is_primary = 1 AND decommissioned = 0;
CREATE INDEX IF NOT EXISTS ix_invocations_key ON ingest_invocations(ingress_key);

-- Contiguous high-water mark per key. No row until the key's start block
-- has been ingested.
CREATE TABLE IF NOT EXISTS block_ranges (
  ingress_key BLOB PRIMARY KEY REFERENCES ingress_keys(ingress_key),
  high_water  INTEGER NOT NULL
) STRICT, WITHOUT ROWID;

-- Block indices written out of order, pending gap fill.
CREATE TABLE IF NOT EXISTS block_gaps (
  ingress_key BLOB NOT NULL REFERENCES ingress_keys(ingress_key),
  block_index INTEGER NOT NULL,
  PRIMARY KEY (ingress_key, block_index)
) STRICT, WITHOUT ROWID;

-- Idempotency ledger for AddBlockData: one row per ingested block index,
-- keyed content hash detects divergent replays.
CREATE TABLE IF NOT EXISTS ingested_blocks (
  ingress_key   BLOB NOT NULL REFERENCES ingress_keys(ingress_key),
  block_index   INTEGER NOT NULL,
  content_hash  BLOB NOT NULL,
  invocation_id TEXT NOT NULL,
  PRIMARY KEY (ingress_key, block_index)
) STRICT, WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS rng_records (
  rng_id         INTEGER PRIMARY KEY,
  account_pubkey BLOB NOT NULL,
  invocation_id  TEXT NOT NULL REFERENCES ingest_invocations(invocation_id),
  start_block    INTEGER NOT NULL,
  state          BLOB NOT NULL,
  retired        INTEGER NOT NULL DEFAULT 0
) STRICT;

-- One active generator state per account.
CREATE UNIQUE INDEX IF NOT EXISTS ux_rng_active
  ON rng_records(account_pubkey) WHERE retired = 0;

CREATE TABLE IF NOT EXISTS etxo_records (
  search_key    BLOB NOT NULL,
  payload       BLOB NOT NULL,
  payload_hash  BLOB NOT NULL,
  block_index   INTEGER NOT NULL,
  invocation_id TEXT NOT NULL REFERENCES ingest_invocations(invocation_id),
  created_at    INTEGER NOT NULL,
  PRIMARY KEY (block_index, invocation_id, payload_hash)
) STRICT, WITHOUT ROWID;

-- View-side lookup path: search key within a block window.
CREATE INDEX IF NOT EXISTS ix_etxo_search ON etxo_records(search_key, block_index);

-- Append-only attestation reports; superseding reports coexist.
CREATE TABLE IF NOT EXISTS reports (
  report_id   INTEGER PRIMARY KEY,
  ingress_key BLOB NOT NULL REFERENCES ingress_keys(ingress_key),
  report      BLOB NOT NULL,
  valid_from  INTEGER NOT NULL,
  valid_until INTEGER NOT NULL,
  created_at  INTEGER NOT NULL
) STRICT;

CREATE INDEX IF NOT EXISTS ix_reports_key ON reports(ingress_key, valid_until);

-- Block ranges an enclave permanently skipped (key rotation, decommission).
CREATE TABLE IF NOT EXISTS missed_ranges (
  ingress_key BLOB NOT NULL REFERENCES ingress_keys(ingress_key),
  start_block INTEGER NOT NULL,
  end_block   INTEGER NOT NULL,
  PRIMARY KEY (ingress_key, start_block, end_block)
) STRICT, WITHOUT ROWID;
`
