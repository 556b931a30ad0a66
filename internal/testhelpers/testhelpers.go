// Package testhelpers provides store fixtures shared by backend, server
// and benchmark tests.
package testhelpers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/veilscan/fogstore/internal/database"
	"github.com/veilscan/fogstore/internal/database/dbpebble"
	"github.com/veilscan/fogstore/internal/database/dbsqlite"
)

// NewSQLiteStore opens a migrated sqlite store in a per-test temp dir.
func NewSQLiteStore(t *testing.T) *dbsqlite.Store {
	t.Helper()
	db, err := dbsqlite.OpenDB(filepath.Join(t.TempDir(), "fogstore.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := dbsqlite.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := dbsqlite.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewPebbleStore opens a pebble store in a per-test temp dir.
func NewPebbleStore(t *testing.T) *dbpebble.Store {
	t.Helper()
	db, err := dbpebble.OpenDB(filepath.Join(t.TempDir(), "pebbledb"))
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	store := dbpebble.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// IngressKey builds a deterministic 32-byte key.
func IngressKey(seed byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = seed
	}
	return k
}

// AccountKey builds a deterministic 32-byte account pubkey.
func AccountKey(seed byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = seed ^ 0xa5
	}
	return k
}

// SearchKey builds a deterministic 16-byte search key.
func SearchKey(seed byte) []byte {
	k := make([]byte, 16)
	for i := range k {
		k[i] = seed + byte(i)
	}
	return k
}

// Outputs builds n output records sharing one search key.
func Outputs(n int, seed byte) []*database.ETxOutRecord {
	out := make([]*database.ETxOutRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &database.ETxOutRecord{
			SearchKey: SearchKey(seed),
			Payload:   []byte{seed, byte(i), 0xee},
		})
	}
	return out
}

// PrimaryInvocation registers key, creates an invocation and promotes it.
func PrimaryInvocation(t *testing.T, store database.RecoveryDB, key []byte, startBlock uint64) string {
	t.Helper()
	ctx := context.Background()
	if err := store.RegisterIngressKey(ctx, key, startBlock); err != nil {
		t.Fatalf("register ingress key: %v", err)
	}
	id, err := store.RegisterInvocation(ctx, key, startBlock)
	if err != nil {
		t.Fatalf("register invocation: %v", err)
	}
	if err := store.SetPrimary(ctx, id); err != nil {
		t.Fatalf("set primary: %v", err)
	}
	return id
}
