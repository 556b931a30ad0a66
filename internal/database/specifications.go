// Package database defines the capability interface and record types for
// the recovery store. Backends live in dbsqlite and dbpebble.
package database

import (
	"context"
	"time"
)

// RecoveryDB is the full capability set of the store. Ingest workers use
// the write side, view workers only ever call GetAllRngRecords, GetOutputs
// and GetBlockRange.
type RecoveryDB interface {
	// Ingress-key ledger
	RegisterIngressKey(ctx context.Context, key []byte, startBlock uint64) error
	DecommissionIngressKey(ctx context.Context, key []byte) error
	GetIngressKey(ctx context.Context, key []byte) (*IngressKey, error)
	ListIngressKeys(ctx context.Context) ([]*IngressKey, error)

	// Invocation registry
	RegisterInvocation(ctx context.Context, key []byte, startBlock uint64) (string, error)
	SetPrimary(ctx context.Context, invocationID string) error
	DecommissionInvocation(ctx context.Context, invocationID string) error
	GetInvocation(ctx context.Context, invocationID string) (*IngestInvocation, error)
	GetInvocations(ctx context.Context, key []byte) ([]*IngestInvocation, error)

	// Block-range ledger. AddBlockData is the single atomic ingest write:
	// output records, rng updates and the range advance commit together or
	// not at all.
	AddBlockData(ctx context.Context, key []byte, invocationID string, blockIndex uint64, outputs []*ETxOutRecord, rngUpdates []*RngUpdate) (*ProcessedBlockRange, error)
	GetBlockRange(ctx context.Context, key []byte) (*ProcessedBlockRange, error)

	// RNG-record store
	AddRngRecord(ctx context.Context, invocationID string, accountPubkey []byte, startBlock uint64, state []byte) error
	GetAllRngRecords(ctx context.Context, key []byte) ([]*RngRecord, error)
	RetireRngRecord(ctx context.Context, accountPubkey []byte) error

	// Output-record store, view side
	GetOutputs(ctx context.Context, searchKeys [][]byte, blockRange BlockRange) ([]*ETxOutRecord, error)

	// Report store
	StoreReport(ctx context.Context, key []byte, report []byte, validFrom, validUntil time.Time) error
	LatestReport(ctx context.Context, key []byte, at time.Time) (*AttestationReport, error)

	// Missed block ranges: blocks an enclave permanently skipped.
	ReportMissedBlockRange(ctx context.Context, key []byte, r BlockRange) error
	GetMissedBlockRanges(ctx context.Context, key []byte) ([]BlockRange, error)

	Close() error
}

// IngressKey identifies one ingest trust domain.
type IngressKey struct {
	Key            []byte
	StartBlock     uint64
	Decommissioned bool
	// LastScanned is the highest block index any invocation of this key has
	// handed to AddBlockData. -1 until the first write.
	LastScanned int64
}

// IngestInvocation is one running ingest worker session.
type IngestInvocation struct {
	ID             string
	IngressKey     []byte
	StartBlock     uint64
	Primary        bool
	LastActive     time.Time
	Decommissioned bool
}

// ETxOutRecord is one encrypted transaction-output payload. SearchKey is
// the value a view worker matches against; Payload is opaque ciphertext.
type ETxOutRecord struct {
	SearchKey  []byte
	Payload    []byte
	BlockIndex uint64
	Timestamp  time.Time
}

// RngUpdate advances (or issues) the search-key generator state for one
// account as part of a block write.
type RngUpdate struct {
	AccountPubkey []byte
	State         []byte
	// StartBlock is used when the update creates a fresh active record.
	StartBlock uint64
}

// RngRecord is the persisted generator state for one account.
type RngRecord struct {
	AccountPubkey []byte
	InvocationID  string
	StartBlock    uint64
	State         []byte
	Retired       bool
}

// AttestationReport is an ingress-key-scoped verification report blob.
type AttestationReport struct {
	IngressKey []byte
	Report     []byte
	ValidFrom  time.Time
	ValidUntil time.Time
	CreatedAt  time.Time
}

// BlockRange is the half-open interval [Start, End).
type BlockRange struct {
	Start uint64 `json:"start_block"`
	End   uint64 `json:"end_block"`
}

func (r BlockRange) IsValid() bool {
	return r.Start < r.End
}

func (r BlockRange) Contains(idx uint64) bool {
	return idx >= r.Start && idx < r.End
}

// ProcessedBlockRange reports ingestion progress for one ingress key.
type ProcessedBlockRange struct {
	// HighWater is the contiguous high-water mark, only meaningful while
	// Ingested is true.
	HighWater uint64
	// Ingested is false until the key's start block has been written.
	Ingested bool
	// Gaps are block indices written out of order, pending contiguity.
	Gaps []uint64
}
