// Package dbpebble is the embedded RecoveryDB backend. Every state change
// commits as one atomic pebble batch; read-modify-write values (the
// primary token, the range watermark) are serialized by the store's writer
// lock. Suited to single-process deployments and the benchmark harness —
// the sqlite backend carries the cross-process guarantees.
package dbpebble

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/veilscan/fogstore/internal/database"
)

type Store struct {
	DB *pebble.DB

	// mu serializes all writers; pebble batches give atomicity, the lock
	// gives the conditional-update semantics.
	mu sync.Mutex
}

var _ database.RecoveryDB = (*Store)(nil)

func NewStore(db *pebble.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// get reads a key and copies the value out of pebble's buffer. Returns
// (nil, nil) when the key is absent.
func (s *Store) get(key []byte) ([]byte, error) {
	val, closer, err := s.DB.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, closer.Close()
}

// iterPrefix walks every key under prefix, calling fn with the key and a
// copy of the value.
func (s *Store) iterPrefix(prefix []byte, fn func(key, val []byte) error) error {
	iter, err := s.DB.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		val := make([]byte, len(iter.Value()))
		copy(val, iter.Value())
		if err := fn(iter.Key(), val); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) getIngressKey(key []byte) (*ingressKeyRec, error) {
	val, err := s.get(keyWith(KIngressKey, key))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, database.ErrKeyNotFound
	}
	rec, err := decodeIngressKey(val)
	if err != nil {
		return nil, database.Wrap(database.KindCorrupt, "undecodable ingress key record", err)
	}
	return &rec, nil
}

func (s *Store) getInvocation(id string) (*invocationRec, error) {
	val, err := s.get(keyWith(KInvocation, []byte(id)))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, database.ErrInvocationNotFound
	}
	rec, err := decodeInvocation(val)
	if err != nil {
		return nil, database.Wrap(database.KindCorrupt, "undecodable invocation record", err)
	}
	return &rec, nil
}

// primaryID returns the invocation currently holding the single-writer
// token for key, or "" if none.
func (s *Store) primaryID(key []byte) (string, error) {
	val, err := s.get(keyWith(KPrimary, key))
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (s *Store) loadTracker(key []byte, startBlock uint64) (*database.RangeTracker, error) {
	hwVal, err := s.get(keyWith(KHighWater, key))
	if err != nil {
		return nil, err
	}
	var highWater uint64
	ingested := hwVal != nil
	if ingested {
		if highWater, _, err = takeU64(hwVal); err != nil {
			return nil, database.Wrap(database.KindCorrupt, "undecodable high-water mark", err)
		}
	}

	gapPrefix := keyWith(KGap, key)
	var gaps []uint64
	err = s.iterPrefix(gapPrefix, func(k, _ []byte) error {
		idx, _, err := takeU64(k[len(gapPrefix):])
		if err != nil {
			return database.Wrap(database.KindCorrupt, "undecodable gap key", err)
		}
		gaps = append(gaps, idx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return database.RestoreRangeTracker(startBlock, highWater, ingested, gaps), nil
}
