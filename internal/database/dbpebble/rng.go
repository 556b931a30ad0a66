package dbpebble

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/veilscan/fogstore/internal/database"
)

func (s *Store) AddRngRecord(_ context.Context, invocationID string, accountPubkey []byte, startBlock uint64, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.getInvocation(invocationID)
	if err != nil {
		return err
	}
	if inv.Decommissioned {
		return database.ErrInvocationRetired
	}
	keyRec, err := s.getIngressKey(inv.IngressKey)
	if err != nil {
		return err
	}
	if keyRec.Decommissioned {
		return database.ErrKeyDecommissioned
	}

	activeKey := keyWith(KRngActive, accountPubkey)
	existing, err := s.get(activeKey)
	if err != nil {
		return err
	}
	if existing != nil {
		return database.ErrDuplicateActiveRecord
	}

	rec := rngRec{
		AccountPubkey: append([]byte(nil), accountPubkey...),
		InvocationID:  invocationID,
		StartBlock:    startBlock,
		State:         state,
	}
	b := s.DB.NewBatch()
	defer b.Close()
	if err := b.Set(activeKey, encodeRng(rec), nil); err != nil {
		return err
	}
	if err := b.Set(keyWith(KRngByKey, inv.IngressKey, accountPubkey), nil, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (s *Store) GetAllRngRecords(_ context.Context, key []byte) ([]*database.RngRecord, error) {
	idxPrefix := keyWith(KRngByKey, key)
	var out []*database.RngRecord
	err := s.iterPrefix(idxPrefix, func(k, _ []byte) error {
		account := k[len(idxPrefix):]
		val, err := s.get(keyWith(KRngActive, account))
		if err != nil {
			return err
		}
		if val == nil {
			return nil // retired since the index entry was written
		}
		rec, err := decodeRng(val)
		if err != nil {
			return database.Wrap(database.KindCorrupt, "undecodable rng record", err)
		}
		out = append(out, &database.RngRecord{
			AccountPubkey: rec.AccountPubkey,
			InvocationID:  rec.InvocationID,
			StartBlock:    rec.StartBlock,
			State:         rec.State,
		})
		return nil
	})
	// accounts come back in byte order from the index walk
	return out, err
}

// RetireRngRecord moves the active record to the retired keyspace, where
// it stays immutable. Idempotent.
func (s *Store) RetireRngRecord(_ context.Context, accountPubkey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activeKey := keyWith(KRngActive, accountPubkey)
	val, err := s.get(activeKey)
	if err != nil {
		return err
	}
	if val == nil {
		return nil
	}
	rec, err := decodeRng(val)
	if err != nil {
		return database.Wrap(database.KindCorrupt, "undecodable rng record", err)
	}
	rec.Retired = true

	b := s.DB.NewBatch()
	defer b.Close()
	if err := b.Delete(activeKey, nil); err != nil {
		return err
	}
	seq := u64be(uint64(time.Now().UnixNano()))
	if err := b.Set(keyWith(KRngRetired, accountPubkey, seq), encodeRng(rec), nil); err != nil {
		return err
	}
	if inv, err := s.getInvocation(rec.InvocationID); err == nil {
		if err := b.Delete(keyWith(KRngByKey, inv.IngressKey, accountPubkey), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}
