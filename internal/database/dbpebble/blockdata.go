package dbpebble

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/veilscan/fogstore/internal/database"
)

// AddBlockData mirrors the sqlite backend's single atomic write: primary
// check, idempotent output append, rng updates and the range advance land
// in one batch commit.
func (s *Store) AddBlockData(_ context.Context, key []byte, invocationID string, blockIndex uint64, outputs []*database.ETxOutRecord, rngUpdates []*database.RngUpdate) (*database.ProcessedBlockRange, error) {
	contentHash := database.ContentHash(blockIndex, outputs, rngUpdates)

	s.mu.Lock()
	defer s.mu.Unlock()

	keyRec, err := s.getIngressKey(key)
	if err != nil {
		return nil, err
	}
	if keyRec.Decommissioned {
		return nil, database.ErrKeyDecommissioned
	}

	inv, err := s.getInvocation(invocationID)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(inv.IngressKey, key) {
		return nil, database.ErrNotPrimary
	}
	if inv.Decommissioned {
		return nil, database.ErrInvocationRetired
	}
	holder, err := s.primaryID(key)
	if err != nil {
		return nil, err
	}
	if holder != invocationID {
		return nil, database.ErrNotPrimary
	}

	ingestedKey := keyWith(KIngested, key, u64be(blockIndex))
	existing, err := s.get(ingestedKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !bytes.Equal(existing, contentHash) {
			return nil, database.ErrBlockContentMismatch
		}
		tracker, err := s.loadTracker(key, keyRec.StartBlock)
		if err != nil {
			return nil, err
		}
		return tracker.Range(), nil
	}

	b := s.DB.NewBatch()
	defer b.Close()

	if err := b.Set(ingestedKey, contentHash, nil); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	for _, o := range outputs {
		outKey := keyWith(KOutput, o.SearchKey, u64be(blockIndex), database.PayloadHash(o))
		rec := outputRec{Payload: o.Payload, InvocationID: invocationID, CreatedAt: now}
		if err := b.Set(outKey, encodeOutput(rec), nil); err != nil {
			return nil, err
		}
	}

	for _, u := range rngUpdates {
		if err := s.applyRngUpdate(b, key, invocationID, blockIndex, u); err != nil {
			return nil, err
		}
	}

	tracker, err := s.loadTracker(key, keyRec.StartBlock)
	if err != nil {
		return nil, err
	}
	obs := tracker.Observe(blockIndex)
	switch {
	case obs.Pending:
		if err := b.Set(keyWith(KGap, key, u64be(blockIndex)), nil, nil); err != nil {
			return nil, err
		}
	case obs.Advanced:
		hw, _ := tracker.HighWater()
		if err := b.Set(keyWith(KHighWater, key), u64be(hw), nil); err != nil {
			return nil, err
		}
		for _, merged := range obs.Merged {
			if err := b.Delete(keyWith(KGap, key, u64be(merged)), nil); err != nil {
				return nil, err
			}
		}
	}

	if int64(blockIndex) > keyRec.LastScanned {
		keyRec.LastScanned = int64(blockIndex)
	}
	if err := b.Set(keyWith(KIngressKey, key), encodeIngressKey(*keyRec), nil); err != nil {
		return nil, err
	}
	inv.LastActive = now
	if err := b.Set(keyWith(KInvocation, []byte(invocationID)), encodeInvocation(*inv), nil); err != nil {
		return nil, err
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return nil, err
	}
	return tracker.Range(), nil
}

func (s *Store) applyRngUpdate(b *pebble.Batch, key []byte, invocationID string, blockIndex uint64, u *database.RngUpdate) error {
	activeKey := keyWith(KRngActive, u.AccountPubkey)
	val, err := s.get(activeKey)
	if err != nil {
		return err
	}
	if val != nil {
		rec, err := decodeRng(val)
		if err != nil {
			return database.Wrap(database.KindCorrupt, "undecodable rng record", err)
		}
		rec.State = u.State
		return b.Set(activeKey, encodeRng(rec), nil)
	}

	startBlock := u.StartBlock
	if startBlock == 0 {
		startBlock = blockIndex
	}
	rec := rngRec{
		AccountPubkey: u.AccountPubkey,
		InvocationID:  invocationID,
		StartBlock:    startBlock,
		State:         u.State,
	}
	if err := b.Set(activeKey, encodeRng(rec), nil); err != nil {
		return err
	}
	return b.Set(keyWith(KRngByKey, key, u.AccountPubkey), nil, nil)
}

func (s *Store) GetBlockRange(_ context.Context, key []byte) (*database.ProcessedBlockRange, error) {
	keyRec, err := s.getIngressKey(key)
	if err != nil {
		return nil, err
	}
	tracker, err := s.loadTracker(key, keyRec.StartBlock)
	if err != nil {
		return nil, err
	}
	return tracker.Range(), nil
}

// GetOutputs walks each search key's block window and filters records to
// the contiguous range of the owning ingress key, resolved through the
// writing invocation and memoized per query.
func (s *Store) GetOutputs(_ context.Context, searchKeys [][]byte, blockRange database.BlockRange) ([]*database.ETxOutRecord, error) {
	if !blockRange.IsValid() {
		return nil, database.ErrInvalidBlockRange
	}

	type watermark struct {
		high     uint64
		ingested bool
	}
	marks := map[string]watermark{}
	markFor := func(invocationID string) (watermark, error) {
		if m, ok := marks[invocationID]; ok {
			return m, nil
		}
		inv, err := s.getInvocation(invocationID)
		if err != nil {
			return watermark{}, err
		}
		hwVal, err := s.get(keyWith(KHighWater, inv.IngressKey))
		if err != nil {
			return watermark{}, err
		}
		var m watermark
		if hwVal != nil {
			hw, _, err := takeU64(hwVal)
			if err != nil {
				return watermark{}, database.Wrap(database.KindCorrupt, "undecodable high-water mark", err)
			}
			m = watermark{high: hw, ingested: true}
		}
		marks[invocationID] = m
		return m, nil
	}

	var out []*database.ETxOutRecord
	for _, sk := range searchKeys {
		base := keyWith(KOutput, sk)
		lower := append(append([]byte(nil), base...), u64be(blockRange.Start)...)
		upper := append(append([]byte(nil), base...), u64be(blockRange.End)...)
		iter, err := s.DB.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
		if err != nil {
			return nil, err
		}
		for iter.First(); iter.Valid(); iter.Next() {
			idx, _, err := takeU64(iter.Key()[len(base):])
			if err != nil {
				iter.Close()
				return nil, database.Wrap(database.KindCorrupt, "undecodable output key", err)
			}
			rec, err := decodeOutput(iter.Value())
			if err != nil {
				iter.Close()
				return nil, database.Wrap(database.KindCorrupt, "undecodable output record", err)
			}
			m, err := markFor(rec.InvocationID)
			if err != nil {
				iter.Close()
				return nil, err
			}
			if !m.ingested || idx > m.high {
				continue
			}
			out = append(out, &database.ETxOutRecord{
				SearchKey:  append([]byte(nil), sk...),
				Payload:    rec.Payload,
				BlockIndex: idx,
				Timestamp:  time.UnixMilli(rec.CreatedAt),
			})
		}
		if err := iter.Error(); err != nil {
			iter.Close()
			return nil, err
		}
		if err := iter.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
