package dbpebble

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/veilscan/fogstore/internal/database"
)

func (s *Store) RegisterInvocation(_ context.Context, key []byte, startBlock uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyRec, err := s.getIngressKey(key)
	if err != nil {
		return "", err
	}
	if keyRec.Decommissioned {
		return "", database.ErrKeyDecommissioned
	}

	id := uuid.NewString()
	rec := invocationRec{
		IngressKey: append([]byte(nil), key...),
		StartBlock: startBlock,
		LastActive: time.Now().UnixMilli(),
	}

	b := s.DB.NewBatch()
	defer b.Close()
	if err := b.Set(keyWith(KInvocation, []byte(id)), encodeInvocation(rec), nil); err != nil {
		return "", err
	}
	if err := b.Set(keyWith(KInvByKey, key, []byte(id)), nil, nil); err != nil {
		return "", err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return "", err
	}
	return id, nil
}

// SetPrimary swaps the single-writer token to the target invocation. The
// token is one value per ingress key, so there is never a state with two
// holders; the batch commit makes the swap atomic.
func (s *Store) SetPrimary(_ context.Context, invocationID string) error {
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

	b := s.DB.NewBatch()
	defer b.Close()
	if err := b.Set(keyWith(KPrimary, inv.IngressKey), []byte(invocationID), nil); err != nil {
		return err
	}
	inv.LastActive = time.Now().UnixMilli()
	if err := b.Set(keyWith(KInvocation, []byte(invocationID)), encodeInvocation(*inv), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (s *Store) DecommissionInvocation(_ context.Context, invocationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.getInvocation(invocationID)
	if err != nil {
		return err
	}

	b := s.DB.NewBatch()
	defer b.Close()

	// drop the token if this invocation holds it
	holder, err := s.primaryID(inv.IngressKey)
	if err != nil {
		return err
	}
	if holder == invocationID {
		if err := b.Delete(keyWith(KPrimary, inv.IngressKey), nil); err != nil {
			return err
		}
	}

	inv.Decommissioned = true
	if err := b.Set(keyWith(KInvocation, []byte(invocationID)), encodeInvocation(*inv), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (s *Store) GetInvocation(_ context.Context, invocationID string) (*database.IngestInvocation, error) {
	inv, err := s.getInvocation(invocationID)
	if err != nil {
		return nil, err
	}
	holder, err := s.primaryID(inv.IngressKey)
	if err != nil {
		return nil, err
	}
	return toInvocation(invocationID, inv, holder), nil
}

func (s *Store) GetInvocations(_ context.Context, key []byte) ([]*database.IngestInvocation, error) {
	holder, err := s.primaryID(key)
	if err != nil {
		return nil, err
	}

	idxPrefix := keyWith(KInvByKey, key)
	var out []*database.IngestInvocation
	err = s.iterPrefix(idxPrefix, func(k, _ []byte) error {
		id := string(k[len(idxPrefix):])
		inv, err := s.getInvocation(id)
		if err != nil {
			return err
		}
		out = append(out, toInvocation(id, inv, holder))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].LastActive.After(out[j].LastActive)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func toInvocation(id string, rec *invocationRec, primaryHolder string) *database.IngestInvocation {
	return &database.IngestInvocation{
		ID:             id,
		IngressKey:     rec.IngressKey,
		StartBlock:     rec.StartBlock,
		Primary:        id == primaryHolder && !rec.Decommissioned,
		LastActive:     time.UnixMilli(rec.LastActive),
		Decommissioned: rec.Decommissioned,
	}
}
