package dbpebble

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/veilscan/fogstore/internal/database"
)

func (s *Store) RegisterIngressKey(_ context.Context, key []byte, startBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getIngressKey(key)
	switch {
	case err == nil:
		if existing.Decommissioned {
			return database.ErrKeyDecommissioned
		}
		if existing.StartBlock != startBlock {
			return database.ErrAlreadyRegistered
		}
		return nil
	case !errors.Is(err, database.ErrKeyNotFound):
		return err
	}

	rec := ingressKeyRec{StartBlock: startBlock, LastScanned: -1}
	return s.DB.Set(keyWith(KIngressKey, key), encodeIngressKey(rec), pebble.Sync)
}

func (s *Store) DecommissionIngressKey(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getIngressKey(key)
	if err != nil {
		return err
	}
	rec.Decommissioned = true
	return s.DB.Set(keyWith(KIngressKey, key), encodeIngressKey(*rec), pebble.Sync)
}

func (s *Store) GetIngressKey(_ context.Context, key []byte) (*database.IngressKey, error) {
	rec, err := s.getIngressKey(key)
	if err != nil {
		return nil, err
	}
	return &database.IngressKey{
		Key:            append([]byte(nil), key...),
		StartBlock:     rec.StartBlock,
		Decommissioned: rec.Decommissioned,
		LastScanned:    rec.LastScanned,
	}, nil
}

func (s *Store) ListIngressKeys(_ context.Context) ([]*database.IngressKey, error) {
	var out []*database.IngressKey
	err := s.iterPrefix([]byte{KIngressKey}, func(k, val []byte) error {
		rec, err := decodeIngressKey(val)
		if err != nil {
			return database.Wrap(database.KindCorrupt, "undecodable ingress key record", err)
		}
		out = append(out, &database.IngressKey{
			Key:            append([]byte(nil), k[2:]...), // strip prefix and length byte
			StartBlock:     rec.StartBlock,
			Decommissioned: rec.Decommissioned,
			LastScanned:    rec.LastScanned,
		})
		return nil
	})
	return out, err
}
