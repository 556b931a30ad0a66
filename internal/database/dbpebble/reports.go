package dbpebble

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/veilscan/fogstore/internal/database"
)

func (s *Store) StoreReport(_ context.Context, key []byte, report []byte, validFrom, validUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyRec, err := s.getIngressKey(key)
	if err != nil {
		return err
	}
	if keyRec.Decommissioned {
		return database.ErrKeyDecommissioned
	}

	now := time.Now()
	rec := reportRec{
		Report:     report,
		ValidFrom:  validFrom.UnixMilli(),
		ValidUntil: validUntil.UnixMilli(),
		CreatedAt:  now.UnixMilli(),
	}
	seq := u64be(uint64(now.UnixNano()))
	return s.DB.Set(keyWith(KReport, key, seq), encodeReport(rec), pebble.Sync)
}

func (s *Store) LatestReport(_ context.Context, key []byte, at time.Time) (*database.AttestationReport, error) {
	if _, err := s.getIngressKey(key); err != nil {
		return nil, err
	}

	atMilli := at.UnixMilli()
	var best *reportRec
	err := s.iterPrefix(keyWith(KReport, key), func(_, val []byte) error {
		rec, err := decodeReport(val)
		if err != nil {
			return database.Wrap(database.KindCorrupt, "undecodable report record", err)
		}
		if rec.ValidFrom > atMilli {
			return nil
		}
		if best == nil || rec.ValidUntil > best.ValidUntil ||
			(rec.ValidUntil == best.ValidUntil && rec.CreatedAt > best.CreatedAt) {
			best = &rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, database.ErrReportNotFound
	}
	return &database.AttestationReport{
		IngressKey: append([]byte(nil), key...),
		Report:     best.Report,
		ValidFrom:  time.UnixMilli(best.ValidFrom),
		ValidUntil: time.UnixMilli(best.ValidUntil),
		CreatedAt:  time.UnixMilli(best.CreatedAt),
	}, nil
}

func (s *Store) ReportMissedBlockRange(_ context.Context, key []byte, r database.BlockRange) error {
	if !r.IsValid() {
		return database.ErrInvalidBlockRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getIngressKey(key); err != nil {
		return err
	}
	return s.DB.Set(keyWith(KMissed, key, u64be(r.Start), u64be(r.End)), nil, pebble.Sync)
}

func (s *Store) GetMissedBlockRanges(_ context.Context, key []byte) ([]database.BlockRange, error) {
	if _, err := s.getIngressKey(key); err != nil {
		return nil, err
	}
	prefix := keyWith(KMissed, key)
	var out []database.BlockRange
	err := s.iterPrefix(prefix, func(k, _ []byte) error {
		rest := k[len(prefix):]
		start, rest, err := takeU64(rest)
		if err != nil {
			return database.Wrap(database.KindCorrupt, "undecodable missed-range key", err)
		}
		end, _, err := takeU64(rest)
		if err != nil {
			return database.Wrap(database.KindCorrupt, "undecodable missed-range key", err)
		}
		out = append(out, database.BlockRange{Start: start, End: end})
		return nil
	})
	return out, err
}
