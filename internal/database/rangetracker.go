package database

import "sort"

// RangeTracker is the gap-filling block range: a contiguous high-water
// mark plus the set of indices written out of order. Backends load it at
// the start of a block write, apply the observed index and persist the
// delta inside the same transaction.
type RangeTracker struct {
	startBlock uint64
	highWater  uint64
	ingested   bool
	gaps       map[uint64]struct{}
}

// Observation describes the effect of one Observe call.
type Observation struct {
	// Advanced reports that the high-water mark moved forward.
	Advanced bool
	// Covered reports that the index was already inside the contiguous
	// range (or below the key's start block) and nothing changed.
	Covered bool
	// Pending reports that the index was recorded as a gap.
	Pending bool
	// Merged lists gap indices folded into the contiguous range by this
	// observation, in ascending order.
	Merged []uint64
}

func NewRangeTracker(startBlock uint64) *RangeTracker {
	return &RangeTracker{startBlock: startBlock, gaps: make(map[uint64]struct{})}
}

// RestoreRangeTracker rebuilds a tracker from persisted state. ingested is
// false while no contiguous range exists yet.
func RestoreRangeTracker(startBlock, highWater uint64, ingested bool, gaps []uint64) *RangeTracker {
	t := NewRangeTracker(startBlock)
	t.highWater = highWater
	t.ingested = ingested
	for _, g := range gaps {
		t.gaps[g] = struct{}{}
	}
	return t
}

// Observe applies one ingested block index. The contiguous range only ever
// grows; indices at or below the current mark are no-ops.
func (t *RangeTracker) Observe(idx uint64) Observation {
	if idx < t.startBlock {
		return Observation{Covered: true}
	}
	if t.ingested && idx <= t.highWater {
		return Observation{Covered: true}
	}
	if _, ok := t.gaps[idx]; ok {
		return Observation{Pending: true}
	}

	extends := (t.ingested && idx == t.highWater+1) ||
		(!t.ingested && idx == t.startBlock)
	if !extends {
		t.gaps[idx] = struct{}{}
		return Observation{Pending: true}
	}

	t.highWater = idx
	t.ingested = true
	obs := Observation{Advanced: true}
	for {
		next := t.highWater + 1
		if _, ok := t.gaps[next]; !ok {
			break
		}
		delete(t.gaps, next)
		t.highWater = next
		obs.Merged = append(obs.Merged, next)
	}
	return obs
}

// HighWater returns the contiguous high-water mark. ok is false until the
// start block has been ingested.
func (t *RangeTracker) HighWater() (uint64, bool) {
	return t.highWater, t.ingested
}

// Gaps returns the pending out-of-order indices in ascending order.
func (t *RangeTracker) Gaps() []uint64 {
	out := make([]uint64, 0, len(t.gaps))
	for g := range t.gaps {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Range snapshots the tracker as a ProcessedBlockRange.
func (t *RangeTracker) Range() *ProcessedBlockRange {
	return &ProcessedBlockRange{
		HighWater: t.highWater,
		Ingested:  t.ingested,
		Gaps:      t.Gaps(),
	}
}
