package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeTrackerFirstBlock(t *testing.T) {
	tr := NewRangeTracker(10)

	_, ok := tr.HighWater()
	assert.False(t, ok, "no watermark before first ingest")

	obs := tr.Observe(10)
	assert.True(t, obs.Advanced)

	hw, ok := tr.HighWater()
	require.True(t, ok)
	assert.Equal(t, uint64(10), hw)
	assert.Empty(t, tr.Gaps())
}

func TestRangeTrackerOutOfOrderMerge(t *testing.T) {
	tr := NewRangeTracker(0)

	// 2 and 3 arrive before 0 and 1
	assert.True(t, tr.Observe(2).Pending)
	assert.True(t, tr.Observe(3).Pending)
	assert.Equal(t, []uint64{2, 3}, tr.Gaps())

	obs := tr.Observe(0)
	assert.True(t, obs.Advanced)
	hw, _ := tr.HighWater()
	assert.Equal(t, uint64(0), hw)

	// 1 closes the gap and drains 2 and 3
	obs = tr.Observe(1)
	assert.True(t, obs.Advanced)
	assert.Equal(t, []uint64{2, 3}, obs.Merged)

	hw, ok := tr.HighWater()
	require.True(t, ok)
	assert.Equal(t, uint64(3), hw)
	assert.Empty(t, tr.Gaps())
}

func TestRangeTrackerCoveredIsNoop(t *testing.T) {
	tr := NewRangeTracker(5)
	tr.Observe(5)
	tr.Observe(6)

	obs := tr.Observe(6)
	assert.True(t, obs.Covered)
	obs = tr.Observe(5)
	assert.True(t, obs.Covered)

	// below the key's start block is covered by definition
	obs = tr.Observe(2)
	assert.True(t, obs.Covered)

	hw, _ := tr.HighWater()
	assert.Equal(t, uint64(6), hw, "watermark never moves backwards")
}

func TestRangeTrackerDuplicateGap(t *testing.T) {
	tr := NewRangeTracker(0)
	assert.True(t, tr.Observe(4).Pending)
	assert.True(t, tr.Observe(4).Pending)
	assert.Equal(t, []uint64{4}, tr.Gaps())
}

func TestRangeTrackerMonotoneWatermark(t *testing.T) {
	tr := NewRangeTracker(0)
	var last uint64
	for _, idx := range []uint64{0, 3, 1, 2, 7, 4, 5, 6} {
		tr.Observe(idx)
		if hw, ok := tr.HighWater(); ok {
			assert.GreaterOrEqual(t, hw, last)
			last = hw
		}
	}
	hw, _ := tr.HighWater()
	assert.Equal(t, uint64(7), hw)
	assert.Empty(t, tr.Gaps())
}

func TestRestoreRangeTracker(t *testing.T) {
	tr := RestoreRangeTracker(0, 2, true, []uint64{5, 7})

	r := tr.Range()
	assert.Equal(t, uint64(2), r.HighWater)
	assert.True(t, r.Ingested)
	assert.Equal(t, []uint64{5, 7}, r.Gaps)

	// 3 advances, 4 drains 5 but not 7
	tr.Observe(3)
	obs := tr.Observe(4)
	assert.Equal(t, []uint64{5}, obs.Merged)
	hw, _ := tr.HighWater()
	assert.Equal(t, uint64(5), hw)
	assert.Equal(t, []uint64{7}, tr.Gaps())
}
