package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 8, 10, 12, 0, 0, 0, time.UTC)

func TestReconstruct_FirstReadingAnchorsAtObservedTime(t *testing.T) {
	var c Reconstructor

	got := c.Reconstruct(5000, t0)
	assert.True(t, got.Equal(t0))

	epoch, ok := c.Epoch()
	require.True(t, ok)
	assert.True(t, epoch.Equal(t0.Add(-5*time.Second)))
}

func TestReconstruct_Linear(t *testing.T) {
	var c Reconstructor
	rel := []uint64{0, 1, 1, 250, 1000, 1001, 60_000, 3_600_000}

	first := c.Reconstruct(rel[0], t0)
	prev := first
	for i, r := range rel[1:] {
		// wall clock drifts, mapping must not
		observed := t0.Add(time.Duration(i+1) * 7 * time.Second)
		got := c.Reconstruct(r, observed)

		assert.False(t, got.Before(prev), "timestamps must be non-decreasing")
		assert.Equal(t, time.Duration(r-rel[0])*time.Millisecond, got.Sub(first))
		prev = got
	}
	assert.Equal(t, 0, c.Resyncs())
}

func TestReconstruct_EqualValueIsNotRestart(t *testing.T) {
	var c Reconstructor

	a := c.Reconstruct(400, t0)
	b := c.Reconstruct(400, t0.Add(time.Minute))

	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, c.Resyncs())
}

func TestReconstruct_BackwardCounterResyncs(t *testing.T) {
	var c Reconstructor
	c.Reconstruct(10_000, t0)

	later := t0.Add(3 * time.Hour)
	got := c.Reconstruct(9_999, later)

	assert.True(t, got.Equal(later), "restart must map to the current wall clock")
	assert.Equal(t, 1, c.Resyncs())
}

func TestReconstruct_RestartIsolation(t *testing.T) {
	// Two reconstructors with different histories agree after a resync.
	var a, b Reconstructor
	a.Reconstruct(500_000, t0)
	b.Reconstruct(900, t0.Add(-time.Hour))
	b.Reconstruct(100_000, t0.Add(-30*time.Minute))

	now := t0.Add(time.Hour)
	ga := a.Reconstruct(10, now)
	gb := b.Reconstruct(10, now)

	assert.True(t, ga.Equal(gb))
	assert.True(t, ga.Equal(now))
}

func TestReconstruct_Example(t *testing.T) {
	var c Reconstructor
	t1 := t0.Add(20 * time.Minute)

	e1 := c.Reconstruct(100, t0)
	e2 := c.Reconstruct(250, t0.Add(2*time.Second))
	e3 := c.Reconstruct(50, t1)
	e4 := c.Reconstruct(400, t1.Add(5*time.Second))

	assert.True(t, e1.Equal(t0))
	assert.Equal(t, 150*time.Millisecond, e2.Sub(e1))
	assert.True(t, e3.Equal(t1))
	assert.Equal(t, 350*time.Millisecond, e4.Sub(e3))
	assert.Equal(t, 1, c.Resyncs())
}

func TestReset_ForcesNewEpoch(t *testing.T) {
	var c Reconstructor
	c.Reconstruct(100, t0)
	c.Reset()

	_, ok := c.Epoch()
	assert.False(t, ok)

	later := t0.Add(time.Hour)
	got := c.Reconstruct(200, later)
	assert.True(t, got.Equal(later))
	assert.Equal(t, 0, c.Resyncs(), "reset is not counted as a restart")
}
