// Package clock maps device-relative millisecond counters onto wall-clock time.
//
// A die reports milliseconds elapsed since its own boot. The first reading of a
// session anchors an epoch at the observed wall clock; later readings are placed
// relative to that epoch. A counter that goes backward means the device restarted
// or the counter wrapped, so the epoch is re-anchored.
package clock

import "time"

// Reconstructor holds the clock state of one ingestion session.
// The zero value is ready to use. It is not safe for concurrent use.
type Reconstructor struct {
	epoch   time.Time
	last    uint64
	started bool
	resyncs int
}

// Reconstruct returns the absolute time of a reading taken relativeMs
// milliseconds after device boot, observed at observedNow.
func (c *Reconstructor) Reconstruct(relativeMs uint64, observedNow time.Time) time.Time {
	offset := time.Duration(relativeMs) * time.Millisecond
	if !c.started || relativeMs < c.last {
		if c.started {
			c.resyncs++
		}
		c.epoch = observedNow.Add(-offset)
		c.started = true
	}
	c.last = relativeMs
	return c.epoch.Add(offset)
}

// Reset forgets the current epoch. The next reading re-anchors it.
func (c *Reconstructor) Reset() {
	c.started = false
	c.last = 0
}

// Epoch returns the current epoch and whether one has been set.
func (c *Reconstructor) Epoch() (time.Time, bool) {
	return c.epoch, c.started
}

// Resyncs returns how many times a backward counter forced a new epoch.
func (c *Reconstructor) Resyncs() int {
	return c.resyncs
}
