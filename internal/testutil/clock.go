package testutil

import "sync/atomic"

// DeterministicClock is the logical clock the harness and tests hand to a
// session. Trace events and decision records share it, so a replayed
// scenario stamps the same seqs every time. Safe for concurrent use.
type DeterministicClock struct {
	seq atomic.Int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new seq.
func (c *DeterministicClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out, 0 before the first Next.
func (c *DeterministicClock) Current() int64 {
	return c.seq.Load()
}

// Reset rewinds the clock so the next scenario run starts again at 1.
func (c *DeterministicClock) Reset() {
	c.seq.Store(0)
}
