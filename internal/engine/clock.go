package engine

import "sync/atomic"

// Clock is the session's monotonic logical clock.
//
// Every trace event and every recorded navigation decision is stamped with a
// strictly increasing seq from the same clock, so a scenario's trace and its
// decision log interleave in one total order without wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start. The CLI uses it to
// continue the decision log of an existing database.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
