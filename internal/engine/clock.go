package engine

import "sync/atomic"

// Clock stamps legs and outcomes with a logical seq.
//
// Seqs only grow. They order events within and across traces, and a leg
// staged by a failed invocation leaves a gap. Root legs are stamped from
// Submit callers while the loop stamps everything else, so Clock is safe
// for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first Tick is 1.
func NewClock() *Clock {
	return new(Clock)
}

// Tick issues the next seq.
func (c *Clock) Tick() int64 {
	return c.last.Add(1)
}

// Last is the most recently issued seq, zero before the first Tick.
func (c *Clock) Last() int64 {
	return c.last.Load()
}

// AdvanceTo moves the clock so the next Tick is after seq. A clock already
// at or past seq is unchanged.
func (c *Clock) AdvanceTo(seq int64) {
	for {
		cur := c.last.Load()
		if cur >= seq || c.last.CompareAndSwap(cur, seq) {
			return
		}
	}
}
