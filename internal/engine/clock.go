package engine

import "sync/atomic"

// Clock numbers evaluation cycles. Several cycles can share one stream
// timestamp (periodic cycles due at the time of an event, repeated event
// timestamps), so the sequence number is what makes the recorded order of
// a run total.
//
// The monitor loop is the only writer. Current may be read from other
// goroutines, e.g. while the metrics endpoint is serving.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first cycle is number 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next stamps a new cycle and returns its number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the number of the last stamped cycle, 0 before the first.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
