package testutil

import (
	"sync"
	"time"
)

// Timeline hands out evenly spaced event timestamps for tests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Timeline struct {
	mu    sync.Mutex
	start time.Duration
	step  time.Duration
	n     int64
}

// NewTimeline creates a timeline whose first timestamp is start.
func NewTimeline(start, step time.Duration) *Timeline {
	return &Timeline{start: start, step: step}
}

// Next returns the next timestamp: start, start+step, start+2*step, ...
func (t *Timeline) Next() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts := t.start + time.Duration(t.n)*t.step
	t.n++
	return ts
}

// Reset rewinds the timeline to start.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n = 0
}
