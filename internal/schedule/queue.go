package schedule

import (
	"container/heap"
	"time"
)

type entry struct {
	due      time.Duration
	seq      uint64 // insertion order, breaks ties between equal due times
	deadline Deadline
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue is a min-priority queue of (due time, Deadline) pairs.
// It is not safe for concurrent use.
type Queue struct {
	h   entryHeap
	seq uint64
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Add arms d to fire at due. Deadlines with a non-positive period or a
// dynamic deadline without targets are ignored.
func (q *Queue) Add(d Deadline, due time.Duration) {
	if d.Period <= 0 || (!d.Static && len(d.Targets) == 0) {
		return
	}
	q.seq++
	heap.Push(&q.h, entry{due: due, seq: q.seq, deadline: d})
}

// Len returns the number of armed deadlines.
func (q *Queue) Len() int { return q.h.Len() }

// Peek returns the earliest due time.
func (q *Queue) Peek() (time.Duration, bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h[0].due, true
}

// Next pops every deadline due at the earliest armed time, provided that
// time is before end (or equal to end when inclusive). The popped deadlines
// are merged into one batch and rearmed at due + period. It reports false,
// leaving the queue untouched, when nothing is due in range. One call drains
// a single timestamp; callers loop to drain a window.
func (q *Queue) Next(end time.Duration, inclusive bool) (Batch, bool) {
	due, ok := q.Peek()
	if !ok || due > end || (due == end && !inclusive) {
		return Batch{}, false
	}

	batch := Batch{Due: due}
	var fired []Deadline
	for q.h.Len() > 0 && q.h[0].due == due {
		e := heap.Pop(&q.h).(entry)
		batch.merge(e.deadline)
		fired = append(fired, e.deadline)
	}
	for _, d := range fired {
		q.Add(d, due+d.Period)
	}
	batch.normalize()
	return batch, true
}

// CollectAndAdd merges the dynamic deadline groups created since the last
// drain by period and arms each merged group at now + period.
func (q *Queue) CollectAndAdd(groups []Deadline, now time.Duration) {
	var periods []time.Duration
	merged := make(map[time.Duration][]Target)
	for _, g := range groups {
		if g.Static {
			q.Add(g, now+g.Period)
			continue
		}
		if _, seen := merged[g.Period]; !seen {
			periods = append(periods, g.Period)
		}
		merged[g.Period] = append(merged[g.Period], g.Targets...)
	}
	for _, p := range periods {
		q.Add(DynamicDeadline(p, merged[p]...), now+p)
	}
}

// Remove strips the closed targets from every dynamic deadline. A dynamic
// deadline left without targets is dropped; static deadlines are unaffected.
func (q *Queue) Remove(closed []Target) {
	if len(closed) == 0 {
		return
	}
	gone := make(map[string]bool, len(closed))
	for _, t := range closed {
		gone[t.key()] = true
	}

	kept := q.h[:0]
	for _, e := range q.h {
		if !e.deadline.Static {
			var targets []Target
			for _, t := range e.deadline.Targets {
				if !gone[t.key()] {
					targets = append(targets, t)
				}
			}
			if len(targets) == 0 {
				continue
			}
			e.deadline.Targets = targets
		}
		kept = append(kept, e)
	}
	q.h = kept
	heap.Init(&q.h)
}
