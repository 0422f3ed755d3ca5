package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

const ms = time.Millisecond

func drain(q *Queue, end time.Duration, inclusive bool) []Batch {
	var out []Batch
	for {
		b, ok := q.Next(end, inclusive)
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestNext_StaticBatching(t *testing.T) {
	q := New()
	q.Add(StaticDeadline(100*ms), 0)
	q.Add(StaticDeadline(250*ms), 0)

	batches := drain(q, 1000*ms, true)

	var dues []time.Duration
	for _, b := range batches {
		dues = append(dues, b.Due)
	}
	want := []time.Duration{0, 100 * ms, 200 * ms, 250 * ms, 300 * ms, 400 * ms, 500 * ms,
		600 * ms, 700 * ms, 750 * ms, 800 * ms, 900 * ms, 1000 * ms}
	assert.Equal(t, want, dues)

	// The 500ms batch carries both deadlines' payloads.
	require.Len(t, batches, 13)
	assert.Equal(t, []time.Duration{100 * ms, 250 * ms}, batches[6].Static)
	assert.Equal(t, []time.Duration{250 * ms}, batches[3].Static)
	assert.Equal(t, []time.Duration{100 * ms}, batches[1].Static)
}

func TestNext_OneTimestampPerCall(t *testing.T) {
	q := New()
	q.Add(StaticDeadline(100*ms), 100*ms)

	b, ok := q.Next(time.Second, true)
	require.True(t, ok)
	assert.Equal(t, 100*ms, b.Due)

	due, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 200*ms, due, "rearmed at due + period")
}

func TestNext_EndBoundary(t *testing.T) {
	q := New()
	q.Add(StaticDeadline(100*ms), 100*ms)

	_, ok := q.Next(100*ms, false)
	assert.False(t, ok, "exclusive end does not fire a deadline due at end")
	assert.Equal(t, 1, q.Len())

	_, ok = q.Next(99*ms, true)
	assert.False(t, ok)

	b, ok := q.Next(100*ms, true)
	require.True(t, ok)
	assert.True(t, b.HasStatic(100*ms))
}

func TestNext_EmptyQueue(t *testing.T) {
	q := New()
	_, ok := q.Next(time.Hour, true)
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestCollectAndAdd_MergesByPeriod(t *testing.T) {
	q := New()
	a := Target{Output: 1, Params: ir.Parameters{ir.Int(1)}}
	b := Target{Output: 1, Params: ir.Parameters{ir.Int(2)}}
	c := Target{Output: 2, Params: nil}

	q.CollectAndAdd([]Deadline{
		DynamicDeadline(50*ms, b),
		DynamicDeadline(80*ms, c),
		DynamicDeadline(50*ms, a),
	}, 10*ms)
	assert.Equal(t, 2, q.Len(), "one armed deadline per period")

	first, ok := q.Next(time.Second, true)
	require.True(t, ok)
	assert.Equal(t, 60*ms, first.Due)
	assert.Equal(t, []Target{a, b}, first.Dynamic, "targets are sorted")
	assert.True(t, first.HasTarget(1, ir.Parameters{ir.Int(2)}))
	assert.False(t, first.HasTarget(2, nil))

	second, ok := q.Next(time.Second, true)
	require.True(t, ok)
	assert.Equal(t, 90*ms, second.Due)
	assert.Equal(t, []Target{c}, second.Dynamic)
	assert.Empty(t, second.Static)
}

func TestRemove_StripsTargetsAndDropsEmpty(t *testing.T) {
	q := New()
	a := Target{Output: 0, Params: ir.Parameters{ir.Int(1)}}
	b := Target{Output: 0, Params: ir.Parameters{ir.Int(2)}}
	q.Add(StaticDeadline(100*ms), 100*ms)
	q.Add(DynamicDeadline(30*ms, a, b), 30*ms)
	q.Add(DynamicDeadline(40*ms, a), 40*ms)

	q.Remove([]Target{a})
	assert.Equal(t, 2, q.Len(), "the deadline serving only a is dropped")

	batch, ok := q.Next(time.Second, true)
	require.True(t, ok)
	assert.Equal(t, 30*ms, batch.Due)
	assert.Equal(t, []Target{b}, batch.Dynamic)

	q.Remove([]Target{b})
	assert.Equal(t, 1, q.Len(), "static deadlines are unaffected")
	batch, ok = q.Next(time.Second, true)
	require.True(t, ok)
	assert.Equal(t, 100*ms, batch.Due)
}

func TestAdd_IgnoresDegenerateDeadlines(t *testing.T) {
	q := New()
	q.Add(StaticDeadline(0), 0)
	q.Add(DynamicDeadline(10*ms), 0)
	assert.Equal(t, 0, q.Len())
}

func TestNext_MergesDuplicateTargets(t *testing.T) {
	q := New()
	a := Target{Output: 3, Params: ir.Parameters{ir.String("x")}}
	q.Add(DynamicDeadline(10*ms, a), 10*ms)
	q.Add(DynamicDeadline(10*ms, a), 10*ms)
	q.Add(StaticDeadline(10*ms), 10*ms)
	q.Add(StaticDeadline(10*ms), 10*ms)

	batch, ok := q.Next(10*ms, true)
	require.True(t, ok)
	assert.Equal(t, []Target{a}, batch.Dynamic)
	assert.Equal(t, []time.Duration{10 * ms}, batch.Static)
	assert.False(t, batch.Empty())
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "out2", Target{Output: 2}.String())
	assert.Equal(t, "out1(5, a)", Target{Output: 1, Params: ir.Parameters{ir.Int(5), ir.String("a")}}.String())
}
