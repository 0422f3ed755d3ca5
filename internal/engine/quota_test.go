package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/testutil"
)

func TestCatchUpQuota_WithinLimit(t *testing.T) {
	q := NewCatchUpQuota(10)

	for i := 0; i < 10; i++ {
		err := q.Check(time.Duration(i) * time.Second)
		assert.NoError(t, err, "cycle %d should be allowed", i+1)
	}

	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.Limit())
}

func TestCatchUpQuota_ExceedsLimit(t *testing.T) {
	q := NewCatchUpQuota(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check(time.Second))
	}

	err := q.Check(6 * time.Second)
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "5", re.Details["limit"])
	assert.Equal(t, "6s", re.Details["due"])
	assert.Contains(t, re.Error(), "more than 5 periodic cycles in one call")
}

func TestCatchUpQuota_Unlimited(t *testing.T) {
	q := NewCatchUpQuota(0)
	for i := 0; i < 10000; i++ {
		require.NoError(t, q.Check(0))
	}
}

func TestMonitor_CatchUpQuota(t *testing.T) {
	ctx := context.Background()

	t.Run("within limit", func(t *testing.T) {
		m := build(t, testutil.Sampler(100*time.Millisecond), WithMaxCatchUp(3))
		v := accept(t, m, 300*time.Millisecond, map[int]ir.Value{0: ir.Int(1)})
		assert.Len(t, v.Timed, 3)
	})

	t.Run("exceeded poisons", func(t *testing.T) {
		m := build(t, testutil.Sampler(100*time.Millisecond), WithMaxCatchUp(3))
		_, err := m.AcceptEvent(ctx, map[int]ir.Value{0: ir.Int(1)}, time.Second)
		require.Error(t, err)
		assert.True(t, IsQuotaExceeded(err))

		_, err = m.AcceptEvent(ctx, map[int]ir.Value{0: ir.Int(1)}, 2*time.Second)
		assert.True(t, IsQuotaExceeded(err))
	})

	t.Run("per call", func(t *testing.T) {
		m := build(t, testutil.Sampler(100*time.Millisecond), WithMaxCatchUp(3))
		for ts := 300 * time.Millisecond; ts <= 1200*time.Millisecond; ts += 300 * time.Millisecond {
			accept(t, m, ts, map[int]ir.Value{0: ir.Int(1)})
		}
		assert.Equal(t, int64(16), m.Cycles())
	})

	t.Run("finish", func(t *testing.T) {
		m := build(t, testutil.Sampler(100*time.Millisecond), WithMaxCatchUp(2))
		_, err := m.Finish(ctx, time.Second)
		assert.True(t, IsQuotaExceeded(err))
	})
}
