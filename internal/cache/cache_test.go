package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/osabridge/internal/testutil"
)

func TestGetOrCompute_HitWithinTTL(t *testing.T) {
	clk := testutil.NewStepClock()
	c := New(WithClock(clk.Now))

	var computes atomic.Int32
	compute := func(context.Context) (any, error) {
		computes.Add(1)
		return "value", nil
	}

	v, hit, err := c.GetOrCompute(context.Background(), "items.all", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "value", v)

	clk.Advance(59 * time.Second)
	v, hit, err = c.GetOrCompute(context.Background(), "items.all", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "value", v)
	assert.Equal(t, int32(1), computes.Load(), "cached read must not re-execute within ttl")
}

func TestGetOrCompute_RecomputesAfterExpiry(t *testing.T) {
	clk := testutil.NewStepClock()
	c := New(WithClock(clk.Now))

	var computes atomic.Int32
	compute := func(context.Context) (any, error) {
		return computes.Add(1), nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
	require.NoError(t, err)

	// Age == ttl is already expired: the invariant is age < ttl.
	clk.Advance(time.Minute)
	_, hit, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), computes.Load())
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := New()

	boom := errors.New("engine unavailable")
	_, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "recovered", v)
}

func TestInvalidate_TargetedKeys(t *testing.T) {
	c := New()
	c.Set("todos.all", 1, time.Minute)
	c.Set("todos.recent", 2, time.Minute)
	c.Set("projects.all", 3, time.Minute)

	c.Invalidate("todos.all", "todos.recent")

	_, ok := c.Get("todos.all")
	assert.False(t, ok)
	_, ok = c.Get("projects.all")
	assert.True(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	c := New()
	c.Set("todos.all", 1, time.Minute)
	c.Set("todos.project.p1", 2, time.Minute)
	c.Set("projects.all", 3, time.Minute)
	c.Set("areas.all", 4, time.Minute)

	removed := c.InvalidatePrefix("todos.", "projects.")
	assert.Equal(t, 3, removed)

	_, ok := c.Get("areas.all")
	assert.True(t, ok)
	_, ok = c.Get("todos.project.p1")
	assert.False(t, ok)
}

func TestInvalidateFunc(t *testing.T) {
	c := New()
	c.Set("a1", 1, time.Minute)
	c.Set("b1", 2, time.Minute)

	removed := c.InvalidateFunc(func(k string) bool { return k[0] == 'a' })
	assert.Equal(t, 1, removed)
	_, ok := c.Get("b1")
	assert.True(t, ok)
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	clk := testutil.NewStepClock()
	c := New(WithClock(clk.Now))
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	clk.Advance(time.Minute)
	assert.Equal(t, 2, c.Len())
	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestSet_NonPositiveTTLIgnored(t *testing.T) {
	c := New()
	c.Set("k", 1, 0)
	c.Set("k2", 1, -time.Second)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := []string{"a", "b", "c", "d"}[n%4]
			for j := 0; j < 200; j++ {
				_, _, err := c.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (any, error) {
					return n, nil
				})
				assert.NoError(t, err)
				if j%50 == 0 {
					c.InvalidatePrefix(key)
				}
			}
		}(i)
	}
	wg.Wait()
}
