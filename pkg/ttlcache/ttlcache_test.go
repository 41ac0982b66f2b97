package ttlcache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/chatterhq/gateway/pkg/ttlcache"
	"github.com/stretchr/testify/require"
)

func TestTakeIfConsumesEntry(t *testing.T) {
	t.Parallel()

	c := ttlcache.New[string](time.Minute, nil)
	c.Put("k", "secret")

	v, ok := c.TakeIf("k", nil)
	require.True(t, ok)
	require.Equal(t, "secret", v)

	// Single use: second take misses.
	_, ok = c.TakeIf("k", nil)
	require.False(t, ok)
}

func TestTakeIfPredicateRejectionKeepsEntry(t *testing.T) {
	t.Parallel()

	c := ttlcache.New[string](time.Minute, nil)
	c.Put("k", "expected")

	_, ok := c.TakeIf("k", func(v string) bool { return v == "something-else" })
	require.False(t, ok)

	// Rejected takes do not consume the entry.
	v, ok := c.TakeIf("k", func(v string) bool { return v == "expected" })
	require.True(t, ok)
	require.Equal(t, "expected", v)
}

func TestExpiredEntriesAreInert(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := ttlcache.New[int](10*time.Minute, func() time.Time { return clock })

	c.Put("k", 42)

	clock = clock.Add(11 * time.Minute)
	_, ok := c.TakeIf("k", nil)
	require.False(t, ok)
}

func TestSweepPurgesOnlyExpired(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := ttlcache.New[int](10*time.Minute, func() time.Time { return clock })

	c.Put("old", 1)
	clock = clock.Add(6 * time.Minute)
	c.Put("fresh", 2)

	clock = clock.Add(5 * time.Minute) // "old" is 11m, "fresh" is 5m
	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())

	v, ok := c.TakeIf("fresh", nil)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestConcurrentTakeIfHasOneWinner(t *testing.T) {
	t.Parallel()

	c := ttlcache.New[string](time.Minute, nil)
	c.Put("k", "v")

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.TakeIf("k", nil); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1)
}
