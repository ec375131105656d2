package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeenRecordsFirstOccurrence(t *testing.T) {
	t.Parallel()

	cache := NewCache(time.Hour)
	require.False(t, cache.Seen("ev_1|2025-03-01T10:00:00Z"))
	require.True(t, cache.Seen("ev_1|2025-03-01T10:00:00Z"))
	require.False(t, cache.Seen("ev_1|2025-03-01T11:00:00Z"))
}

func TestSeenForgetsAfterRetention(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	cache := NewCache(time.Hour)
	cache.now = func() time.Time { return current }

	require.False(t, cache.Seen("ev_1"))
	current = current.Add(59 * time.Minute)
	require.True(t, cache.Seen("ev_1"))

	current = current.Add(2 * time.Hour)
	require.False(t, cache.Seen("ev_1"))
}

func TestForgetReleasesKey(t *testing.T) {
	t.Parallel()

	cache := NewCache(time.Hour)
	require.False(t, cache.Seen("ev_1"))
	cache.Forget("ev_1")
	require.False(t, cache.Seen("ev_1"))
	require.True(t, cache.Seen("ev_1"))
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	cache := NewCache(time.Hour)
	cache.now = func() time.Time { return current }

	cache.Seen("old")
	current = current.Add(30 * time.Minute)
	cache.Seen("fresh")
	current = current.Add(45 * time.Minute)

	require.Equal(t, 1, cache.PurgeExpired())

	stats := cache.Stats()
	require.Equal(t, 1, stats.Count)
	require.Equal(t, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC), stats.Oldest)
}

func TestSeenConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	cache := NewCache(time.Hour)
	const workers = 16

	var wg sync.WaitGroup
	first := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.Seen("contested") {
				first <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(first)

	winners := 0
	for range first {
		winners++
	}
	require.Equal(t, 1, winners)
}
