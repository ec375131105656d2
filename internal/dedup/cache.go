// Package dedup keeps a TTL cache of recently seen event keys so the same
// open event never triggers two notifications inside the retention window.
package dedup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache remembers keys for a retention window. Safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	retention time.Duration
	entries   map[string]time.Time
	now       func() time.Time
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Count  int       `json:"count"`
	Oldest time.Time `json:"oldest,omitempty"`
}

// NewCache builds a cache that forgets keys after retention.
func NewCache(retention time.Duration) *Cache {
	return &Cache{
		retention: retention,
		entries:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// Seen reports whether key was recorded inside the retention window and
// records it if not. The check and insert are atomic.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.entries[key]; ok && now.Sub(at) < c.retention {
		return true
	}
	c.entries[key] = now
	return false
}

// Forget drops key so a later Seen treats it as new. Callers use it when
// handling an event failed after the key was recorded and the event must be
// deliverable again.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// PurgeExpired drops entries older than the retention window and returns
// how many were removed.
func (c *Cache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.retention)
	removed := 0
	for key, at := range c.entries {
		if at.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns the current entry count and the oldest entry time.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Count: len(c.entries)}
	for _, at := range c.entries {
		if stats.Oldest.IsZero() || at.Before(stats.Oldest) {
			stats.Oldest = at
		}
	}
	return stats
}

// Sweep purges expired entries every interval until ctx is cancelled.
func (c *Cache) Sweep(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.PurgeExpired(); removed > 0 {
				logger.Debug("purged expired dedup entries", zap.Int("removed", removed))
			}
		}
	}
}
