package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterCache keeps fixed-window counters in process memory.
// It serves single-instance deployments and tests; multi-instance
// deployments should share a RedisCounterCache instead so the quota is
// enforced cluster-wide.
type MemoryCounterCache struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

type memoryCounter struct {
	count     int
	start     time.Time
	resetTime time.Time
}

func NewMemoryCounterCache() *MemoryCounterCache {
	return &MemoryCounterCache{
		counters: make(map[string]*memoryCounter),
	}
}

// CheckAndIncrement counts the request against the key's current window
// and reports whether it fits the quota. A request arriving after the
// window rolled over starts a fresh counter.
func (m *MemoryCounterCache) CheckAndIncrement(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	now := time.Now()
	start := windowStart(now, window)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || !c.start.Equal(start) {
		c = &memoryCounter{
			start:     start,
			resetTime: start.Add(window),
		}
		m.counters[key] = c
	}
	c.count++

	remaining := max - c.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   c.count <= max,
		Remaining: remaining,
		ResetTime: c.resetTime,
	}, nil
}

// StartCleanup sweeps expired windows until ctx is cancelled so idle keys
// do not accumulate forever.
func (m *MemoryCounterCache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.sweep(now)
			}
		}
	}()
}

func (m *MemoryCounterCache) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, c := range m.counters {
		if now.After(c.resetTime) {
			delete(m.counters, key)
		}
	}
}

// Len reports the number of live counters. Used by tests and the
// health endpoint.
func (m *MemoryCounterCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
