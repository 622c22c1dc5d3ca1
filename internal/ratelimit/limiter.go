package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a fixed-window abuse throttle. Buckets are independent key
// spaces: the same key in two buckets counts separately.
type Limiter interface {
	// Allow records a hit for key in bucket and reports whether it is within
	// limit for the current window. A denied hit never extends the window.
	Allow(ctx context.Context, bucket, key string, limit int) bool
}

type window struct {
	hits    int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process-local maps. State is lost on
// restart, which is acceptable for this core.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]map[string]*window
	windowLen time.Duration
	now       func() time.Time
}

// NewMemoryLimiter creates an in-memory fixed-window limiter and starts a
// background sweep that drops expired windows.
func NewMemoryLimiter(windowLen time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		buckets:   make(map[string]map[string]*window),
		windowLen: windowLen,
		now:       time.Now,
	}
	go l.cleanup()
	return l
}

// Allow implements Limiter. The read-check-write on the window is a single
// atomic step under the mutex so concurrent requests for the same key cannot
// both slip under the limit.
func (l *MemoryLimiter) Allow(_ context.Context, bucket, key string, limit int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, ok := l.buckets[bucket]
	if !ok {
		keys = make(map[string]*window)
		l.buckets[bucket] = keys
	}

	now := l.now()
	w, ok := keys[key]
	if !ok || now.After(w.resetAt) {
		keys[key] = &window{hits: 1, resetAt: now.Add(l.windowLen)}
		return true
	}
	if w.hits >= limit {
		return false
	}
	w.hits++
	return true
}

// cleanup periodically removes expired windows to bound memory.
func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := l.now()
		for bucket, keys := range l.buckets {
			for key, w := range keys {
				if now.After(w.resetAt) {
					delete(keys, key)
				}
			}
			if len(keys) == 0 {
				delete(l.buckets, bucket)
			}
		}
		l.mu.Unlock()
	}
}
