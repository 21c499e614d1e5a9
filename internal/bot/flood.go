// Package bot: per-chat flood limiter
//
// A lightweight, in-memory, token-bucket limiter with one bucket per chat
// and opportunistic garbage collection of idle buckets. Updates from a chat
// that exhausted its bucket are dropped before they reach the services; this
// is edge-level abuse control for a single-process deployment, not an
// authorization mechanism.
package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket holds one chat's limiter and the last time it was used, so idle
// entries can be evicted.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// FloodLimiter rate-limits updates per chat. Safe for concurrent use.
type FloodLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[int64]*bucket

	ttl      time.Duration
	lookups  uint64
	gcEveryN uint64
}

// NewFloodLimiter constructs a limiter with the given tokens-per-second and
// burst size. A burst <= 0 is coerced to 1.
func NewFloodLimiter(rps float64, burst int) *FloodLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &FloodLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		buckets:  make(map[int64]*bucket),
		ttl:      10 * time.Minute,
		gcEveryN: 5000,
	}
}

// Allow reports whether an update from the chat may proceed now.
func (fl *FloodLimiter) Allow(chatID int64) bool {
	now := time.Now()

	fl.mu.Lock()
	// GC before touching the requested bucket, so a stale entry for this
	// very chat can be evicted rather than refreshed.
	fl.lookups++
	if fl.lookups >= fl.gcEveryN {
		for id, b := range fl.buckets {
			if now.Sub(b.lastSeen) >= fl.ttl {
				delete(fl.buckets, id)
			}
		}
		fl.lookups = 0
	}

	b, ok := fl.buckets[chatID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(fl.rps, fl.burst)}
		fl.buckets[chatID] = b
	}
	b.lastSeen = now
	lim := b.limiter
	fl.mu.Unlock()

	return lim.Allow()
}

// Len reports the number of live buckets. Used by tests.
func (fl *FloodLimiter) Len() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.buckets)
}
