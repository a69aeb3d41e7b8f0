package app

import (
	"sync"

	"github.com/dkeye/Canvas/internal/core"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per connection.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[core.SessionID]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter allows perSecond events per connection with the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[core.SessionID]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (rl *RateLimiter) Allow(sid core.SessionID) bool {
	rl.mu.Lock()
	l, ok := rl.buckets[sid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[sid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Forget drops the bucket of a closed connection.
func (rl *RateLimiter) Forget(sid core.SessionID) {
	rl.mu.Lock()
	delete(rl.buckets, sid)
	rl.mu.Unlock()
}
