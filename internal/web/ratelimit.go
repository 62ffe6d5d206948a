package web

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const defaultLimiterEntries = 10000

// RateLimiter keeps one token bucket per client identifier. The number of
// tracked identifiers is bounded; the least recently seen are evicted.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(perSecond float64, burst, maxEntries int) *RateLimiter {
	if maxEntries <= 0 {
		maxEntries = defaultLimiterEntries
	}
	cache, _ := lru.New[string, *rate.Limiter](maxEntries)
	return &RateLimiter{
		limiters: cache,
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow consumes one token for identifier.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters.Get(identifier)
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(identifier, l)
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	return rl.limiters.Len()
}
