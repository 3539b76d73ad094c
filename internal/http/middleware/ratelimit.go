package middleware

import (
	"net/http"
	"sync"
	"time"
)

// Paths that liveness probes and scrapers hit on a tight loop. They never
// consume rate-limit budget, so a noisy prometheus scraper cannot starve a
// patient trying to book.
var unmeteredPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// RateLimiter applies a per-client token bucket. Clients are keyed by IP;
// behind chi's RealIP middleware that is the originating address, so patients
// on a shared NAT still share a bucket but a single scripted client cannot
// sweep a doctor's open slots.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens refilled per second
	burst   int     // bucket capacity
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// NewRateLimiter creates a limiter allowing rate requests/sec with the given
// burst per client.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
	}
	go rl.evictIdle()
	return rl
}

// Allow reports whether a request from key fits in the budget, spending one
// token when it does.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastTime: now}
		rl.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastTime).Seconds() * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastTime = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdle drops buckets with no traffic for 10 minutes so the map does not
// grow with every address ever seen.
func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if b.lastTime.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit returns middleware rejecting over-budget requests with 429 and a
// Retry-After hint. Operational endpoints are never metered.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := unmeteredPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			// Prefer X-Real-Ip set by chi's RealIP middleware.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				key = xri
			}
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
