package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter caps request rates per client IP with token buckets.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	rate    float64
	burst   float64
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per second with
// the given burst per IP. Stale buckets are evicted in the background.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
	}
	go rl.evictLoop()
	return rl
}

// Allow reports whether a request from ip fits inside the limit, consuming
// one token when it does.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	tb, ok := rl.clients[ip]
	if !ok {
		rl.clients[ip] = &tokenBucket{tokens: rl.burst - 1, seen: now}
		return true
	}

	tb.tokens = min(rl.burst, tb.tokens+now.Sub(tb.seen).Seconds()*rl.rate)
	tb.seen = now
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for ip, tb := range rl.clients {
			if tb.seen.Before(cutoff) {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects requests beyond the per-IP limit with 429. The client
// IP comes from X-Real-Ip when chi's RealIP middleware runs upstream.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.Header.Get("X-Real-Ip")
			if ip == "" {
				ip = r.RemoteAddr
			}
			if !limiter.Allow(ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
