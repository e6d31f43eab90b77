// Rate limiter for the game API. Simple in-memory fixed-window counter
// per client IP, surfaced to clients through X-RateLimit headers.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter tracks request counts per IP with a fixed window.
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxRate     int           // max requests per window
	window      time.Duration // time window
	nextCleanup time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a rate limiter allowing maxRate requests per
// window.
func NewRateLimiter(maxRate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:     make(map[string]*bucket),
		maxRate:     maxRate,
		window:      window,
		nextCleanup: time.Now().Add(window),
	}
}

// take records one request for ip and reports whether it is allowed,
// how many requests remain, and when the window resets.
func (rl *RateLimiter) take(ip string) (allowed bool, remaining int, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextCleanup) {
		rl.cleanup(now)
		rl.nextCleanup = now.Add(rl.window)
	}

	b, ok := rl.buckets[ip]
	if !ok || now.After(b.resetAt) {
		b = &bucket{count: 0, resetAt: now.Add(rl.window)}
		rl.buckets[ip] = b
	}
	b.count++

	remaining = rl.maxRate - b.count
	if remaining < 0 {
		remaining = 0
	}
	return b.count <= rl.maxRate, remaining, b.resetAt
}

// cleanup drops buckets whose window expired more than one window ago.
// Runs lazily from take, under rl.mu, so no background goroutine is
// needed.
func (rl *RateLimiter) cleanup(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.resetAt) > rl.window {
			delete(rl.buckets, ip)
		}
	}
}

// Middleware enforces the limit and sets X-RateLimit headers on every
// response. Returns 429 with a Retry-After hint when exceeded.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		allowed, remaining, resetAt := rl.take(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRate))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetAt.UTC().Format(time.RFC3339))

		if !allowed {
			slog.Warn("rate limit exceeded", "ip", ip, "limit", rl.maxRate)
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			http.Error(w, "too many requests, please try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller address, honoring X-Forwarded-For from
// proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndexByte(ip, ':'); idx >= 0 {
		ip = ip[:idx]
	}
	return ip
}
