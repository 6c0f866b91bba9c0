package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is an in-process fixed-window limiter keyed by client
// address. Suitable for a single instance; deployments with more than
// one replica should use the Redis variant.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	visitors  map[string]*visitorWindow
	lastSweep time.Time
}

type visitorWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, win time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if win <= 0 {
		win = time.Minute
	}
	return &RateLimiter{
		limit:     limit,
		window:    win,
		visitors:  map[string]*visitorWindow{},
		lastSweep: time.Now(),
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientKey(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepLocked(now)

	v := rl.visitors[key]
	if v == nil || now.After(v.resetAt) {
		rl.visitors[key] = &visitorWindow{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	if v.count >= rl.limit {
		return false
	}
	v.count++
	return true
}

// sweepLocked drops expired windows so the map does not grow with
// every distinct client ever seen. Runs at most once per window.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for key, v := range rl.visitors {
		if now.After(v.resetAt) {
			delete(rl.visitors, key)
		}
	}
	rl.lastSweep = now
}

func clientKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
