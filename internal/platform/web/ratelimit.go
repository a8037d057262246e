package web

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const bucketIdleTTL = 10 * time.Minute

type RateLimitConfig struct {
	IPPerMinute     int
	IPBurst         int
	TenantPerMinute int
	TenantBurst     int
	// Tenant keys the per-tenant buckets. It must only return tenants taken
	// from verified credentials. Nil disables tenant limiting.
	Tenant TenantHint
}

type RateLimiter struct {
	ipLimiter     *tokenLimiter
	tenantLimiter *tokenLimiter
	tenant        TenantHint
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		ipLimiter:     newTokenLimiter(cfg.IPPerMinute, cfg.IPBurst),
		tenantLimiter: newTokenLimiter(cfg.TenantPerMinute, cfg.TenantBurst),
		tenant:        cfg.Tenant,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip != "" && !l.ipLimiter.allow(ip) {
			w.Header().Set("Retry-After", "60")
			WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		if l.tenant == nil {
			next.ServeHTTP(w, r)
			return
		}
		if tenantID := l.tenant(r); tenantID != "" && !l.tenantLimiter.allow(tenantID) {
			w.Header().Set("Retry-After", "60")
			WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type tokenLimiter struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	bucket    map[string]*bucket
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newTokenLimiter(perMinute, burst int) *tokenLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &tokenLimiter{
		rate:   float64(perMinute) / 60.0,
		burst:  float64(burst),
		bucket: make(map[string]*bucket),
		now:    time.Now,
	}
}

func (l *tokenLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	b, ok := l.bucket[key]
	if !ok {
		l.bucket[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = minFloat(l.burst, b.tokens+elapsed*l.rate)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens -= 1
	return true
}

// sweep drops buckets that have been idle long enough to be full again.
func (l *tokenLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < bucketIdleTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.bucket {
		if now.Sub(b.last) > bucketIdleTTL {
			delete(l.bucket, key)
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
