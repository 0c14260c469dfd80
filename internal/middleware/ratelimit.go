package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	credentialPrefix = "/api/v1/auth/"
	idleClientTTL    = 10 * time.Minute
	sweepInterval    = time.Minute
)

// perMinute is a bucket refilling rpm tokens a minute with a burst of rpm.
// A nil *perMinute means unlimited.
type perMinute struct {
	limit rate.Limit
	burst int
}

func newPerMinute(rpm int) *perMinute {
	if rpm <= 0 {
		return nil
	}
	return &perMinute{limit: rate.Limit(float64(rpm) / 60), burst: rpm}
}

func (p *perMinute) limiter() *rate.Limiter {
	if p == nil {
		return nil
	}
	return rate.NewLimiter(p.limit, p.burst)
}

type clientBuckets struct {
	general    *rate.Limiter
	credential *rate.Limiter
	lastSeen   time.Time
}

// RateLimitMiddleware keeps per-client token buckets. Credential endpoints
// under /api/v1/auth/ draw from their own stricter bucket so password
// guessing cannot hide behind ordinary traffic.
type RateLimitMiddleware struct {
	general    *perMinute
	credential *perMinute

	mu        sync.Mutex
	clients   map[string]*clientBuckets
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimitMiddleware limits each client to generalRPM requests a minute
// and authRPM credential requests a minute. A non-positive generalRPM turns
// the general limit off; a non-positive authRPM falls back to 10.
func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		general:    newPerMinute(generalRPM),
		credential: newPerMinute(authRPM),
		clients:    map[string]*clientBuckets{},
		now:        time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buckets := m.buckets(ClientIP(r))

		bucket := buckets.general
		if strings.HasPrefix(strings.ToLower(r.URL.Path), credentialPrefix) {
			bucket = buckets.credential
		}

		if bucket != nil {
			if wait, ok := m.take(bucket); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token, or reports how long until one is available.
func (m *RateLimitMiddleware) take(bucket *rate.Limiter) (time.Duration, bool) {
	now := m.now()
	reservation := bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return time.Minute, false
	}

	wait := reservation.DelayFrom(now)
	if wait > 0 {
		reservation.CancelAt(now)
		return wait, false
	}
	return 0, true
}

func (m *RateLimitMiddleware) buckets(clientIP string) *clientBuckets {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	client, ok := m.clients[clientIP]
	if !ok {
		client = &clientBuckets{
			general:    m.general.limiter(),
			credential: m.credential.limiter(),
		}
		m.clients[clientIP] = client
	}
	client.lastSeen = now

	return client
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now

	cutoff := now.Add(-idleClientTTL)
	for ip, client := range m.clients {
		if client.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func retryAfterSeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
