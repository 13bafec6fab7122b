package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/atgtools/iorstat/pkg/config"
	"golang.org/x/time/rate"
)

// clientLimiters holds one token bucket per client address. Clients idle
// for longer than ttl are forgotten; the sweep runs inline on lookup at
// most once per ttl.
type clientLimiters struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	bucket *rate.Limiter
	seen   time.Time
}

func newClientLimiters(cfg config.RateLimitConfig) *clientLimiters {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}

	ttl, err := time.ParseDuration(cfg.IdleTTL)
	if err != nil || ttl <= 0 {
		ttl = config.DefaultRateLimitIdleTTL
	}

	return &clientLimiters{
		clients: make(map[string]*clientLimiter, 64),
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// allow reports whether ip may make a request now.
func (c *clientLimiters) allow(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if now.Sub(c.lastSweep) >= c.ttl {
		for addr, cl := range c.clients {
			if now.Sub(cl.seen) > c.ttl {
				delete(c.clients, addr)
			}
		}

		c.lastSweep = now
	}

	cl, ok := c.clients[ip]
	if !ok {
		cl = &clientLimiter{bucket: rate.NewLimiter(c.limit, c.burst)}
		c.clients[ip] = cl
	}

	cl.seen = now

	return cl.bucket.AllowN(now, 1)
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.clients)
}

// rateLimitMiddleware rejects clients exceeding the configured request
// rate with 429.
func (s *server) rateLimitMiddleware(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	limiters := newClientLimiters(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(extractIP(r)) {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client address, preferring the first
// X-Forwarded-For entry.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
