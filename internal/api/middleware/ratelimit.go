package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/estately/internal/api/auth"
)

// RateLimitConfig configures the per-principal token bucket
type RateLimitConfig struct {
	RPS   float64
	Burst int

	// OnLimited is called for every rejected request, e.g. to count it
	OnLimited func()
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds one token bucket per identifier. Entries idle for longer
// than ttl are swept during lookups.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &limiterPool{
		m:     make(map[string]*limiterEntry),
		limit: rate.Limit(rps),
		burst: burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) > p.ttl {
		cutoff := now.Add(-p.ttl)
		for k, e := range p.m {
			if e.lastSeen.Before(cutoff) {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}

	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(p.limit, p.burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	return e.l.AllowN(now, 1)
}

// RateLimitByPrincipal rejects requests with 429 once the authenticated
// principal exhausts its bucket. It must run after auth.RequireAuth;
// unauthenticated requests fall back to the client IP.
func RateLimitByPrincipal(cfg RateLimitConfig) echo.MiddlewareFunc {
	pool := newLimiterPool(cfg.RPS, cfg.Burst)
	return rateLimit(pool, cfg.OnLimited)
}

func rateLimit(pool *limiterPool, onLimited func()) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := auth.GetPrincipal(c)
			if key == "" {
				key = "ip:" + c.RealIP()
			}
			if !pool.allow(key) {
				if onLimited != nil {
					onLimited()
				}
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, slow down.")
			}
			return next(c)
		}
	}
}
