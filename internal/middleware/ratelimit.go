package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	perMin   int
	burst    int
	ttl      time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client
// with the given burst. Idle clients are forgotten after ttl.
func NewRateLimiter(perMinute, burst int, ttl time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		perMin:   perMinute,
		burst:    burst,
		ttl:      ttl,
		logger:   logger,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Middleware returns the rate limiting middleware handler
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		limiter := rl.get(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.perMin))

		if !limiter.Allow() {
			metrics.RateLimitHits.WithLabelValues("denied").Inc()
			rl.logger.Warn("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			SendErrorResponse(w, r, errors.RateLimitError(
				"Rate limit exceeded",
				map[string]string{"limit": fmt.Sprintf("%d/minute", rl.perMin)},
			))
			return
		}

		metrics.RateLimitHits.WithLabelValues("allowed").Inc()
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		next.ServeHTTP(w, r)
	})
}

// Allow reports whether one more request from key fits in its bucket
func (rl *RateLimiter) Allow(key string) bool {
	return rl.get(key).Allow()
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.limiters[key]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.perMin)/60), rl.burst),
		}
		rl.limiters[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// retryAfter is the number of seconds until one token is available again
func (rl *RateLimiter) retryAfter() int {
	if rl.perMin <= 0 {
		return 60
	}
	seconds := 60 / rl.perMin
	if seconds < 1 {
		return 1
	}
	return seconds
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.limiters {
		if now.Sub(c.lastSeen) > rl.ttl {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.evict(now)
		case <-rl.stop:
			return
		}
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
