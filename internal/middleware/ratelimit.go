package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Allow(clientID string) bool
	Reset(clientID string)
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter implements per-client rate limiting
type ClientRateLimiter struct {
	enabled         bool
	limiters        map[string]*clientLimiter
	mu              sync.RWMutex
	rpm             int
	burst           int
	logger          *logrus.Logger
	cleanupInterval time.Duration
	idleTimeout     time.Duration
	now             func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.Config, logger *logrus.Logger) *ClientRateLimiter {
	if !cfg.RateLimit.Enabled {
		return &ClientRateLimiter{enabled: false}
	}

	rl := &ClientRateLimiter{
		enabled:         true,
		limiters:        make(map[string]*clientLimiter),
		rpm:             cfg.RateLimit.RequestsPerMinute,
		burst:           cfg.RateLimit.Burst,
		logger:          logger,
		cleanupInterval: 10 * time.Minute,
		idleTimeout:     time.Hour,
		now:             time.Now,
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Allow checks if a client is allowed to make a request
func (r *ClientRateLimiter) Allow(clientID string) bool {
	if !r.enabled {
		return true
	}

	allowed := r.getLimiter(clientID).Allow()
	if !allowed {
		r.logger.WithFields(logrus.Fields{
			"client": clientID,
		}).Warn("Rate limit exceeded")
	}

	return allowed
}

// Reset resets the rate limiter for a client
func (r *ClientRateLimiter) Reset(clientID string) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.limiters, clientID)
	r.mu.Unlock()
}

// getLimiter gets or creates a rate limiter for a client
func (r *ClientRateLimiter) getLimiter(clientID string) *rate.Limiter {
	now := r.now()

	r.mu.RLock()
	cl, exists := r.limiters[clientID]
	r.mu.RUnlock()

	if exists {
		r.mu.Lock()
		cl.lastSeen = now
		r.mu.Unlock()
		return cl.limiter
	}

	// Create new limiter
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if cl, exists := r.limiters[clientID]; exists {
		cl.lastSeen = now
		return cl.limiter
	}

	// Rate per second = RPM / 60
	rps := float64(r.rpm) / 60.0
	cl = &clientLimiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), r.burst),
		lastSeen: now,
	}
	r.limiters[clientID] = cl

	return cl.limiter
}

// cleanup removes limiters of clients that went quiet
func (r *ClientRateLimiter) cleanup() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		r.evictIdle()
	}
}

func (r *ClientRateLimiter) evictIdle() int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, cl := range r.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(r.limiters, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.WithField("evicted", evicted).Debug("Idle rate limiters removed")
	}
	return evicted
}

// Middleware rejects requests over the limit with 429
func (r *ClientRateLimiter) Middleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !r.Allow(ClientIP(req)) {
				if metrics != nil {
					metrics.RecordRateLimitExceeded(routeName(req))
				}
				w.Header().Set("Retry-After", "60")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
