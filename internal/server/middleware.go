package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdleTimeout = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter hands out one token bucket per client address. The address is
// the connection's peer unless trustForwardedFor is set, in which case the
// first X-Forwarded-For entry written by the fronting proxy is used.
type rateLimiter struct {
	mu                sync.Mutex
	clients           map[string]*clientLimiter
	limit             rate.Limit
	burst             int
	trustForwardedFor bool
	lastSweep         time.Time
	now               func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		clients:           make(map[string]*clientLimiter),
		limit:             rate.Limit(cfg.RequestsPerSecond),
		burst:             cfg.Burst,
		trustForwardedFor: cfg.TrustForwardedFor,
		now:               time.Now,
	}
}

func (rl *rateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterIdleTimeout {
		for key, c := range rl.clients {
			if now.Sub(c.lastSeen) > limiterIdleTimeout {
				delete(rl.clients, key)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r, rl.trustForwardedFor)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func requestLogger(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Debug("request served",
			zap.String("op", "server.requestLogger"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
