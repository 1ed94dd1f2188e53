package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/auth"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-caller rate limiting
type RateLimitConfig struct {
	Rate            rate.Limit // requests per second per caller
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration // idle limiters older than this are evicted
}

type limitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per caller. Authenticated
// callers are keyed by agent id, everyone else by client IP.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limitEntry
	cfg     RateLimitConfig
	stopCh  chan struct{}
	once    sync.Once
	logger  zerolog.Logger
}

// NewKeyedRateLimiter creates a limiter and starts its cleanup loop
func NewKeyedRateLimiter(cfg RateLimitConfig, logger zerolog.Logger) *KeyedRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 10 * time.Minute
	}
	rl := &KeyedRateLimiter{
		entries: make(map[string]*limitEntry),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		logger:  logger.With().Str("component", "ratelimit").Logger(),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether key may proceed now
func (rl *KeyedRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	entry, ok := rl.entries[key]
	if !ok {
		entry = &limitEntry{limiter: rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// Stop terminates the cleanup loop. Safe to call twice.
func (rl *KeyedRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *KeyedRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *KeyedRateLimiter) cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.cfg.MaxAge)
	removed := 0
	for key, entry := range rl.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.entries, key)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug().Int("removed", removed).Int("remaining", len(rl.entries)).Msg("rate limiter cleanup")
	}
	return removed
}

// RateLimit rejects callers over their budget with 429 and Retry-After
func RateLimit(limiter *KeyedRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			if !limiter.Allow(key) {
				limiter.logger.Warn().
					Str("caller", key).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("rate limit exceeded")
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded", "code": "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if claims, ok := auth.GetUserFromContext(r.Context()); ok && claims.AgentID != "" {
		return "agent:" + claims.AgentID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
