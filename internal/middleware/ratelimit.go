// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when the configured requests-per-minute threshold is
// exceeded. Limits are tracked in Redis when an address is configured so they
// hold across replicas; otherwise an in-process token bucket is used.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitResult is the outcome of a single limiter check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// NewLimiter builds a limiter allowing perMinute requests with the given
// burst. A nil Redis client selects the in-process fallback.
func NewLimiter(client *redis.Client, perMinute, burst int) Limiter {
	if burst <= 0 {
		burst = perMinute
	}
	if client == nil {
		return newLocalLimiter(perMinute, burst)
	}
	return &redisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   perMinute,
			Burst:  burst,
			Period: time.Minute,
		},
	}
}

// redisLimiter tracks buckets in Redis via the GCRA implementation in
// redis_rate, so the limit is shared by every server replica.
type redisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	res, err := l.limiter.Allow(ctx, key, l.limit)
	if err != nil {
		return RateLimitResult{}, err
	}
	return RateLimitResult{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// localLimiter is a per-process token bucket keyed by client. It only
// protects a single replica; configure Redis for a shared limit.
type localLimiter struct {
	perMinute int
	burst     int

	mu      sync.Mutex
	entries map[string]*bucketEntry
	lastGC  time.Time
}

type bucketEntry struct {
	tokens     float64
	lastUpdate time.Time
}

const localLimiterIdleTTL = 10 * time.Minute

func newLocalLimiter(perMinute, burst int) *localLimiter {
	return &localLimiter{
		perMinute: perMinute,
		burst:     burst,
		entries:   make(map[string]*bucketEntry),
		lastGC:    time.Now(),
	}
}

func (l *localLimiter) Allow(_ context.Context, key string) (RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.maybeGC(now)

	entry, exists := l.entries[key]
	if !exists {
		// New client starts with a full burst.
		l.entries[key] = &bucketEntry{tokens: float64(l.burst) - 1, lastUpdate: now}
		return RateLimitResult{Allowed: true, Remaining: l.burst - 1}, nil
	}

	refill := now.Sub(entry.lastUpdate).Seconds() * float64(l.perMinute) / 60.0
	entry.tokens = min(float64(l.burst), entry.tokens+refill)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return RateLimitResult{Allowed: true, Remaining: int(entry.tokens)}, nil
	}

	// Time until one token refills.
	wait := time.Duration((1 - entry.tokens) * 60 / float64(l.perMinute) * float64(time.Second))
	return RateLimitResult{Allowed: false, RetryAfter: wait}, nil
}

// maybeGC drops buckets idle longer than the TTL. Runs inline under the lock
// at most once per TTL so no background goroutine is needed.
func (l *localLimiter) maybeGC(now time.Time) {
	if now.Sub(l.lastGC) < localLimiterIdleTTL {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.lastUpdate) > localLimiterIdleTTL {
			delete(l.entries, key)
		}
	}
	l.lastGC = now
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests.
// Authenticated requests are keyed by user so one noisy tenant user cannot
// exhaust the budget of everyone behind the same NAT; anonymous requests fall
// back to the client IP.
func RateLimitMiddleware(limiter Limiter, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// A broken limiter backend must not take the API down with it.
			slog.Warn("rate limiter unavailable, admitting request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// rateLimitKey prefers the authenticated user over the client IP.
func rateLimitKey(c *gin.Context) string {
	if userID, exists := c.Get(UserIDContextKey); exists {
		if id, ok := userID.(string); ok && id != "" {
			return "user:" + id
		}
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
