package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/jobboard/internal/model"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Rate    int           // Requests per window (default 100)
	Window  time.Duration // Time window (default 1 minute)
	Burst   int           // Extra requests allowed on top of Rate (default 20)
	Cleanup time.Duration // Idle bucket sweep interval (default 5 minutes)
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.Rate <= 0 {
		c.Rate = 100
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Burst < 0 {
		c.Burst = 0
	} else if c.Burst == 0 {
		c.Burst = 20
	}
	if c.Cleanup <= 0 {
		c.Cleanup = 5 * time.Minute
	}
	return c
}

// ============================================================================
// In-process token bucket
// ============================================================================

// MemoryLimiter is a per-process token bucket. Each key holds up to
// Rate+Burst tokens and regains Rate tokens per Window.
type MemoryLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	cfg      RateLimitConfig
	now      func() time.Time
	stopOnce sync.Once
	stopChan chan struct{}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewMemoryLimiter creates a limiter and starts its idle-bucket sweeper
func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	l := &MemoryLimiter{
		buckets:  make(map[string]*bucket),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Stop ends the sweeper
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

func (l *MemoryLimiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.Cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopChan:
			return
		}
	}
}

// sweep drops buckets idle long enough to have refilled completely
func (l *MemoryLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.cfg.Window)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	capacity := float64(l.cfg.Rate + l.cfg.Burst)
	perSecond := float64(l.cfg.Rate) / l.cfg.Window.Seconds()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, lastSeen: now}
		l.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.lastSeen).Seconds() * perSecond
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.lastSeen = now
	}

	d := Decision{Limit: l.cfg.Rate}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = int(b.tokens)
	// time until the next whole token
	missing := 1 - (b.tokens - float64(int(b.tokens)))
	d.Reset = now.Add(time.Duration(missing / perSecond * float64(time.Second)))
	return d, nil
}

// ============================================================================
// Redis fixed window
// ============================================================================

// RedisCounter is the subset of *redis.Client used by RedisLimiter
type RedisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisLimiter counts requests per key in fixed windows shared by every
// server instance. Rate+Burst requests are allowed per window.
type RedisLimiter struct {
	client RedisCounter
	cfg    RateLimitConfig
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter over client
func NewRedisLimiter(client RedisCounter, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + key

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := l.client.PExpire(ctx, k, l.cfg.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// key lost its expiry; start a fresh window
		ttl = l.cfg.Window
		_ = l.client.PExpire(ctx, k, ttl).Err()
	}

	allowance := int64(l.cfg.Rate + l.cfg.Burst)
	remaining := allowance - n
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   n <= allowance,
		Limit:     l.cfg.Rate,
		Remaining: int(remaining),
		Reset:     l.now().Add(ttl),
	}, nil
}

// ============================================================================
// Middleware
// ============================================================================

// RateLimit limits requests per authenticated user, or per client IP when
// no principal is present. Limiter errors fail open.
func RateLimit(limiter Limiter, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "user:" + GetUserID(r.Context())
			if key == "user:" {
				key = "ip:" + clientIP(r)
			}

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter unavailable", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

			if !d.Allowed {
				retryAfter := int(time.Until(d.Reset).Seconds() + 0.999)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				model.NewRateLimitError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
