package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/jobboard/internal/service"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemoryLimiter(t *testing.T, cfg RateLimitConfig) (*MemoryLimiter, *fakeClock) {
	t.Helper()
	l := NewMemoryLimiter(cfg)
	t.Cleanup(l.Stop)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.now = clock.Now
	return l, clock
}

// ============================================================================
// MemoryLimiter Tests
// ============================================================================

func TestMemoryLimiter_Defaults(t *testing.T) {
	t.Parallel()
	l, _ := newMemoryLimiter(t, RateLimitConfig{})

	assert.Equal(t, 100, l.cfg.Rate)
	assert.Equal(t, time.Minute, l.cfg.Window)
	assert.Equal(t, 20, l.cfg.Burst)
}

func TestMemoryLimiter_ExhaustsThenRefills(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, clock := newMemoryLimiter(t, RateLimitConfig{Rate: 3, Window: 3 * time.Second, Burst: -1})

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.Reset.After(clock.Now()))

	clock.Advance(time.Second)
	d, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newMemoryLimiter(t, RateLimitConfig{Rate: 1, Window: time.Minute, Burst: -1})

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_BurstOnTopOfRate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newMemoryLimiter(t, RateLimitConfig{Rate: 2, Window: time.Minute, Burst: 3})

	allowed := 0
	for i := 0; i < 10; i++ {
		if d, _ := l.Allow(ctx, "k"); d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestMemoryLimiter_SweepDropsIdleBuckets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, clock := newMemoryLimiter(t, RateLimitConfig{Rate: 1, Window: time.Second})

	_, _ = l.Allow(ctx, "idle")
	clock.Advance(time.Second)
	_, _ = l.Allow(ctx, "fresh")
	clock.Advance(1500 * time.Millisecond)
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "idle")
	assert.Contains(t, l.buckets, "fresh")
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	l, _ := newMemoryLimiter(t, RateLimitConfig{Rate: 50, Window: time.Hour, Burst: -1})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := l.Allow(context.Background(), "k"); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

// ============================================================================
// RedisLimiter Tests
// ============================================================================

type fakeRedisCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	ttls    map[string]time.Duration
	failErr error
}

func newFakeRedisCounter() *fakeRedisCounter {
	return &fakeRedisCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedisCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewIntResult(0, f.failErr)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedisCounter) PExpire(_ context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = d
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedisCounter) PTTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	ttl, ok := f.ttls[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeRedisCounter()
	l := NewRedisLimiter(fake, RateLimitConfig{Rate: 2, Window: 30 * time.Second, Burst: 1})

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "user:u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d, err := l.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)

	assert.Equal(t, 30*time.Second, fake.ttls["ratelimit:user:u1"])
}

func TestRedisLimiter_RestoresMissingExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeRedisCounter()
	fake.counts["ratelimit:k"] = 5
	l := NewRedisLimiter(fake, RateLimitConfig{Rate: 100, Window: time.Minute})

	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, fake.ttls["ratelimit:k"])
}

func TestRedisLimiter_Error(t *testing.T) {
	t.Parallel()
	fake := newFakeRedisCounter()
	fake.failErr = errors.New("connection refused")
	l := NewRedisLimiter(fake, RateLimitConfig{})

	_, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
}

// ============================================================================
// RateLimit Middleware Tests
// ============================================================================

type stubLimiter struct {
	keys []string
	d    Decision
	err  error
}

func (s *stubLimiter) Allow(_ context.Context, key string) (Decision, error) {
	s.keys = append(s.keys, key)
	return s.d, s.err
}

func TestRateLimit_Allowed_SetsHeaders(t *testing.T) {
	t.Parallel()
	lim := &stubLimiter{d: Decision{Allowed: true, Limit: 10, Remaining: 7, Reset: time.Now().Add(time.Minute)}}

	rr := httptest.NewRecorder()
	RateLimit(lim, discardLogger())(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "10", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_Denied_429(t *testing.T) {
	t.Parallel()
	lim := &stubLimiter{d: Decision{Allowed: false, Limit: 10, Reset: time.Now().Add(20 * time.Second)}}

	rr := httptest.NewRecorder()
	RateLimit(lim, discardLogger())(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	retry, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 20, retry, 1)
	assert.Contains(t, rr.Body.String(), `"statusCode":429`)
}

func TestRateLimit_RetryAfterAtLeastOne(t *testing.T) {
	t.Parallel()
	lim := &stubLimiter{d: Decision{Allowed: false, Reset: time.Now().Add(-time.Second)}}

	rr := httptest.NewRecorder()
	RateLimit(lim, discardLogger())(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestRateLimit_KeyByUserThenIP(t *testing.T) {
	t.Parallel()
	lim := &stubLimiter{d: Decision{Allowed: true}}
	h := RateLimit(lim, discardLogger())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &service.Principal{UserID: "u1"}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"ip:203.0.113.9", "user:u1"}, lim.keys)
}

func TestRateLimit_BehindAuth_UsesPrincipal(t *testing.T) {
	t.Parallel()
	lim := &stubLimiter{d: Decision{Allowed: true}}
	h := Chain(okHandler,
		Auth(authorizerFor(&service.Principal{UserID: "u7"}), discardLogger()),
		RateLimit(lim, discardLogger()),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"user:u7"}, lim.keys)
}

func TestRateLimit_LimiterError_FailsOpen(t *testing.T) {
	t.Parallel()
	lim := &stubLimiter{err: errors.New("redis down")}

	rr := httptest.NewRecorder()
	RateLimit(lim, discardLogger())(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
