package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/contextkeys"
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(config *RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(config)
	limiter.now = clock.Now
	return limiter, clock
}

func withUser(r *http.Request, id int64) *http.Request {
	authCtx := &auth.AuthContext{User: &auth.User{ID: id, Username: "alice", IsActive: true}}
	return r.WithContext(contextkeys.WithAuth(r.Context(), authCtx))
}

func allowN(t *testing.T, limiter Limiter, key string, n int) int {
	t.Helper()
	allowed := 0
	for i := 0; i < n; i++ {
		ok, err := limiter.Allow(context.Background(), key)
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	return allowed
}

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second, BurstSize: 2}
	limiter, clock := newTestLimiter(config)

	assert.Equal(t, 12, allowN(t, limiter, "user:1", 17))

	clock.Advance(time.Second)
	assert.Equal(t, 10, allowN(t, limiter, "user:1", 11))
}

func TestRateLimiter_Remaining(t *testing.T) {
	limiter, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second, BurstSize: 2})
	ctx := context.Background()

	initial, err := limiter.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 12, initial)

	allowN(t, limiter, "user:1", 1)
	remaining, err := limiter.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 11, remaining)
}

func TestRateLimiter_TokenCapRefill(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: 100 * time.Millisecond, BurstSize: 5}
	limiter, clock := newTestLimiter(config)

	allowN(t, limiter, "cap", 5)
	clock.Advance(time.Second)

	assert.Equal(t, 15, allowN(t, limiter, "cap", 20))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 10, WindowDuration: 100 * time.Millisecond, BurstSize: 2})

	for _, key := range []string{"user:1", "user:2", "ip:10.0.0.1"} {
		allowN(t, limiter, key, 1)
	}
	assert.Len(t, limiter.buckets, 3)

	clock.Advance(300 * time.Millisecond)
	limiter.Cleanup()
	assert.Empty(t, limiter.buckets)
}

func TestRateLimiter_Concurrency(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Hour, BurstSize: 10}
	limiter, _ := newTestLimiter(config)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				ok, _ := limiter.Allow(context.Background(), "busy")
				if ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 110, allowed)
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	assert.Equal(t, DefaultRateLimitConfig(), limiter.Config())
}

func TestRateLimitConfigs(t *testing.T) {
	assert.Greater(t, PerUserRateLimitConfig().RequestsPerWindow, DefaultRateLimitConfig().RequestsPerWindow)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For header",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "first X-Forwarded-For hop",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.5"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "203.0.113.7",
		},
		{
			name:       "X-Real-IP header",
			headers:    map[string]string{"X-Real-IP": "192.168.1.2"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.2",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "10.0.0.1",
		},
		{
			name:       "X-Forwarded-For takes precedence",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1", "X-Real-IP": "192.168.1.2"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expectedIP, getClientIP(req))
		})
	}
}

func newLimitedHandler(user, anonymous Limiter, called *int) http.Handler {
	m := NewRateLimitMiddlewareWith(user, anonymous)
	return m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called++
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimitMiddleware_Anonymous(t *testing.T) {
	anonymous, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute, BurstSize: 1})
	user, _ := newTestLimiter(PerUserRateLimitConfig())

	called := 0
	handler := newLimitedHandler(user, anonymous, &called)

	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/locations/foo/join", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/locations/foo/join", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 4, called)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), "rate limit exceeded"))

	// Another client has its own budget
	req = httptest.NewRequest(http.MethodPost, "/api/v1/locations/foo/join", nil)
	req.RemoteAddr = "192.168.1.2:12345"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_ReadsAreNotLimited(t *testing.T) {
	anonymous, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	called := 0
	handler := newLimitedHandler(anonymous, anonymous, &called)

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodGet} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/v1/locations", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, 4, called)
}

func TestRateLimitMiddleware_AuthenticatedUser(t *testing.T) {
	user, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute})
	anonymous, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})

	called := 0
	handler := newLimitedHandler(user, anonymous, &called)

	// Same address, different users: keyed by user id
	for _, id := range []int64{1, 2} {
		for i := 0; i < 5; i++ {
			req := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/locations/foo/join", nil), id)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}
	}

	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/locations/foo/join", nil), 1)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 10, called)
}

func newRedisLimiter(t *testing.T, config *RateLimitConfig) (*DistributedRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDistributedRateLimiter(client, config, "test"), mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	limiter, mr := newRedisLimiter(t, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute, BurstSize: 1})
	ctx := context.Background()

	assert.Equal(t, 4, allowN(t, limiter, "user:1", 6))
	assert.Equal(t, 4, allowN(t, limiter, "user:2", 4))

	remaining, err := limiter.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	ttl, err := limiter.TTL(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	// The window does not slide with each request
	mr.FastForward(30 * time.Second)
	allowN(t, limiter, "user:1", 1)
	ttl, err = limiter.TTL(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)
	assert.Equal(t, 4, allowN(t, limiter, "user:1", 5))
}

func TestDistributedRateLimiter_Reset(t *testing.T) {
	limiter, _ := newRedisLimiter(t, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	ctx := context.Background()

	assert.Equal(t, 1, allowN(t, limiter, "ip:10.0.0.1", 2))
	require.NoError(t, limiter.Reset(ctx, "ip:10.0.0.1"))

	remaining, err := limiter.Remaining(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestDistributedRateLimitMiddleware_FailsOpen(t *testing.T) {
	limiter, mr := newRedisLimiter(t, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	called := 0
	handler := newLimitedHandler(limiter, limiter, &called)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/locations", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/locations", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	mr.Close()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/locations", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, called)
}
