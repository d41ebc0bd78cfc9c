package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	rl := NewMemoryLimiter(2, 60)
	defer rl.Stop()

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, now.Add(time.Minute), d.Reset)

	// Other keys have their own window
	d, _ = rl.Allow(ctx, "5.6.7.8")
	assert.True(t, d.Allowed)

	// The oldest request leaves the window exactly one window later
	now = now.Add(time.Minute)
	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_SweepDropsIdleClients(t *testing.T) {
	rl := NewMemoryLimiter(5, 10)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	_, _ = rl.Allow(context.Background(), "idle")

	now = now.Add(time.Minute)
	rl.sweep()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Empty(t, rl.clients)
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewMemoryLimiter(1, 60)
	defer rl.Stop()

	handler := RateLimit(rl, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/forms/x", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	called := false
	handler := RateLimit(failingLimiter{}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{"remote_addr", func(r *http.Request) { r.RemoteAddr = "192.0.2.1:1234" }, "192.0.2.1"},
		{"remote_addr_ipv6", func(r *http.Request) { r.RemoteAddr = "[2001:db8::1]:443" }, "2001:db8::1"},
		{"forwarded_for_first", func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1") }, "203.0.113.5"},
		{"real_ip", func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.7") }, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			tt.setup(req)
			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}

// Runs only when a Redis server is reachable at REDIS_TEST_ADDR.
func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	rl := NewRedisLimiter(client, "test-"+uuid.NewString(), 2, 60)
	ctx := context.Background()

	d, err := rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	_, _ = rl.Allow(ctx, "k")
	d, err = rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}
