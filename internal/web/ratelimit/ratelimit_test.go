package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{Capacity: 3, Window: 3 * time.Second})
	defer tb.Close()
	now := time.Unix(1000, 0)
	tb.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 2; i >= 0; i-- {
		info, err := tb.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, info.Allowed)
		assert.Equal(t, i, info.Remaining)
		assert.Equal(t, 3, info.Limit)
	}

	info, err := tb.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, now.Add(3*time.Second), info.ResetAt)

	t.Run("keys are independent", func(t *testing.T) {
		info, err := tb.Allow(ctx, "b")
		require.NoError(t, err)
		assert.True(t, info.Allowed)
	})

	t.Run("refills over time", func(t *testing.T) {
		now = now.Add(time.Second)
		info, err := tb.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, info.Allowed)

		info, err = tb.Allow(ctx, "a")
		require.NoError(t, err)
		assert.False(t, info.Allowed)
	})

	t.Run("idle buckets are dropped", func(t *testing.T) {
		assert.Equal(t, 2, tb.Len())
		now = now.Add(time.Minute)
		tb.dropIdle()
		assert.Zero(t, tb.Len())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := tb.Allow(cctx, "a")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewRedisLimiter_InvalidConfig(t *testing.T) {
	client, _ := setupTestRedis(t)
	tests := []struct {
		name   string
		config RedisConfig
		want   string
	}{
		{"nil client", RedisConfig{Limit: 1, Window: time.Minute}, "redis client is required"},
		{"zero limit", RedisConfig{Client: client, Window: time.Minute}, "limit must be greater than 0"},
		{"zero window", RedisConfig{Client: client, Limit: 1}, "window must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisLimiter(tt.config)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestRedisLimiter(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter, err := NewRedisLimiter(RedisConfig{Client: client, Limit: 2, Window: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	info, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)

	info, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)

	info, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, info.Allowed)

	assert.True(t, mr.Exists("easyblocks:ratelimit:10.0.0.1"))
	require.NoError(t, limiter.Reset(ctx, "10.0.0.1"))
	info, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (*Info, error) {
	return nil, errors.New("down")
}

func TestMiddleware(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{Capacity: 1, Window: time.Minute})
	defer tb.Close()

	h := Middleware(tb, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/definitions", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := request()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = request()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	t.Run("limiter failure passes through", func(t *testing.T) {
		h := Middleware(failingLimiter{}, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", ClientIP(req))
}
