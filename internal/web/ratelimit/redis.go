package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding window limiter shared by every server using the
// same redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// RedisConfig configures a RedisLimiter.
type RedisConfig struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
	Prefix string
}

// NewRedisLimiter validates config and creates a limiter.
func NewRedisLimiter(config RedisConfig) (*RedisLimiter, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if config.Window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}
	if config.Prefix == "" {
		config.Prefix = "easyblocks:ratelimit:"
	}
	return &RedisLimiter{
		client: config.Client,
		limit:  config.Limit,
		window: config.Window,
		prefix: config.Prefix,
	}, nil
}

// slidingWindow trims entries older than the window, then records the
// request when there is room. Members carry a sequence suffix so requests
// in the same nanosecond count separately.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)
if current >= limit then
	return {0, current}
end
local seq = redis.call('INCR', key .. ':seq')
redis.call('EXPIRE', key .. ':seq', ttl)
redis.call('ZADD', key, now, now .. '-' .. seq)
redis.call('EXPIRE', key, ttl)
return {1, current + 1}
`)

// Allow records a request for key when the window has room.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (*Info, error) {
	now := time.Now()
	ttl := int(r.window.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixNano(), now.Add(-r.window).UnixNano(), r.limit, ttl,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return nil, errors.New("unexpected redis script result")
	}

	remaining := r.limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return &Info{
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   now.Add(r.window),
		Allowed:   res[0] == 1,
	}, nil
}

// Reset forgets key.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key, r.prefix+key+":seq").Err()
}
