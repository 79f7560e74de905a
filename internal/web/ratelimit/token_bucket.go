package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-process limiter. Each key holds up to Capacity
// tokens which refill continuously at Capacity per Window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// TokenBucketConfig configures a TokenBucket.
type TokenBucketConfig struct {
	Capacity int
	Window   time.Duration
	// CleanupInterval drops idle buckets. Zero disables the sweeper.
	CleanupInterval time.Duration
}

// DefaultTokenBucketConfig allows 120 requests per minute.
func DefaultTokenBucketConfig() TokenBucketConfig {
	return TokenBucketConfig{
		Capacity:        120,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewTokenBucket creates a limiter and starts its sweeper.
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	if config.Capacity <= 0 {
		config.Capacity = DefaultTokenBucketConfig().Capacity
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: config.Capacity,
		window:   config.Window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go tb.sweep(config.CleanupInterval)
	}
	return tb
}

func (tb *TokenBucket) rate() float64 {
	return float64(tb.capacity) / tb.window.Seconds()
}

// Allow takes a token for key.
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.capacity), seen: now}
		tb.buckets[key] = b
	} else if elapsed := now.Sub(b.seen); elapsed > 0 {
		b.tokens += elapsed.Seconds() * tb.rate()
		if b.tokens > float64(tb.capacity) {
			b.tokens = float64(tb.capacity)
		}
		b.seen = now
	}

	info := &Info{Limit: tb.capacity}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = int(b.tokens)

	// time until the bucket is full again
	missing := float64(tb.capacity) - b.tokens
	info.ResetAt = now.Add(time.Duration(missing / tb.rate() * float64(time.Second)))
	return info, nil
}

func (tb *TokenBucket) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tb.dropIdle()
		case <-tb.done:
			return
		}
	}
}

// dropIdle removes buckets untouched for two windows; they are full anyway.
func (tb *TokenBucket) dropIdle() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	threshold := tb.now().Add(-2 * tb.window)
	for key, b := range tb.buckets {
		if b.seen.Before(threshold) {
			delete(tb.buckets, key)
		}
	}
}

// Len reports the number of tracked keys.
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

// Close stops the sweeper.
func (tb *TokenBucket) Close() error {
	tb.once.Do(func() { close(tb.done) })
	return nil
}
