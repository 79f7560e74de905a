package resource

import (
	"context"
	"encoding/json"
	"time"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/metrics"
	"github.com/easyblocks/easyblocks/internal/web/cache"
)

// CachedFetcher serves successful results from a cache and forwards misses
// to the wrapped fetcher. Errors are never cached.
type CachedFetcher struct {
	next  Fetcher
	cache cache.Cache
	ttl   time.Duration
	log   logger.Logger
}

// NewCachedFetcher wraps next with c. ttl 0 uses the cache default.
func NewCachedFetcher(next Fetcher, c cache.Cache, ttl time.Duration, log logger.Logger) *CachedFetcher {
	return &CachedFetcher{next: next, cache: c, ttl: ttl, log: logger.OrNop(log)}
}

// Fetch implements Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, inputs map[string]FetchInput) (map[string]FetchResult, error) {
	out := make(map[string]FetchResult, len(inputs))
	misses := make(map[string]FetchInput)

	for id, in := range inputs {
		data, err := f.cache.Get(ctx, cache.ResourceKey(in.WidgetID, in.ExternalID, in.FetchParams))
		if err != nil {
			if !cache.IsCacheMiss(err) {
				f.log.WithError(err).Warn("resource cache read failed", nil)
			}
			metrics.ResourceCacheLookups.WithLabelValues("miss").Inc()
			misses[id] = in
			continue
		}
		var res FetchResult
		if err := json.Unmarshal(data, &res); err != nil {
			misses[id] = in
			continue
		}
		metrics.ResourceCacheLookups.WithLabelValues("hit").Inc()
		out[id] = res
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := f.next.Fetch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, res := range fetched {
		out[id] = res
		if res.Error != "" {
			continue
		}
		in := misses[id]
		data, err := json.Marshal(res)
		if err != nil {
			continue
		}
		if err := f.cache.Set(ctx, cache.ResourceKey(in.WidgetID, in.ExternalID, in.FetchParams), data, f.ttl); err != nil {
			f.log.WithError(err).Warn("resource cache write failed", nil)
		}
	}
	return out, nil
}
