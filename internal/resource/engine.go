package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/metrics"
	"github.com/easyblocks/easyblocks/internal/model"
)

// DefaultFetchTimeout bounds a single fetch call.
const DefaultFetchTimeout = 30 * time.Second

type entry struct {
	identity string
	resource model.Resource
}

// Engine tracks resource states across compile passes. Safe for concurrent
// use.
//
// Each resource key remembers the identity it was requested with. A key is
// fetched when it is new or its identity changed; settled keys are never
// refetched. Requests with equal identity share a single fetch, also across
// overlapping Resolve calls. A result is applied only if its key still
// exists with the identity the fetch was started for.
type Engine struct {
	fetcher Fetcher
	log     logger.Logger
	timeout time.Duration

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTimeout sets the per fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine creates an engine around fetcher.
func NewEngine(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher: fetcher,
		log:     logger.NewNoOpLogger(),
		timeout: DefaultFetchTimeout,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func loadingResource(req Request) model.Resource {
	return model.Resource{ID: req.ID, Type: req.Type, Status: model.StatusLoading, Key: req.Key}
}

// Snapshot returns the known state of exactly the given requests without
// fetching. Unknown keys, and keys whose identity changed, are loading.
func (e *Engine) Snapshot(requests []Request) []model.Resource {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Resource, 0, len(requests))
	for _, req := range requests {
		ent, ok := e.entries[req.ID]
		if !ok || ent.identity != req.Identity() {
			out = append(out, loadingResource(req))
			continue
		}
		res := ent.resource
		res.Key = req.Key
		out = append(out, res)
	}
	return out
}

// Pending reports whether Resolve would fetch anything for requests.
func (e *Engine) Pending(requests []Request) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, req := range requests {
		ent, ok := e.entries[req.ID]
		if !ok || ent.identity != req.Identity() || ent.resource.Status == model.StatusLoading {
			return true
		}
	}
	return false
}

// Resolve brings every request to a settled state and returns the
// resulting snapshot. Entries for keys not among requests are dropped.
func (e *Engine) Resolve(ctx context.Context, requests []Request) ([]model.Resource, error) {
	groups := e.prepare(requests)

	var wg sync.WaitGroup
	for identity, reqs := range groups {
		wg.Add(1)
		go func(identity string, reqs []Request) {
			defer wg.Done()
			e.fetchGroup(ctx, identity, reqs)
		}(identity, reqs)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return e.Snapshot(requests), nil
	case <-ctx.Done():
		return e.Snapshot(requests), ctx.Err()
	}
}

// ResolveAsync runs Resolve in the background and calls onSettled with the
// snapshot once every fetch finished. onSettled is not called when nothing
// needed fetching. It reports whether a fetch was started.
func (e *Engine) ResolveAsync(ctx context.Context, requests []Request, onSettled func([]model.Resource)) bool {
	if !e.Pending(requests) {
		e.prune(requests)
		return false
	}
	go func() {
		resources, err := e.Resolve(ctx, requests)
		if err != nil {
			e.log.WithError(err).Warn("resource resolution interrupted", nil)
			return
		}
		if onSettled != nil {
			onSettled(resources)
		}
	}()
	return true
}

// Invalidate forgets the given keys so the next Resolve fetches them again.
func (e *Engine) Invalidate(ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.entries, id)
	}
}

// Len returns the number of tracked keys.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *Engine) prune(requests []Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneLocked(requests)
}

func (e *Engine) pruneLocked(requests []Request) {
	keep := make(map[string]bool, len(requests))
	for _, req := range requests {
		keep[req.ID] = true
	}
	for id := range e.entries {
		if !keep[id] {
			delete(e.entries, id)
		}
	}
}

// prepare registers new keys as loading and groups every loading request by
// identity.
func (e *Engine) prepare(requests []Request) map[string][]Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pruneLocked(requests)

	groups := make(map[string][]Request)
	for _, req := range requests {
		identity := req.Identity()
		ent, ok := e.entries[req.ID]
		if !ok || ent.identity != identity {
			ent = &entry{identity: identity, resource: loadingResource(req)}
			e.entries[req.ID] = ent
		}
		if ent.resource.Status == model.StatusLoading {
			groups[identity] = append(groups[identity], req)
		}
	}
	return groups
}

func (e *Engine) fetchGroup(ctx context.Context, identity string, reqs []Request) {
	first := reqs[0]
	v, err, shared := e.group.Do(identity, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()

		start := time.Now()
		results, err := e.fetcher.Fetch(fetchCtx, map[string]FetchInput{first.ID: first.Input()})
		metrics.ResourceFetchDuration.WithLabelValues(fmt.Sprintf("%T", e.fetcher)).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		res, ok := results[first.ID]
		if !ok {
			return FetchResult{Error: "fetch returned no result"}, nil
		}
		return res, nil
	})

	var result FetchResult
	if err != nil {
		result = FetchResult{Error: err.Error()}
	} else {
		result = v.(FetchResult)
	}

	if result.Error != "" {
		e.log.Warn("resource fetch failed", map[string]interface{}{
			"widgetId":   first.WidgetID,
			"externalId": first.ExternalID,
			"error":      result.Error,
			"shared":     shared,
		})
	}
	e.apply(identity, reqs, result)
}

func (e *Engine) apply(identity string, reqs []Request, result FetchResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, req := range reqs {
		ent, ok := e.entries[req.ID]
		if !ok || ent.identity != identity {
			// superseded or removed while in flight
			continue
		}
		ent.resource = toResource(req, result)
		metrics.ResourceFetches.WithLabelValues(req.Type, string(ent.resource.Status)).Inc()
	}
}

func toResource(req Request, result FetchResult) model.Resource {
	res := model.Resource{ID: req.ID, Type: req.Type, Key: req.Key}
	switch {
	case result.Error != "":
		res.Status = model.StatusError
		res.Error = result.Error
	case result.Values != nil:
		res.Status = model.StatusSuccess
		res.Type = model.CompoundResourceType
		res.Value = result.Values
	default:
		res.Status = model.StatusSuccess
		if result.Type != "" {
			res.Type = result.Type
		}
		res.Value = result.Value
	}
	return res
}
