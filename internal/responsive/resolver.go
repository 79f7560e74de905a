package responsive

import (
	"encoding/json"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize bounds the number of memoised resolutions.
const DefaultCacheSize = 4096

// Resolver memoises Resolve for a fixed device list. Safe for concurrent use.
type Resolver struct {
	devices Devices
	cache   *lru.Cache
}

type resolution struct {
	value any
	err   error
}

// NewResolver creates a memoising resolver. size <= 0 selects
// DefaultCacheSize.
func NewResolver(devices Devices, size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Resolver{devices: devices.Sorted(), cache: cache}, nil
}

// Devices returns the resolver's devices, largest first.
func (r *Resolver) Devices() Devices {
	return r.devices
}

// Resolve is the memoised form of the package level Resolve.
func (r *Resolver) Resolve(v any, deviceID string) (any, error) {
	if !IsTrulyResponsive(v) {
		return v, nil
	}

	key, err := cacheKey(v, deviceID)
	if err != nil {
		return resolveSorted(v.(map[string]any), deviceID, r.devices)
	}
	if cached, ok := r.cache.Get(key); ok {
		res := cached.(resolution)
		return res.value, res.err
	}

	value, resolveErr := resolveSorted(v.(map[string]any), deviceID, r.devices)
	r.cache.Add(key, resolution{value: value, err: resolveErr})
	return value, resolveErr
}

// Len returns the number of cached resolutions.
func (r *Resolver) Len() int {
	return r.cache.Len()
}

// json.Marshal sorts map keys, which makes the encoding canonical.
func cacheKey(v any, deviceID string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return deviceID + "\x00" + string(data), nil
}
