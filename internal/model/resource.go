package model

// ResourceStatus is the lifecycle state of a resource.
type ResourceStatus string

const (
	StatusLoading ResourceStatus = "loading"
	StatusSuccess ResourceStatus = "success"
	StatusError   ResourceStatus = "error"
)

// Resource is the known state of one external value, keyed by
// "<configId>.<prop>[.<deviceId>]".
type Resource struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Status ResourceStatus `json:"status"`
	Value  any            `json:"value,omitempty"`
	Error  string         `json:"error,omitempty"`
	Key    string         `json:"key,omitempty"`
}

// CompoundValue is one named field of a compound resource value.
type CompoundValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
	Label string `json:"label,omitempty"`
}

// CompoundResourceType marks a resource whose value is a set of named
// fields.
const CompoundResourceType = "object"

// ResourceIDKey is added to a compiled reference whose value was picked from
// a responsive prop. It names the per device resource the builder reads.
const ResourceIDKey = "$resourceId"

// ResourceKey builds the id of a resource.
func ResourceKey(configID, prop, deviceID string) string {
	key := configID + "." + prop
	if deviceID != "" {
		key += "." + deviceID
	}
	return key
}

// HasContent reports whether a successful resource carries a usable value.
func (r Resource) HasContent() bool {
	if r.Status != StatusSuccess || r.Value == nil {
		return false
	}
	switch v := r.Value.(type) {
	case string:
		return v != ""
	case map[string]any:
		return len(v) > 0
	case map[string]CompoundValue:
		return len(v) > 0
	case []any:
		return len(v) > 0
	}
	return true
}

// Pick returns the value of the compound field key, or the value itself for
// scalar resources.
func (r Resource) Pick(key string) (any, string, bool) {
	if r.Type != CompoundResourceType {
		return r.Value, r.Type, true
	}
	switch values := r.Value.(type) {
	case map[string]CompoundValue:
		v, ok := values[key]
		return v.Value, v.Type, ok
	case map[string]any:
		raw, ok := values[key].(map[string]any)
		if !ok {
			return nil, "", false
		}
		t, _ := raw["type"].(string)
		return raw["value"], t, true
	}
	return nil, "", false
}
