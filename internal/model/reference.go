package model

import "strings"

// Local text references are embedded in the config instead of fetched.
const (
	LocalTextPrefix   = "local."
	LocalTextWidgetID = "@easyblocks/local-text"
)

// ExternalReference points a resource-bearing prop at an external value.
// An empty ID means nothing has been picked yet.
type ExternalReference struct {
	ID       string `json:"id"`
	WidgetID string `json:"widgetId"`
	Key      string `json:"key,omitempty"`
}

// ParseExternalReference reads a reference from a decoded prop value.
func ParseExternalReference(v any) (ExternalReference, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return ExternalReference{}, false
	}
	widgetID, hasWidget := m["widgetId"].(string)
	idValue, hasID := m["id"]
	if !hasWidget || !hasID {
		return ExternalReference{}, false
	}

	ref := ExternalReference{WidgetID: widgetID}
	if id, ok := idValue.(string); ok {
		ref.ID = id
	}
	if key, ok := m["key"].(string); ok {
		ref.Key = key
	}
	return ref, true
}

// IsEmpty reports whether no external value is selected.
func (r ExternalReference) IsEmpty() bool {
	return r.ID == ""
}

// IsLocal reports whether r points at embedded local text.
func (r ExternalReference) IsLocal() bool {
	return IsLocalTextID(r.ID)
}

// ToMap returns the JSON shape of the reference.
func (r ExternalReference) ToMap() map[string]any {
	out := map[string]any{"widgetId": r.WidgetID}
	if r.ID == "" {
		out["id"] = nil
	} else {
		out["id"] = r.ID
	}
	if r.Key != "" {
		out["key"] = r.Key
	}
	return out
}

// IsLocalTextID reports whether id names embedded local text.
func IsLocalTextID(id string) bool {
	return strings.HasPrefix(id, LocalTextPrefix)
}

// NewLocalText creates a local text reference value.
func NewLocalText(id string, value map[string]any) map[string]any {
	if !IsLocalTextID(id) {
		id = LocalTextPrefix + id
	}
	return map[string]any{
		"id":       id,
		"widgetId": LocalTextWidgetID,
		"value":    value,
	}
}

// IsLocalText reports whether v is a local text reference.
func IsLocalText(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	id, _ := m["id"].(string)
	return IsLocalTextID(id)
}

// LocalisedText picks the text of a local text reference for locale,
// trying each fallback locale in turn.
func LocalisedText(v any, locale string, fallbacks ...string) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	values, ok := m["value"].(map[string]any)
	if !ok {
		return "", false
	}
	for _, l := range append([]string{locale}, fallbacks...) {
		if s, ok := values[l].(string); ok {
			return s, true
		}
	}
	return "", false
}

// RefValue is a token-backed value. Ref names the theme token, Value holds
// the concrete value used when the token is gone or when the value is
// custom (empty Ref).
type RefValue struct {
	Value any    `json:"value"`
	Ref   string `json:"ref,omitempty"`
}

// ParseRefValue reads a {value, ref} object.
func ParseRefValue(v any) (RefValue, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return RefValue{}, false
	}
	value, hasValue := m["value"]
	if !hasValue {
		return RefValue{}, false
	}
	ref, _ := m["ref"].(string)
	return RefValue{Value: value, Ref: ref}, true
}

// ToMap returns the JSON shape of the ref value.
func (r RefValue) ToMap() map[string]any {
	out := map[string]any{"value": r.Value}
	if r.Ref != "" {
		out["ref"] = r.Ref
	}
	return out
}
