package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reserved config keys
const (
	KeyTemplate = "_template"
	KeyID       = "_id"
	KeyRef      = "_ref"
	KeyRefs     = "$$$refs"
)

// VariantSeparator splits a template id from its variant name.
const VariantSeparator = "$$$"

// ComponentConfig is a node of the authoring tree.
type ComponentConfig struct {
	Template string
	ID       string
	Ref      string
	Refs     map[string]*ComponentConfig
	Props    map[string]any
}

// NewConfig creates a config node with the given props.
func NewConfig(template, id string, props map[string]any) *ComponentConfig {
	if props == nil {
		props = map[string]any{}
	}
	return &ComponentConfig{Template: template, ID: id, Props: props}
}

// DefinitionID returns the template with any variant suffix stripped.
func (c *ComponentConfig) DefinitionID() string {
	return StripVariant(c.Template)
}

// StripVariant removes the "$$$variant" suffix from a template id.
func StripVariant(template string) string {
	if i := strings.Index(template, VariantSeparator); i > 0 {
		return template[:i]
	}
	return template
}

// Get returns a prop value.
func (c *ComponentConfig) Get(prop string) (any, bool) {
	v, ok := c.Props[prop]
	return v, ok
}

// MarshalJSON flattens props next to the reserved keys.
func (c *ComponentConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}

// ToMap returns the flattened JSON shape of the node. Child configs stay
// typed; they marshal themselves.
func (c *ComponentConfig) ToMap() map[string]any {
	out := make(map[string]any, len(c.Props)+4)
	for k, v := range c.Props {
		out[k] = v
	}
	out[KeyTemplate] = c.Template
	if c.ID != "" {
		out[KeyID] = c.ID
	}
	if c.Ref != "" {
		out[KeyRef] = c.Ref
	}
	if len(c.Refs) > 0 {
		out[KeyRefs] = c.Refs
	}
	return out
}

// UnmarshalJSON decodes the flattened form.
func (c *ComponentConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ConfigFromMap(raw)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// ParseConfig decodes a config from JSON.
func ParseConfig(data []byte) (*ComponentConfig, error) {
	var c ComponentConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ConfigFromMap converts a decoded JSON object into a config node.
func ConfigFromMap(raw map[string]any) (*ComponentConfig, error) {
	template, ok := raw[KeyTemplate].(string)
	if !ok || template == "" {
		return nil, fmt.Errorf("config is missing %s", KeyTemplate)
	}

	c := &ComponentConfig{Template: template, Props: make(map[string]any, len(raw))}
	if id, ok := raw[KeyID].(string); ok {
		c.ID = id
	}
	if ref, ok := raw[KeyRef].(string); ok {
		c.Ref = ref
	}
	if refs, ok := raw[KeyRefs].(map[string]any); ok {
		c.Refs = make(map[string]*ComponentConfig, len(refs))
		for name, r := range refs {
			m, ok := r.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ref %q is not an object", name)
			}
			child, err := ConfigFromMap(m)
			if err != nil {
				return nil, fmt.Errorf("ref %q: %w", name, err)
			}
			c.Refs[name] = child
		}
	}

	for k, v := range raw {
		switch k {
		case KeyTemplate, KeyID, KeyRef, KeyRefs:
			continue
		}
		converted, err := convertValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", template, k, err)
		}
		c.Props[k] = converted
	}
	return c, nil
}

func isConfigMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, ok = m[KeyTemplate].(string)
	return m, ok
}

// DecodeValue converts a decoded JSON prop value, turning arrays of config
// objects into child configs at any depth.
func DecodeValue(v any) (any, error) {
	return convertValue(v)
}

func convertValue(v any) (any, error) {
	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return val, nil
		}
		for _, item := range val {
			if _, ok := isConfigMap(item); !ok {
				return val, nil
			}
		}
		children := make([]*ComponentConfig, len(val))
		for i, item := range val {
			child, err := ConfigFromMap(item.(map[string]any))
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return children, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			converted, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	default:
		return v, nil
	}
}

// Clone returns a deep copy of the node.
func (c *ComponentConfig) Clone() *ComponentConfig {
	if c == nil {
		return nil
	}
	out := &ComponentConfig{
		Template: c.Template,
		ID:       c.ID,
		Ref:      c.Ref,
		Props:    make(map[string]any, len(c.Props)),
	}
	for k, v := range c.Props {
		out.Props[k] = CloneValue(v)
	}
	if c.Refs != nil {
		out.Refs = make(map[string]*ComponentConfig, len(c.Refs))
		for k, r := range c.Refs {
			out.Refs[k] = r.Clone()
		}
	}
	return out
}

// CloneValue deep copies a prop value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case *ComponentConfig:
		return val.Clone()
	case []*ComponentConfig:
		out := make([]*ComponentConfig, len(val))
		for i, child := range val {
			out[i] = child.Clone()
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Children returns the configs held by a slot value. Empty and non-slot
// values yield nil.
func Children(v any) []*ComponentConfig {
	if children, ok := v.([]*ComponentConfig); ok {
		return children
	}
	return nil
}

// LocalisedChildren returns the configs of a per-locale slot for locale.
func LocalisedChildren(v any, locale string) []*ComponentConfig {
	m, ok := v.(map[string]any)
	if !ok {
		return Children(v)
	}
	return Children(m[locale])
}

// ChildSlots returns every prop of c that holds child configs, including
// per-locale slots, sorted by prop name.
func (c *ComponentConfig) ChildSlots() []string {
	var props []string
	for k, v := range c.Props {
		if hasChildren(v) {
			props = append(props, k)
		}
	}
	sort.Strings(props)
	return props
}

func hasChildren(v any) bool {
	switch val := v.(type) {
	case []*ComponentConfig:
		return true
	case map[string]any:
		for _, item := range val {
			if _, ok := item.([]*ComponentConfig); ok {
				return true
			}
		}
	}
	return false
}

// WalkFunc is called for every node. Returning false skips the node's
// children.
type WalkFunc func(node *ComponentConfig, path string) bool

// Walk visits the tree depth first in declaration order of each slot.
// Slots are visited in prop name order and per-locale slots in locale
// order.
func (c *ComponentConfig) Walk(fn WalkFunc) {
	c.walk("", fn)
}

func (c *ComponentConfig) walk(path string, fn WalkFunc) {
	if c == nil || !fn(c, path) {
		return
	}
	for _, prop := range c.ChildSlots() {
		switch val := c.Props[prop].(type) {
		case []*ComponentConfig:
			for i, child := range val {
				child.walk(joinPath(path, prop, strconv.Itoa(i)), fn)
			}
		case map[string]any:
			locales := make([]string, 0, len(val))
			for locale := range val {
				locales = append(locales, locale)
			}
			sort.Strings(locales)
			for _, locale := range locales {
				for i, child := range Children(val[locale]) {
					child.walk(joinPath(path, prop, locale, strconv.Itoa(i)), fn)
				}
			}
		}
	}
}

func joinPath(base string, parts ...string) string {
	all := strings.Join(parts, ".")
	if base == "" {
		return all
	}
	return base + "." + all
}

// FindByID returns the node with the given _id and its path.
func (c *ComponentConfig) FindByID(id string) (*ComponentConfig, string, bool) {
	var (
		found *ComponentConfig
		where string
	)
	c.Walk(func(node *ComponentConfig, path string) bool {
		if found != nil {
			return false
		}
		if node.ID == id {
			found, where = node, path
			return false
		}
		return true
	})
	return found, where, found != nil
}

// IDs returns all _id values of the tree in walk order.
func (c *ComponentConfig) IDs() []string {
	var ids []string
	c.Walk(func(node *ComponentConfig, _ string) bool {
		if node.ID != "" {
			ids = append(ids, node.ID)
		}
		return true
	})
	return ids
}

// CheckUniqueIDs returns an error naming the first duplicated _id.
func (c *ComponentConfig) CheckUniqueIDs() error {
	seen := make(map[string]bool)
	for _, id := range c.IDs() {
		if seen[id] {
			return fmt.Errorf("duplicate _id %q", id)
		}
		seen[id] = true
	}
	return nil
}
