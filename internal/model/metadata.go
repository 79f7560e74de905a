package model

import "github.com/easyblocks/easyblocks/internal/responsive"

// Prop kinds used by the runtime to treat schema props generically.
const (
	KindValue        = "value"
	KindToken        = "token"
	KindSlot         = "slot"
	KindAction       = "action"
	KindTextModifier = "textModifier"
	KindResource     = "resource"
)

// PropInfo is the serialisable part of a schema prop.
type PropInfo struct {
	Prop       string   `json:"prop"`
	Type       string   `json:"type"`
	Kind       string   `json:"kind"`
	Label      string   `json:"label,omitempty"`
	Group      string   `json:"group,omitempty"`
	Responsive bool     `json:"responsive,omitempty"`
	Optional   bool     `json:"optional,omitempty"`
	Required   bool     `json:"required,omitempty"`
	NoInline   bool     `json:"noInline,omitempty"`
	Accepts    []string `json:"accepts,omitempty"`
}

// DisplayLabel returns the label or the prop name.
func (p PropInfo) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Prop
}

// DefinitionInfo is the serialisable part of a component definition.
type DefinitionInfo struct {
	ID     string     `json:"id"`
	Label  string     `json:"label,omitempty"`
	Type   []string   `json:"type,omitempty"`
	Schema []PropInfo `json:"schema"`
}

// Prop returns the prop info by name.
func (d DefinitionInfo) Prop(name string) (PropInfo, bool) {
	for _, p := range d.Schema {
		if p.Prop == name {
			return p, true
		}
	}
	return PropInfo{}, false
}

// Definitions groups serialised definitions by role.
type Definitions struct {
	Components    []DefinitionInfo `json:"components"`
	Actions       []DefinitionInfo `json:"actions"`
	Links         []DefinitionInfo `json:"links"`
	TextModifiers []DefinitionInfo `json:"textModifiers"`
}

// Find searches every group for id.
func (d Definitions) Find(id string) (DefinitionInfo, bool) {
	for _, group := range [][]DefinitionInfo{d.Components, d.Actions, d.Links, d.TextModifiers} {
		for _, def := range group {
			if def.ID == id {
				return def, true
			}
		}
	}
	return DefinitionInfo{}, false
}

// HasAccepted reports whether a component definition fits a slot that
// accepts the given ids or type tags. Empty accepts take any component.
func (d Definitions) HasAccepted(accepts []string) bool {
	for _, def := range d.Components {
		if len(accepts) == 0 {
			return true
		}
		for _, a := range accepts {
			if a == def.ID || containsString(def.Type, a) {
				return true
			}
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CompilationVars are the pass wide inputs recorded with the output.
type CompilationVars struct {
	Devices     responsive.Devices `json:"devices"`
	Device      string             `json:"device"`
	Locale      string             `json:"locale"`
	IsEditing   bool               `json:"isEditing"`
	Definitions Definitions        `json:"definitions"`
}

// Metadata travels with the compiled tree to the builder.
type Metadata struct {
	Vars      CompilationVars `json:"vars"`
	Resources []Resource      `json:"resources"`
}

// Resource returns the resource with the given id.
func (m *Metadata) Resource(id string) (Resource, bool) {
	if m == nil {
		return Resource{}, false
	}
	for _, r := range m.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}
