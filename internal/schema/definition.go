package schema

import (
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/responsive"
)

// Option is one choice of a select-like prop.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label"`
}

// VisibleFunc decides field visibility from the node's resolved values.
type VisibleFunc func(values, params map[string]any) bool

// SchemaProp declares one authorable property.
type SchemaProp struct {
	Prop         string         `json:"prop" yaml:"prop"`
	Type         string         `json:"type" yaml:"type"`
	Label        string         `json:"label,omitempty" yaml:"label"`
	Group        string         `json:"group,omitempty" yaml:"group"`
	Description  string         `json:"description,omitempty" yaml:"description"`
	Responsive   bool           `json:"responsive,omitempty" yaml:"responsive"`
	Hidden       bool           `json:"hidden,omitempty" yaml:"hidden"`
	VisibleFunc  VisibleFunc    `json:"-" yaml:"-"`
	DefaultValue any            `json:"defaultValue,omitempty" yaml:"defaultValue"`
	Accepts      []string       `json:"accepts,omitempty" yaml:"accepts"`
	Required     bool           `json:"required,omitempty" yaml:"required"`
	Optional     bool           `json:"optional,omitempty" yaml:"optional"`
	NoInline     bool           `json:"noInline,omitempty" yaml:"noInline"`
	Params       map[string]any `json:"params,omitempty" yaml:"params"`
	Options      []Option       `json:"options,omitempty" yaml:"options"`
	BuildOnly    bool           `json:"buildOnly,omitempty" yaml:"buildOnly"`
}

// DisplayLabel returns the label or the prop name.
func (p SchemaProp) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Prop
}

// IsVisible evaluates the prop's visibility for the editor.
func (p SchemaProp) IsVisible(values, params map[string]any) bool {
	if p.Hidden {
		return false
	}
	if p.VisibleFunc != nil {
		return p.VisibleFunc(values, params)
	}
	return true
}

// ComponentOverride is what a styles function passes down to one slot.
type ComponentOverride struct {
	Params    map[string]any   `json:"params,omitempty"`
	ItemProps []map[string]any `json:"itemProps,omitempty"`
	NoInline  bool             `json:"noInline,omitempty"`
	Direction string           `json:"direction,omitempty"`
}

// StylesInput is passed to a styles function once per device.
type StylesInput struct {
	Values    map[string]any
	Params    map[string]any
	Device    responsive.Device
	IsEditing bool
}

// StylesResult is returned by a styles function. Props override the node's
// resolved values.
type StylesResult struct {
	Props      map[string]any
	Components map[string]ComponentOverride
	Styled     map[string]any
}

// StylesFunc computes styled boxes for one device. It must be pure.
type StylesFunc func(StylesInput) (StylesResult, error)

// EditingInput is passed to an editing function.
type EditingInput struct {
	Values      map[string]any
	Params      map[string]any
	Device      responsive.Device
	EditingInfo model.EditingInfo
}

// EditingResult customises the default editing info. Nil fields keep the
// defaults.
type EditingResult struct {
	Fields     []model.EditingField
	Components map[string]model.ComponentEditingInfo
	Direction  string
}

// EditingFunc customises the editor fields of a node.
type EditingFunc func(EditingInput) EditingResult

// AutoInput is passed to an auto function. Values are still responsive.
type AutoInput struct {
	Values  map[string]any
	Params  map[string]any
	Devices responsive.Devices
}

// AutoFunc derives prop values before styles run.
type AutoFunc func(AutoInput) map[string]any

// ChangeInput describes a single prop change made in the editor.
type ChangeInput struct {
	NewValue        any
	Prop            string
	Values          map[string]any
	ValuesAfterAuto map[string]any
}

// ChangeFunc returns the props to write for a change. A nil result writes
// only the changed prop.
type ChangeFunc func(ChangeInput) map[string]any

// ComponentDefinition is a registry entry.
type ComponentDefinition struct {
	ID         string       `json:"id" yaml:"id"`
	Label      string       `json:"label,omitempty" yaml:"label"`
	Type       []string     `json:"type,omitempty" yaml:"type"`
	Schema     []SchemaProp `json:"schema" yaml:"schema"`
	PasteSlots []string     `json:"pasteSlots,omitempty" yaml:"pasteSlots"`

	Styles  StylesFunc  `json:"-" yaml:"-"`
	Editing EditingFunc `json:"-" yaml:"-"`
	Auto    AutoFunc    `json:"-" yaml:"-"`
	Change  ChangeFunc  `json:"-" yaml:"-"`
}

// Prop returns the schema prop by name.
func (d *ComponentDefinition) Prop(name string) (SchemaProp, bool) {
	for _, p := range d.Schema {
		if p.Prop == name {
			return p, true
		}
	}
	return SchemaProp{}, false
}

// HasType reports whether the definition carries tag.
func (d *ComponentDefinition) HasType(tag string) bool {
	for _, t := range d.Type {
		if t == tag {
			return true
		}
	}
	return false
}

// IsAction reports whether the definition can be placed in an action slot.
func (d *ComponentDefinition) IsAction() bool {
	return d.HasType(TagAction) || d.HasType(TagActionLink)
}
