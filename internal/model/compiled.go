package model

// MissingComponentID is the template of the placeholder node emitted for
// unknown components while editing.
const MissingComponentID = "$MissingComponent"

// CompiledComponentConfig is the device specific, style resolved snapshot
// of a config node.
type CompiledComponentConfig struct {
	Template       string                                `json:"_template"`
	ID             string                                `json:"_id"`
	Props          map[string]any                        `json:"props"`
	Components     map[string][]*CompiledComponentConfig `json:"components"`
	Actions        map[string][]*CompiledComponentConfig `json:"actions"`
	TextModifiers  map[string][]*CompiledComponentConfig `json:"textModifiers"`
	Styled         map[string]any                        `json:"styled"`
	StyledByDevice map[string]map[string]any             `json:"styledByDevice,omitempty"`
	Editing        *EditingInfo                          `json:"__editing,omitempty"`
	Error          string                                `json:"error,omitempty"`
}

// NewCompiled creates an empty compiled node.
func NewCompiled(template, id string) *CompiledComponentConfig {
	return &CompiledComponentConfig{
		Template:      template,
		ID:            id,
		Props:         map[string]any{},
		Components:    map[string][]*CompiledComponentConfig{},
		Actions:       map[string][]*CompiledComponentConfig{},
		TextModifiers: map[string][]*CompiledComponentConfig{},
		Styled:        map[string]any{},
	}
}

// IsMissing reports whether the node is the missing component placeholder.
func (c *CompiledComponentConfig) IsMissing() bool {
	return c.Template == MissingComponentID
}

// Count returns the number of nodes in the compiled tree.
func (c *CompiledComponentConfig) Count() int {
	if c == nil {
		return 0
	}
	n := 1
	for _, group := range []map[string][]*CompiledComponentConfig{c.Components, c.Actions, c.TextModifiers} {
		for _, children := range group {
			for _, child := range children {
				n += child.Count()
			}
		}
	}
	return n
}

// EditingField describes one field the editor shows for a node.
type EditingField struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Label   string `json:"label"`
	Group   string `json:"group,omitempty"`
	Visible bool   `json:"visible"`
}

// ComponentEditingInfo describes how a child slot behaves in the editor.
type ComponentEditingInfo struct {
	Selectable bool           `json:"selectable"`
	Direction  string         `json:"direction,omitempty"`
	NoInline   bool           `json:"noInline,omitempty"`
	Fields     []EditingField `json:"fields,omitempty"`
}

// WidthInfo carries the per-device width of a node and whether it is
// sized automatically.
type WidthInfo struct {
	Width map[string]any `json:"width"`
	Auto  map[string]any `json:"auto"`
}

// EditingInfo is the editor payload attached to compiled nodes in edit
// mode.
type EditingInfo struct {
	Fields     []EditingField                  `json:"fields"`
	Components map[string]ComponentEditingInfo `json:"components,omitempty"`
	Direction  string                          `json:"direction,omitempty"`
	WidthInfo  *WidthInfo                      `json:"widthInfo,omitempty"`
}

// Field returns the editing field for path.
func (e *EditingInfo) Field(path string) (EditingField, bool) {
	if e == nil {
		return EditingField{}, false
	}
	for _, f := range e.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return EditingField{}, false
}
