package components

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/easyblocks/easyblocks/internal/builder"
	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Project is the content of a project file.
type Project struct {
	Devices    responsive.Devices       `yaml:"devices"`
	Locales    []compiler.Locale        `yaml:"locales"`
	Tokens     compiler.Tokens          `yaml:"tokens"`
	Types      []schema.TypeDefinition  `yaml:"types"`
	Components []DeclarativeComponent   `yaml:"components"`
}

// DeclarativeComponent is a component defined in the project file. Styled
// strings of the form "$values.<prop>" and "$params.<name>" are replaced by
// the node's resolved values and params.
type DeclarativeComponent struct {
	ID     string              `yaml:"id"`
	Label  string              `yaml:"label"`
	Type   []string            `yaml:"type"`
	Schema []schema.SchemaProp `yaml:"schema"`
	Styled map[string]any      `yaml:"styled"`
	Render RenderSpec          `yaml:"render"`
}

// RenderSpec tells how a declarative component is built: the box used as
// root, an optional prop rendered as text and the slots appended in order.
type RenderSpec struct {
	Box   string   `yaml:"box"`
	Text  string   `yaml:"text"`
	Slots []string `yaml:"slots"`
}

// LoadProject reads and validates a project file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	p, err := ParseProject(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseProject decodes and validates project YAML.
func ParseProject(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the project for problems the registries would only
// report one at a time.
func (p *Project) Validate() error {
	if len(p.Devices) > 0 {
		if err := p.Devices.Validate(); err != nil {
			return fmt.Errorf("devices: %w", err)
		}
	}

	defaults := 0
	seenLocales := make(map[string]bool)
	for _, l := range p.Locales {
		if l.Code == "" {
			return fmt.Errorf("locales: locale without code")
		}
		if seenLocales[l.Code] {
			return fmt.Errorf("locales: duplicate locale %q", l.Code)
		}
		seenLocales[l.Code] = true
		if l.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("locales: %d default locales, expected one", defaults)
	}
	for _, l := range p.Locales {
		if l.Fallback != "" && !seenLocales[l.Fallback] {
			return fmt.Errorf("locales: %q falls back to unknown locale %q", l.Code, l.Fallback)
		}
	}

	seen := make(map[string]bool)
	for i, c := range p.Components {
		if c.ID == "" {
			return fmt.Errorf("components[%d]: missing id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("components: duplicate id %q", c.ID)
		}
		seen[c.ID] = true
		for _, slot := range c.Render.Slots {
			sp, ok := c.prop(slot)
			if !ok || !schema.IsSlotType(sp.Type) {
				return fmt.Errorf("component %q: render slot %q is not a component prop", c.ID, slot)
			}
		}
		if c.Render.Text != "" {
			if _, ok := c.prop(c.Render.Text); !ok {
				return fmt.Errorf("component %q: render text %q is not a prop", c.ID, c.Render.Text)
			}
		}
	}
	return nil
}

func (c DeclarativeComponent) prop(name string) (schema.SchemaProp, bool) {
	for _, sp := range c.Schema {
		if sp.Prop == name {
			return sp, true
		}
	}
	return schema.SchemaProp{}, false
}

// Definition returns the schema definition of the component.
func (c DeclarativeComponent) Definition() *schema.ComponentDefinition {
	styled := c.Styled
	return &schema.ComponentDefinition{
		ID:     c.ID,
		Label:  c.Label,
		Type:   c.Type,
		Schema: c.Schema,
		Styles: func(in schema.StylesInput) (schema.StylesResult, error) {
			out, _ := substitute(styled, in.Values, in.Params).(map[string]any)
			if out == nil {
				out = map[string]any{}
			}
			return schema.StylesResult{Styled: out}, nil
		},
	}
}

// Implementation returns the component implementation.
func (c DeclarativeComponent) Implementation() builder.ComponentFunc {
	box := c.Render.Box
	if box == "" {
		box = "Root"
	}
	textProp := c.Render.Text
	textIsResource := false
	if sp, ok := c.prop(textProp); ok {
		textIsResource = sp.Type == schema.TypeText
	}
	slots := append([]string(nil), c.Render.Slots...)

	return func(p builder.Props) *builder.Element {
		root := p.Box(box)
		switch {
		case textProp == "":
		case textIsResource:
			root.Append(builder.Text(p.Resource(textProp).String()))
		default:
			root.Append(builder.Text(p.String(textProp)))
		}
		for _, slot := range slots {
			root.Append(p.Children(slot)...)
		}
		return root
	}
}

const (
	valuesPrefix = "$values."
	paramsPrefix = "$params."
)

// substitute copies v, replacing value and param references.
func substitute(v any, values, params map[string]any) any {
	switch val := v.(type) {
	case string:
		if name, ok := strings.CutPrefix(val, valuesPrefix); ok {
			return values[name]
		}
		if name, ok := strings.CutPrefix(val, paramsPrefix); ok {
			return params[name]
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if s := substitute(item, values, params); s != nil {
				out[k] = s
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substitute(item, values, params)
		}
		return out
	}
	return v
}
