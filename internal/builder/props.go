package builder

import (
	"fmt"

	"github.com/easyblocks/easyblocks/internal/model"
)

// Props is everything a component implementation receives.
type Props struct {
	ID       string
	Template string
	Path     string

	// Values holds the compiled, device resolved props. Resource props keep
	// their reference here; their resolved state is in Resources.
	Values        map[string]any
	Resources     map[string]*ResolvedResource
	Boxes         map[string]*Element
	Slots         map[string][]*Element
	Actions       map[string]Handler
	TextModifiers map[string]*model.CompiledComponentConfig

	// Passed are the props handed down by the parent implementation.
	Passed map[string]any

	IsEditing bool
	Editing   *model.EditingInfo
	Locale    string
	Device    string
}

// Value returns a compiled prop.
func (p Props) Value(name string) any {
	return p.Values[name]
}

// String returns a compiled prop formatted as a string.
func (p Props) String(name string) string {
	v, ok := p.Values[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns a boolean prop.
func (p Props) Bool(name string) bool {
	b, _ := p.Values[name].(bool)
	return b
}

// Resource returns the resolved resource of a prop, nil when none is set.
func (p Props) Resource(name string) *ResolvedResource {
	return p.Resources[name]
}

// Box returns a styled box, or a plain div when the styles function did
// not produce one.
func (p Props) Box(name string) *Element {
	if b, ok := p.Boxes[name]; ok {
		return b
	}
	return El("div", map[string]string{"data-box": name})
}

// Slot returns the first element of a slot.
func (p Props) Slot(name string) *Element {
	if s := p.Slots[name]; len(s) > 0 {
		return s[0]
	}
	return nil
}

// Children returns every element of a slot.
func (p Props) Children(name string) []*Element {
	return p.Slots[name]
}

// Action returns the handler of an action prop. It is never nil.
func (p Props) Action(name string) Handler {
	if h, ok := p.Actions[name]; ok && h != nil {
		return h
	}
	return noopHandler
}

func noopHandler(Event) {}
