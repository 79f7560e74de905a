package builder

import (
	"sync"

	"github.com/easyblocks/easyblocks/internal/model"
)

// Implementation suffixes tried before the bare definition id.
const (
	SuffixEditor = ".editor"
	SuffixClient = ".client"
)

// ComponentFunc renders a component from its assembled props.
type ComponentFunc func(props Props) *Element

// Event describes what triggered an action.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// ActionFunc runs an action with the action config's resolved params.
type ActionFunc func(params map[string]any, event Event)

// LinkFunc wraps the element of a component into a link built from the
// link action's params.
type LinkFunc func(inner *Element, params map[string]any) *Element

// Handler is an action bound to its params. Calling it never panics on a
// missing implementation.
type Handler func(event Event)

type implKind int

const (
	implMissing implKind = iota
	implComponent
)

// Implementation is what a definition id resolves to. The zero value is
// the missing implementation.
type Implementation struct {
	ID     string
	kind   implKind
	render ComponentFunc
}

// IsMissing reports whether no implementation was found.
func (i Implementation) IsMissing() bool {
	return i.kind == implMissing
}

// Render calls the implementation. A missing implementation renders
// nothing.
func (i Implementation) Render(p Props) *Element {
	if i.kind != implComponent {
		return nil
	}
	return i.render(p)
}

// Registry maps definition ids to runtime implementations. Safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	components map[string]ComponentFunc
	actions    map[string]ActionFunc
	links      map[string]LinkFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]ComponentFunc),
		actions:    make(map[string]ActionFunc),
		links:      make(map[string]LinkFunc),
	}
}

// RegisterComponent registers a component implementation. id may carry
// the ".client" or ".editor" suffix.
func (r *Registry) RegisterComponent(id string, fn ComponentFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[id] = fn
}

// RegisterAction registers an action implementation.
func (r *Registry) RegisterAction(id string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[id] = fn
}

// RegisterLink registers a link implementation.
func (r *Registry) RegisterLink(id string, fn LinkFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[id] = fn
}

// Component resolves the implementation of a definition: the editor
// variant while editing, then the client variant, then the bare id.
func (r *Registry) Component(template string, editing bool) Implementation {
	id := model.StripVariant(template)
	candidates := []string{id + SuffixClient, id}
	if editing {
		candidates = append([]string{id + SuffixEditor}, candidates...)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range candidates {
		if fn, ok := r.components[c]; ok {
			return Implementation{ID: c, kind: implComponent, render: fn}
		}
	}
	return Implementation{ID: id}
}

// Action returns an action implementation.
func (r *Registry) Action(id string) (ActionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.actions[model.StripVariant(id)]
	return fn, ok
}

// Link returns a link implementation.
func (r *Registry) Link(id string) (LinkFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.links[model.StripVariant(id)]
	return fn, ok
}
