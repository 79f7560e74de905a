package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/easyblocks/easyblocks/internal/model"
)

// Registry holds component definitions and custom prop types with indexes
// built on registration. Safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	definitions map[string]*ComponentDefinition
	order       []string
	byTag       map[string][]string
	types       map[string]TypeDefinition
}

// NewRegistry creates a registry preloaded with the built-in prop types.
func NewRegistry() *Registry {
	r := &Registry{
		definitions: make(map[string]*ComponentDefinition),
		byTag:       make(map[string][]string),
		types:       make(map[string]TypeDefinition),
	}
	for _, t := range builtinTypes() {
		r.types[t.ID] = t
	}
	return r
}

// Register adds a definition. Ids and prop names must be unique.
func (r *Registry) Register(def *ComponentDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("definition without id")
	}
	if strings.Contains(def.ID, model.VariantSeparator) {
		return fmt.Errorf("definition id %q must not contain %q", def.ID, model.VariantSeparator)
	}

	seen := make(map[string]bool, len(def.Schema))
	for _, p := range def.Schema {
		if p.Prop == "" {
			return fmt.Errorf("definition %q: prop without name", def.ID)
		}
		if seen[p.Prop] {
			return fmt.Errorf("definition %q: duplicate prop %q", def.ID, p.Prop)
		}
		seen[p.Prop] = true
		if p.Type == "" {
			return fmt.Errorf("definition %q: prop %q has no type", def.ID, p.Prop)
		}
		// a responsive true reads as "inherit from the larger device"
		if p.Type == TypeBoolean && p.Responsive {
			return fmt.Errorf("definition %q: boolean prop %q cannot be responsive", def.ID, p.Prop)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.ID]; exists {
		return fmt.Errorf("definition %q already registered", def.ID)
	}
	r.definitions[def.ID] = def
	r.order = append(r.order, def.ID)
	for _, tag := range def.Type {
		r.byTag[tag] = append(r.byTag[tag], def.ID)
	}
	return nil
}

// MustRegister registers every definition and panics on the first error.
func (r *Registry) MustRegister(defs ...*ComponentDefinition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// RegisterType adds a custom prop type.
func (r *Registry) RegisterType(t TypeDefinition) error {
	if t.ID == "" {
		return fmt.Errorf("type without id")
	}
	if IsSlotType(t.ID) {
		return fmt.Errorf("type %q is reserved", t.ID)
	}
	switch t.Kind {
	case KindInline, KindToken, KindExternal:
	default:
		return fmt.Errorf("type %q: unknown kind %q", t.ID, t.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.ID]; exists {
		return fmt.Errorf("type %q already registered", t.ID)
	}
	r.types[t.ID] = t
	return nil
}

// Lookup finds the definition for a template, ignoring its variant.
func (r *Registry) Lookup(template string) (*ComponentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[model.StripVariant(template)]
	return def, ok
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []*ComponentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ComponentDefinition, len(r.order))
	for i, id := range r.order {
		out[i] = r.definitions[id]
	}
	return out
}

// ByTag returns the definitions carrying tag in registration order.
func (r *Registry) ByTag(tag string) []*ComponentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byTag[tag]
	out := make([]*ComponentDefinition, len(ids))
	for i, id := range ids {
		out[i] = r.definitions[id]
	}
	return out
}

// Type returns a registered prop type.
func (r *Registry) Type(id string) (TypeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	return t, ok
}

// Kind classifies a prop for the compiler and builder.
func (r *Registry) Kind(p SchemaProp) string {
	if IsSlotType(p.Type) {
		for _, a := range p.Accepts {
			switch a {
			case TagAction, TagActionLink:
				return model.KindAction
			case TagTextModifier, TagActionTextModifier:
				return model.KindTextModifier
			}
		}
		return model.KindSlot
	}

	t, ok := r.Type(p.Type)
	if !ok {
		return model.KindValue
	}
	switch t.Kind {
	case KindExternal:
		return model.KindResource
	case KindToken:
		return model.KindToken
	}
	return model.KindValue
}

// IsOptionalResource reports whether an unresolved resource prop may be
// rendered anyway. Text never blocks rendering.
func (r *Registry) IsOptionalResource(p SchemaProp) bool {
	if p.Optional || p.Type == TypeText {
		return true
	}
	t, ok := r.Type(p.Type)
	return ok && t.Optional
}

// Accepts reports whether a slot prop accepts def, matching either the id
// or one of its type tags. A slot without accepts takes anything.
func Accepts(slot SchemaProp, def *ComponentDefinition) bool {
	if len(slot.Accepts) == 0 {
		return true
	}
	for _, a := range slot.Accepts {
		if a == def.ID || def.HasType(a) {
			return true
		}
	}
	return false
}

// Serialize exports the serialisable part of every definition, grouped by
// role.
func (r *Registry) Serialize() model.Definitions {
	out := model.Definitions{
		Components:    []model.DefinitionInfo{},
		Actions:       []model.DefinitionInfo{},
		Links:         []model.DefinitionInfo{},
		TextModifiers: []model.DefinitionInfo{},
	}
	for _, def := range r.Definitions() {
		info := r.describe(def)
		switch {
		case def.HasType(TagActionLink):
			out.Links = append(out.Links, info)
		case def.HasType(TagAction):
			out.Actions = append(out.Actions, info)
		case def.HasType(TagTextModifier), def.HasType(TagActionTextModifier):
			out.TextModifiers = append(out.TextModifiers, info)
		default:
			out.Components = append(out.Components, info)
		}
	}
	return out
}

func (r *Registry) describe(def *ComponentDefinition) model.DefinitionInfo {
	info := model.DefinitionInfo{
		ID:     def.ID,
		Label:  def.Label,
		Type:   append([]string(nil), def.Type...),
		Schema: make([]model.PropInfo, len(def.Schema)),
	}
	for i, p := range def.Schema {
		info.Schema[i] = model.PropInfo{
			Prop:       p.Prop,
			Type:       p.Type,
			Kind:       r.Kind(p),
			Label:      p.Label,
			Group:      p.Group,
			Responsive: p.Responsive,
			Optional:   r.IsOptionalResource(p),
			Required:   p.Required,
			NoInline:   p.NoInline,
			Accepts:    append([]string(nil), p.Accepts...),
		}
	}
	return info
}

// Suggest returns registered ids close to template, best match first.
func (r *Registry) Suggest(template string, limit int) []string {
	target := strings.ToLower(model.StripVariant(template))

	type candidate struct {
		id   string
		dist int
	}
	var candidates []candidate
	for _, def := range r.Definitions() {
		d := levenshtein(target, strings.ToLower(def.ID))
		if d <= len(target)/2+1 {
			candidates = append(candidates, candidate{def.ID, d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	var out []string
	for i := 0; i < len(candidates) && i < limit; i++ {
		out = append(out, candidates[i].id)
	}
	return out
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
