package builder

import (
	"fmt"
	"strconv"
	"strings"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/metrics"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Keys with a special meaning inside a styled box.
const (
	BoxTag    = "__as"
	BoxAction = "__action"
)

// Editor attributes added to every element built while editing.
const (
	AttrConfigID = "data-eb-id"
	AttrPath     = "data-eb-path"
)

// wrapper turns an element into the trigger of an action.
type wrapper func(*Element) *Element

func identity(e *Element) *Element { return e }

// Builder turns compiled trees into elements. Safe for concurrent use.
type Builder struct {
	registry *Registry
	log      logger.Logger
	recovery *cerrors.ErrorRecovery
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) { b.log = logger.OrNop(l) }
}

// New creates a builder around a runtime registry.
func New(registry *Registry, opts ...Option) *Builder {
	b := &Builder{
		registry: registry,
		log:      logger.NewNoOpLogger(),
		recovery: cerrors.NewErrorRecovery(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry returns the runtime registry.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Diagnostics returns the problems recorded since the last Reset.
func (b *Builder) Diagnostics() []cerrors.CompilerError {
	return b.recovery.GetAll()
}

// Reset clears recorded diagnostics.
func (b *Builder) Reset() {
	b.recovery.Clear()
}

func (b *Builder) report(code string, loc cerrors.ConfigLocation, format string, args ...any) {
	diag := cerrors.NewCompilerError(cerrors.PhaseBuild, code, fmt.Sprintf(format, args...), loc, cerrors.Warning)
	b.recovery.Recover(diag)
	metrics.Diagnostics.WithLabelValues(code, diag.Severity.String()).Inc()
	b.log.Warn(diag.Message, map[string]interface{}{
		"code":     code,
		"configId": loc.ConfigID,
		"path":     loc.Path,
	})
}

// Build turns a compiled node into an element. It returns nil for nodes
// that render nothing; problems degrade only the node they belong to.
func (b *Builder) Build(compiled *model.CompiledComponentConfig, path string, passed map[string]any, meta *model.Metadata) *Element {
	if compiled == nil || meta == nil {
		return nil
	}
	editing := meta.Vars.IsEditing
	loc := cerrors.ConfigLocation{ConfigID: compiled.ID, Path: path, Template: compiled.Template}

	if compiled.IsMissing() {
		b.log.Warn("missing component", map[string]interface{}{"configId": compiled.ID, "path": path})
		if !editing {
			return nil
		}
		template, _ := compiled.Props["template"].(string)
		return markEditable(missingPlaceholder(template, compiled.Error), compiled.ID, path)
	}

	def, hasDef := meta.Vars.Definitions.Find(model.StripVariant(compiled.Template))
	impl := b.registry.Component(compiled.Template, editing)
	if !hasDef || impl.IsMissing() {
		b.report(cerrors.ErrMissingComponentImpl, loc, "no implementation registered for %q", compiled.Template)
		if !editing {
			return nil
		}
		return markEditable(missingPlaceholder(compiled.Template, ""), compiled.ID, path)
	}

	handlers, wrappers := b.bindActions(compiled, def, loc, meta)

	status := checkRenderability(compiled, def, meta)
	if !status.renderable {
		if !editing {
			return nil
		}
		return markEditable(notRenderablePlaceholder(compiled.Template, status), compiled.ID, path)
	}

	props := Props{
		ID:            compiled.ID,
		Template:      compiled.Template,
		Path:          path,
		Values:        make(map[string]any, len(compiled.Props)),
		Resources:     make(map[string]*ResolvedResource),
		Boxes:         b.buildBoxes(compiled.Styled, wrappers, loc),
		Slots:         make(map[string][]*Element),
		Actions:       handlers,
		TextModifiers: make(map[string]*model.CompiledComponentConfig),
		Passed:        passed,
		IsEditing:     editing,
		Editing:       compiled.Editing,
		Locale:        meta.Vars.Locale,
		Device:        meta.Vars.Device,
	}
	for k, v := range compiled.Props {
		props.Values[k] = v
	}

	for _, p := range def.Schema {
		switch p.Kind {
		case model.KindResource:
			props.Resources[p.Prop] = resolveResource(compiled.ID, p, compiled.Props[p.Prop], meta)
		case model.KindSlot:
			props.Slots[p.Prop] = b.buildSlot(compiled, p, path, meta)
		case model.KindTextModifier:
			if list := compiled.TextModifiers[p.Prop]; len(list) > 0 {
				props.TextModifiers[p.Prop] = list[0]
			}
		}
	}

	el := impl.Render(props)
	if el == nil {
		return nil
	}
	if hasTag(def.Type, schema.TagButton) {
		if w, ok := wrappers["action"]; ok {
			el = w(el)
		}
	}
	if editing {
		markEditable(el, compiled.ID, path)
	}
	return el
}

// BuildRoot builds a document root, replacing root slots by overrides
// first.
func (b *Builder) BuildRoot(compiled *model.CompiledComponentConfig, meta *model.Metadata, overrides map[string]*model.CompiledComponentConfig) *Element {
	return b.Build(WithComponentOverrides(compiled, overrides), "", nil, meta)
}

// WithComponentOverrides returns a shallow copy of root in which every
// named slot holds only its override.
func WithComponentOverrides(root *model.CompiledComponentConfig, overrides map[string]*model.CompiledComponentConfig) *model.CompiledComponentConfig {
	if root == nil || len(overrides) == 0 {
		return root
	}
	out := *root
	out.Components = make(map[string][]*model.CompiledComponentConfig, len(root.Components))
	for k, v := range root.Components {
		out.Components[k] = v
	}
	for slot, override := range overrides {
		out.Components[slot] = []*model.CompiledComponentConfig{override}
	}
	return &out
}

func (b *Builder) buildSlot(compiled *model.CompiledComponentConfig, p model.PropInfo, path string, meta *model.Metadata) []*Element {
	children := compiled.Components[p.Prop]
	switch p.Type {
	case schema.TypeComponent, schema.TypeComponentFixed:
		// only the first item counts, even when it renders nothing
		if len(children) > 1 {
			children = children[:1]
		}
	}
	slotPath := joinPath(path, p.Prop)
	if p.Type == schema.TypeComponentCollectionLocalised {
		slotPath = joinPath(slotPath, meta.Vars.Locale)
	}

	out := make([]*Element, 0, len(children))
	for i, child := range children {
		if el := b.Build(child, joinPath(slotPath, strconv.Itoa(i)), nil, meta); el != nil {
			out = append(out, el)
		}
	}

	noInline := p.NoInline
	if compiled.Editing != nil {
		if ci, ok := compiled.Editing.Components[p.Prop]; ok && ci.NoInline {
			noInline = true
		}
	}
	if meta.Vars.IsEditing && len(children) == 0 && !noInline &&
		p.Type != schema.TypeComponentCollectionLocalised && meta.Vars.Definitions.HasAccepted(p.Accepts) {
		out = append(out, insertPlaceholder(joinPath(path, p.Prop), mainType(p.Accepts)))
	}
	return out
}

// bindActions wires every action prop. An absent action gets a no-op
// handler and an identity wrapper.
func (b *Builder) bindActions(compiled *model.CompiledComponentConfig, def model.DefinitionInfo, loc cerrors.ConfigLocation, meta *model.Metadata) (map[string]Handler, map[string]wrapper) {
	handlers := make(map[string]Handler)
	wrappers := make(map[string]wrapper)

	for _, p := range def.Schema {
		if p.Kind != model.KindAction {
			continue
		}
		var action *model.CompiledComponentConfig
		if list := compiled.Actions[p.Prop]; len(list) > 0 {
			action = list[0]
		}
		if action == nil || action.IsMissing() {
			handlers[p.Prop] = noopHandler
			wrappers[p.Prop] = identity
			continue
		}

		actionDef, _ := meta.Vars.Definitions.Find(model.StripVariant(action.Template))
		params := actionParams(action, actionDef, meta)
		actionLoc := loc
		actionLoc.Prop = p.Prop

		handlers[p.Prop] = b.actionHandler(action.Template, params, actionLoc)
		if hasTag(actionDef.Type, schema.TagActionLink) {
			wrappers[p.Prop] = b.linkWrapper(action.Template, params, actionLoc)
		} else {
			template := action.Template
			wrappers[p.Prop] = func(el *Element) *Element {
				el.Tag = "button"
				el.SetAttr("type", "button")
				el.SetAttr("data-action", template)
				return el
			}
		}
	}
	return handlers, wrappers
}

func (b *Builder) actionHandler(template string, params map[string]any, loc cerrors.ConfigLocation) Handler {
	return func(event Event) {
		fn, ok := b.registry.Action(template)
		if !ok {
			b.report(cerrors.ErrMissingActionImpl, loc, "no action implementation registered for %q", template)
			return
		}
		fn(params, event)
	}
}

func (b *Builder) linkWrapper(template string, params map[string]any, loc cerrors.ConfigLocation) wrapper {
	return func(el *Element) *Element {
		fn, ok := b.registry.Link(template)
		if !ok {
			b.report(cerrors.ErrMissingLinkImpl, loc, "no link implementation registered for %q", template)
			return el
		}
		if wrapped := fn(el, params); wrapped != nil {
			return wrapped
		}
		return el
	}
}

// actionParams resolves an action's props the way components see them.
func actionParams(action *model.CompiledComponentConfig, def model.DefinitionInfo, meta *model.Metadata) map[string]any {
	params := make(map[string]any, len(action.Props))
	for k, v := range action.Props {
		params[k] = v
	}
	for _, p := range def.Schema {
		if p.Kind != model.KindResource {
			continue
		}
		if res := resolveResource(action.ID, p, action.Props[p.Prop], meta); res.OK() {
			params[p.Prop] = res.Value
		} else {
			params[p.Prop] = nil
		}
	}
	return params
}

// buildBoxes turns every styled entry holding a style map into an
// element. Boxes naming an action in "__action" become its trigger.
func (b *Builder) buildBoxes(styled map[string]any, wrappers map[string]wrapper, loc cerrors.ConfigLocation) map[string]*Element {
	boxes := make(map[string]*Element, len(styled))
	for name, v := range styled {
		style, ok := v.(map[string]any)
		if !ok {
			continue
		}
		tag, _ := style[BoxTag].(string)
		if tag == "" {
			tag = "div"
		}
		box := El(tag, map[string]string{"data-box": name})
		if css := CSS(style); css != "" {
			box.SetAttr("style", css)
		}

		if action, ok := style[BoxAction].(string); ok && action != "" {
			if w, ok := wrappers[action]; ok {
				box = w(box)
			} else {
				b.log.Warn("box references an unknown action prop", map[string]interface{}{
					"box":      name,
					"action":   action,
					"configId": loc.ConfigID,
				})
			}
		}
		boxes[name] = box
	}
	return boxes
}

func markEditable(el *Element, id, path string) *Element {
	if el == nil || el.IsText() {
		return el
	}
	el.SetAttr(AttrConfigID, id)
	el.SetAttr(AttrPath, path)
	return el
}

func missingPlaceholder(template, message string) *Element {
	el := El("div", map[string]string{
		"class":            "eb-missing",
		"data-eb-error":    "true",
		"data-eb-template": template,
	}, Text("Missing"))
	if message != "" {
		el.Append(El("small", nil, Text(message)))
	}
	return el
}

func notRenderablePlaceholder(template string, status renderability) *Element {
	el := El("div", map[string]string{
		"class":            "eb-missing",
		"data-eb-template": template,
	}, Text("Fill following fields to render the component: "+strings.Join(status.fieldsRequiredToRender, ", ")))
	if status.loading {
		el.SetAttr("data-eb-loading", "true")
		el.Append(El("p", nil, Text("Loading data...")))
	}
	return el
}

func insertPlaceholder(path, componentType string) *Element {
	return El("div", map[string]string{
		"class":          "eb-placeholder",
		"data-eb-insert": path,
		"data-eb-type":   componentType,
	}, Text("+"))
}

// mainType picks the component type an insertion point offers.
func mainType(accepts []string) string {
	if len(accepts) == 0 {
		return "item"
	}
	return accepts[0]
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func joinPath(base string, parts ...string) string {
	all := strings.Join(parts, ".")
	if base == "" {
		return all
	}
	return base + "." + all
}
