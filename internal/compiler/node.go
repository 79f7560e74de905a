package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/resource"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Params every node receives from its parent, per device.
const (
	ParamWidth     = "$width"
	ParamWidthAuto = "$widthAuto"
)

// deviceParams holds a node's params keyed by device id.
type deviceParams map[string]map[string]any

// pass holds the state of a single Compile call.
type pass struct {
	compiler *Compiler
	params   ContextParams
	device   responsive.Device
	recovery *cerrors.ErrorRecovery
	requests []resource.Request
}

func (p *pass) devices() responsive.Devices {
	return p.compiler.devices
}

func (p *pass) registry() *schema.Registry {
	return p.compiler.registry
}

// rootParams gives the root node the full device width.
func (p *pass) rootParams() deviceParams {
	out := make(deviceParams, len(p.devices()))
	for _, dev := range p.devices() {
		out[dev.ID] = map[string]any{
			ParamWidth:     dev.W,
			ParamWidthAuto: false,
		}
	}
	return out
}

func (p *pass) report(phase, code string, severity cerrors.Severity, loc cerrors.ConfigLocation, format string, args ...any) cerrors.CompilerError {
	diag := cerrors.NewCompilerError(phase, code, fmt.Sprintf(format, args...), loc, severity)
	p.recovery.Recover(diag)
	return diag
}

// failed degrades a node that cannot be compiled: a visible placeholder
// while editing, nothing otherwise.
func (p *pass) failed(node *model.ComponentConfig, message string) *model.CompiledComponentConfig {
	if !p.params.IsEditing {
		return nil
	}
	missing := model.NewCompiled(model.MissingComponentID, node.ID)
	missing.Props["template"] = node.Template
	missing.Error = message
	return missing
}

// compileNode compiles node and its subtree. node belongs to the pass's
// private copy of the tree; auto values are written back into it.
func (p *pass) compileNode(node *model.ComponentConfig, path string, params deviceParams) *model.CompiledComponentConfig {
	loc := cerrors.ConfigLocation{ConfigID: node.ID, Path: path, Template: node.Template}

	def, ok := p.registry().Lookup(node.Template)
	if !ok {
		diag := cerrors.NewCompilerError(cerrors.PhaseSchema, cerrors.ErrUnknownComponent,
			fmt.Sprintf("component %q is not registered", node.Template), loc, cerrors.Error)
		if candidates := p.registry().Suggest(node.Template, 3); len(candidates) > 0 {
			diag = diag.WithSuggestion(cerrors.FixSuggestion{
				Description: "use a registered component",
				Candidates:  candidates,
			})
		}
		p.recovery.Recover(diag)
		return p.failed(node, diag.Message)
	}

	if def.Auto != nil {
		p.applyAuto(node, def, params)
	}

	values := make(map[string]map[string]any, len(p.devices()))
	for _, dev := range p.devices() {
		v, err := p.resolveValues(node, def, dev, loc, dev.ID == p.device.ID)
		if err != nil {
			return p.failed(node, err.Error())
		}
		values[dev.ID] = v
	}

	styled, overrides, err := p.runStyles(def, values, params)
	if err != nil {
		diag := p.report(cerrors.PhaseCompile, cerrors.ErrStylesFailed, cerrors.Error, loc, "styles of %q failed: %v", def.ID, err)
		return p.failed(node, diag.Message)
	}

	current := p.device.ID
	compiled := model.NewCompiled(node.Template, node.ID)
	for k, v := range values[current] {
		compiled.Props[k] = v
	}
	if def.Styles != nil {
		compiled.Styled = styled[current]
		compiled.StyledByDevice = styled
	}

	p.compileSlots(compiled, node, def, path, params, overrides)

	if p.params.IsEditing {
		compiled.Editing = p.editingInfo(def, path, values[current], params, overrides[current])
	}

	p.requests = append(p.requests, resource.NodeRequests(node, def, p.registry(), p.devices())...)
	return compiled
}

func (p *pass) applyAuto(node *model.ComponentConfig, def *schema.ComponentDefinition, params deviceParams) {
	input := make(map[string]any, len(node.Props))
	for k, v := range node.Props {
		input[k] = model.CloneValue(v)
	}
	out := def.Auto(schema.AutoInput{
		Values:  input,
		Params:  params[p.device.ID],
		Devices: p.devices(),
	})
	for k, v := range out {
		if _, ok := def.Prop(k); ok {
			node.Props[k] = v
		}
	}
}

// resolveValues resolves every non-slot prop of node for dev. Resource
// props keep their reference. report limits diagnostics to the device the
// pass compiles for so each problem is recorded once.
func (p *pass) resolveValues(node *model.ComponentConfig, def *schema.ComponentDefinition, dev responsive.Device, loc cerrors.ConfigLocation, report bool) (map[string]any, error) {
	values := make(map[string]any, len(def.Schema))
	for _, sp := range def.Schema {
		propLoc := loc
		propLoc.Prop = sp.Prop

		kind := p.registry().Kind(sp)
		switch kind {
		case model.KindSlot, model.KindAction, model.KindTextModifier:
			continue
		case model.KindResource:
			values[sp.Prop] = p.resourceValue(node, sp, dev)
			continue
		}

		raw, ok := node.Props[sp.Prop]
		if !ok || raw == nil {
			raw = sp.DefaultValue
		}

		v, err := p.compiler.resolver.Resolve(raw, dev.ID)
		if err != nil {
			var missing *responsive.MissingValueError
			if errors.As(err, &missing) {
				diag := p.report(cerrors.PhaseResponsive, cerrors.ErrMissingResponsiveValue, cerrors.Error, propLoc,
					"prop %q has no value for device %q", sp.Prop, dev.ID)
				return nil, errors.New(diag.Message)
			}
			return nil, err
		}

		if kind == model.KindToken {
			group := sp.Type
			if t, ok := p.registry().Type(sp.Type); ok && t.TokenID != "" {
				group = t.TokenID
			}
			var known bool
			v, known = resolveToken(p.compiler.global.Tokens, group, v, dev.ID, p.devices())
			if !known && report {
				p.report(cerrors.PhaseCompile, cerrors.ErrUnknownToken, cerrors.Warning, propLoc,
					"token %v is not defined in %q, using its stored value", refName(raw, dev.ID, p.devices()), group)
			}
		}

		if len(sp.Options) > 0 && v != nil && !hasOption(sp.Options, v) {
			if report {
				p.report(cerrors.PhaseCompile, cerrors.ErrInvalidPropValue, cerrors.Warning, propLoc,
					"value %v is not an option of %q", v, sp.Prop)
			}
			v = responsive.ForceGet(sp.DefaultValue, dev.ID, p.devices())
		}

		values[sp.Prop] = v
	}
	return values, nil
}

func refName(raw any, deviceID string, devices responsive.Devices) string {
	ref, _ := model.ParseRefValue(responsive.ForceGet(raw, deviceID, devices))
	return strconv.Quote(ref.Ref)
}

func hasOption(options []schema.Option, v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	for _, o := range options {
		if o.Value == s {
			return true
		}
	}
	return false
}

// resourceValue picks the reference a resource prop holds for dev. A
// reference taken from a responsive value is tagged with the id of the per
// device resource it came from.
func (p *pass) resourceValue(node *model.ComponentConfig, sp schema.SchemaProp, dev responsive.Device) any {
	raw := node.Props[sp.Prop]
	if raw == nil || !responsive.IsTrulyResponsive(raw) {
		return raw
	}

	v, err := p.compiler.resolver.Resolve(raw, dev.ID)
	if err != nil {
		return nil
	}
	ref, ok := v.(map[string]any)
	if !ok {
		return v
	}
	source, ok := responsive.FindDeviceWithDefinedValue(raw, dev.ID, p.devices())
	if !ok {
		return v
	}

	out := make(map[string]any, len(ref)+1)
	for k, item := range ref {
		out[k] = item
	}
	out[model.ResourceIDKey] = model.ResourceKey(node.ID, sp.Prop, source.ID)
	return out
}

// runStyles calls the styles function once per device and applies the
// returned prop overrides to that device's values.
func (p *pass) runStyles(def *schema.ComponentDefinition, values map[string]map[string]any, params deviceParams) (map[string]map[string]any, map[string]map[string]schema.ComponentOverride, error) {
	styled := make(map[string]map[string]any, len(p.devices()))
	overrides := make(map[string]map[string]schema.ComponentOverride, len(p.devices()))
	if def.Styles == nil {
		return styled, overrides, nil
	}

	for _, dev := range p.devices() {
		res, err := def.Styles(schema.StylesInput{
			Values:    values[dev.ID],
			Params:    params[dev.ID],
			Device:    dev,
			IsEditing: p.params.IsEditing,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("device %s: %w", dev.ID, err)
		}
		for k, v := range res.Props {
			values[dev.ID][k] = v
		}
		if res.Styled == nil {
			res.Styled = map[string]any{}
		}
		styled[dev.ID] = res.Styled
		overrides[dev.ID] = res.Components
	}
	return styled, overrides, nil
}

func (p *pass) compileSlots(compiled *model.CompiledComponentConfig, node *model.ComponentConfig, def *schema.ComponentDefinition, path string, params deviceParams, overrides map[string]map[string]schema.ComponentOverride) {
	for _, sp := range def.Schema {
		kind := p.registry().Kind(sp)
		if kind != model.KindSlot && kind != model.KindAction && kind != model.KindTextModifier {
			continue
		}

		slotPath := joinPath(path, sp.Prop)
		children := model.Children(node.Props[sp.Prop])
		if sp.Type == schema.TypeComponentCollectionLocalised {
			children = model.LocalisedChildren(node.Props[sp.Prop], p.params.Locale)
			slotPath = joinPath(slotPath, p.params.Locale)
		}

		if len(children) == 0 && (sp.Required || sp.Type == schema.TypeComponentFixed) {
			p.report(cerrors.PhaseCompile, cerrors.ErrMissingRequiredChild, cerrors.Warning,
				cerrors.ConfigLocation{ConfigID: node.ID, Path: path, Template: node.Template, Prop: sp.Prop},
				"slot %q requires a component", sp.Prop)
		}

		out := make([]*model.CompiledComponentConfig, 0, len(children))
		for i, child := range children {
			childPath := joinPath(slotPath, strconv.Itoa(i))
			if childDef, ok := p.registry().Lookup(child.Template); ok && !schema.Accepts(sp, childDef) {
				p.report(cerrors.PhaseCompile, cerrors.ErrSlotTypeMismatch, cerrors.Warning,
					cerrors.ConfigLocation{ConfigID: child.ID, Path: childPath, Template: child.Template, Prop: sp.Prop},
					"slot %q accepts %s, got %q", sp.Prop, strings.Join(sp.Accepts, ", "), childDef.ID)
			}

			if cc := p.compileNode(child, childPath, childParams(params, overrides, sp.Prop, i)); cc != nil {
				out = append(out, cc)
			}
		}

		switch kind {
		case model.KindAction:
			compiled.Actions[sp.Prop] = out
		case model.KindTextModifier:
			compiled.TextModifiers[sp.Prop] = out
		default:
			compiled.Components[sp.Prop] = out
		}
	}
}

// childParams inherits the parent's width and layers the parent's styles
// overrides for the slot and item on top.
func childParams(parent deviceParams, overrides map[string]map[string]schema.ComponentOverride, slot string, index int) deviceParams {
	out := make(deviceParams, len(parent))
	for deviceID, pp := range parent {
		params := map[string]any{
			ParamWidth:     pp[ParamWidth],
			ParamWidthAuto: pp[ParamWidthAuto],
		}
		if ov, ok := overrides[deviceID][slot]; ok {
			for k, v := range ov.Params {
				params[k] = v
			}
			if index < len(ov.ItemProps) {
				for k, v := range ov.ItemProps[index] {
					params[k] = v
				}
			}
		}
		out[deviceID] = params
	}
	return out
}

func joinPath(base string, parts ...string) string {
	all := strings.Join(parts, ".")
	if base == "" {
		return all
	}
	return base + "." + all
}
