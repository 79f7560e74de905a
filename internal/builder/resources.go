package builder

import (
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// ResolvedResource is the value a component receives for a resource prop.
type ResolvedResource struct {
	ID     string               `json:"id"`
	Type   string               `json:"type"`
	Status model.ResourceStatus `json:"status"`
	Value  any                  `json:"value,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// OK reports whether the resource resolved to a value.
func (r *ResolvedResource) OK() bool {
	return r != nil && r.Status == model.StatusSuccess
}

// String returns a string value, or "".
func (r *ResolvedResource) String() string {
	if !r.OK() {
		return ""
	}
	s, _ := r.Value.(string)
	return s
}

// resourceID returns the id of the resource a compiled prop value reads.
func resourceID(configID, prop string, ref map[string]any) string {
	if id, ok := ref[model.ResourceIDKey].(string); ok && id != "" {
		return id
	}
	return model.ResourceKey(configID, prop, "")
}

// resolveResource maps a compiled resource prop onto its resource state.
// nil means there is nothing to show: no reference picked, or a compound
// field that does not exist.
func resolveResource(configID string, prop model.PropInfo, value any, meta *model.Metadata) *ResolvedResource {
	if model.IsLocalText(value) {
		text, _ := model.LocalisedText(value, meta.Vars.Locale)
		id, _ := value.(map[string]any)["id"].(string)
		return &ResolvedResource{ID: id, Type: schema.TypeText, Status: model.StatusSuccess, Value: text}
	}

	ref, ok := model.ParseExternalReference(value)
	if !ok || ref.IsEmpty() {
		return nil
	}

	res, found := meta.Resource(resourceID(configID, prop.Prop, value.(map[string]any)))
	if !found || res.Status == model.StatusLoading || (res.Status == model.StatusSuccess && !res.HasContent()) {
		return &ResolvedResource{ID: ref.ID, Type: prop.Type, Status: model.StatusLoading}
	}
	if res.Status == model.StatusError {
		return &ResolvedResource{ID: ref.ID, Type: prop.Type, Status: model.StatusError, Error: res.Error}
	}

	if res.Type == model.CompoundResourceType {
		key := ref.Key
		if key == "" {
			key = res.Key
		}
		if key == "" {
			return nil
		}
		v, typ, ok := res.Pick(key)
		if !ok || v == nil {
			return nil
		}
		if typ == "" {
			typ = prop.Type
		}
		return &ResolvedResource{ID: ref.ID, Type: typ, Status: model.StatusSuccess, Value: v}
	}

	return &ResolvedResource{ID: ref.ID, Type: prop.Type, Status: model.StatusSuccess, Value: res.Value}
}

type renderability struct {
	renderable bool
	loading    bool
	// labels of the props that block rendering
	fieldsRequiredToRender []string
}

// requiredToRender reports whether an unresolved prop blocks rendering.
// Text never does; image and video are optional by type.
func requiredToRender(p model.PropInfo) bool {
	if p.Kind != model.KindResource || p.Type == schema.TypeText {
		return false
	}
	return p.Required || !p.Optional
}

func checkRenderability(compiled *model.CompiledComponentConfig, def model.DefinitionInfo, meta *model.Metadata) renderability {
	status := renderability{renderable: true}

	for _, p := range def.Schema {
		if !requiredToRender(p) {
			continue
		}

		value := compiled.Props[p.Prop]
		defined := false
		if ref, ok := model.ParseExternalReference(value); ok && !ref.IsEmpty() {
			if ref.IsLocal() {
				defined = true
			} else if res, found := meta.Resource(resourceID(compiled.ID, p.Prop, value.(map[string]any))); found {
				switch {
				case res.Status == model.StatusLoading:
					status.loading = true
				case res.Status == model.StatusSuccess && !res.HasContent():
					status.loading = true
				case res.Status == model.StatusSuccess:
					defined = true
				}
			}
		}

		if !defined {
			status.renderable = false
			status.fieldsRequiredToRender = append(status.fieldsRequiredToRender, p.DisplayLabel())
		}
	}
	return status
}
