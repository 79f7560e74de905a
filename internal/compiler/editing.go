package compiler

import (
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// editingInfo builds the default editor payload from the schema and lets
// the definition's editing function adjust it.
func (p *pass) editingInfo(def *schema.ComponentDefinition, path string, values map[string]any, params deviceParams, overrides map[string]schema.ComponentOverride) *model.EditingInfo {
	current := params[p.device.ID]

	info := model.EditingInfo{
		Fields:     make([]model.EditingField, 0, len(def.Schema)),
		Components: make(map[string]model.ComponentEditingInfo),
		WidthInfo: &model.WidthInfo{
			Width: make(map[string]any, len(params)),
			Auto:  make(map[string]any, len(params)),
		},
	}
	for deviceID, pp := range params {
		info.WidthInfo.Width[deviceID] = pp[ParamWidth]
		info.WidthInfo.Auto[deviceID] = pp[ParamWidthAuto]
	}

	for _, sp := range def.Schema {
		if sp.BuildOnly {
			continue
		}
		info.Fields = append(info.Fields, model.EditingField{
			Type:    sp.Type,
			Path:    joinPath(path, sp.Prop),
			Label:   sp.DisplayLabel(),
			Group:   sp.Group,
			Visible: sp.IsVisible(values, current),
		})

		if p.registry().Kind(sp) != model.KindSlot {
			continue
		}
		ov := overrides[sp.Prop]
		info.Components[sp.Prop] = model.ComponentEditingInfo{
			Selectable: true,
			Direction:  ov.Direction,
			NoInline:   sp.NoInline || ov.NoInline,
		}
	}

	if def.Editing == nil {
		return &info
	}

	res := def.Editing(schema.EditingInput{
		Values:      values,
		Params:      current,
		Device:      p.device,
		EditingInfo: info,
	})
	if res.Fields != nil {
		info.Fields = res.Fields
	}
	for slot, ci := range res.Components {
		info.Components[slot] = ci
	}
	if res.Direction != "" {
		info.Direction = res.Direction
	}
	return &info
}
