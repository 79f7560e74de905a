// Package richtext implements styled text: the built-in rich text
// components, an editable block/line/leaf model with marks, and the
// conversion between the two.
package richtext

import (
	"fmt"

	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Built-in definition ids.
const (
	RichTextID     = "@easyblocks/rich-text"
	BlockElementID = "@easyblocks/rich-text-block-element"
	LineElementID  = "@easyblocks/rich-text-line-element"
	PartID         = "@easyblocks/rich-text-part"
)

// Params passed from the rich text root down to its parts.
const (
	ParamMainFont  = "mainFont"
	ParamMainColor = "mainColor"
	ParamBlockType = "blockType"
)

var roleOptions = []schema.Option{
	{Value: "div", Label: "Paragraph"},
	{Value: "h1", Label: "Heading 1"},
	{Value: "h2", Label: "Heading 2"},
	{Value: "h3", Label: "Heading 3"},
	{Value: "h4", Label: "Heading 4"},
	{Value: "h5", Label: "Heading 5"},
	{Value: "h6", Label: "Heading 6"},
}

// Definitions returns the rich text definitions.
func Definitions() []*schema.ComponentDefinition {
	return []*schema.ComponentDefinition{
		{
			ID:    RichTextID,
			Label: "Text",
			Type:  []string{schema.TagItem},
			Schema: []schema.SchemaProp{
				{
					Prop:     "elements",
					Type:     schema.TypeComponentCollectionLocalised,
					Accepts:  []string{BlockElementID},
					Hidden:   true,
					NoInline: true,
				},
				{
					Prop:         "accessibilityRole",
					Type:         schema.TypeSelect,
					Label:        "Role",
					Group:        "Accessibility and SEO",
					Options:      roleOptions,
					DefaultValue: "div",
				},
				{
					Prop:         "align",
					Type:         schema.TypeSelect,
					Label:        "Align",
					Group:        "Text",
					Responsive:   true,
					Options:      []schema.Option{{Value: "left"}, {Value: "center"}, {Value: "right"}},
					DefaultValue: "left",
				},
				{
					Prop:         "isListStyleAuto",
					Type:         schema.TypeBoolean,
					Label:        "Auto list styles",
					Group:        "Text",
					DefaultValue: true,
				},
				{
					Prop:        "mainFont",
					Type:        schema.TypeFont,
					Label:       "Main font",
					Group:       "Text",
					Responsive:  true,
					VisibleFunc: listStyleManual,
				},
				{
					Prop:        "mainColor",
					Type:        schema.TypeColor,
					Label:       "Main color",
					Group:       "Text",
					Responsive:  true,
					VisibleFunc: listStyleManual,
				},
			},
			Styles:  richTextStyles,
			Editing: richTextEditing,
		},
		{
			ID: BlockElementID,
			Schema: []schema.SchemaProp{
				{
					Prop:  "type",
					Type:  schema.TypeSelect,
					Label: "List style",
					Group: "Text",
					Options: []schema.Option{
						{Value: BlockParagraph, Label: "None"},
						{Value: BlockBulletedList, Label: "Bulleted"},
						{Value: BlockNumberedList, Label: "Numbered"},
					},
					DefaultValue: BlockParagraph,
				},
				{
					Prop:     "elements",
					Type:     schema.TypeComponentCollection,
					Accepts:  []string{LineElementID},
					NoInline: true,
				},
			},
			Styles: blockStyles,
		},
		{
			ID: LineElementID,
			Schema: []schema.SchemaProp{
				{
					Prop:     "elements",
					Type:     schema.TypeComponentCollection,
					Accepts:  []string{PartID},
					NoInline: true,
				},
			},
			Styles: lineStyles,
		},
		{
			ID: PartID,
			Schema: []schema.SchemaProp{
				{Prop: "value", Type: schema.TypeString, Hidden: true},
				{Prop: MarkFont, Type: schema.TypeFont, Label: "Font", Group: "Text", Responsive: true},
				{Prop: MarkColor, Type: schema.TypeColor, Label: "Color", Group: "Text", Responsive: true},
				{
					Prop:    MarkAction,
					Type:    schema.TypeComponent,
					Label:   "Action",
					Group:   "Action",
					Accepts: []string{schema.TagAction, schema.TagActionLink},
				},
				{
					Prop:    MarkActionTextModifier,
					Type:    schema.TypeComponent,
					Label:   "Link styles",
					Group:   "Action",
					Accepts: []string{schema.TagActionTextModifier},
				},
				{
					Prop:    MarkTextModifier,
					Type:    schema.TypeComponent,
					Label:   "Text modifier",
					Group:   "Text",
					Accepts: []string{schema.TagTextModifier},
				},
			},
			Styles: partStyles,
		},
	}
}

// Register adds the rich text definitions to reg.
func Register(reg *schema.Registry) error {
	for _, def := range Definitions() {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.ID, err)
		}
	}
	return nil
}

func listStyleManual(values, _ map[string]any) bool {
	auto, ok := values["isListStyleAuto"].(bool)
	return ok && !auto
}

func richTextStyles(in schema.StylesInput) (schema.StylesResult, error) {
	role, _ := in.Values["accessibilityRole"].(string)
	if role == "" {
		role = "div"
	}
	root := map[string]any{"__as": role, "margin": 0}
	if align, ok := in.Values["align"].(string); ok && align != "" {
		root["textAlign"] = align
	}

	return schema.StylesResult{
		Styled: map[string]any{"Root": root},
		Components: map[string]schema.ComponentOverride{
			"elements": {Params: map[string]any{
				ParamMainFont:  in.Values["mainFont"],
				ParamMainColor: in.Values["mainColor"],
			}},
		},
	}, nil
}

// richTextEditing keeps the text elements out of the component tree; they
// are edited inline.
func richTextEditing(in schema.EditingInput) schema.EditingResult {
	return schema.EditingResult{
		Components: map[string]model.ComponentEditingInfo{
			"elements": {Selectable: false, NoInline: true},
		},
	}
}

func inherit(params map[string]any, extra map[string]any) map[string]any {
	out := map[string]any{
		ParamMainFont:  params[ParamMainFont],
		ParamMainColor: params[ParamMainColor],
		ParamBlockType: params[ParamBlockType],
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func blockStyles(in schema.StylesInput) (schema.StylesResult, error) {
	typ, _ := in.Values["type"].(string)
	root := map[string]any{"__as": "div", "margin": 0}
	switch typ {
	case BlockBulletedList:
		root["__as"] = "ul"
		root["paddingLeft"] = "1.5em"
		root["listStyleType"] = "disc"
	case BlockNumberedList:
		root["__as"] = "ol"
		root["paddingLeft"] = "1.5em"
		root["listStyleType"] = "decimal"
	}

	return schema.StylesResult{
		Styled: map[string]any{"Root": root},
		Components: map[string]schema.ComponentOverride{
			"elements": {Params: inherit(in.Params, map[string]any{ParamBlockType: typ})},
		},
	}, nil
}

func lineStyles(in schema.StylesInput) (schema.StylesResult, error) {
	tag := "div"
	if typ, _ := in.Params[ParamBlockType].(string); typ == BlockBulletedList || typ == BlockNumberedList {
		tag = "li"
	}
	return schema.StylesResult{
		Styled: map[string]any{"Root": map[string]any{"__as": tag}},
		Components: map[string]schema.ComponentOverride{
			"elements": {Params: inherit(in.Params, nil)},
		},
	}, nil
}

func partStyles(in schema.StylesInput) (schema.StylesResult, error) {
	root := map[string]any{
		"__as":       "span",
		"__action":   MarkAction,
		"whiteSpace": "pre-wrap",
	}

	color := in.Values[MarkColor]
	if color == nil {
		color = in.Params[ParamMainColor]
	}
	if color != nil {
		root["color"] = color
	}

	font := in.Values[MarkFont]
	if font == nil {
		font = in.Params[ParamMainFont]
	}
	switch f := font.(type) {
	case map[string]any:
		for k, v := range f {
			root[k] = v
		}
	case string:
		root["fontFamily"] = f
	}

	return schema.StylesResult{Styled: map[string]any{"Root": root}}, nil
}
