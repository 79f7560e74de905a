// Package components provides the built-in component library and loads
// project files that add devices, tokens, types and declarative
// components on top of it.
package components

import (
	"strings"

	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Built-in definition ids.
const (
	SectionWrapperID = "SectionWrapper"
	StackID          = "Stack"
	ImageID          = "Image"
	TextID           = "Text"
	ButtonID         = "Button"
	ButtonsID        = "Buttons"
	LinkID           = "Link"
	AlertID          = "Alert"
	LinkStylesID     = "LinkStyles"
)

// Custom prop types used by the built-ins.
const (
	TypeAspectRatio    = "aspectRatio"
	TypeContainerWidth = "containerWidth"
)

// Types returns the prop types the built-ins need besides the core ones.
func Types() []schema.TypeDefinition {
	return []schema.TypeDefinition{
		{ID: TypeAspectRatio, Kind: schema.KindToken, TokenID: "aspectRatios", Responsive: true},
		{ID: TypeContainerWidth, Kind: schema.KindToken, TokenID: "containerWidths", Responsive: true},
	}
}

var actionSlot = schema.SchemaProp{
	Prop:    "action",
	Type:    schema.TypeComponent,
	Label:   "Action",
	Group:   "Action",
	Accepts: []string{schema.TagAction, schema.TagActionLink},
}

// Definitions returns the built-in component definitions.
func Definitions() []*schema.ComponentDefinition {
	return []*schema.ComponentDefinition{
		{
			ID:    SectionWrapperID,
			Label: "Section",
			Type:  []string{schema.TagSection},
			Schema: []schema.SchemaProp{
				{Prop: "background", Type: schema.TypeColor, Label: "Background", Group: "Section", Responsive: true},
				{Prop: "containerMargin", Type: schema.TypeSpace, Label: "Left / Right", Group: "Section margins", Responsive: true, DefaultValue: map[string]any{"ref": "16", "value": "16px"}},
				{Prop: "containerMaxWidth", Type: TypeContainerWidth, Label: "Max width", Group: "Section margins", Responsive: true, DefaultValue: map[string]any{"ref": "none", "value": "none"}},
				{Prop: "padding", Type: schema.TypeSpace, Label: "Top / Bottom", Group: "Section margins", Responsive: true, DefaultValue: map[string]any{"ref": "32", "value": "32px"}},
				{
					Prop:  "headerMode",
					Type:  schema.TypeSelect,
					Label: "Variant",
					Group: "Section Header",
					Options: []schema.Option{
						{Value: "none", Label: "No header"},
						{Value: "1-stack", Label: "1 stack"},
					},
					DefaultValue: "none",
				},
				{
					Prop:    "header",
					Type:    schema.TypeComponent,
					Label:   "Header",
					Accepts: []string{StackID},
					VisibleFunc: func(values, _ map[string]any) bool {
						return values["headerMode"] != "none"
					},
				},
				{Prop: "component", Type: schema.TypeComponentFixed, Label: "Content", Accepts: []string{schema.TagItem, schema.TagCard}},
			},
			Styles: sectionStyles,
		},
		{
			ID:    StackID,
			Label: "Stack",
			Type:  []string{schema.TagItem},
			Schema: []schema.SchemaProp{
				{Prop: "items", Type: schema.TypeComponentCollection, Label: "Items", Accepts: []string{schema.TagItem, schema.TagButton}},
				{Prop: "gap", Type: schema.TypeSpace, Label: "Gap", Responsive: true, DefaultValue: map[string]any{"ref": "8", "value": "8px"}},
				{
					Prop:         "align",
					Type:         schema.TypeSelect,
					Label:        "Align",
					Responsive:   true,
					Options:      []schema.Option{{Value: "left"}, {Value: "center"}, {Value: "right"}},
					DefaultValue: "left",
				},
			},
			Styles: stackStyles,
		},
		{
			ID:    ImageID,
			Label: "Image",
			Type:  []string{schema.TagItem, schema.TagCard},
			Schema: []schema.SchemaProp{
				{Prop: "image", Type: schema.TypeImage, Label: "Source", Optional: true, Responsive: true},
				{Prop: "aspectRatio", Type: TypeAspectRatio, Label: "Aspect Ratio", Responsive: true, BuildOnly: true, DefaultValue: map[string]any{"ref": "1:1", "value": "1:1"}},
				actionSlot,
			},
			Styles: imageStyles,
			Editing: func(in schema.EditingInput) schema.EditingResult {
				if in.Params["noAction"] != true {
					return schema.EditingResult{}
				}
				fields := make([]model.EditingField, 0, len(in.EditingInfo.Fields))
				for _, f := range in.EditingInfo.Fields {
					if f.Path != "action" && !strings.HasSuffix(f.Path, ".action") {
						fields = append(fields, f)
					}
				}
				return schema.EditingResult{Fields: fields}
			},
		},
		{
			ID:    TextID,
			Label: "Simple text",
			Type:  []string{schema.TagItem},
			Schema: []schema.SchemaProp{
				{Prop: "value", Type: schema.TypeText, Label: "Text"},
				{Prop: "color", Type: schema.TypeColor, Label: "Color", Responsive: true},
				{Prop: "font", Type: schema.TypeFont, Label: "Font", Responsive: true},
			},
			Styles: textStyles,
		},
		{
			ID:    ButtonID,
			Label: "Button",
			Type:  []string{schema.TagButton},
			Schema: []schema.SchemaProp{
				{Prop: "label", Type: schema.TypeText, Label: "Label"},
				{
					Prop:         "variant",
					Type:         schema.TypeSelect,
					Label:        "Variant",
					Options:      []schema.Option{{Value: "solid"}, {Value: "outline"}},
					DefaultValue: "solid",
				},
				{Prop: "color", Type: schema.TypeColor, Label: "Color", DefaultValue: map[string]any{"ref": "black", "value": "#000000"}},
				actionSlot,
			},
			Styles: buttonStyles,
		},
		{
			ID:    ButtonsID,
			Label: "Buttons",
			Type:  []string{schema.TagItem},
			Schema: []schema.SchemaProp{
				{Prop: "buttons", Type: schema.TypeComponentCollection, Label: "Buttons", Accepts: []string{schema.TagButton}},
				{Prop: "gap", Type: schema.TypeSpace, Label: "Gap", Responsive: true, DefaultValue: map[string]any{"ref": "8", "value": "8px"}},
			},
			Styles: buttonsStyles,
		},
		{
			ID:    LinkID,
			Label: "Link",
			Type:  []string{schema.TagAction, schema.TagActionLink},
			Schema: []schema.SchemaProp{
				{Prop: "url", Type: schema.TypeString, Label: "URL"},
				{Prop: "shouldOpenInNewWindow", Type: schema.TypeBoolean, Label: "Open in new window", DefaultValue: false},
			},
		},
		{
			ID:     AlertID,
			Label:  "Alert",
			Type:   []string{schema.TagAction},
			Schema: []schema.SchemaProp{{Prop: "text", Type: schema.TypeText, Label: "Text"}},
		},
		{
			ID:    LinkStylesID,
			Label: "Link styles",
			Type:  []string{schema.TagActionTextModifier},
			Schema: []schema.SchemaProp{
				{Prop: "underline", Type: schema.TypeBoolean, Label: "Underline", DefaultValue: true},
				{Prop: "color", Type: schema.TypeColor, Label: "Color"},
			},
			Styles: linkStylesStyles,
		},
	}
}

// DefaultTokens returns the theme used when a project defines none.
func DefaultTokens() compiler.Tokens {
	return compiler.Tokens{
		"colors": {
			{ID: "black", Label: "Black", Value: "#000000"},
			{ID: "white", Label: "White", Value: "#ffffff"},
		},
		"space": {
			{ID: "0", Value: "0px"},
			{ID: "8", Value: "8px"},
			{ID: "16", Value: "16px"},
			{ID: "32", Value: map[string]any{responsive.Marker: true, "2xl": "32px", "md": "16px"}},
		},
		"fonts": {
			{ID: "body", Label: "Body", Value: map[string]any{"fontFamily": "sans-serif", "fontSize": 16}},
			{ID: "heading", Label: "Heading", Value: map[string]any{"fontFamily": "serif", "fontSize": 32, "fontWeight": 700}},
		},
		"aspectRatios": {
			{ID: "1:1", Value: "1:1"},
			{ID: "16:9", Value: "16:9"},
			{ID: "natural", Value: "natural"},
		},
		"containerWidths": {
			{ID: "none", Value: "none"},
			{ID: "1024", Value: "1024px"},
		},
	}
}
