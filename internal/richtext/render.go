package richtext

import (
	"github.com/easyblocks/easyblocks/internal/builder"
	"github.com/easyblocks/easyblocks/internal/model"
)

// RegisterImplementations adds the rich text component implementations.
func RegisterImplementations(rt *builder.Registry) {
	rt.RegisterComponent(RichTextID, renderRichText)
	rt.RegisterComponent(BlockElementID, renderBlock)
	rt.RegisterComponent(LineElementID, renderLine)
	rt.RegisterComponent(PartID, renderPart)
}

func renderRichText(p builder.Props) *builder.Element {
	return p.Box("Root").Append(p.Children("elements")...)
}

func renderBlock(p builder.Props) *builder.Element {
	return p.Box("Root").Append(p.Children("elements")...)
}

func renderLine(p builder.Props) *builder.Element {
	root := p.Box("Root").Append(p.Children("elements")...)
	if root.TextContent() == "" {
		root.Append(builder.El("br", nil))
	}
	return root
}

func renderPart(p builder.Props) *builder.Element {
	root := p.Box("Root")
	// the action wrapper retags parts that carry an action
	if root.Tag != "span" {
		applyModifier(root, p.TextModifiers[MarkActionTextModifier])
	}
	applyModifier(root, p.TextModifiers[MarkTextModifier])
	return root.Append(builder.Text(p.String("value")))
}

// applyModifier adds the root styles of a compiled text modifier.
func applyModifier(el *builder.Element, modifier *model.CompiledComponentConfig) {
	if modifier == nil {
		return
	}
	style, ok := modifier.Styled["Root"].(map[string]any)
	if !ok {
		return
	}
	css := builder.CSS(style)
	if css == "" {
		return
	}
	if existing := el.Attr("style"); existing != "" {
		css = existing + "; " + css
	}
	el.SetAttr("style", css)
}
