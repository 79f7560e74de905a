package richtext

import (
	"fmt"

	"github.com/easyblocks/easyblocks/internal/model"
)

// FromConfig reads the block elements of one locale into an editor.
func FromConfig(elements []*model.ComponentConfig) (*Editor, error) {
	blocks := make([]*Block, 0, len(elements))
	for bi, bc := range elements {
		if model.StripVariant(bc.Template) != BlockElementID {
			return nil, fmt.Errorf("elements.%d: expected %s, got %q", bi, BlockElementID, bc.Template)
		}
		typ, _ := bc.Props["type"].(string)
		block := &Block{ID: bc.ID, Type: typ}

		for li, lc := range model.Children(bc.Props["elements"]) {
			if model.StripVariant(lc.Template) != LineElementID {
				return nil, fmt.Errorf("elements.%d.elements.%d: expected %s, got %q", bi, li, LineElementID, lc.Template)
			}
			line := &Line{ID: lc.ID}

			for pi, pc := range model.Children(lc.Props["elements"]) {
				if model.StripVariant(pc.Template) != PartID {
					return nil, fmt.Errorf("elements.%d.elements.%d.elements.%d: expected %s, got %q", bi, li, pi, PartID, pc.Template)
				}
				line.Leaves = append(line.Leaves, partToLeaf(pc))
			}
			block.Lines = append(block.Lines, line)
		}
		blocks = append(blocks, block)
	}
	return New(blocks), nil
}

func partToLeaf(pc *model.ComponentConfig) *Leaf {
	text, _ := pc.Props["value"].(string)
	leaf := &Leaf{ID: pc.ID, Text: text, Marks: Marks{}}
	for _, k := range markKeys {
		if v, ok := pc.Props[k]; ok && !isEmptyMark(v) {
			leaf.Marks[k] = model.CloneValue(v)
		}
	}
	return leaf
}

// ToConfig converts editor blocks back into block element configs.
func ToConfig(blocks []*Block) []*model.ComponentConfig {
	out := make([]*model.ComponentConfig, 0, len(blocks))
	for _, b := range blocks {
		lines := make([]*model.ComponentConfig, 0, len(b.Lines))
		for _, l := range b.Lines {
			parts := make([]*model.ComponentConfig, 0, len(l.Leaves))
			for _, leaf := range l.Leaves {
				parts = append(parts, leafToPart(leaf))
			}
			lines = append(lines, model.NewConfig(LineElementID, l.ID, map[string]any{"elements": parts}))
		}
		typ := b.Type
		if typ == "" {
			typ = BlockParagraph
		}
		out = append(out, model.NewConfig(BlockElementID, b.ID, map[string]any{
			"type":     typ,
			"elements": lines,
		}))
	}
	return out
}

func leafToPart(leaf *Leaf) *model.ComponentConfig {
	props := map[string]any{
		"value":                leaf.Text,
		MarkAction:             []*model.ComponentConfig{},
		MarkActionTextModifier: []*model.ComponentConfig{},
		MarkTextModifier:       []*model.ComponentConfig{},
	}
	for _, k := range markKeys {
		if v, ok := leaf.Marks[k]; ok && !isEmptyMark(v) {
			props[k] = model.CloneValue(v)
		}
	}
	return model.NewConfig(PartID, leaf.ID, props)
}

// Elements returns the block elements of a rich text config for locale.
func Elements(richText *model.ComponentConfig, locale string) []*model.ComponentConfig {
	return model.LocalisedChildren(richText.Props["elements"], locale)
}

// SetElements replaces the block elements of a rich text config for locale.
func SetElements(richText *model.ComponentConfig, locale string, elements []*model.ComponentConfig) {
	byLocale, ok := richText.Props["elements"].(map[string]any)
	if !ok {
		byLocale = map[string]any{}
		richText.Props["elements"] = byLocale
	}
	byLocale[locale] = elements
}
