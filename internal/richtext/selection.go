package richtext

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// UpdateOptions configures UpdateSelection.
type UpdateOptions struct {
	// Locale of the edited elements, used for focused part paths.
	Locale string
	// DefaultActionTextModifier is added to text that receives an action.
	DefaultActionTextModifier *model.ComponentConfig
}

// Update is the result of a selection edit.
type Update struct {
	Editor       *Editor
	Elements     []*model.ComponentConfig
	FocusedParts []string
}

// UpdateSelection applies a mark to the selection of a copy of ed. With one
// value every selected leaf gets it. With several values each selected leaf
// gets the value at its position in document order.
func UpdateSelection(ed *Editor, key string, opts UpdateOptions, values ...any) (*Update, error) {
	if !IsMark(key) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMark, key)
	}
	if ed.Selection == nil {
		return nil, ErrNoSelection
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("update %s: no values", key)
	}

	e := ed.Clone()
	if len(values) == 1 {
		if err := applyUniform(e, key, values[0], opts); err != nil {
			return nil, err
		}
	} else {
		ranges := e.SelectedRanges()
		if len(ranges) != len(values) {
			return nil, fmt.Errorf("update %s: %d values for %d selected parts", key, len(values), len(ranges))
		}
		var err error
		e.WithoutNormalizing(func() {
			// right to left so splits keep the earlier ranges valid
			for i := len(ranges) - 1; i >= 0 && err == nil; i-- {
				err = e.SetMarkAt(ranges[i], key, values[i])
			}
		})
		if err != nil {
			return nil, err
		}
	}

	return &Update{
		Editor:       e,
		Elements:     ToConfig(e.Blocks),
		FocusedParts: FocusedPartPaths(e, opts.Locale),
	}, nil
}

func applyUniform(e *Editor, key string, value any, opts UpdateOptions) error {
	if (key == MarkAction || key == MarkActionTextModifier) && e.Selection.IsCollapsed() {
		if err := e.ExpandToLeaf(); err != nil {
			return err
		}
	}
	if err := e.AddMark(key, value); err != nil {
		return err
	}
	if key != MarkAction {
		return nil
	}

	if isEmptyMark(value) {
		return e.RemoveMark(MarkActionTextModifier)
	}

	if opts.DefaultActionTextModifier != nil {
		modifier := opts.DefaultActionTextModifier.Clone()
		modifier.ID = uuid.NewString()
		if err := e.AddMark(MarkActionTextModifier, []*model.ComponentConfig{modifier}); err != nil {
			return err
		}
	}

	// a link spanning several parts takes the look of the first one
	selected := e.SelectedPaths()
	if len(selected) < 2 || e.Selection.IsCollapsed() {
		return nil
	}
	first, _ := e.Leaf(selected[0])
	font, color := model.CloneValue(first.Marks[MarkFont]), model.CloneValue(first.Marks[MarkColor])
	sel := *e.Selection
	var err error
	e.WithoutNormalizing(func() {
		if err = e.SetMarkAt(sel, MarkFont, font); err == nil {
			err = e.SetMarkAt(sel, MarkColor, color)
		}
	})
	return err
}

// FocusedPartPaths returns the config paths, relative to the rich text
// component, of the parts the selection touches.
func FocusedPartPaths(e *Editor, locale string) []string {
	selected := e.SelectedPaths()
	out := make([]string, 0, len(selected))
	for _, p := range selected {
		out = append(out, PartPath(locale, p))
	}
	return out
}

// PartPath returns the config path of the part at p.
func PartPath(locale string, p Path) string {
	return fmt.Sprintf("elements.%s.%d.elements.%d.elements.%d", locale, p[0], p[1], p[2])
}

// DefaultActionTextModifier returns a config of the first registered
// action text modifier, nil when there is none.
func DefaultActionTextModifier(reg *schema.Registry) *model.ComponentConfig {
	defs := reg.ByTag(schema.TagActionTextModifier)
	if len(defs) == 0 {
		return nil
	}
	return model.NewConfig(defs[0].ID, uuid.NewString(), map[string]any{})
}
