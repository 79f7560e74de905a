package editor

import (
	"errors"
	"fmt"

	"github.com/easyblocks/easyblocks/internal/richtext"
)

// Command types.
const (
	CmdSetValue     = "set-value"
	CmdInsertItem   = "insert-item"
	CmdRemoveItem   = "remove-item"
	CmdMoveItem     = "move-item"
	CmdSetFocus     = "set-focus"
	CmdSetLocale    = "set-locale"
	CmdSetDevice    = "set-device"
	CmdRichTextMark = "rich-text-mark"
)

// ErrInvalidCommand wraps every rejected command.
var ErrInvalidCommand = errors.New("invalid command")

// Command is one edit of a session. Paths address nodes the way compiled
// editing info does: "" is the root, "items.0" the first child of the
// root's items slot and "elements.en.0" the first child of a localised
// slot.
type Command struct {
	Type string `json:"type"`

	// Path of the node the command works on. For insert-item it is the
	// parent node.
	Path string `json:"path,omitempty"`

	// Prop is the changed prop (set-value) or the slot (insert-item).
	Prop string `json:"prop,omitempty"`

	// Value is the new prop value of set-value.
	Value any `json:"value,omitempty"`

	// Config is the node inserted by insert-item.
	Config map[string]any `json:"config,omitempty"`

	// Index is the insert position or the move target. -1 appends.
	Index int `json:"index"`

	Locale string   `json:"locale,omitempty"`
	Device string   `json:"device,omitempty"`
	Fields []string `json:"fields,omitempty"`

	// Mark, Values and Selection drive rich-text-mark.
	Mark      string          `json:"mark,omitempty"`
	Values    []any           `json:"values,omitempty"`
	Selection *richtext.Range `json:"selection,omitempty"`
}

func invalid(cmd Command, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidCommand, cmd.Type, fmt.Sprintf(format, args...))
}

// Validate checks that the command carries what its type needs.
func (c Command) Validate() error {
	switch c.Type {
	case CmdSetValue:
		if c.Prop == "" {
			return invalid(c, "prop is required")
		}
	case CmdInsertItem:
		if c.Prop == "" {
			return invalid(c, "slot prop is required")
		}
		if c.Config == nil {
			return invalid(c, "config is required")
		}
	case CmdRemoveItem, CmdMoveItem:
		if c.Path == "" {
			return invalid(c, "the root node cannot be moved or removed")
		}
	case CmdSetFocus:
	case CmdSetLocale:
		if c.Locale == "" {
			return invalid(c, "locale is required")
		}
	case CmdSetDevice:
		if c.Device == "" {
			return invalid(c, "device is required")
		}
	case CmdRichTextMark:
		if !richtext.IsMark(c.Mark) {
			return invalid(c, "unknown mark %q", c.Mark)
		}
		if c.Selection == nil {
			return invalid(c, "selection is required")
		}
		if len(c.Values) == 0 {
			return invalid(c, "values are required")
		}
	default:
		return fmt.Errorf("%w: unknown command type %q", ErrInvalidCommand, c.Type)
	}
	return nil
}
