package editor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/easyblocks/easyblocks/internal/model"
)

// slotRef addresses the children of one slot. locale is set for localised
// slots.
type slotRef struct {
	parent *model.ComponentConfig
	prop   string
	locale string
}

func (s slotRef) children() []*model.ComponentConfig {
	if s.locale != "" {
		return model.LocalisedChildren(s.parent.Props[s.prop], s.locale)
	}
	return model.Children(s.parent.Props[s.prop])
}

func (s slotRef) set(children []*model.ComponentConfig) {
	if s.locale == "" {
		s.parent.Props[s.prop] = children
		return
	}
	byLocale, ok := s.parent.Props[s.prop].(map[string]any)
	if !ok {
		byLocale = map[string]any{}
		s.parent.Props[s.prop] = byLocale
	}
	byLocale[s.locale] = children
}

// childPath returns the path of the child at index i.
func (s slotRef) childPath(parentPath string, i int) string {
	parts := []string{s.prop}
	if s.locale != "" {
		parts = append(parts, s.locale)
	}
	parts = append(parts, strconv.Itoa(i))
	if parentPath != "" {
		parts = append([]string{parentPath}, parts...)
	}
	return strings.Join(parts, ".")
}

// nodeAt returns the node at path.
func nodeAt(root *model.ComponentConfig, path string) (*model.ComponentConfig, error) {
	if path == "" {
		return root, nil
	}
	var found *model.ComponentConfig
	root.Walk(func(node *model.ComponentConfig, p string) bool {
		if found != nil {
			return false
		}
		if p == path {
			found = node
			return false
		}
		return path == p || strings.HasPrefix(path, p+".") || p == ""
	})
	if found == nil {
		return nil, fmt.Errorf("no node at %q", path)
	}
	return found, nil
}

// locate returns the slot holding the node at path, the parent's path and
// the node's index.
func locate(root *model.ComponentConfig, path string) (slotRef, string, int, error) {
	segs := strings.Split(path, ".")
	n := len(segs)
	if n < 2 {
		return slotRef{}, "", 0, fmt.Errorf("%q is not a child path", path)
	}
	index, err := strconv.Atoi(segs[n-1])
	if err != nil {
		return slotRef{}, "", 0, fmt.Errorf("%q does not end with an index", path)
	}

	parentPath := strings.Join(segs[:n-2], ".")
	if parent, err := nodeAt(root, parentPath); err == nil {
		if _, ok := parent.Props[segs[n-2]].([]*model.ComponentConfig); ok {
			ref := slotRef{parent: parent, prop: segs[n-2]}
			if index < 0 || index >= len(ref.children()) {
				return slotRef{}, "", 0, fmt.Errorf("no node at %q", path)
			}
			return ref, parentPath, index, nil
		}
	}

	if n >= 3 {
		parentPath = strings.Join(segs[:n-3], ".")
		if parent, err := nodeAt(root, parentPath); err == nil {
			if _, ok := parent.Props[segs[n-3]].(map[string]any); ok {
				ref := slotRef{parent: parent, prop: segs[n-3], locale: segs[n-2]}
				if index >= 0 && index < len(ref.children()) {
					return ref, parentPath, index, nil
				}
			}
		}
	}
	return slotRef{}, "", 0, fmt.Errorf("no node at %q", path)
}

// assignIDs gives every node of the subtree, and every local text it holds,
// a fresh id.
func assignIDs(cfg *model.ComponentConfig, newID func() string) {
	cfg.Walk(func(node *model.ComponentConfig, _ string) bool {
		node.ID = newID()
		for _, v := range node.Props {
			renameLocalTexts(v, newID)
		}
		return true
	})
}

func renameLocalTexts(v any, newID func() string) {
	if model.IsLocalText(v) {
		v.(map[string]any)["id"] = model.LocalTextPrefix + newID()
		return
	}
	if m, ok := v.(map[string]any); ok {
		for _, item := range m {
			renameLocalTexts(item, newID)
		}
	}
}

func insertAt(children []*model.ComponentConfig, i int, child *model.ComponentConfig) ([]*model.ComponentConfig, int) {
	if i < 0 || i > len(children) {
		i = len(children)
	}
	out := make([]*model.ComponentConfig, 0, len(children)+1)
	out = append(out, children[:i]...)
	out = append(out, child)
	out = append(out, children[i:]...)
	return out, i
}

func removeAt(children []*model.ComponentConfig, i int) ([]*model.ComponentConfig, *model.ComponentConfig) {
	out := make([]*model.ComponentConfig, 0, len(children)-1)
	out = append(out, children[:i]...)
	out = append(out, children[i+1:]...)
	return out, children[i]
}

// underPath reports whether field is path or lies inside it.
func underPath(field, path string) bool {
	return field == path || strings.HasPrefix(field, path+".")
}
