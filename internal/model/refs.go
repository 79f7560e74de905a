package model

import (
	"fmt"
	"strings"
)

// RefError reports a "$$$refs" problem.
type RefError struct {
	Ref   string
	Chain []string
	Cycle bool
}

func (e *RefError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("ref cycle: %s", strings.Join(append(e.Chain, e.Ref), " -> "))
	}
	return fmt.Sprintf("unknown ref %q", e.Ref)
}

// ResolveRefs returns a copy of root in which every node with a _ref is
// replaced by the named entry of the root's "$$$refs" map. The replacement
// keeps the referencing node's _id and its own props take precedence.
// Refs may point at other refs; cycles are rejected.
func ResolveRefs(root *ComponentConfig) (*ComponentConfig, error) {
	if root == nil {
		return nil, nil
	}
	out := root.Clone()
	refs := out.Refs
	out.Refs = nil

	if err := resolveNode(out, refs, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveNode(node *ComponentConfig, refs map[string]*ComponentConfig, chain []string) error {
	if name := node.Ref; name != "" {
		expanded, err := expandRef(name, refs, chain)
		if err != nil {
			return err
		}
		for k, v := range node.Props {
			expanded.Props[k] = v
		}
		expanded.ID = node.ID
		expanded.Ref = ""
		*node = *expanded
		chain = append(chain, name)
	}

	for _, prop := range node.ChildSlots() {
		switch val := node.Props[prop].(type) {
		case []*ComponentConfig:
			for _, child := range val {
				if err := resolveNode(child, refs, chain); err != nil {
					return err
				}
			}
		case map[string]any:
			for _, slot := range val {
				for _, child := range Children(slot) {
					if err := resolveNode(child, refs, chain); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func expandRef(name string, refs map[string]*ComponentConfig, chain []string) (*ComponentConfig, error) {
	for _, seen := range chain {
		if seen == name {
			return nil, &RefError{Ref: name, Chain: chain, Cycle: true}
		}
	}
	target, ok := refs[name]
	if !ok {
		return nil, &RefError{Ref: name, Chain: chain}
	}

	expanded := target.Clone()
	if expanded.Ref != "" {
		inner, err := expandRef(expanded.Ref, refs, append(chain, name))
		if err != nil {
			return nil, err
		}
		for k, v := range expanded.Props {
			inner.Props[k] = v
		}
		expanded = inner
	}
	return expanded, nil
}
