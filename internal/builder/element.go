// Package builder walks a compiled component tree and turns it into an
// element tree by calling registered component implementations.
package builder

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a node of the built output. An element without a tag is a
// text node.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Element
}

// El creates an element. Nil children are skipped.
func El(tag string, attrs map[string]string, children ...*Element) *Element {
	e := &Element{Tag: tag, Attrs: attrs}
	e.Append(children...)
	return e
}

// Text creates a text node.
func Text(s string) *Element {
	return &Element{Text: s}
}

// Append adds the non-nil children.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		if c != nil {
			e.Children = append(e.Children, c)
		}
	}
	return e
}

// SetAttr sets an attribute, creating the map when needed.
func (e *Element) SetAttr(key, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[key] = value
	return e
}

// Attr returns an attribute value.
func (e *Element) Attr(key string) string {
	if e == nil {
		return ""
	}
	return e.Attrs[key]
}

// IsText reports whether e is a text node.
func (e *Element) IsText() bool {
	return e.Tag == ""
}

// Clone returns a deep copy.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{Tag: e.Tag, Text: e.Text}
	if e.Attrs != nil {
		out.Attrs = make(map[string]string, len(e.Attrs))
		for k, v := range e.Attrs {
			out.Attrs[k] = v
		}
	}
	for _, c := range e.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}

// Find returns the first element in document order matching fn.
func (e *Element) Find(fn func(*Element) bool) *Element {
	if e == nil {
		return nil
	}
	if fn(e) {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(fn); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every element in document order matching fn.
func (e *Element) FindAll(fn func(*Element) bool) []*Element {
	var out []*Element
	var walk func(*Element)
	walk = func(el *Element) {
		if el == nil {
			return
		}
		if fn(el) {
			out = append(out, el)
		}
		for _, c := range el.Children {
			walk(c)
		}
	}
	walk(e)
	return out
}

// TextContent concatenates every text node below e.
func (e *Element) TextContent() string {
	if e == nil {
		return ""
	}
	if e.IsText() {
		return e.Text
	}
	var sb strings.Builder
	for _, c := range e.Children {
		sb.WriteString(c.TextContent())
	}
	return sb.String()
}

// Render serialises the element tree as HTML. A nil element renders as the
// empty string.
func Render(e *Element) (string, error) {
	if e == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, toNode(e)); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// RenderDocument wraps the rendered tree into a minimal HTML page.
func RenderDocument(e *Element, title, locale string) (string, error) {
	body := El("body", nil, e)
	page := El("html", map[string]string{"lang": locale},
		El("head", nil,
			El("meta", map[string]string{"charset": "utf-8"}),
			El("meta", map[string]string{"name": "viewport", "content": "width=device-width, initial-scale=1"}),
			El("title", nil, Text(title)),
		),
		body,
	)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>")
	if err := html.Render(&buf, toNode(page)); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func toNode(e *Element) *html.Node {
	if e.IsText() {
		return &html.Node{Type: html.TextNode, Data: e.Text}
	}

	n := &html.Node{Type: html.ElementNode, Data: e.Tag, DataAtom: atom.Lookup([]byte(e.Tag))}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: e.Attrs[k]})
	}
	for _, c := range e.Children {
		n.AppendChild(toNode(c))
	}
	return n
}

// CSS renders a style map as an inline style declaration. Keys are
// converted from camelCase; keys starting with "__" and nested maps are
// skipped.
func CSS(style map[string]any) string {
	keys := make([]string, 0, len(style))
	for k, v := range style {
		if strings.HasPrefix(k, "__") || v == nil {
			continue
		}
		if _, nested := v.(map[string]any); nested {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, kebab(k)+": "+cssValue(k, style[k]))
	}
	return strings.Join(parts, "; ")
}

var unitless = map[string]bool{
	"flex":       true,
	"flexGrow":   true,
	"flexShrink": true,
	"fontWeight": true,
	"lineHeight": true,
	"opacity":    true,
	"order":      true,
	"zIndex":     true,
}

func cssValue(key string, v any) string {
	if unitless[key] {
		return fmt.Sprint(v)
	}
	switch val := v.(type) {
	case int:
		if val == 0 {
			return "0"
		}
		return fmt.Sprintf("%dpx", val)
	case float64:
		if val == 0 {
			return "0"
		}
		return fmt.Sprintf("%gpx", val)
	}
	return fmt.Sprint(v)
}

func kebab(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
