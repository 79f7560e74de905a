package richtext

import (
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/easyblocks/easyblocks/internal/model"
)

// Mark keys a text leaf can carry.
const (
	MarkFont               = "font"
	MarkColor              = "color"
	MarkAction             = "action"
	MarkActionTextModifier = "actionTextModifier"
	MarkTextModifier       = "textModifier"
)

var markKeys = []string{MarkFont, MarkColor, MarkAction, MarkActionTextModifier, MarkTextModifier}

var (
	// ErrNoSelection is returned by selection based edits on an editor
	// without a selection.
	ErrNoSelection = errors.New("editor has no selection")
	// ErrUnknownMark is returned for keys outside the mark set.
	ErrUnknownMark = errors.New("unknown mark")
	// ErrInvalidPoint is returned for points outside the document.
	ErrInvalidPoint = errors.New("point is outside the document")
)

// IsMark reports whether key names a mark.
func IsMark(key string) bool {
	for _, k := range markKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Marks are the formatting attributes of a text leaf. An absent key and an
// empty value mean the same thing.
type Marks map[string]any

// Clone deep copies the marks.
func (m Marks) Clone() Marks {
	out := make(Marks, len(m))
	for k, v := range m {
		out[k] = model.CloneValue(v)
	}
	return out
}

// Equal compares two mark sets, ignoring empty values.
func (m Marks) Equal(other Marks) bool {
	for _, k := range markKeys {
		a, b := m[k], other[k]
		if isEmptyMark(a) && isEmptyMark(b) {
			continue
		}
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return true
}

func isEmptyMark(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []*model.ComponentConfig:
		return len(val) == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// Leaf is a run of text with uniform marks. It becomes one rich text part.
type Leaf struct {
	ID    string
	Text  string
	Marks Marks
}

// Len returns the length of the leaf in runes.
func (l *Leaf) Len() int {
	return utf8.RuneCountInString(l.Text)
}

// Line holds the leaves of one line.
type Line struct {
	ID     string
	Leaves []*Leaf
}

// Block is a paragraph or a list.
type Block struct {
	ID    string
	Type  string
	Lines []*Line
}

// Block types.
const (
	BlockParagraph    = "paragraph"
	BlockBulletedList = "bulleted-list"
	BlockNumberedList = "numbered-list"
)

// Path addresses a leaf as block, line and leaf index.
type Path [3]int

// Compare orders paths in document order.
func (p Path) Compare(other Path) int {
	for i := range p {
		switch {
		case p[i] < other[i]:
			return -1
		case p[i] > other[i]:
			return 1
		}
	}
	return 0
}

// Point is a caret position inside a leaf. Offset counts runes.
type Point struct {
	Path   Path `json:"path"`
	Offset int  `json:"offset"`
}

// Compare orders points in document order.
func (p Point) Compare(other Point) int {
	if c := p.Path.Compare(other.Path); c != 0 {
		return c
	}
	switch {
	case p.Offset < other.Offset:
		return -1
	case p.Offset > other.Offset:
		return 1
	}
	return 0
}

// Range is a selection. Anchor may come after Focus.
type Range struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// IsCollapsed reports whether the range is a caret.
func (r Range) IsCollapsed() bool {
	return r.Anchor.Compare(r.Focus) == 0
}

// Edges returns the range bounds in document order.
func (r Range) Edges() (Point, Point) {
	if r.Anchor.Compare(r.Focus) <= 0 {
		return r.Anchor, r.Focus
	}
	return r.Focus, r.Anchor
}

// Intersection returns the overlap of two ranges.
func (r Range) Intersection(other Range) (Range, bool) {
	s1, e1 := r.Edges()
	s2, e2 := other.Edges()
	start, end := s1, e1
	if s2.Compare(start) > 0 {
		start = s2
	}
	if e2.Compare(end) < 0 {
		end = e2
	}
	if start.Compare(end) > 0 {
		return Range{}, false
	}
	return Range{Anchor: start, Focus: end}, true
}

// Editor is an editable rich text value with a selection. Edits mutate the
// editor; use Clone to keep the original.
type Editor struct {
	Blocks    []*Block
	Selection *Range
	// Pending marks apply to text typed at a collapsed selection.
	Pending Marks
	// NewID creates ids for leaves produced by splits.
	NewID func() string

	withoutNormalizing int
}

// New creates a normalised editor.
func New(blocks []*Block) *Editor {
	e := &Editor{Blocks: blocks, NewID: uuid.NewString}
	e.Normalize()
	return e
}

// Clone deep copies the editor.
func (e *Editor) Clone() *Editor {
	out := &Editor{NewID: e.NewID, Pending: e.Pending.Clone()}
	if e.Selection != nil {
		sel := *e.Selection
		out.Selection = &sel
	}
	out.Blocks = make([]*Block, len(e.Blocks))
	for i, b := range e.Blocks {
		nb := &Block{ID: b.ID, Type: b.Type, Lines: make([]*Line, len(b.Lines))}
		for j, l := range b.Lines {
			nl := &Line{ID: l.ID, Leaves: make([]*Leaf, len(l.Leaves))}
			for k, leaf := range l.Leaves {
				nl.Leaves[k] = &Leaf{ID: leaf.ID, Text: leaf.Text, Marks: leaf.Marks.Clone()}
			}
			nb.Lines[j] = nl
		}
		out.Blocks[i] = nb
	}
	return out
}

func (e *Editor) newID() string {
	if e.NewID == nil {
		return uuid.NewString()
	}
	return e.NewID()
}

// Leaf returns the leaf at p.
func (e *Editor) Leaf(p Path) (*Leaf, bool) {
	if p[0] < 0 || p[0] >= len(e.Blocks) {
		return nil, false
	}
	b := e.Blocks[p[0]]
	if p[1] < 0 || p[1] >= len(b.Lines) {
		return nil, false
	}
	l := b.Lines[p[1]]
	if p[2] < 0 || p[2] >= len(l.Leaves) {
		return nil, false
	}
	return l.Leaves[p[2]], true
}

// Paths returns the path of every leaf in document order.
func (e *Editor) Paths() []Path {
	var out []Path
	for bi, b := range e.Blocks {
		for li, l := range b.Lines {
			for i := range l.Leaves {
				out = append(out, Path{bi, li, i})
			}
		}
	}
	return out
}

// Start returns the first point of the leaf at p.
func (e *Editor) Start(p Path) Point {
	return Point{Path: p}
}

// End returns the last point of the leaf at p.
func (e *Editor) End(p Path) Point {
	leaf, ok := e.Leaf(p)
	if !ok {
		return Point{Path: p}
	}
	return Point{Path: p, Offset: leaf.Len()}
}

// LeafRange returns the range covering the leaf at p.
func (e *Editor) LeafRange(p Path) Range {
	return Range{Anchor: e.Start(p), Focus: e.End(p)}
}

func (e *Editor) validPoint(p Point) bool {
	leaf, ok := e.Leaf(p.Path)
	return ok && p.Offset >= 0 && p.Offset <= leaf.Len()
}

// Select sets the selection.
func (e *Editor) Select(r Range) error {
	if !e.validPoint(r.Anchor) || !e.validPoint(r.Focus) {
		return fmt.Errorf("select %v: %w", r, ErrInvalidPoint)
	}
	e.Selection = &r
	return nil
}

// Deselect clears the selection.
func (e *Editor) Deselect() {
	e.Selection = nil
}

// SelectedPaths returns the leaves the selection touches. A collapsed
// selection touches its own leaf; otherwise leaves only sharing an edge
// with the selection are left out.
func (e *Editor) SelectedPaths() []Path {
	if e.Selection == nil {
		return nil
	}
	start, end := e.Selection.Edges()
	if e.Selection.IsCollapsed() {
		if _, ok := e.Leaf(start.Path); !ok {
			return nil
		}
		return []Path{start.Path}
	}

	var out []Path
	for _, p := range e.Paths() {
		if start.Path.Compare(p) > 0 || end.Path.Compare(p) < 0 {
			continue
		}
		r, ok := e.LeafRange(p).Intersection(*e.Selection)
		if !ok || (r.IsCollapsed() && e.End(p).Offset > 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SelectedRanges returns the part of the selection that falls into each
// selected leaf, in document order.
func (e *Editor) SelectedRanges() []Range {
	if e.Selection == nil {
		return nil
	}
	var out []Range
	for _, p := range e.SelectedPaths() {
		if r, ok := e.LeafRange(p).Intersection(*e.Selection); ok {
			out = append(out, r)
		}
	}
	return out
}

// AddMark sets a mark on the selected text. On a collapsed selection the
// mark becomes pending.
func (e *Editor) AddMark(key string, value any) error {
	if !IsMark(key) {
		return fmt.Errorf("%w: %q", ErrUnknownMark, key)
	}
	if e.Selection == nil {
		return ErrNoSelection
	}
	if e.Selection.IsCollapsed() {
		if e.Pending == nil {
			e.Pending = Marks{}
		}
		e.Pending[key] = model.CloneValue(value)
		return nil
	}
	return e.SetMarkAt(*e.Selection, key, value)
}

// RemoveMark clears a mark from the selected text.
func (e *Editor) RemoveMark(key string) error {
	if !IsMark(key) {
		return fmt.Errorf("%w: %q", ErrUnknownMark, key)
	}
	if e.Selection == nil {
		return ErrNoSelection
	}
	if e.Selection.IsCollapsed() {
		delete(e.Pending, key)
		return nil
	}
	return e.SetMarkAt(*e.Selection, key, nil)
}

// SetMarkAt sets a mark on the text covered by r, splitting the leaves at
// the range edges. A nil or empty value removes the mark.
func (e *Editor) SetMarkAt(r Range, key string, value any) error {
	if !IsMark(key) {
		return fmt.Errorf("%w: %q", ErrUnknownMark, key)
	}
	if !e.validPoint(r.Anchor) || !e.validPoint(r.Focus) {
		return fmt.Errorf("set mark %s: %w", key, ErrInvalidPoint)
	}
	if r.IsCollapsed() {
		return nil
	}

	e.WithoutNormalizing(func() {
		start, end := r.Edges()
		e.split(end, &start, &end)
		e.split(start, &start, &end)

		for _, p := range e.Paths() {
			leaf, _ := e.Leaf(p)
			if e.Start(p).Compare(end) >= 0 {
				break
			}
			if e.End(p).Compare(start) <= 0 {
				continue
			}
			if isEmptyMark(value) {
				delete(leaf.Marks, key)
				continue
			}
			if leaf.Marks == nil {
				leaf.Marks = Marks{}
			}
			leaf.Marks[key] = model.CloneValue(value)
		}
	})
	return nil
}

// WithoutNormalizing runs fn and normalises once afterwards.
func (e *Editor) WithoutNormalizing(fn func()) {
	e.withoutNormalizing++
	defer func() {
		e.withoutNormalizing--
		if e.withoutNormalizing == 0 {
			e.Normalize()
		}
	}()
	fn()
}

// points returns the selection points so tree edits can move them.
func (e *Editor) points(extra ...*Point) []*Point {
	pts := append([]*Point(nil), extra...)
	if e.Selection != nil {
		pts = append(pts, &e.Selection.Anchor, &e.Selection.Focus)
	}
	return pts
}

// split cuts the leaf under at in two. Points after the cut move into the
// new leaf; a point right at the cut stays at the end of the left half.
func (e *Editor) split(at Point, track ...*Point) {
	leaf, ok := e.Leaf(at.Path)
	if !ok {
		return
	}
	runes := []rune(leaf.Text)
	if at.Offset <= 0 || at.Offset >= len(runes) {
		return
	}

	line := e.Blocks[at.Path[0]].Lines[at.Path[1]]
	idx := at.Path[2]
	right := &Leaf{ID: e.newID(), Text: string(runes[at.Offset:]), Marks: leaf.Marks.Clone()}
	leaf.Text = string(runes[:at.Offset])

	line.Leaves = append(line.Leaves, nil)
	copy(line.Leaves[idx+2:], line.Leaves[idx+1:])
	line.Leaves[idx+1] = right

	for _, pt := range e.points(track...) {
		if pt.Path[0] != at.Path[0] || pt.Path[1] != at.Path[1] {
			continue
		}
		switch {
		case pt.Path[2] == idx && pt.Offset > at.Offset:
			pt.Path[2] = idx + 1
			pt.Offset -= at.Offset
		case pt.Path[2] > idx:
			pt.Path[2]++
		}
	}
}

// Normalize merges neighbouring leaves with equal marks, drops empty leaves
// and guarantees at least one block, line and leaf.
func (e *Editor) Normalize() {
	if e.withoutNormalizing > 0 {
		return
	}
	if len(e.Blocks) == 0 {
		e.Blocks = []*Block{{ID: e.newID(), Type: BlockParagraph}}
	}
	for bi, b := range e.Blocks {
		if b.Type == "" {
			b.Type = BlockParagraph
		}
		if len(b.Lines) == 0 {
			b.Lines = []*Line{{ID: e.newID()}}
		}
		for li, l := range b.Lines {
			if len(l.Leaves) == 0 {
				l.Leaves = []*Leaf{{ID: e.newID(), Marks: Marks{}}}
				continue
			}
			e.normalizeLine(bi, li)
		}
	}
}

func (e *Editor) normalizeLine(bi, li int) {
	line := e.Blocks[bi].Lines[li]
	pts := e.points()

	i := 0
	for i < len(line.Leaves)-1 {
		left, right := line.Leaves[i], line.Leaves[i+1]
		if right.Len() > 0 && left.Len() > 0 && !left.Marks.Equal(right.Marks) {
			i++
			continue
		}

		// keep the non empty leaf, or the left one when merging
		keep, drop := i, i+1
		if left.Len() == 0 && right.Len() > 0 {
			keep, drop = i+1, i
		}
		shift := 0
		if keep == i {
			shift = left.Len()
			left.Text += right.Text
		}

		for _, pt := range pts {
			if pt.Path[0] != bi || pt.Path[1] != li {
				continue
			}
			switch {
			case pt.Path[2] == drop && keep == i:
				pt.Path[2] = i
				pt.Offset += shift
			case pt.Path[2] == drop:
				pt.Path[2] = i
				pt.Offset = 0
			case pt.Path[2] == keep && keep == i+1:
				pt.Path[2] = i
			case pt.Path[2] > i+1:
				pt.Path[2]--
			}
		}
		line.Leaves = append(line.Leaves[:drop], line.Leaves[drop+1:]...)
	}

	for _, leaf := range line.Leaves {
		if leaf.Marks == nil {
			leaf.Marks = Marks{}
		}
		for k, v := range leaf.Marks {
			if isEmptyMark(v) {
				delete(leaf.Marks, k)
			}
		}
	}
}

// ExpandToLeaf grows a selection to the whole leaf under its anchor.
func (e *Editor) ExpandToLeaf() error {
	if e.Selection == nil {
		return ErrNoSelection
	}
	p := e.Selection.Anchor.Path
	if _, ok := e.Leaf(p); !ok {
		return fmt.Errorf("expand selection: %w", ErrInvalidPoint)
	}
	r := e.LeafRange(p)
	e.Selection = &r
	return nil
}

// Text returns the plain text of the document, lines separated by "\n".
func (e *Editor) Text() string {
	var out []rune
	first := true
	for _, b := range e.Blocks {
		for _, l := range b.Lines {
			if !first {
				out = append(out, '\n')
			}
			first = false
			for _, leaf := range l.Leaves {
				out = append(out, []rune(leaf.Text)...)
			}
		}
	}
	return string(out)
}
