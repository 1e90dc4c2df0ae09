// Package resolve maps identifier positions to declarations and back, and
// computes rename edits.
package resolve

import (
	"fmt"
	"sort"

	"github.com/jward/varlens/internal/spanindex"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// Definition returns the type definitions named by the type reference at
// pos. The cursor may sit just after the reference. A position on anything
// other than a type reference yields nothing; a name with several
// definitions yields all of them.
func Definition(t *syntax.Tree, tbl *symbols.Table, pos syntax.Point) ([]symbols.Occurrence, error) {
	var refs []syntax.Node
	for _, n := range spanindex.Subtree(t, pos) {
		if n.Kind == syntax.Typeref {
			refs = append(refs, n)
		}
	}
	switch len(refs) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, syntax.Errorf("%d type references touch %s", len(refs), pos)
	}
	name, ok := symbols.NameOf(t, refs[0])
	if !ok {
		return nil, nil
	}
	return tbl.Typedefs.Get(t.Text(name)), nil
}

// References returns every type reference to the type definition enclosing
// pos. Declarations are not included.
func References(t *syntax.Tree, tbl *symbols.Table, pos syntax.Point) []symbols.Occurrence {
	def, ok := spanindex.CaptureAt(t, pos, syntax.Typedef)
	if !ok {
		return nil
	}
	name, ok := symbols.NameOf(t, def)
	if !ok {
		return nil
	}
	return tbl.TypeRefs.Get(t.Text(name))
}

// IsRenameable reports whether an identifier of this kind may be renamed.
func IsRenameable(kind syntax.Kind) bool {
	return kind == syntax.Name || kind == syntax.InterfaceName
}

// RenamesAllTypeOccurrences reports whether renaming an identifier whose
// parent has this kind rewrites every type definition and type reference
// with the same text, rather than just the identifier itself.
func RenamesAllTypeOccurrences(parent syntax.Kind) bool {
	return parent == syntax.Typedef || parent == syntax.Typeref
}

// PrepareRename returns the span of the renameable identifier at pos.
func PrepareRename(t *syntax.Tree, pos syntax.Point) (syntax.Span, bool) {
	leaf, ok := spanindex.LeafAt(t, pos)
	if !ok || !IsRenameable(leaf.Kind) {
		return syntax.Span{}, false
	}
	return leaf.Span, true
}

// Edit replaces the text of Span with NewText.
type Edit struct {
	Span    syntax.Span `json:"span"`
	NewText string      `json:"new_text"`
}

// WorkspaceEdit groups edits by document URI. Edits of one document are in
// document order.
type WorkspaceEdit struct {
	Changes map[string][]Edit `json:"changes"`
}

// Rename computes the edits that rename the identifier at pos to newName in
// the document uri. It returns nil when there is nothing renameable at pos.
// On error no edits are returned.
func Rename(t *syntax.Tree, tbl *symbols.Table, uri string, pos syntax.Point, newName string) (*WorkspaceEdit, error) {
	leaf, ok := spanindex.LeafAt(t, pos)
	if !ok || !IsRenameable(leaf.Kind) {
		return nil, nil
	}
	parent, ok := t.Parent(leaf)
	if !ok {
		return nil, syntax.Errorf("identifier node %d has no parent", leaf.ID)
	}

	var edits []Edit
	if RenamesAllTypeOccurrences(parent.Kind) {
		old := t.Text(leaf)
		for _, o := range tbl.Typedefs.Get(old) {
			edits = append(edits, Edit{Span: o.Span, NewText: newName})
		}
		for _, o := range tbl.TypeRefs.Get(old) {
			edits = append(edits, Edit{Span: o.Span, NewText: newName})
		}
		sort.SliceStable(edits, func(i, j int) bool {
			return edits[i].Span.Start.Before(edits[j].Span.Start)
		})
	} else {
		edits = []Edit{{Span: leaf.Span, NewText: newName}}
	}
	return &WorkspaceEdit{Changes: map[string][]Edit{uri: edits}}, nil
}

// ApplyEdits returns the source of t with edits applied. Edits may come in
// any order but must not overlap.
func ApplyEdits(t *syntax.Tree, edits []Edit) ([]byte, error) {
	type located struct {
		start, end int
		text       string
	}
	ls := make([]located, 0, len(edits))
	for _, e := range edits {
		start, ok := t.OffsetAt(e.Span.Start)
		if !ok {
			return nil, fmt.Errorf("resolve: edit start %s outside document", e.Span.Start)
		}
		end, ok := t.OffsetAt(e.Span.End)
		if !ok || end < start {
			return nil, fmt.Errorf("resolve: edit end %s outside document", e.Span.End)
		}
		ls = append(ls, located{start: start, end: end, text: e.NewText})
	}
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].start < ls[j].start })
	for i := 1; i < len(ls); i++ {
		if ls[i].start < ls[i-1].end {
			return nil, fmt.Errorf("resolve: overlapping edits at offsets %d and %d", ls[i-1].start, ls[i].start)
		}
	}

	src := t.Source()
	out := make([]byte, 0, len(src))
	prev := 0
	for _, l := range ls {
		out = append(out, src[prev:l.start]...)
		out = append(out, l.text...)
		prev = l.end
	}
	return append(out, src[prev:]...), nil
}
