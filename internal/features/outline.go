// Package features implements the editor conveniences built on top of the
// analysis core: outlines, folding, selection ranges, semantic tokens and
// completion.
package features

import (
	"github.com/jward/varlens/internal/spanindex"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// SymbolKind classifies an outline entry the way editors display it.
type SymbolKind string

const (
	SymbolNamespace SymbolKind = "namespace"
	SymbolEvent     SymbolKind = "event"
	SymbolMethod    SymbolKind = "method"
	SymbolClass     SymbolKind = "class"
)

var outlineKinds = map[syntax.Kind]SymbolKind{
	syntax.InterfaceDeclaration: SymbolNamespace,
	syntax.Error:                SymbolEvent,
	syntax.Method:               SymbolMethod,
	syntax.Typedef:              SymbolClass,
}

// Symbol is one outline entry.
type Symbol struct {
	Name string        `json:"name"`
	Kind SymbolKind    `json:"kind"`
	Decl syntax.Kind   `json:"-"`
	Node syntax.NodeID `json:"-"`
	// Span covers the whole declaration, Selection just its name.
	Span      syntax.Span `json:"span"`
	Selection syntax.Span `json:"selection"`
}

// Outline lists the interface, type, error and method declarations in
// document order.
func Outline(t *syntax.Tree) []Symbol {
	var out []Symbol
	for _, n := range t.Nodes() {
		kind, ok := outlineKinds[n.Kind]
		if !ok {
			continue
		}
		name, ok := symbols.NameOf(t, n)
		if !ok {
			continue
		}
		out = append(out, Symbol{
			Name:      t.Text(name),
			Kind:      kind,
			Decl:      n.Kind,
			Node:      n.ID,
			Span:      n.Span,
			Selection: name.Span,
		})
	}
	return out
}

// FoldingRanges returns the spans of every method, error, type definition,
// struct and enum.
func FoldingRanges(t *syntax.Tree) []syntax.Span {
	var out []syntax.Span
	for _, n := range t.Nodes() {
		switch n.Kind {
		case syntax.Method, syntax.Error, syntax.Typedef, syntax.Struct, syntax.Enum:
			out = append(out, n.Span)
		}
	}
	return out
}

// SelectionRange returns the spans from the node at pos out to the root,
// innermost first.
func SelectionRange(t *syntax.Tree, pos syntax.Point) []syntax.Span {
	n, ok := spanindex.LeafAt(t, pos)
	if !ok {
		n, ok = spanindex.MostSpecificAt(t, pos)
	}
	if !ok {
		return nil
	}
	var out []syntax.Span
	for ; ok; n, ok = t.Parent(n) {
		if len(out) > 0 && out[len(out)-1] == n.Span {
			continue
		}
		out = append(out, n.Span)
	}
	return out
}
