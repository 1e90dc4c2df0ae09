package varlens

import (
	"fmt"
	"sync"

	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/docstring"
	"github.com/jward/varlens/internal/features"
	"github.com/jward/varlens/internal/parser"
	"github.com/jward/varlens/internal/resolve"
	"github.com/jward/varlens/internal/spanindex"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// Location is a span within a document.
type Location struct {
	URI  string      `json:"uri"`
	Span syntax.Span `json:"span"`
}

func locations(uri string, occ []symbols.Occurrence) []Location {
	if len(occ) == 0 {
		return nil
	}
	out := make([]Location, len(occ))
	for i, o := range occ {
		out[i] = Location{URI: uri, Span: o.Span}
	}
	return out
}

// Snapshot is one version of one document together with everything derived
// from it. It is immutable and safe for concurrent use; the symbol table is
// built on first use.
type Snapshot struct {
	URI         string
	Version     int32
	Tree        *syntax.Tree
	ParseErrors []syntax.ParseError

	once  sync.Once
	table *symbols.Table
}

// NewSnapshot wraps a tree produced by any tree provider.
func NewSnapshot(uri string, version int32, tree *syntax.Tree, parseErrors []syntax.ParseError) *Snapshot {
	return &Snapshot{URI: uri, Version: version, Tree: tree, ParseErrors: parseErrors}
}

// ParseSnapshot parses src with the built-in varlink parser.
func ParseSnapshot(uri string, version int32, src []byte) (*Snapshot, error) {
	tree, errs, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("varlens: parse %s: %w", uri, err)
	}
	return NewSnapshot(uri, version, tree, errs), nil
}

// Symbols returns the document's symbol table.
func (s *Snapshot) Symbols() *symbols.Table {
	s.once.Do(func() { s.table = symbols.Build(s.Tree) })
	return s.table
}

// LeafAt returns the narrowest node covering pos.
func (s *Snapshot) LeafAt(pos syntax.Point) (syntax.Node, bool) {
	return spanindex.LeafAt(s.Tree, pos)
}

// MostSpecificAt returns the deepest node covering pos.
func (s *Snapshot) MostSpecificAt(pos syntax.Point) (syntax.Node, bool) {
	return spanindex.MostSpecificAt(s.Tree, pos)
}

// CaptureAt returns the nearest node of one of kinds enclosing pos.
func (s *Snapshot) CaptureAt(pos syntax.Point, kinds ...syntax.Kind) (syntax.Node, bool) {
	return spanindex.CaptureAt(s.Tree, pos, kinds...)
}

// SubtreeAt returns the index range [lo, hi) of the nodes touching pos.
func (s *Snapshot) SubtreeAt(pos syntax.Point) (lo, hi int) {
	return spanindex.SubtreeAt(s.Tree, pos)
}

// Diagnostics checks the document.
func (s *Snapshot) Diagnostics(opts diagnostics.Options) []diagnostics.Diagnostic {
	return diagnostics.Run(s.Tree, s.Symbols(), s.ParseErrors, opts)
}

// Definition returns the definitions of the type referenced at pos.
func (s *Snapshot) Definition(pos syntax.Point) ([]Location, error) {
	occ, err := resolve.Definition(s.Tree, s.Symbols(), pos)
	if err != nil {
		return nil, fmt.Errorf("varlens: definition in %s: %w", s.URI, err)
	}
	return locations(s.URI, occ), nil
}

// References returns the uses of the type defined at pos.
func (s *Snapshot) References(pos syntax.Point) []Location {
	return locations(s.URI, resolve.References(s.Tree, s.Symbols(), pos))
}

// PrepareRename returns the span of the renameable identifier at pos.
func (s *Snapshot) PrepareRename(pos syntax.Point) (syntax.Span, bool) {
	return resolve.PrepareRename(s.Tree, pos)
}

// Rename computes the edits renaming the identifier at pos. A nil edit with
// a nil error means there is nothing to rename.
func (s *Snapshot) Rename(pos syntax.Point, newName string) (*resolve.WorkspaceEdit, error) {
	we, err := resolve.Rename(s.Tree, s.Symbols(), s.URI, pos, newName)
	if err != nil {
		return nil, fmt.Errorf("varlens: rename in %s: %w", s.URI, err)
	}
	return we, nil
}

// Docstring returns the documentation of the declaration node id.
func (s *Snapshot) Docstring(id syntax.NodeID) docstring.Doc {
	return docstring.For(s.Tree, id)
}

// Hover documents the identifier at pos.
func (s *Snapshot) Hover(pos syntax.Point) (docstring.Doc, bool) {
	return docstring.Hover(s.Tree, s.Symbols(), pos)
}

// Outline lists the interface, type, error and method declarations.
func (s *Snapshot) Outline() []features.Symbol { return features.Outline(s.Tree) }

// FoldingRanges returns the foldable declaration and body spans.
func (s *Snapshot) FoldingRanges() []syntax.Span { return features.FoldingRanges(s.Tree) }

// SelectionRange returns the spans from the node at pos out to the root.
func (s *Snapshot) SelectionRange(pos syntax.Point) []syntax.Span {
	return features.SelectionRange(s.Tree, pos)
}

// SemanticTokens classifies the document's tokens in document order.
func (s *Snapshot) SemanticTokens() []features.Token { return features.SemanticTokens(s.Tree) }

// Completion suggests keywords, builtin types or type names at pos.
func (s *Snapshot) Completion(pos syntax.Point) []features.Completion {
	return features.Complete(s.Tree, s.Symbols(), pos)
}
