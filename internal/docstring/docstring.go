// Package docstring attaches leading comment blocks to declarations.
package docstring

import (
	"strings"

	"github.com/jward/varlens/internal/spanindex"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// Doc is the documentation of one node.
type Doc struct {
	// Lines are the comment lines above the node, top to bottom, with the
	// comment marker removed.
	Lines []string `json:"lines"`
	// Code is the node's own source text.
	Code string      `json:"code"`
	Span syntax.Span `json:"span"`
}

// IsDocComment reports whether comment continues a doc block upward: it is a
// comment starting in column 0 on exactly expectedLine.
func IsDocComment(comment syntax.Node, expectedLine int) bool {
	return comment.Kind == syntax.Comment &&
		comment.Span.Start.Column == 0 &&
		comment.Span.Start.Line == expectedLine
}

// skippable nodes carry no content of their own and never end a doc block.
func skippable(n syntax.Node) bool {
	return n.Kind == syntax.Eol || n.Span.Empty()
}

// StripMarker removes one leading '#' and one space after it.
func StripMarker(line string) string {
	line = strings.TrimPrefix(line, "#")
	return strings.TrimPrefix(line, " ")
}

// For collects the comment block directly above node id.
func For(t *syntax.Tree, id syntax.NodeID) Doc {
	target := t.Node(id)
	doc := Doc{Code: t.Text(target), Span: target.Span}

	expected := target.Span.Start.Line - 1
	var rev []string
	for i := int(id) - 1; i >= 0; i-- {
		n := t.Node(syntax.NodeID(i))
		if skippable(n) {
			continue
		}
		if !IsDocComment(n, expected) {
			break
		}
		rev = append(rev, StripMarker(t.Text(n)))
		expected--
	}
	for i := len(rev) - 1; i >= 0; i-- {
		doc.Lines = append(doc.Lines, rev[i])
	}
	return doc
}

// Markdown renders the doc as a hover card: the code in a fenced block,
// then the documentation under a rule.
func (d Doc) Markdown() string {
	var b strings.Builder
	b.WriteString("```varlink\n")
	b.WriteString(d.Code)
	b.WriteString("\n```")
	if len(d.Lines) > 0 {
		b.WriteString("\n\n---\n")
		for _, line := range d.Lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Hover documents the identifier at pos. A type reference shows its
// definition, provided there is exactly one; any other name shows the node
// it names.
func Hover(t *syntax.Tree, tbl *symbols.Table, pos syntax.Point) (Doc, bool) {
	leaf, ok := spanindex.LeafAt(t, pos)
	if !ok || (leaf.Kind != syntax.Name && leaf.Kind != syntax.InterfaceName) {
		return Doc{}, false
	}
	parent, ok := t.Parent(leaf)
	if !ok {
		return Doc{}, false
	}
	if parent.Kind != syntax.Typeref {
		return For(t, parent.ID), true
	}

	defs := tbl.Typedefs.Get(t.Text(leaf))
	if len(defs) != 1 {
		return Doc{}, false
	}
	def, ok := t.Parent(t.Node(defs[0].Node))
	if !ok {
		return Doc{}, false
	}
	return For(t, def.ID), true
}
