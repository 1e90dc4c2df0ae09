package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ParseError is a problem reported by whatever produced the tree.
type ParseError struct {
	Span    Span   `json:"span"`
	Message string `json:"message"`
}

// KindMap maps grammar node types to analysis kinds. Named grammar nodes
// missing from the map become Other; anonymous tokens are kept only when
// they appear in the map.
type KindMap map[string]Kind

// ParseTreeSitter parses src with lang and flattens the result.
func ParseTreeSitter(ctx context.Context, lang *sitter.Language, src []byte, kinds KindMap) (*Tree, []ParseError, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("syntax: tree-sitter parse: %w", err)
	}
	return FromTreeSitter(tree.RootNode(), src, kinds)
}

// FromTreeSitter flattens a tree-sitter tree into a Tree. ERROR nodes become
// SyntaxError nodes and, together with MISSING nodes, are reported as parse
// errors.
func FromTreeSitter(root *sitter.Node, src []byte, kinds KindMap) (*Tree, []ParseError, error) {
	f := &flattener{src: src, kinds: kinds, lines: lineStarts(src)}
	f.walk(root, NoNode)
	t, err := NewTree(src, f.nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("syntax: tree-sitter: %w", err)
	}
	return t, f.errs, nil
}

type flattener struct {
	src   []byte
	kinds KindMap
	lines []int
	nodes []Node
	errs  []ParseError
}

func (f *flattener) walk(n *sitter.Node, parent NodeID) {
	typ := n.Type()
	kind, mapped := f.kinds[typ]
	switch {
	case typ == "ERROR":
		kind, mapped = SyntaxError, true
	case !mapped && n.IsNamed():
		kind, mapped = Other, true
	}

	next := parent
	if mapped || parent == NoNode {
		id := NodeID(len(f.nodes))
		start, end := int(n.StartByte()), int(n.EndByte())
		span := Span{
			Start: pointAt(f.lines, start, len(f.src)),
			End:   pointAt(f.lines, end, len(f.src)),
		}
		f.nodes = append(f.nodes, Node{
			ID:        id,
			Kind:      kind,
			Parent:    parent,
			StartByte: start,
			EndByte:   end,
			Span:      span,
		})
		if typ == "ERROR" {
			f.errs = append(f.errs, ParseError{Span: span, Message: "syntax error"})
		}
		next = id
	}

	// MISSING nodes are usually anonymous tokens the kind map drops.
	if n.IsMissing() {
		at := pointAt(f.lines, int(n.StartByte()), len(f.src))
		f.errs = append(f.errs, ParseError{Span: Span{Start: at, End: at}, Message: fmt.Sprintf("missing %s", typ)})
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		f.walk(n.Child(i), next)
	}
}
