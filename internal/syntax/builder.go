package syntax

import "fmt"

// Builder assembles a Tree from byte offsets. Nodes are opened and closed in
// document order; points are computed from the source. The first misuse is
// remembered and reported by Build.
type Builder struct {
	src   []byte
	lines []int
	nodes []Node
	open  []NodeID
	err   error
}

// NewBuilder returns a Builder for src.
func NewBuilder(src []byte) *Builder {
	return &Builder{src: src, lines: lineStarts(src)}
}

// Open starts a node of the given kind at byte offset start. Its parent is
// the innermost node still open.
func (b *Builder) Open(kind Kind, start int) NodeID {
	id := NodeID(len(b.nodes))
	parent := NoNode
	if len(b.open) > 0 {
		parent = b.open[len(b.open)-1]
	} else if len(b.nodes) > 0 && b.err == nil {
		b.err = fmt.Errorf("syntax: builder: second root %s at offset %d", kind, start)
	}
	p := pointAt(b.lines, start, len(b.src))
	b.nodes = append(b.nodes, Node{
		ID:        id,
		Kind:      kind,
		Parent:    parent,
		StartByte: start,
		EndByte:   start,
		Span:      Span{Start: p, End: p},
	})
	b.open = append(b.open, id)
	return id
}

// Close ends the innermost open node at byte offset end.
func (b *Builder) Close(end int) {
	if len(b.open) == 0 {
		if b.err == nil {
			b.err = fmt.Errorf("syntax: builder: close at offset %d with no open node", end)
		}
		return
	}
	id := b.open[len(b.open)-1]
	b.open = b.open[:len(b.open)-1]
	n := &b.nodes[id]
	n.EndByte = end
	n.Span.End = pointAt(b.lines, end, len(b.src))
}

// Leaf adds a childless node spanning [start, end).
func (b *Builder) Leaf(kind Kind, start, end int) NodeID {
	id := b.Open(kind, start)
	b.Close(end)
	return id
}

// PointAt converts a byte offset of the source being built to a point.
func (b *Builder) PointAt(offset int) Point {
	return pointAt(b.lines, offset, len(b.src))
}

// Build closes nothing implicitly: every opened node must have been closed.
func (b *Builder) Build() (*Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.open) > 0 {
		return nil, fmt.Errorf("syntax: builder: %d node(s) left open", len(b.open))
	}
	t, err := NewTree(b.src, b.nodes)
	if err != nil {
		return nil, fmt.Errorf("syntax: builder: %w", err)
	}
	return t, nil
}
