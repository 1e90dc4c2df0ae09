package syntax

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvariant marks a structural guarantee that did not hold: a malformed
// node sequence, or an analysis step that found the tree in a state it can
// not be in.
var ErrInvariant = errors.New("syntax invariant violated")

// NodeID is the index of a node within its tree's flattened sequence.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is one entry of the flattened pre-order sequence. Nodes refer to each
// other by index only.
type Node struct {
	ID        NodeID `json:"id"`
	Kind      Kind   `json:"kind"`
	Parent    NodeID `json:"parent"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	Span      Span   `json:"span"`
}

// HasParent reports whether n is below the root.
func (n Node) HasParent() bool { return n.Parent != NoNode }

// Tree is an immutable syntax tree: the source text plus its nodes in
// pre-order, sorted by start position. A Tree is safe for concurrent use.
type Tree struct {
	src        []byte
	nodes      []Node
	subtreeEnd []int
	lines      []int // byte offset of the first byte of each line
}

// Errorf wraps ErrInvariant with a formatted description.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// NewTree validates nodes against src and returns the resulting tree. The
// slice is owned by the tree afterwards.
func NewTree(src []byte, nodes []Node) (*Tree, error) {
	t := &Tree{
		src:        src,
		nodes:      nodes,
		subtreeEnd: make([]int, len(nodes)),
		lines:      lineStarts(src),
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) validate() error {
	var open []int
	for i, n := range t.nodes {
		if n.ID != NodeID(i) {
			return Errorf("node %d has id %d", i, n.ID)
		}
		if n.StartByte < 0 || n.StartByte > n.EndByte || n.EndByte > len(t.src) {
			return Errorf("node %d byte range [%d,%d) outside source of %d bytes", i, n.StartByte, n.EndByte, len(t.src))
		}
		if n.Span.End.Before(n.Span.Start) {
			return Errorf("node %d span %s ends before it starts", i, n.Span)
		}
		if i == 0 {
			if n.Parent != NoNode {
				return Errorf("root node has parent %d", n.Parent)
			}
			open = append(open, 0)
			continue
		}
		if n.Parent < 0 || int(n.Parent) >= i {
			return Errorf("node %d has parent %d which does not precede it", i, n.Parent)
		}
		if n.Span.Start.Before(t.nodes[i-1].Span.Start) {
			return Errorf("node %d starts at %s before node %d at %s", i, n.Span.Start, i-1, t.nodes[i-1].Span.Start)
		}
		for len(open) > 0 && open[len(open)-1] != int(n.Parent) {
			t.subtreeEnd[open[len(open)-1]] = i
			open = open[:len(open)-1]
		}
		if len(open) == 0 {
			return Errorf("node %d is not in pre-order: parent %d already closed", i, n.Parent)
		}
		parent := t.nodes[n.Parent]
		if !parent.Span.Contains(n.Span) {
			return Errorf("node %d span %s escapes parent %d span %s", i, n.Span, n.Parent, parent.Span)
		}
		open = append(open, i)
	}
	for _, j := range open {
		t.subtreeEnd[j] = len(t.nodes)
	}
	return nil
}

func lineStarts(src []byte) []int {
	lines := []int{0}
	for i, b := range src {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Nodes returns the flattened sequence. Callers must not modify it.
func (t *Tree) Nodes() []Node { return t.nodes }

// Node returns the node with the given id. It panics on an out of range id,
// like a slice index.
func (t *Tree) Node(id NodeID) Node { return t.nodes[id] }

// Root returns node 0, if the tree has any nodes.
func (t *Tree) Root() (Node, bool) {
	if len(t.nodes) == 0 {
		return Node{}, false
	}
	return t.nodes[0], true
}

// Last returns the final node of the sequence.
func (t *Tree) Last() (Node, bool) {
	if len(t.nodes) == 0 {
		return Node{}, false
	}
	return t.nodes[len(t.nodes)-1], true
}

// Parent returns n's parent, or false for the root.
func (t *Tree) Parent(n Node) (Node, bool) {
	if !n.HasParent() {
		return Node{}, false
	}
	return t.nodes[n.Parent], true
}

// SubtreeEnd returns the index one past the last descendant of id.
func (t *Tree) SubtreeEnd(id NodeID) int { return t.subtreeEnd[id] }

// Children returns the direct children of id in document order.
func (t *Tree) Children(id NodeID) []Node {
	var out []Node
	for i := int(id) + 1; i < t.subtreeEnd[id]; i = t.subtreeEnd[i] {
		out = append(out, t.nodes[i])
	}
	return out
}

// Child returns the first direct child of id with the given kind.
func (t *Tree) Child(id NodeID, kind Kind) (Node, bool) {
	for i := int(id) + 1; i < t.subtreeEnd[id]; i = t.subtreeEnd[i] {
		if t.nodes[i].Kind == kind {
			return t.nodes[i], true
		}
	}
	return Node{}, false
}

// Ancestor walks up from n and returns the first ancestor of one of kinds.
func (t *Tree) Ancestor(n Node, kinds ...Kind) (Node, bool) {
	for p, ok := t.Parent(n); ok; p, ok = t.Parent(p) {
		for _, k := range kinds {
			if p.Kind == k {
				return p, true
			}
		}
	}
	return Node{}, false
}

// Text returns the source text a node spans.
func (t *Tree) Text(n Node) string {
	return string(t.src[n.StartByte:n.EndByte])
}

// Source returns the document text. Callers must not modify it.
func (t *Tree) Source() []byte { return t.src }

// LineCount returns the number of lines, counting a final unterminated line.
func (t *Tree) LineCount() int { return len(t.lines) }

// Line returns the text of line n without its terminator.
func (t *Tree) Line(n int) (string, bool) {
	if n < 0 || n >= len(t.lines) {
		return "", false
	}
	end := len(t.src)
	if n+1 < len(t.lines) {
		end = t.lines[n+1] - 1
	}
	line := t.src[t.lines[n]:end]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return string(line), true
}

// PointAt converts a byte offset to a point. Offsets past the end clamp to
// the end of the document.
func (t *Tree) PointAt(offset int) Point {
	return pointAt(t.lines, offset, len(t.src))
}

func pointAt(lines []int, offset, size int) Point {
	if offset < 0 {
		offset = 0
	}
	if offset > size {
		offset = size
	}
	line := sort.Search(len(lines), func(i int) bool { return lines[i] > offset }) - 1
	return Point{Line: line, Column: offset - lines[line]}
}

// OffsetAt converts a point back to a byte offset. Columns past the end of
// the line are rejected.
func (t *Tree) OffsetAt(p Point) (int, bool) {
	return offsetAt(t.lines, p, len(t.src))
}

func offsetAt(lines []int, p Point, size int) (int, bool) {
	if p.Line < 0 || p.Line >= len(lines) || p.Column < 0 {
		return 0, false
	}
	end := size
	if p.Line+1 < len(lines) {
		end = lines[p.Line+1] - 1
	}
	off := lines[p.Line] + p.Column
	if off > end {
		return 0, false
	}
	return off, true
}

// EndPoint is the position just past the final byte of the document.
func (t *Tree) EndPoint() Point {
	return t.PointAt(len(t.src))
}
