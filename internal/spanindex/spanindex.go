// Package spanindex answers positional questions over a flattened syntax
// tree. Every query is a binary search over node start positions followed by
// a short walk, so cost is O(log n + depth).
package spanindex

import (
	"sort"

	"github.com/jward/varlens/internal/syntax"
)

// candidate returns the index of the rightmost node whose start is at or
// before pos, or -1. Pre-order puts an ancestor before the descendants that
// share its start, so the rightmost match is the deepest one.
func candidate(t *syntax.Tree, pos syntax.Point) int {
	nodes := t.Nodes()
	i := sort.Search(len(nodes), func(i int) bool {
		return pos.Before(nodes[i].Span.Start)
	})
	return i - 1
}

// LeafAt returns the deepest node whose span covers pos, provided that node
// is also the rightmost node starting at or before pos.
func LeafAt(t *syntax.Tree, pos syntax.Point) (syntax.Node, bool) {
	i := candidate(t, pos)
	if i < 0 {
		return syntax.Node{}, false
	}
	n := t.Node(syntax.NodeID(i))
	if !n.Span.Covers(pos) {
		return syntax.Node{}, false
	}
	return n, true
}

// MostSpecificAt returns the innermost node covering pos. Unlike LeafAt it
// walks up from the candidate when the candidate ends before pos, e.g. in
// whitespace between two children.
func MostSpecificAt(t *syntax.Tree, pos syntax.Point) (syntax.Node, bool) {
	i := candidate(t, pos)
	if i < 0 {
		return syntax.Node{}, false
	}
	for n, ok := t.Node(syntax.NodeID(i)), true; ok; n, ok = t.Parent(n) {
		if n.Span.Covers(pos) {
			return n, true
		}
	}
	return syntax.Node{}, false
}

// CaptureAt returns the innermost node covering pos whose kind is one of
// kinds.
func CaptureAt(t *syntax.Tree, pos syntax.Point, kinds ...syntax.Kind) (syntax.Node, bool) {
	n, ok := MostSpecificAt(t, pos)
	for ; ok; n, ok = t.Parent(n) {
		for _, k := range kinds {
			if n.Kind == k {
				return n, true
			}
		}
	}
	return syntax.Node{}, false
}

// SubtreeAt returns the half-open index range [lo, hi) of consecutive nodes,
// ending at the candidate for pos, that touch pos. Touching is closed on the
// right so that a cursor just after an identifier still resolves to it. The
// range is empty when the candidate itself does not touch pos.
func SubtreeAt(t *syntax.Tree, pos syntax.Point) (lo, hi int) {
	i := candidate(t, pos)
	if i < 0 {
		return 0, 0
	}
	if !t.Node(syntax.NodeID(i)).Span.Touches(pos) {
		return i + 1, i + 1
	}
	lo = i
	for lo > 0 && t.Node(syntax.NodeID(lo-1)).Span.Touches(pos) {
		lo--
	}
	return lo, i + 1
}

// Subtree is SubtreeAt returning the nodes themselves.
func Subtree(t *syntax.Tree, pos syntax.Point) []syntax.Node {
	lo, hi := SubtreeAt(t, pos)
	return t.Nodes()[lo:hi]
}
