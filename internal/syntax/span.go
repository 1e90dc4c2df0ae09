package syntax

import "fmt"

// Point is a 0-based (line, column) position. Columns count bytes within the
// line, matching what tree-sitter reports.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Compare returns -1, 0 or +1 depending on whether p sorts before, equal to
// or after q.
func (p Point) Compare(q Point) int {
	switch {
	case p.Line < q.Line:
		return -1
	case p.Line > q.Line:
		return 1
	case p.Column < q.Column:
		return -1
	case p.Column > q.Column:
		return 1
	}
	return 0
}

// Before reports whether p sorts strictly before q.
func (p Point) Before(q Point) bool { return p.Compare(q) < 0 }

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open [Start, End) range of points.
type Span struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Covers reports whether p lies inside the half-open span. Empty spans cover
// nothing.
func (s Span) Covers(p Point) bool {
	return s.Start.Compare(p) <= 0 && p.Before(s.End)
}

// Touches is Covers with a closed right end, so a cursor sitting just after
// the last character still counts.
func (s Span) Touches(p Point) bool {
	return s.Start.Compare(p) <= 0 && p.Compare(s.End) <= 0
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Start.Compare(o.Start) <= 0 && o.End.Compare(s.End) <= 0
}

// Empty reports whether the span has zero width.
func (s Span) Empty() bool { return s.Start == s.End }

func (s Span) String() string {
	return s.Start.String() + "-" + s.End.String()
}
