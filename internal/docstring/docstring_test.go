package docstring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/varlens/internal/parser"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

func load(t *testing.T, src string) (*syntax.Tree, *symbols.Table) {
	t.Helper()
	tree, _, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	return tree, symbols.Build(tree)
}

func firstOf(t *testing.T, tree *syntax.Tree, kind syntax.Kind) syntax.Node {
	t.Helper()
	for _, n := range tree.Nodes() {
		if n.Kind == kind {
			return n
		}
	}
	t.Fatalf("no %s node", kind)
	return syntax.Node{}
}

func TestForCollectsContiguousBlock(t *testing.T) {
	t.Parallel()
	for m := 0; m <= 4; m++ {
		t.Run(fmt.Sprintf("m=%d", m), func(t *testing.T) {
			var b strings.Builder
			b.WriteString("interface a.b\n")
			for i := 0; i < m; i++ {
				fmt.Fprintf(&b, "# line %d\n", i)
			}
			b.WriteString("type A (x: int)\n")
			tree, _ := load(t, b.String())

			doc := For(tree, firstOf(t, tree, syntax.Typedef).ID)
			require.Len(t, doc.Lines, m)
			for i, line := range doc.Lines {
				assert.Equal(t, fmt.Sprintf("line %d", i), line)
			}
			assert.Equal(t, "type A (x: int)", doc.Code)
		})
	}
}

func TestForStopsAtBlankLine(t *testing.T) {
	t.Parallel()
	tree, _ := load(t, "# detached\n\ntype A (x: int)\n")
	doc := For(tree, firstOf(t, tree, syntax.Typedef).ID)
	assert.Empty(t, doc.Lines)
}

func TestForStopsAtNonComment(t *testing.T) {
	t.Parallel()
	tree, _ := load(t, "# about B\ntype B (y: int)\ntype A (x: int)\n")

	typedefs := tree.Nodes()
	var a syntax.Node
	for _, n := range typedefs {
		if n.Kind == syntax.Typedef {
			a = n
		}
	}
	assert.Empty(t, For(tree, a.ID).Lines)
	assert.Equal(t, []string{"about B"}, For(tree, firstOf(t, tree, syntax.Typedef).ID).Lines)
}

func TestForIgnoresIndentedComment(t *testing.T) {
	t.Parallel()
	tree, _ := load(t, "# top\n  # indented\ntype A (x: int)\n")
	assert.Empty(t, For(tree, firstOf(t, tree, syntax.Typedef).ID).Lines)
}

func TestForTrailingCommentOnPreviousLine(t *testing.T) {
	t.Parallel()
	tree, _ := load(t, "type B (y: int) # note\ntype A (x: int)\n")
	var a syntax.Node
	for _, n := range tree.Nodes() {
		if n.Kind == syntax.Typedef {
			a = n
		}
	}
	assert.Empty(t, For(tree, a.ID).Lines)
}

func TestStripMarker(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"# text":    "text",
		"#text":     "text",
		"#  indent": " indent",
		"## twice":  "# twice",
		"#":         "",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripMarker(in), in)
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	doc := Doc{Code: "type A (x: int)", Lines: []string{"First.", "Second."}}
	assert.Equal(t, "```varlink\ntype A (x: int)\n```\n\n---\nFirst.\nSecond.\n", doc.Markdown())

	bare := Doc{Code: "method M() -> ()"}
	assert.Equal(t, "```varlink\nmethod M() -> ()\n```", bare.Markdown())
}

const hoverDoc = `# The service.
interface org.example.svc

# A thing.
# With two lines.
type Thing (id: int)

# Fetches a thing.
method Get(id: int) -> (thing: Thing, other: Missing)
`

func TestHover(t *testing.T) {
	t.Parallel()
	tree, tbl := load(t, hoverDoc)

	// on a type reference: the definition's docs
	doc, ok := Hover(tree, tbl, syntax.Point{Line: 8, Column: 33})
	require.True(t, ok)
	assert.Equal(t, "type Thing (id: int)", doc.Code)
	assert.Equal(t, []string{"A thing.", "With two lines."}, doc.Lines)
	assert.Equal(t, 5, doc.Span.Start.Line)

	// on a method name
	doc, ok = Hover(tree, tbl, syntax.Point{Line: 8, Column: 8})
	require.True(t, ok)
	assert.Equal(t, []string{"Fetches a thing."}, doc.Lines)
	assert.True(t, strings.HasPrefix(doc.Code, "method Get"))

	// on the interface name
	doc, ok = Hover(tree, tbl, syntax.Point{Line: 1, Column: 12})
	require.True(t, ok)
	assert.Equal(t, []string{"The service."}, doc.Lines)

	// on a field name: the field itself, undocumented
	doc, ok = Hover(tree, tbl, syntax.Point{Line: 5, Column: 13})
	require.True(t, ok)
	assert.Equal(t, "id: int", doc.Code)
	assert.Empty(t, doc.Lines)
}

func TestHoverNothing(t *testing.T) {
	t.Parallel()
	tree, tbl := load(t, hoverDoc)

	// unknown type
	_, ok := Hover(tree, tbl, syntax.Point{Line: 8, Column: 48})
	assert.False(t, ok)
	// keyword
	_, ok = Hover(tree, tbl, syntax.Point{Line: 8, Column: 1})
	assert.False(t, ok)
	// comment
	_, ok = Hover(tree, tbl, syntax.Point{Line: 0, Column: 3})
	assert.False(t, ok)
}

func TestHoverAmbiguousReference(t *testing.T) {
	t.Parallel()
	tree, tbl := load(t, "type A (x: int)\ntype A (y: int)\nmethod M(a: A) -> ()\n")
	_, ok := Hover(tree, tbl, syntax.Point{Line: 2, Column: 12})
	assert.False(t, ok)
}
