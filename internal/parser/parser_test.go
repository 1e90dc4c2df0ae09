package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/varlens/internal/syntax"
)

const pingSource = `# Example service
interface org.example.ping

# A ping payload.
type Payload (
  message: string,
  count: ?int
)

type Color (red, green, blue)

error NotFound (name: string)

method Ping(payload: Payload) -> (reply: Payload, tags: []string, meta: [string]Color)
`

func parse(t *testing.T, src string) (*syntax.Tree, []syntax.ParseError) {
	t.Helper()
	tree, errs, err := Parse([]byte(src))
	require.NoError(t, err)
	return tree, errs
}

func ofKind(tree *syntax.Tree, kind syntax.Kind) []syntax.Node {
	var out []syntax.Node
	for _, n := range tree.Nodes() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func texts(tree *syntax.Tree, nodes []syntax.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, tree.Text(n))
	}
	return out
}

func TestParseWellFormed(t *testing.T) {
	t.Parallel()
	tree, errs := parse(t, pingSource)
	assert.Empty(t, errs)

	root, ok := tree.Root()
	require.True(t, ok)
	assert.Equal(t, syntax.Interface, root.Kind)
	assert.Equal(t, len(pingSource), root.EndByte)

	assert.Equal(t, []string{"org.example.ping"}, texts(tree, ofKind(tree, syntax.InterfaceName)))
	assert.Len(t, ofKind(tree, syntax.Typedef), 2)
	assert.Len(t, ofKind(tree, syntax.Error), 1)
	assert.Len(t, ofKind(tree, syntax.Method), 1)
	assert.Equal(t, []string{"Payload", "Payload", "Color"}, texts(tree, ofKind(tree, syntax.Typeref)))
	assert.Len(t, ofKind(tree, syntax.Enum), 1)
	assert.Len(t, ofKind(tree, syntax.Optional), 1)
	assert.Len(t, ofKind(tree, syntax.Array), 1)
	assert.Len(t, ofKind(tree, syntax.Dict), 1)
	assert.Len(t, ofKind(tree, syntax.Arrow), 1)
	assert.Equal(t, []string{"# Example service", "# A ping payload."}, texts(tree, ofKind(tree, syntax.Comment)))

	last, ok := tree.Last()
	require.True(t, ok)
	assert.Equal(t, syntax.Eol, last.Kind)
	assert.Equal(t, root.ID, last.Parent)
}

func TestParseShapes(t *testing.T) {
	t.Parallel()
	tree, errs := parse(t, pingSource)
	require.Empty(t, errs)

	// Typeref wraps a Name with the same span.
	for _, ref := range ofKind(tree, syntax.Typeref) {
		name, ok := tree.Child(ref.ID, syntax.Name)
		require.True(t, ok)
		assert.Equal(t, ref.Span, name.Span)
	}

	// Enum members are Name children.
	enum := ofKind(tree, syntax.Enum)[0]
	assert.Equal(t, []string{"red", "green", "blue"}, texts(tree, tree.Children(enum.ID)))

	// Every declaration owns a keyword and a name.
	for _, kind := range []syntax.Kind{syntax.Typedef, syntax.Error, syntax.Method, syntax.InterfaceDeclaration} {
		for _, decl := range ofKind(tree, kind) {
			_, ok := tree.Child(decl.ID, syntax.Keyword)
			assert.True(t, ok, kind.String())
		}
	}

	// Struct fields are scoped to their struct.
	payload := ofKind(tree, syntax.Typedef)[0]
	st, ok := tree.Child(payload.ID, syntax.Struct)
	require.True(t, ok)
	var fields []string
	for _, f := range tree.Children(st.ID) {
		if f.Kind != syntax.StructField {
			continue
		}
		name, ok := tree.Child(f.ID, syntax.Name)
		require.True(t, ok)
		fields = append(fields, tree.Text(name))
	}
	assert.Equal(t, []string{"message", "count"}, fields)
}

func TestParseRecoversAtNextLine(t *testing.T) {
	t.Parallel()
	src := "interface a.b\ntype Foo (a: )\nmethod Bar() -> ()\n"
	tree, errs := parse(t, src)

	require.Len(t, errs, 1)
	assert.Equal(t, "expected type, found `)`", errs[0].Message)
	assert.Equal(t, syntax.Point{Line: 1, Column: 13}, errs[0].Span.Start)

	bad := ofKind(tree, syntax.SyntaxError)
	require.Len(t, bad, 1)
	assert.Equal(t, ")", tree.Text(bad[0]))

	methods := ofKind(tree, syntax.Method)
	require.Len(t, methods, 1)
	assert.Equal(t, 2, methods[0].Span.Start.Line)
}

func TestParseRecoversAcrossParens(t *testing.T) {
	t.Parallel()
	src := "type Foo (\n  a: ,\n  b: int\n)\ntype Bar (x: int)\n"
	tree, errs := parse(t, src)

	require.Len(t, errs, 1)
	bad := ofKind(tree, syntax.SyntaxError)
	require.Len(t, bad, 1)
	assert.Equal(t, ",\n  b: int\n)", tree.Text(bad[0]))
	assert.Len(t, ofKind(tree, syntax.Typedef), 2)
}

func TestParseTopLevelGarbage(t *testing.T) {
	t.Parallel()
	tree, errs := parse(t, "interface a.b\nwat is this\n")

	require.Len(t, errs, 1)
	assert.Equal(t, "expected declaration, found `wat`", errs[0].Message)
	bad := ofKind(tree, syntax.SyntaxError)
	require.Len(t, bad, 1)
	assert.Equal(t, "wat is this", tree.Text(bad[0]))
}

func TestParseUnterminated(t *testing.T) {
	t.Parallel()
	tree, errs := parse(t, "type Foo (a: int")

	require.Len(t, errs, 1)
	assert.Equal(t, "expected `,` or `)`, found end of file", errs[0].Message)
	assert.True(t, errs[0].Span.Empty())

	last, ok := tree.Last()
	require.True(t, ok)
	assert.NotEqual(t, syntax.Eol, last.Kind)
}

func TestParseMissingNameAtLineEnd(t *testing.T) {
	t.Parallel()
	tree, errs := parse(t, "type\n")

	require.Len(t, errs, 1)
	assert.Equal(t, "expected name, found newline", errs[0].Message)
	last, ok := tree.Last()
	require.True(t, ok)
	assert.Equal(t, syntax.Eol, last.Kind)
}

func TestParseCRLF(t *testing.T) {
	t.Parallel()
	tree, errs := parse(t, "# doc\r\ntype A (x: int)\r\n")
	require.Empty(t, errs)

	comments := ofKind(tree, syntax.Comment)
	require.Len(t, comments, 1)
	assert.Equal(t, "# doc", tree.Text(comments[0]))
	assert.Len(t, ofKind(tree, syntax.Eol), 2)
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()
	tree, errs := parse(t, "")
	assert.Empty(t, errs)
	assert.Equal(t, 1, tree.Len())
}

func TestParseCommentsInsideStruct(t *testing.T) {
	t.Parallel()
	src := "type A (\n  # first\n  x: int, # trailing\n  y: int\n)\n"
	tree, errs := parse(t, src)
	require.Empty(t, errs)

	comments := ofKind(tree, syntax.Comment)
	require.Len(t, comments, 2)
	st := ofKind(tree, syntax.Struct)[0]
	for _, c := range comments {
		assert.Equal(t, st.ID, c.Parent)
	}
}
