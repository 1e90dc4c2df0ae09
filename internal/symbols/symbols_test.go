package symbols

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/varlens/internal/parser"
	"github.com/jward/varlens/internal/syntax"
)

func build(t *testing.T, src string) (*syntax.Tree, *Table) {
	t.Helper()
	tree, _, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	return tree, Build(tree)
}

func names(occ []Occurrence) []string {
	var out []string
	for _, o := range occ {
		out = append(out, o.Name)
	}
	return out
}

func TestBuildCollectsGlobals(t *testing.T) {
	t.Parallel()
	src := `interface org.example.svc

type A (x: int)
type B (red, green)
type A (y: B)
error Oops (why: string)
method Get(a: A) -> (b: B, c: ?C)
`
	_, tbl := build(t, src)

	name, ok := tbl.InterfaceName()
	require.True(t, ok)
	assert.Equal(t, "org.example.svc", name)

	assert.Equal(t, []string{"A", "B"}, tbl.Typedefs.Names())
	assert.Len(t, tbl.Typedefs.Get("A"), 2)
	assert.Equal(t, []string{"Oops"}, tbl.Errors.Names())
	assert.Equal(t, []string{"Get"}, tbl.Methods.Names())
	assert.Equal(t, []string{"B", "A", "C"}, tbl.TypeRefs.Names())
	assert.Equal(t, []string{"B", "B", "A", "C"}, names(tbl.TypeRefs.All()))

	// occurrences stay in document order
	as := tbl.Typedefs.Get("A")
	assert.True(t, as[0].Span.Start.Before(as[1].Span.Start))
}

func TestBuildScopesFieldsPerStruct(t *testing.T) {
	t.Parallel()
	src := "method M(a: int, a: int) -> (a: int, b: int)\ntype E (x, y, x)\n"
	tree, tbl := build(t, src)

	require.Len(t, tbl.Fields, 2)
	assert.Len(t, tbl.Fields[0].Names.Get("a"), 2)
	assert.Len(t, tbl.Fields[1].Names.Get("a"), 1)
	assert.Equal(t, syntax.Struct, tree.Node(tbl.Fields[0].Owner).Kind)

	require.Len(t, tbl.Members, 1)
	assert.Equal(t, []string{"x", "y"}, tbl.Members[0].Names.Names())
	assert.Len(t, tbl.Members[0].Names.Get("x"), 2)

	assert.Equal(t, tbl.Fields, tbl.Scopes(syntax.Struct))
	assert.Equal(t, tbl.Members, tbl.Scopes(syntax.Enum))
	assert.Nil(t, tbl.Scopes(syntax.Method))
}

func TestOccurrencePointsAtNameNode(t *testing.T) {
	t.Parallel()
	tree, tbl := build(t, "type Foo (x: int)\n")

	occ := tbl.Typedefs.Get("Foo")
	require.Len(t, occ, 1)
	n := tree.Node(occ[0].Node)
	assert.Equal(t, syntax.Name, n.Kind)

	want := Occurrence{
		Name: "Foo",
		Span: syntax.Span{Start: syntax.Point{Line: 0, Column: 5}, End: syntax.Point{Line: 0, Column: 8}},
		Node: n.ID,
	}
	if diff := cmp.Diff(want, occ[0]); diff != "" {
		t.Errorf("occurrence mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSkipsNamelessDeclarations(t *testing.T) {
	t.Parallel()
	_, tbl := build(t, "type\nmethod\nerror E (x: int)\n")

	assert.Equal(t, 0, tbl.Typedefs.Len())
	assert.Equal(t, 0, tbl.Methods.Len())
	assert.Equal(t, []string{"E"}, tbl.Errors.Names())
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()
	src := "type A (x: B)\ntype B (y: A)\nmethod M() -> (a: A, b: B)\n"
	tree, first := build(t, src)
	second := Build(tree)

	assert.Equal(t, first.Typedefs.All(), second.Typedefs.All())
	assert.Equal(t, first.TypeRefs.All(), second.TypeRefs.All())
}

func TestGlobal(t *testing.T) {
	t.Parallel()
	_, tbl := build(t, "type A (x: int)\n")

	m, ok := tbl.Global(syntax.Typedef)
	require.True(t, ok)
	assert.True(t, m.Has("A"))

	_, ok = tbl.Global(syntax.Struct)
	assert.False(t, ok)
}

func TestDeclarations(t *testing.T) {
	t.Parallel()
	src := `interface org.example

type Color (red, green)
type Box (size: int, inner: (depth: int))
method Paint(box: Box) -> ()
`
	tree, _ := build(t, src)

	type row struct {
		Name   string
		Kind   DeclKind
		Scope  string
		Parent int
	}
	var got []row
	for _, d := range Declarations(tree) {
		got = append(got, row{d.Name, d.Kind, d.Scope, d.Parent})
		assert.True(t, d.Span.Contains(d.NameSpan), d.Name)
	}
	want := []row{
		{"org.example", DeclInterface, "", -1},
		{"Color", DeclType, "", -1},
		{"red", DeclMember, "Color", 1},
		{"green", DeclMember, "Color", 1},
		{"Box", DeclType, "", -1},
		{"size", DeclField, "Box", 4},
		{"inner", DeclField, "Box", 4},
		{"depth", DeclField, "Box", 4},
		{"Paint", DeclMethod, "", -1},
		{"box", DeclField, "Paint", 8},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
}
