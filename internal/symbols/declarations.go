package symbols

import "github.com/jward/varlens/internal/syntax"

// DeclKind names a declaration category in indexes and lint rule input.
type DeclKind string

const (
	DeclInterface DeclKind = "interface"
	DeclType      DeclKind = "type"
	DeclError     DeclKind = "error"
	DeclMethod    DeclKind = "method"
	DeclField     DeclKind = "field"
	DeclMember    DeclKind = "member"
)

var declKinds = map[syntax.Kind]DeclKind{
	syntax.InterfaceDeclaration: DeclInterface,
	syntax.Typedef:              DeclType,
	syntax.Error:                DeclError,
	syntax.Method:               DeclMethod,
}

// Declaration is one named declaration in document order. Fields and enum
// members point at the type, error or method they belong to through Parent,
// an index into the same slice (-1 for top-level declarations).
type Declaration struct {
	Name     string
	Kind     DeclKind
	Node     syntax.NodeID
	Span     syntax.Span
	NameSpan syntax.Span
	Parent   int
	// Scope is the parent's name, or "" at top level.
	Scope string
}

// Declarations flattens every named declaration of t. Unnamed declarations
// are skipped, and fields of inline structs belong to the enclosing
// top-level declaration.
func Declarations(t *syntax.Tree) []Declaration {
	var out []Declaration
	index := map[syntax.NodeID]int{}

	scoped := func(n, name syntax.Node, kind DeclKind) {
		d := Declaration{Name: t.Text(name), Kind: kind, Node: n.ID, Span: n.Span, NameSpan: name.Span, Parent: -1}
		if owner, ok := t.Ancestor(n, syntax.Typedef, syntax.Error, syntax.Method); ok {
			if i, ok := index[owner.ID]; ok {
				d.Parent = i
				d.Scope = out[i].Name
			}
		}
		out = append(out, d)
	}

	for _, n := range t.Nodes() {
		switch n.Kind {
		case syntax.InterfaceDeclaration, syntax.Typedef, syntax.Error, syntax.Method:
			name, ok := NameOf(t, n)
			if !ok {
				continue
			}
			index[n.ID] = len(out)
			out = append(out, Declaration{
				Name: t.Text(name), Kind: declKinds[n.Kind], Node: n.ID,
				Span: n.Span, NameSpan: name.Span, Parent: -1,
			})
		case syntax.StructField:
			if name, ok := NameOf(t, n); ok {
				scoped(n, name, DeclField)
			}
		case syntax.Name:
			if p, ok := t.Parent(n); ok && p.Kind == syntax.Enum {
				scoped(n, n, DeclMember)
			}
		}
	}
	return out
}
