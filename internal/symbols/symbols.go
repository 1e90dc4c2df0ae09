// Package symbols collects the named declarations and type references of a
// document into a Table.
package symbols

import "github.com/jward/varlens/internal/syntax"

// Occurrence is one appearance of a name: the identifier node and its span.
type Occurrence struct {
	Name string        `json:"name"`
	Span syntax.Span   `json:"span"`
	Node syntax.NodeID `json:"node"`
}

// NameMap groups occurrences by name. Names keep the order of their first
// appearance and each name's occurrences stay in document order.
type NameMap struct {
	order []string
	occ   map[string][]Occurrence
}

func (m *NameMap) add(o Occurrence) {
	if m.occ == nil {
		m.occ = make(map[string][]Occurrence)
	}
	if _, ok := m.occ[o.Name]; !ok {
		m.order = append(m.order, o.Name)
	}
	m.occ[o.Name] = append(m.occ[o.Name], o)
}

// Names returns the distinct names in order of first appearance.
func (m *NameMap) Names() []string { return m.order }

// Get returns every occurrence of name.
func (m *NameMap) Get(name string) []Occurrence { return m.occ[name] }

// Has reports whether name occurs at least once.
func (m *NameMap) Has(name string) bool { return len(m.occ[name]) > 0 }

// Len returns the number of distinct names.
func (m *NameMap) Len() int { return len(m.order) }

// All returns every occurrence grouped by name.
func (m *NameMap) All() []Occurrence {
	var out []Occurrence
	for _, name := range m.order {
		out = append(out, m.occ[name]...)
	}
	return out
}

// Scope holds the names declared inside one struct or enum.
type Scope struct {
	Owner syntax.NodeID
	Names NameMap
}

// Table is the symbol table of one document.
type Table struct {
	Interfaces NameMap
	Typedefs   NameMap
	Errors     NameMap
	Methods    NameMap
	TypeRefs   NameMap

	// Fields has one scope per struct, Members one per enum, both in
	// document order.
	Fields  []*Scope
	Members []*Scope
}

// Global returns the document-wide map for a declaration or reference kind.
func (t *Table) Global(kind syntax.Kind) (*NameMap, bool) {
	switch kind {
	case syntax.InterfaceDeclaration:
		return &t.Interfaces, true
	case syntax.Typedef:
		return &t.Typedefs, true
	case syntax.Error:
		return &t.Errors, true
	case syntax.Method:
		return &t.Methods, true
	case syntax.Typeref:
		return &t.TypeRefs, true
	}
	return nil, false
}

// Scopes returns the per-owner maps for Struct or Enum.
func (t *Table) Scopes(kind syntax.Kind) []*Scope {
	switch kind {
	case syntax.Struct:
		return t.Fields
	case syntax.Enum:
		return t.Members
	}
	return nil
}

// InterfaceName returns the name of the first interface declaration.
func (t *Table) InterfaceName() (string, bool) {
	names := t.Interfaces.Names()
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}

// NameOf returns the identifier node naming n: the name of a declaration or
// struct field, or the referenced name of a type reference.
func NameOf(t *syntax.Tree, n syntax.Node) (syntax.Node, bool) {
	switch n.Kind {
	case syntax.InterfaceDeclaration:
		return t.Child(n.ID, syntax.InterfaceName)
	case syntax.Typedef, syntax.Error, syntax.Method, syntax.StructField, syntax.Typeref:
		return t.Child(n.ID, syntax.Name)
	}
	return syntax.Node{}, false
}

func occurrence(t *syntax.Tree, n syntax.Node) Occurrence {
	return Occurrence{Name: t.Text(n), Span: n.Span, Node: n.ID}
}

// Build walks the tree once and records every declaration and reference.
// Declarations whose name is missing, as in partially parsed input, are
// skipped.
func Build(t *syntax.Tree) *Table {
	tbl := &Table{}
	for _, n := range t.Nodes() {
		switch n.Kind {
		case syntax.InterfaceDeclaration, syntax.Typedef, syntax.Error, syntax.Method, syntax.Typeref:
			m, _ := tbl.Global(n.Kind)
			if name, ok := NameOf(t, n); ok {
				m.add(occurrence(t, name))
			}
		case syntax.Struct:
			scope := &Scope{Owner: n.ID}
			for _, c := range t.Children(n.ID) {
				if c.Kind != syntax.StructField {
					continue
				}
				if name, ok := NameOf(t, c); ok {
					scope.Names.add(occurrence(t, name))
				}
			}
			tbl.Fields = append(tbl.Fields, scope)
		case syntax.Enum:
			scope := &Scope{Owner: n.ID}
			for _, c := range t.Children(n.ID) {
				if c.Kind == syntax.Name {
					scope.Names.add(occurrence(t, c))
				}
			}
			tbl.Members = append(tbl.Members, scope)
		}
	}
	return tbl
}
