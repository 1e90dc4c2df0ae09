package diagnostics

import (
	"fmt"

	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// AmbiguityPolicy decides what happens to a type reference whose name has
// more than one definition. Such a reference is never reported as unknown;
// the duplicate definitions are already errors of their own.
type AmbiguityPolicy int

const (
	// AmbiguitySilent adds nothing for the reference.
	AmbiguitySilent AmbiguityPolicy = iota
	// AmbiguityNote adds an information diagnostic at the reference that
	// points at every candidate definition.
	AmbiguityNote
)

func (p AmbiguityPolicy) String() string {
	if p == AmbiguityNote {
		return "note"
	}
	return "silent"
}

// ParseAmbiguityPolicy accepts "silent" and "note". The empty string is
// silent.
func ParseAmbiguityPolicy(s string) (AmbiguityPolicy, error) {
	switch s {
	case "", "silent":
		return AmbiguitySilent, nil
	case "note":
		return AmbiguityNote, nil
	}
	return 0, fmt.Errorf("diagnostics: unknown ambiguity policy %q", s)
}

// Options tunes Run.
type Options struct {
	Ambiguity AmbiguityPolicy
	// MaxDiagnostics truncates the sorted result; 0 keeps everything.
	MaxDiagnostics int
}

// duplicate-checked scopes and the word used for them in messages
var globalScopes = []struct {
	kind syntax.Kind
	noun string
}{
	{syntax.Typedef, "type definition"},
	{syntax.Error, "error"},
	{syntax.Method, "method"},
}

// Run checks one document. It never fails: problems with the document are
// the result.
func Run(t *syntax.Tree, tbl *symbols.Table, parseErrors []syntax.ParseError, opts Options) []Diagnostic {
	bag := NewBag(0)

	addParseErrors(bag, parseErrors)

	for _, scope := range tbl.Fields {
		addDuplicates(bag, &scope.Names, "struct field")
	}
	for _, scope := range tbl.Members {
		addDuplicates(bag, &scope.Names, "enum member")
	}
	addUnresolved(bag, tbl, opts.Ambiguity)
	for _, g := range globalScopes {
		m, _ := tbl.Global(g.kind)
		addDuplicates(bag, m, g.noun)
	}
	addTrailingNewline(bag, t)

	bag.Sort()
	items := bag.Items()
	if opts.MaxDiagnostics > 0 && len(items) > opts.MaxDiagnostics {
		items = items[:opts.MaxDiagnostics]
	}
	return items
}

func addParseErrors(bag *Bag, errs []syntax.ParseError) {
	seen := make(map[syntax.Span]bool, len(errs))
	for _, e := range errs {
		if seen[e.Span] {
			continue
		}
		seen[e.Span] = true
		bag.Add(Diagnostic{
			Severity: SeverityError,
			Code:     CodeSyntax,
			Span:     e.Span,
			Message:  e.Message,
		})
	}
}

// addDuplicates reports every occurrence of a name declared more than once,
// each pointing at all the others.
func addDuplicates(bag *Bag, m *symbols.NameMap, noun string) {
	for _, name := range m.Names() {
		occ := m.Get(name)
		if len(occ) < 2 {
			continue
		}
		for i, o := range occ {
			related := make([]Related, 0, len(occ)-1)
			for j, other := range occ {
				if j == i {
					continue
				}
				related = append(related, Related{Span: other.Span, Message: "also declared here"})
			}
			bag.Add(Diagnostic{
				Severity: SeverityError,
				Code:     CodeDuplicate,
				Span:     o.Span,
				Message:  fmt.Sprintf("%s `%s` declared multiple times", noun, name),
				Related:  related,
			})
		}
	}
}

func addUnresolved(bag *Bag, tbl *symbols.Table, policy AmbiguityPolicy) {
	for _, name := range tbl.TypeRefs.Names() {
		defs := tbl.Typedefs.Get(name)
		switch {
		case len(defs) == 0:
			for _, ref := range tbl.TypeRefs.Get(name) {
				bag.Add(Diagnostic{
					Severity: SeverityError,
					Code:     CodeUnknownType,
					Span:     ref.Span,
					Message:  fmt.Sprintf("unknown type `%s`", name),
				})
			}
		case len(defs) > 1 && policy == AmbiguityNote:
			related := make([]Related, 0, len(defs))
			for _, d := range defs {
				related = append(related, Related{Span: d.Span, Message: "candidate definition"})
			}
			for _, ref := range tbl.TypeRefs.Get(name) {
				bag.Add(Diagnostic{
					Severity: SeverityInformation,
					Code:     CodeAmbiguousType,
					Span:     ref.Span,
					Message:  fmt.Sprintf("ambiguous reference to type `%s`", name),
					Related:  related,
				})
			}
		}
	}
}

// addTrailingNewline requires the final node to be a line terminator
// directly below the root.
func addTrailingNewline(bag *Bag, t *syntax.Tree) {
	last, ok := t.Last()
	if !ok {
		return
	}
	if last.Kind == syntax.Eol && last.Parent == 0 {
		return
	}
	end := t.EndPoint()
	bag.Add(Diagnostic{
		Severity: SeverityError,
		Code:     CodeMissingNewline,
		Span:     syntax.Span{Start: end, End: end},
		Message:  "missing trailing newline",
	})
}
