package varlens

import (
	"fmt"
	"strings"

	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/store"
	"github.com/jward/varlens/internal/syntax"
)

// QueryBuilder answers workspace questions from the index.
type QueryBuilder struct {
	store *store.Store
}

func span(startLine, startCol, endLine, endCol int) syntax.Span {
	return syntax.Span{
		Start: syntax.Point{Line: startLine, Column: startCol},
		End:   syntax.Point{Line: endLine, Column: endCol},
	}
}

// DefinitionAt finds the type definitions for the reference at pos in the
// indexed file path.
func (q *QueryBuilder) DefinitionAt(path string, pos syntax.Point) ([]Location, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("definition at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}

	// The cursor may sit anywhere in the reference or just after it.
	line, col := pos.Line, pos.Column
	rows, err := q.store.DB().Query(
		`SELECT id FROM references_
		 WHERE file_id = ? AND start_line <= ? AND end_line >= ?
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col >= ?))`,
		f.ID, line, line,
		line, line, col,
		line, line, col,
	)
	if err != nil {
		return nil, fmt.Errorf("definition at: query references: %w", err)
	}
	var refIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("definition at: scan ref: %w", err)
		}
		refIDs = append(refIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("definition at: rows: %w", err)
	}

	var locations []Location
	for _, refID := range refIDs {
		resolved, err := q.store.ResolvedReferencesByRef(refID)
		if err != nil {
			return nil, fmt.Errorf("definition at: resolve ref %d: %w", refID, err)
		}
		for _, rr := range resolved {
			loc, err := q.declarationLocation(rr.DeclarationID)
			if err != nil {
				return nil, fmt.Errorf("definition at: %w", err)
			}
			if loc != nil {
				locations = append(locations, *loc)
			}
		}
	}
	return locations, nil
}

// lookup finds the declarations a query names: a qualified name when it
// contains a dot, otherwise every type with that name.
func (q *QueryBuilder) lookup(name string) ([]*store.Declaration, error) {
	if strings.Contains(name, ".") {
		return q.store.DeclarationsByQualifiedName(name)
	}
	return q.store.QueryDeclarations(
		"SELECT "+store.DeclarationCols+" FROM declarations WHERE name = ? AND kind = 'type' ORDER BY id", name,
	)
}

// DefinitionsOf returns the name locations of the declarations name refers
// to, such as "Box" or "org.example.Box".
func (q *QueryBuilder) DefinitionsOf(name string) ([]Location, error) {
	decls, err := q.lookup(name)
	if err != nil {
		return nil, fmt.Errorf("definitions of %s: %w", name, err)
	}
	paths := map[int64]string{}
	var locations []Location
	for _, d := range decls {
		path, err := q.filePath(paths, d.FileID)
		if err != nil {
			return nil, fmt.Errorf("definitions of %s: %w", name, err)
		}
		locations = append(locations, Location{
			URI:  path,
			Span: span(d.NameStartLine, d.NameStartCol, d.NameEndLine, d.NameEndCol),
		})
	}
	return locations, nil
}

// ReferencesOf returns every type reference resolved to the declarations
// name refers to.
func (q *QueryBuilder) ReferencesOf(name string) ([]Location, error) {
	decls, err := q.lookup(name)
	if err != nil {
		return nil, fmt.Errorf("references of %s: %w", name, err)
	}
	paths := map[int64]string{}
	seen := map[int64]bool{}
	var locations []Location
	for _, d := range decls {
		refs, err := q.store.ReferencesToDeclaration(d.ID)
		if err != nil {
			return nil, fmt.Errorf("references of %s: %w", name, err)
		}
		for _, r := range refs {
			// an ambiguous reference resolves to each candidate
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			path, err := q.filePath(paths, r.FileID)
			if err != nil {
				return nil, fmt.Errorf("references of %s: %w", name, err)
			}
			locations = append(locations, Location{
				URI:  path,
				Span: span(r.StartLine, r.StartCol, r.EndLine, r.EndCol),
			})
		}
	}
	return locations, nil
}

// FileDiagnostics returns the stored diagnostics of an indexed file, or nil
// when the file is not indexed.
func (q *QueryBuilder) FileDiagnostics(path string) ([]diagnostics.Diagnostic, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("file diagnostics: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	stored, err := q.store.DiagnosticsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("file diagnostics: %w", err)
	}
	out := make([]diagnostics.Diagnostic, 0, len(stored))
	for _, sd := range stored {
		d := diagnostics.Diagnostic{
			Severity: diagnostics.Severity(sd.Severity),
			Code:     diagnostics.Code(sd.Code),
			Span:     span(sd.StartLine, sd.StartCol, sd.EndLine, sd.EndCol),
			Message:  sd.Message,
		}
		for _, r := range sd.Related {
			d.Related = append(d.Related, diagnostics.Related{
				Span:    span(r.StartLine, r.StartCol, r.EndLine, r.EndCol),
				Message: r.Message,
			})
		}
		out = append(out, d)
	}
	return out, nil
}

// DeclarationsByFile lists the declarations of an indexed file in document
// order.
func (q *QueryBuilder) DeclarationsByFile(path string) ([]*Declaration, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("declarations by file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	decls, err := q.store.DeclarationsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("declarations by file: %w", err)
	}
	return decls, nil
}

// declarationLocation returns the name location of a declaration.
func (q *QueryBuilder) declarationLocation(id int64) (*Location, error) {
	decls, err := q.store.DeclarationsByIDs([]int64{id})
	if err != nil {
		return nil, err
	}
	if len(decls) == 0 {
		return nil, nil
	}
	d := decls[0]
	f, err := q.store.FileByID(d.FileID)
	if err != nil || f == nil {
		return nil, err
	}
	return &Location{
		URI:  f.Path,
		Span: span(d.NameStartLine, d.NameStartCol, d.NameEndLine, d.NameEndCol),
	}, nil
}

// filePath resolves a file ID through a per-call cache.
func (q *QueryBuilder) filePath(cache map[int64]string, id int64) (string, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	f, err := q.store.FileByID(id)
	if err != nil {
		return "", err
	}
	if f == nil {
		return "", fmt.Errorf("file %d not indexed", id)
	}
	cache[id] = f.Path
	return f.Path, nil
}
