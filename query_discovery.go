package varlens

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jward/varlens/internal/nsindex"
	"github.com/jward/varlens/internal/store"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// DeclarationResult is a declaration with the fields discovery needs.
type DeclarationResult struct {
	store.Declaration
	FilePath string
	RefCount int // references resolved to this declaration
}

// DeclarationFilter narrows a declaration search. All fields are optional.
type DeclarationFilter struct {
	Kinds      []string // match any of these kinds
	TopLevel   bool     // skip struct fields and enum members
	PathPrefix string   // restrict to files under this path
}

// --- Internal Helpers ---

// normalizePathPrefix ensures a path prefix ends with "/" for correct LIKE matching.
// "api/org" -> "api/org/" to prevent matching "api/org_extra/".
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// escapeLike escapes SQL LIKE special characters (% and _) with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func prefixDeclarationCols(prefix string) string {
	cols := []string{
		"id", "file_id", "parent_id", "name", "kind", "qualified_name",
		"start_line", "start_col", "end_line", "end_col",
		"name_start_line", "name_start_col", "name_end_line", "name_end_col",
	}
	prefixed := make([]string, len(cols)+1)
	for i, c := range cols {
		prefixed[i] = prefix + "." + c
	}
	prefixed[len(cols)] = "COALESCE(" + prefix + ".doc, '')"
	return strings.Join(prefixed, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDeclarationResult expects columns [declaration cols..., file_path, ref_count].
func scanDeclarationResult(row scanner) (DeclarationResult, error) {
	var r DeclarationResult
	d := &r.Declaration
	err := row.Scan(
		&d.ID, &d.FileID, &d.ParentID, &d.Name, &d.Kind, &d.QualifiedName,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol,
		&d.NameStartLine, &d.NameStartCol, &d.NameEndLine, &d.NameEndCol, &d.Doc,
		&r.FilePath, &r.RefCount,
	)
	return r, err
}

// declarationWhere builds the WHERE clause shared by declaration queries.
func declarationWhere(filter DeclarationFilter) ([]string, []any) {
	var where []string
	var args []any
	if len(filter.Kinds) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Kinds)-1) + "?"
		where = append(where, "d.kind IN ("+placeholders+")")
		for _, k := range filter.Kinds {
			args = append(args, k)
		}
	}
	if filter.TopLevel {
		where = append(where, "d.parent_id IS NULL")
	}
	if prefix := normalizePathPrefix(filter.PathPrefix); prefix != "" {
		where = append(where, "f.path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(prefix)+"%")
	}
	return where, args
}

func (q *QueryBuilder) queryDeclarationResults(whereClause string, args []any, tail string, tailArgs ...any) ([]DeclarationResult, error) {
	dataSQL := fmt.Sprintf(
		`SELECT %s, f.path,
			(SELECT COUNT(*) FROM resolved_references rr WHERE rr.declaration_id = d.id) AS ref_count
		 FROM declarations d
		 JOIN files f ON d.file_id = f.id
		 %s
		 ORDER BY d.qualified_name, f.path, d.id
		 %s`,
		prefixDeclarationCols("d"), whereClause, tail,
	)
	rows, err := q.store.DB().Query(dataSQL, append(append([]any{}, args...), tailArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []DeclarationResult{}
	for rows.Next() {
		r, err := scanDeclarationResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// --- Enumeration Endpoints ---

// Files lists indexed files, optionally under a path prefix.
func (q *QueryBuilder) Files(pathPrefix string, page Pagination) (*PagedResult[File], error) {
	page = page.normalize()

	whereClause := ""
	var args []any
	if prefix := normalizePathPrefix(pathPrefix); prefix != "" {
		whereClause = "WHERE path LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(prefix)+"%")
	}

	var totalCount int
	if err := q.store.DB().QueryRow("SELECT COUNT(*) FROM files "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("files: count: %w", err)
	}

	rows, err := q.store.DB().Query(
		`SELECT id, path, COALESCE(interface, ''), hash, line_count, last_indexed
		 FROM files `+whereClause+` ORDER BY path LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("files: query: %w", err)
	}
	defer rows.Close()

	items := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path, &f.Interface, &f.Hash, &f.LineCount, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("files: scan: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("files: rows: %w", err)
	}
	return &PagedResult[File]{Items: items, TotalCount: totalCount}, nil
}

// --- Search ---

// SearchDeclarations performs glob-style search on declaration names.
// '*' is the wildcard (mapped to SQL '%').
func (q *QueryBuilder) SearchDeclarations(pattern string, filter DeclarationFilter, page Pagination) (*PagedResult[DeclarationResult], error) {
	page = page.normalize()

	where, args := declarationWhere(filter)
	// Pattern matching: escape literal % and _ first, then convert * to %
	if pattern != "" && pattern != "*" {
		likePattern := strings.ReplaceAll(escapeLike(pattern), "*", "%")
		where = append(where, "d.name LIKE ? ESCAPE '\\'")
		args = append(args, likePattern)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int
	countSQL := `SELECT COUNT(*) FROM declarations d JOIN files f ON d.file_id = f.id ` + whereClause
	if err := q.store.DB().QueryRow(countSQL, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("search declarations: count: %w", err)
	}

	items, err := q.queryDeclarationResults(whereClause, args, "LIMIT ? OFFSET ?", page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("search declarations: %w", err)
	}
	return &PagedResult[DeclarationResult]{Items: items, TotalCount: totalCount}, nil
}

// WorkspaceSymbols returns the top-level declarations whose name contains
// query, compared case-insensitively. An empty query matches everything.
// Exact matches sort first, then prefix matches.
func (q *QueryBuilder) WorkspaceSymbols(query string) ([]DeclarationResult, error) {
	where, args := declarationWhere(DeclarationFilter{TopLevel: true})
	all, err := q.queryDeclarationResults("WHERE "+strings.Join(where, " AND "), args, "")
	if err != nil {
		return nil, fmt.Errorf("workspace symbols: %w", err)
	}

	fold := cases.Fold()
	needle := fold.String(query)
	rank := func(name string) int {
		switch folded := fold.String(name); {
		case folded == needle:
			return 0
		case strings.HasPrefix(folded, needle):
			return 1
		case strings.Contains(folded, needle):
			return 2
		}
		return -1
	}

	var out []DeclarationResult
	ranks := map[int64]int{}
	for _, r := range all {
		if k := rank(r.Name); k >= 0 {
			ranks[r.ID] = k
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ranks[out[i].ID] < ranks[out[j].ID]
	})
	return out, nil
}

// --- Namespaces ---

// NamespaceEntry is one declaration listed under a namespace.
type NamespaceEntry = nsindex.Entry

// Namespace lists the top-level declarations whose qualified name is prefix
// or lies below it, matching whole dotted segments. An empty prefix lists
// everything.
func (q *QueryBuilder) Namespace(prefix string) ([]NamespaceEntry, error) {
	idx, err := q.namespaceIndex()
	if err != nil {
		return nil, err
	}
	return idx.Under(prefix), nil
}

// NamespaceChildren lists the distinct segments directly below prefix.
func (q *QueryBuilder) NamespaceChildren(prefix string) ([]string, error) {
	idx, err := q.namespaceIndex()
	if err != nil {
		return nil, err
	}
	return idx.Children(prefix), nil
}

func (q *QueryBuilder) namespaceIndex() (*nsindex.Index, error) {
	where, args := declarationWhere(DeclarationFilter{TopLevel: true})
	all, err := q.queryDeclarationResults("WHERE "+strings.Join(where, " AND "), args, "")
	if err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}
	idx := nsindex.New()
	for _, r := range all {
		idx.Put(nsindex.Entry{
			QualifiedName: r.QualifiedName,
			Kind:          r.Kind,
			Path:          r.FilePath,
			DeclarationID: r.ID,
		})
	}
	return idx, nil
}
