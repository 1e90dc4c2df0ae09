package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, interface, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Interface, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// SetFileInterface records the interface name found in an indexed file.
func (s *Store) SetFileInterface(fileID int64, name string) error {
	if _, err := s.db.Exec("UPDATE files SET interface = ? WHERE id = ?", name, fileID); err != nil {
		return fmt.Errorf("set file interface: %w", err)
	}
	return nil
}

const fileCols = "id, path, COALESCE(interface, ''), hash, line_count, last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Interface, &f.Hash, &f.LineCount, &f.LastIndexed)
	return f, err
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files lists all indexed files ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Declaration operations ---

func (s *Store) InsertDeclaration(d *Declaration) (int64, error) {
	id, err := insertDeclarationTx(s.db, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// DeclarationCols is the column list for declaration queries, exported for
// use by QueryBuilder.
const DeclarationCols = `id, file_id, parent_id, name, kind, qualified_name,
	start_line, start_col, end_line, end_col,
	name_start_line, name_start_col, name_end_line, name_end_col, COALESCE(doc, '')`

// ScanDeclarationRow scans a single row selected with DeclarationCols.
func ScanDeclarationRow(scanner interface{ Scan(...any) error }) (*Declaration, error) {
	d := &Declaration{}
	err := scanner.Scan(
		&d.ID, &d.FileID, &d.ParentID, &d.Name, &d.Kind, &d.QualifiedName,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol,
		&d.NameStartLine, &d.NameStartCol, &d.NameEndLine, &d.NameEndCol, &d.Doc,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// QueryDeclarations runs a query selecting DeclarationCols.
func (s *Store) QueryDeclarations(query string, args ...any) ([]*Declaration, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var decls []*Declaration
	for rows.Next() {
		d, err := ScanDeclarationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

func (s *Store) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	return s.QueryDeclarations(
		"SELECT "+DeclarationCols+" FROM declarations WHERE file_id = ? ORDER BY id", fileID,
	)
}

func (s *Store) DeclarationsByName(name string) ([]*Declaration, error) {
	return s.QueryDeclarations(
		"SELECT "+DeclarationCols+" FROM declarations WHERE name = ? ORDER BY id", name,
	)
}

func (s *Store) DeclarationsByQualifiedName(qualified string) ([]*Declaration, error) {
	return s.QueryDeclarations(
		"SELECT "+DeclarationCols+" FROM declarations WHERE qualified_name = ? ORDER BY id", qualified,
	)
}

func (s *Store) DeclarationsByIDs(ids []int64) ([]*Declaration, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.QueryDeclarations(
		"SELECT "+DeclarationCols+" FROM declarations WHERE id IN ("+placeholderList(len(ids))+") ORDER BY id",
		int64sToArgs(ids)...,
	)
}

// DeclarationChildren returns the fields or members scoped under a declaration.
func (s *Store) DeclarationChildren(parentID int64) ([]*Declaration, error) {
	return s.QueryDeclarations(
		"SELECT "+DeclarationCols+" FROM declarations WHERE parent_id = ? ORDER BY id", parentID,
	)
}

// --- Reference operations ---

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	id, err := insertReferenceTx(s.db, ref)
	if err != nil {
		return 0, err
	}
	ref.ID = id
	return id, nil
}

const referenceCols = "id, file_id, name, COALESCE(context, ''), start_line, start_col, end_line, end_col"

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r := &Reference{}
		if err := rows.Scan(&r.ID, &r.FileID, &r.Name, &r.Context, &r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceCols+" FROM references_ WHERE file_id = ? ORDER BY id", fileID)
}

func (s *Store) ReferencesByName(name string) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceCols+" FROM references_ WHERE name = ? ORDER BY id", name)
}

// ReferencesToDeclaration returns the references resolved to a declaration.
func (s *Store) ReferencesToDeclaration(declID int64) ([]*Reference, error) {
	return s.queryReferences(
		`SELECT `+referenceCols+` FROM references_
		 WHERE id IN (SELECT reference_id FROM resolved_references WHERE declaration_id = ?)
		 ORDER BY id`, declID,
	)
}

// --- Diagnostic operations ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnosticTx(s.db, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// DiagnosticsByFile returns a file's diagnostics in insertion order, which
// is the order they were reported in.
func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, severity, code, message, start_line, start_col, end_line, end_col, related
		 FROM diagnostics WHERE file_id = ? ORDER BY id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		var related []byte
		if err := rows.Scan(&d.ID, &d.FileID, &d.Severity, &d.Code, &d.Message,
			&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol, &related); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		if d.Related, err = unmarshalRelated(related); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Transaction-capable inserts shared with CommitBatch ---

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func lastID(res sql.Result, err error, what string) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", what, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func insertDeclarationTx(x execer, d *Declaration) (int64, error) {
	res, err := x.Exec(
		`INSERT INTO declarations (file_id, parent_id, name, kind, qualified_name,
			start_line, start_col, end_line, end_col,
			name_start_line, name_start_col, name_end_line, name_end_col, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.ParentID, d.Name, d.Kind, d.QualifiedName,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
		d.NameStartLine, d.NameStartCol, d.NameEndLine, d.NameEndCol, d.Doc,
	)
	return lastID(res, err, "declaration")
}

func insertReferenceTx(x execer, r *Reference) (int64, error) {
	res, err := x.Exec(
		`INSERT INTO references_ (file_id, name, context, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.FileID, r.Name, r.Context, r.StartLine, r.StartCol, r.EndLine, r.EndCol,
	)
	return lastID(res, err, "reference")
}

func insertResolvedReferenceTx(x execer, rr *ResolvedReference) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO resolved_references (reference_id, declaration_id) VALUES (?, ?)",
		rr.ReferenceID, rr.DeclarationID,
	)
	return lastID(res, err, "resolved reference")
}

func insertDiagnosticTx(x execer, d *Diagnostic) (int64, error) {
	related, err := marshalRelated(d.Related)
	if err != nil {
		return 0, err
	}
	res, err := x.Exec(
		`INSERT INTO diagnostics (file_id, severity, code, message, start_line, start_col, end_line, end_col, related)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Severity, d.Code, d.Message, d.StartLine, d.StartCol, d.EndLine, d.EndCol, related,
	)
	return lastID(res, err, "diagnostic")
}
