package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the workspace index.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  interface       TEXT,
  hash            TEXT,
  line_count      INTEGER,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS declarations (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  parent_id       INTEGER REFERENCES declarations(id),
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  qualified_name  TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  name_start_line INTEGER,
  name_start_col  INTEGER,
  name_end_line   INTEGER,
  name_end_col    INTEGER,
  doc             TEXT
);

CREATE TABLE IF NOT EXISTS references_ (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  name            TEXT NOT NULL,
  context         TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS resolved_references (
  id              INTEGER PRIMARY KEY,
  reference_id    INTEGER NOT NULL REFERENCES references_(id),
  declaration_id  INTEGER NOT NULL REFERENCES declarations(id)
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  severity        INTEGER NOT NULL,
  code            TEXT NOT NULL,
  message         TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  related         BLOB
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_interface ON files(interface);
CREATE INDEX IF NOT EXISTS idx_declarations_file ON declarations(file_id);
CREATE INDEX IF NOT EXISTS idx_declarations_name ON declarations(name);
CREATE INDEX IF NOT EXISTS idx_declarations_qualified ON declarations(qualified_name);
CREATE INDEX IF NOT EXISTS idx_declarations_parent ON declarations(parent_id);
CREATE INDEX IF NOT EXISTS idx_references_file ON references_(file_id);
CREATE INDEX IF NOT EXISTS idx_references_name ON references_(name);
CREATE INDEX IF NOT EXISTS idx_resolved_refs_reference ON resolved_references(reference_id);
CREATE INDEX IF NOT EXISTS idx_resolved_refs_declaration ON resolved_references(declaration_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_file ON diagnostics(file_id);
`

// DeleteFileData transactionally removes all data recorded for a file.
// Deletes in reverse-dependency order to respect FK constraints. The files
// row itself is kept; see DeleteFile.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM resolved_references WHERE reference_id IN (SELECT id FROM references_ WHERE file_id = ?)`,
		`DELETE FROM resolved_references WHERE declaration_id IN (SELECT id FROM declarations WHERE file_id = ?)`,
		"DELETE FROM references_ WHERE file_id = ?",
		"DELETE FROM diagnostics WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}

	// Children reference their parent declaration, so delete leaves first.
	if _, err := tx.Exec("DELETE FROM declarations WHERE file_id = ? AND parent_id IS NOT NULL", fileID); err != nil {
		return fmt.Errorf("delete scoped declarations: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM declarations WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete declarations: %w", err)
	}

	return tx.Commit()
}

// DeleteFile removes a file record together with all of its data.
func (s *Store) DeleteFile(fileID int64) error {
	if err := s.DeleteFileData(fileID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}
