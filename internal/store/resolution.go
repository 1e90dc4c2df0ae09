package store

import (
	"database/sql"
	"fmt"
)

// --- ResolvedReference operations ---

func (s *Store) InsertResolvedReference(rr *ResolvedReference) (int64, error) {
	id, err := insertResolvedReferenceTx(s.db, rr)
	if err != nil {
		return 0, err
	}
	rr.ID = id
	return id, nil
}

func (s *Store) queryResolvedRefs(query string, args ...any) ([]*ResolvedReference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*ResolvedReference
	for rows.Next() {
		rr := &ResolvedReference{}
		if err := rows.Scan(&rr.ID, &rr.ReferenceID, &rr.DeclarationID); err != nil {
			return nil, fmt.Errorf("scan resolved reference: %w", err)
		}
		refs = append(refs, rr)
	}
	return refs, rows.Err()
}

const resolvedRefCols = `id, reference_id, declaration_id`

func (s *Store) ResolvedReferencesByRef(referenceID int64) ([]*ResolvedReference, error) {
	return s.queryResolvedRefs(
		"SELECT "+resolvedRefCols+" FROM resolved_references WHERE reference_id = ? ORDER BY id", referenceID,
	)
}

func (s *Store) ResolvedReferencesByDeclaration(declID int64) ([]*ResolvedReference, error) {
	return s.queryResolvedRefs(
		"SELECT "+resolvedRefCols+" FROM resolved_references WHERE declaration_id = ? ORDER BY id", declID,
	)
}

// --- Metadata ---

// GetMetadata returns the value stored under key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
