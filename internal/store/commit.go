package store

import "fmt"

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to the real
// rowids SQLite assigns, and all FK references within the batch are
// rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Declarations (parents precede their fields and members)
//  2. References (depend on file_id only)
//  3. ResolvedReferences (depend on reference_id, declaration_id)
//  4. Diagnostics (depend on file_id only)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("unmapped batch id %d", id)
		}
		return realID, nil
	}

	// 1. Declarations
	for _, d := range batch.Declarations {
		if d.ParentID != nil {
			realID, err := remap(*d.ParentID)
			if err != nil {
				return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
			}
			d.ParentID = &realID
		}
		realID, err := insertDeclarationTx(tx, &d)
		if err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
		fakeToReal[d.ID] = realID
	}

	// 2. References
	for _, ref := range batch.References {
		realID, err := insertReferenceTx(tx, &ref)
		if err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", ref.Name, err)
		}
		fakeToReal[ref.ID] = realID
	}

	// 3. ResolvedReferences
	for _, rr := range batch.ResolvedReferences {
		if rr.ReferenceID, err = remap(rr.ReferenceID); err != nil {
			return fmt.Errorf("commit batch: resolved reference: %w", err)
		}
		if rr.DeclarationID, err = remap(rr.DeclarationID); err != nil {
			return fmt.Errorf("commit batch: resolved reference: %w", err)
		}
		if _, err := insertResolvedReferenceTx(tx, &rr); err != nil {
			return fmt.Errorf("commit batch: resolved reference: %w", err)
		}
	}

	// 4. Diagnostics
	for _, d := range batch.Diagnostics {
		if _, err := insertDiagnosticTx(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic %q: %w", d.Code, err)
		}
	}

	return tx.Commit()
}
