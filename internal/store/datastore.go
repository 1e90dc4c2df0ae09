package store

// DataStore is the interface for indexing-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// indexing) implement this interface.
type DataStore interface {
	// Inserts, each returning the assigned ID.
	InsertDeclaration(decl *Declaration) (int64, error)
	InsertReference(ref *Reference) (int64, error)
	InsertResolvedReference(rr *ResolvedReference) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)

	// Queries needed by lint rules for cross-file lookups.
	DeclarationsByName(name string) ([]*Declaration, error)
	DeclarationsByFile(fileID int64) ([]*Declaration, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
