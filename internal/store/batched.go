package store

import "sync"

// BatchedStore buffers indexing inserts in memory using fake (negative)
// IDs. It implements DataStore so the analysis of one file can write to it
// without knowing whether it is hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// DeclarationsByName is passed through to the underlying Store, which is
// safe for concurrent reads.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Declarations       []Declaration
	References         []Reference
	ResolvedReferences []ResolvedReference
	Diagnostics        []Diagnostic

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertDeclaration(d *Declaration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Declarations = append(b.Declarations, *d)
	return fakeID, nil
}

func (b *BatchedStore) InsertReference(ref *Reference) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	ref.ID = fakeID
	b.References = append(b.References, *ref)
	return fakeID, nil
}

func (b *BatchedStore) InsertResolvedReference(rr *ResolvedReference) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	rr.ID = fakeID
	b.ResolvedReferences = append(b.ResolvedReferences, *rr)
	return fakeID, nil
}

func (b *BatchedStore) InsertDiagnostic(d *Diagnostic) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Diagnostics = append(b.Diagnostics, *d)
	return fakeID, nil
}

// DeclarationsByName returns committed declarations from the database
// followed by matching buffered ones.
func (b *BatchedStore) DeclarationsByName(name string) ([]*Declaration, error) {
	decls, err := b.store.DeclarationsByName(name)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Declarations {
		if b.Declarations[i].Name == name {
			decls = append(decls, &b.Declarations[i])
		}
	}
	return decls, nil
}

// DeclarationsByFile returns declarations for a file, merging any buffered
// (not yet committed) declarations with those already in the database.
func (b *BatchedStore) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	decls, err := b.store.DeclarationsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Declarations {
		if b.Declarations[i].FileID == fileID {
			decls = append(decls, &b.Declarations[i])
		}
	}
	return decls, nil
}
