package store

import "time"

type File struct {
	ID          int64
	Path        string
	Interface   string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Declaration is a named declaration. Struct fields and enum members carry
// the declaration owning their scope in ParentID.
type Declaration struct {
	ID            int64
	FileID        int64
	ParentID      *int64
	Name          string
	Kind          string
	QualifiedName string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	NameStartLine int
	NameStartCol  int
	NameEndLine   int
	NameEndCol    int
	Doc           string
}

// Reference is a type reference occurrence. Context names the kind of node
// the reference appears in (struct_field, array, optional, ...).
type Reference struct {
	ID        int64
	FileID    int64
	Name      string
	Context   string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// ResolvedReference links a reference to one candidate declaration. An
// ambiguous reference has several rows; an unknown one has none.
type ResolvedReference struct {
	ID            int64
	ReferenceID   int64
	DeclarationID int64
}

// Related is one secondary location of a diagnostic. Stored msgpack-encoded.
type Related struct {
	StartLine int    `msgpack:"sl"`
	StartCol  int    `msgpack:"sc"`
	EndLine   int    `msgpack:"el"`
	EndCol    int    `msgpack:"ec"`
	Message   string `msgpack:"m"`
}

type Diagnostic struct {
	ID        int64
	FileID    int64
	Severity  int
	Code      string
	Message   string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Related   []Related
}
