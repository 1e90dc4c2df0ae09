package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a span in a file. Lines and columns are 0-based.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	CLILocation
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Related  []CLIRelated `json:"related,omitempty"`
}

// CLIRelated is a secondary location of a diagnostic.
type CLIRelated struct {
	CLILocation
	Message string `json:"message"`
}

// CLIEdit replaces the text of a span.
type CLIEdit struct {
	CLILocation
	NewText string `json:"new_text"`
}

// CLIHover is the documentation of the identifier under the cursor.
type CLIHover struct {
	CLILocation
	Code string   `json:"code"`
	Doc  []string `json:"doc,omitempty"`
}

// CLISymbol is one outline entry of a document.
type CLISymbol struct {
	CLILocation
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CLIDeclaration is an indexed declaration.
type CLIDeclaration struct {
	CLILocation
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	QualifiedName string `json:"qualified_name"`
	RefCount      int    `json:"ref_count"`
	Doc           string `json:"doc,omitempty"`
}

// CLINamespaceEntry is a declaration listed under a namespace.
type CLINamespaceEntry struct {
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	File          string `json:"file"`
	DeclarationID int64  `json:"declaration_id"`
}

// CLIFile is an indexed file.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Interface string `json:"interface,omitempty"`
	LineCount int    `json:"line_count"`
}
