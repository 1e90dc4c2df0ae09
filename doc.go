// Package varlens provides the semantic core of a language server for the
// varlink interface definition language: position lookups, a symbol table,
// diagnostics, go-to-definition, find-references, rename and hover
// documentation, plus a SQLite-backed workspace index.
//
// # Documents
//
// A [Snapshot] is one immutable version of one document. It wraps the flat,
// start-sorted syntax tree produced by any tree provider, or by the built-in
// parser through [ParseSnapshot]:
//
//	snap, err := varlens.ParseSnapshot("file:///api.varlink", 1, src)
//	if err != nil { ... }
//
//	diags := snap.Diagnostics(diagnostics.Options{})
//	defs, err := snap.Definition(syntax.Point{Line: 12, Column: 20})
//	edit, err := snap.Rename(pos, "NewName")
//
// Every operation is a pure function of the snapshot, so snapshots can be
// shared between goroutines. Absence is reported as an empty result, never
// as an error; errors wrapping [syntax.ErrInvariant] mean the tree broke its
// structural guarantees. The internal/lspconv package converts results to
// Language Server Protocol types.
//
// # Workspace index
//
// An [Engine] indexes a directory of .varlink files into SQLite:
//
//	e, err := varlens.New(".varlens/index.db", varlens.WithConfig(cfg))
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.IndexDirectory(ctx, ".")
//	locs, err := e.Query().ReferencesOf("org.example.Box")
//
// [Engine.IndexFiles] skips files whose content hash is unchanged, unless
// the lint rules changed since the index was built.
//
// # Lint rules
//
// Rules are Risor scripts in the configured rules directory. Each runs once
// per indexed file and reports findings that are stored as diagnostics with
// code "rule:<name>". See the internal/runtime package for the globals
// exposed to rules.
package varlens
