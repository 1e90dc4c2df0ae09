package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/varlens"
	"github.com/jward/varlens/internal/features"
	"github.com/jward/varlens/internal/lspconv"
	"github.com/jward/varlens/internal/resolve"
	"github.com/jward/varlens/internal/syntax"
)

var (
	flagLimit  int
	flagOffset int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query documents and the workspace index",
	Long: "Position queries (definition, references, hover, prepare-rename, rename, symbols) read the file " +
		"directly. Name, search and namespace queries use the index built by 'varlens index'. " +
		"All line and column numbers are 0-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(hoverCmd)
	queryCmd.AddCommand(prepareRenameCmd)
	queryCmd.AddCommand(renameCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(workspaceSymbolsCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(namespaceCmd)
	queryCmd.AddCommand(diagnosticsCmd)
	queryCmd.AddCommand(filesCmd)
}

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// loadPosition parses <file> <line> <col> and the file itself.
func loadPosition(args []string) (*varlens.Snapshot, syntax.Point, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return nil, syntax.Point{}, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return nil, syntax.Point{}, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return nil, syntax.Point{}, err
	}
	snap, err := loadSnapshot(file)
	if err != nil {
		return nil, syntax.Point{}, err
	}
	return snap, syntax.Point{Line: line, Column: col}, nil
}

func loadSnapshot(file string) (*varlens.Snapshot, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return varlens.ParseSnapshot(file, 0, src)
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() varlens.Pagination {
	return varlens.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// outputLocations writes locations as CLILocations, or as protocol
// locations in lsp format.
func outputLocations(cmd *cobra.Command, command string, locs []varlens.Location) error {
	if flagFormat == "lsp" {
		out := make([]protocol.Location, len(locs))
		for i, l := range locs {
			out[i] = lspconv.Location(fileURI(l.URI), l.Span)
		}
		return outputResult(cmd, CLIResult{Command: command, Results: out, TotalCount: intPtr(len(out))})
	}
	return outputResult(cmd, CLIResult{Command: command, Results: locationsToCLI(locs), TotalCount: intPtr(len(locs))})
}

// --- Position or Name Commands ---

var definitionCmd = &cobra.Command{
	Use:   "definition [<file> <line> <col>]",
	Short: "Find the definition of the type referenced at a position",
	Long:  "Accepts either <file> <line> <col> positional args or --name <name> to search the index.",
	Args:  positionOrName,
	RunE:  runDefinition,
}

var referencesCmd = &cobra.Command{
	Use:   "references [<file> <line> <col>]",
	Short: "Find all references to the type defined at a position",
	Long:  "Accepts either <file> <line> <col> positional args or --name <name> to search the index.",
	Args:  positionOrName,
	RunE:  runReferences,
}

func init() {
	definitionCmd.Flags().String("name", "", "type name or qualified name to look up in the index")
	referencesCmd.Flags().String("name", "", "type name or qualified name to look up in the index")
}

// positionOrName accepts three positional args, or none with --name.
func positionOrName(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	switch {
	case name != "" && len(args) > 0:
		return fmt.Errorf("--name cannot be combined with a position")
	case name == "" && len(args) != 3:
		return fmt.Errorf("requires either <file> <line> <col> arguments or --name flag")
	}
	return nil
}

func runDefinition(cmd *cobra.Command, args []string) error {
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		e, err := openExistingEngine()
		if err != nil {
			return outputError(cmd, "definition", err)
		}
		defer e.Close()
		locs, err := e.Query().DefinitionsOf(name)
		if err != nil {
			return outputError(cmd, "definition", err)
		}
		return outputLocations(cmd, "definition", locs)
	}

	snap, pos, err := loadPosition(args)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	locs, err := snap.Definition(pos)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	return outputLocations(cmd, "definition", locs)
}

func runReferences(cmd *cobra.Command, args []string) error {
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		e, err := openExistingEngine()
		if err != nil {
			return outputError(cmd, "references", err)
		}
		defer e.Close()
		locs, err := e.Query().ReferencesOf(name)
		if err != nil {
			return outputError(cmd, "references", err)
		}
		return outputLocations(cmd, "references", locs)
	}

	snap, pos, err := loadPosition(args)
	if err != nil {
		return outputError(cmd, "references", err)
	}
	return outputLocations(cmd, "references", snap.References(pos))
}

// --- Position Commands ---

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Show the documentation of the identifier at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runHover,
}

func runHover(cmd *cobra.Command, args []string) error {
	snap, pos, err := loadPosition(args)
	if err != nil {
		return outputError(cmd, "hover", err)
	}
	doc, ok := snap.Hover(pos)
	if !ok {
		return outputResult(cmd, CLIResult{Command: "hover", Results: nil})
	}
	if flagFormat == "lsp" {
		return outputResult(cmd, CLIResult{Command: "hover", Results: lspconv.Hover(doc), TotalCount: intPtr(1)})
	}
	return outputResult(cmd, CLIResult{
		Command: "hover",
		Results: CLIHover{
			CLILocation: spanToCLI(snap.URI, doc.Span),
			Code:        doc.Code,
			Doc:         doc.Lines,
		},
		TotalCount: intPtr(1),
	})
}

var prepareRenameCmd = &cobra.Command{
	Use:   "prepare-rename <file> <line> <col>",
	Short: "Show the span a rename at a position would replace",
	Args:  cobra.ExactArgs(3),
	RunE:  runPrepareRename,
}

func runPrepareRename(cmd *cobra.Command, args []string) error {
	snap, pos, err := loadPosition(args)
	if err != nil {
		return outputError(cmd, "prepare-rename", err)
	}
	span, ok := snap.PrepareRename(pos)
	if !ok {
		return outputResult(cmd, CLIResult{Command: "prepare-rename", Results: nil})
	}
	if flagFormat == "lsp" {
		return outputResult(cmd, CLIResult{Command: "prepare-rename", Results: lspconv.Range(span), TotalCount: intPtr(1)})
	}
	return outputResult(cmd, CLIResult{Command: "prepare-rename", Results: spanToCLI(snap.URI, span), TotalCount: intPtr(1)})
}

var flagWrite bool

var renameCmd = &cobra.Command{
	Use:   "rename <file> <line> <col> <new-name>",
	Short: "Compute the edits renaming the identifier at a position",
	Long:  "Renaming a type rewrites its definition and every reference in the file. With --write the file is updated in place.",
	Args:  cobra.ExactArgs(4),
	RunE:  runRename,
}

func init() {
	renameCmd.Flags().BoolVar(&flagWrite, "write", false, "apply the edits to the file")
}

func runRename(cmd *cobra.Command, args []string) error {
	snap, pos, err := loadPosition(args[:3])
	if err != nil {
		return outputError(cmd, "rename", err)
	}
	edit, err := snap.Rename(pos, args[3])
	if err != nil {
		return outputError(cmd, "rename", err)
	}

	if flagWrite && edit != nil {
		out, err := resolve.ApplyEdits(snap.Tree, edit.Changes[snap.URI])
		if err != nil {
			return outputError(cmd, "rename", err)
		}
		info, err := os.Stat(snap.URI)
		if err != nil {
			return outputError(cmd, "rename", err)
		}
		if err := os.WriteFile(snap.URI, out, info.Mode().Perm()); err != nil {
			return outputError(cmd, "rename", err)
		}
		logger.Info().Str("file", snap.URI).Int("edits", len(edit.Changes[snap.URI])).Msg("renamed")
	}

	if flagFormat == "lsp" {
		var results any
		if edit != nil {
			lspEdit := &resolve.WorkspaceEdit{Changes: map[string][]resolve.Edit{fileURI(snap.URI): edit.Changes[snap.URI]}}
			results = lspconv.WorkspaceEdit(lspEdit)
		}
		return outputResult(cmd, CLIResult{Command: "rename", Results: results})
	}
	edits := editsToCLI(edit)
	return outputResult(cmd, CLIResult{Command: "rename", Results: edits, TotalCount: intPtr(len(edits))})
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the interface, type, error and method declarations of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	snap, err := loadSnapshot(file)
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	outline := snap.Outline()
	if flagFormat == "lsp" {
		return outputResult(cmd, CLIResult{Command: "symbols", Results: lspconv.DocumentSymbols(outline), TotalCount: intPtr(len(outline))})
	}
	syms := make([]CLISymbol, len(outline))
	for i, s := range outline {
		syms[i] = CLISymbol{CLILocation: spanToCLI(file, s.Selection), Name: s.Name, Kind: string(s.Kind)}
	}
	return outputResult(cmd, CLIResult{Command: "symbols", Results: syms, TotalCount: intPtr(len(syms))})
}

// --- Index Commands ---

// outlineKinds maps indexed declaration kinds to outline kinds.
var outlineKinds = map[string]features.SymbolKind{
	"interface": features.SymbolNamespace,
	"type":      features.SymbolClass,
	"error":     features.SymbolEvent,
	"method":    features.SymbolMethod,
}

var workspaceSymbolsCmd = &cobra.Command{
	Use:   "workspace-symbols <query>",
	Short: "Find top-level declarations across the workspace by name",
	Long:  "Matches names case-insensitively. Exact matches come first, then prefix matches.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceSymbols,
}

func runWorkspaceSymbols(cmd *cobra.Command, args []string) error {
	e, err := openExistingEngine()
	if err != nil {
		return outputError(cmd, "workspace-symbols", err)
	}
	defer e.Close()

	found, err := e.Query().WorkspaceSymbols(args[0])
	if err != nil {
		return outputError(cmd, "workspace-symbols", err)
	}

	if flagFormat == "lsp" {
		out := make([]protocol.SymbolInformation, len(found))
		for i, d := range found {
			sym := features.Symbol{
				Name: d.Name,
				Kind: outlineKinds[d.Kind],
				Selection: syntax.Span{
					Start: syntax.Point{Line: d.NameStartLine, Column: d.NameStartCol},
					End:   syntax.Point{Line: d.NameEndLine, Column: d.NameEndCol},
				},
			}
			container := ""
			if d.Kind != "interface" {
				container = d.QualifiedName[:max(len(d.QualifiedName)-len(d.Name)-1, 0)]
			}
			out[i] = lspconv.SymbolInformation(fileURI(d.FilePath), container, sym)
		}
		return outputResult(cmd, CLIResult{Command: "workspace-symbols", Results: out, TotalCount: intPtr(len(out))})
	}

	decls := make([]CLIDeclaration, len(found))
	for i, d := range found {
		decls[i] = declarationToCLI(d)
	}
	return outputResult(cmd, CLIResult{Command: "workspace-symbols", Results: decls, TotalCount: intPtr(len(decls))})
}

var (
	flagKinds    []string
	flagTopLevel bool
	flagPath     string
)

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search indexed declarations by name (* is a wildcard)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "filter by kind: interface|type|error|method|field|member")
	searchCmd.Flags().BoolVar(&flagTopLevel, "top-level", false, "skip struct fields and enum members")
	searchCmd.Flags().StringVar(&flagPath, "path", "", "restrict to files under this path")
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := openExistingEngine()
	if err != nil {
		return outputError(cmd, "search", err)
	}
	defer e.Close()

	filter := varlens.DeclarationFilter{Kinds: flagKinds, TopLevel: flagTopLevel}
	if flagPath != "" {
		if filter.PathPrefix, err = resolveFilePath(flagPath); err != nil {
			return outputError(cmd, "search", err)
		}
	}
	res, err := e.Query().SearchDeclarations(args[0], filter, buildPagination())
	if err != nil {
		return outputError(cmd, "search", err)
	}
	decls := make([]CLIDeclaration, len(res.Items))
	for i, d := range res.Items {
		decls[i] = declarationToCLI(d)
	}
	return outputResult(cmd, CLIResult{Command: "search", Results: decls, TotalCount: intPtr(res.TotalCount)})
}

var flagChildren bool

var namespaceCmd = &cobra.Command{
	Use:   "namespace [prefix]",
	Short: "List top-level declarations under a dotted namespace",
	Long:  "Prefixes match whole segments: org.example matches org.example.Box but not org.examples.Box.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNamespace,
}

func init() {
	namespaceCmd.Flags().BoolVar(&flagChildren, "children", false, "list the segments directly below the prefix instead")
}

func runNamespace(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	e, err := openExistingEngine()
	if err != nil {
		return outputError(cmd, "namespace", err)
	}
	defer e.Close()

	if flagChildren {
		children, err := e.Query().NamespaceChildren(prefix)
		if err != nil {
			return outputError(cmd, "namespace", err)
		}
		return outputResult(cmd, CLIResult{Command: "namespace", Results: children, TotalCount: intPtr(len(children))})
	}

	found, err := e.Query().Namespace(prefix)
	if err != nil {
		return outputError(cmd, "namespace", err)
	}
	entries := make([]CLINamespaceEntry, len(found))
	for i, n := range found {
		entries[i] = CLINamespaceEntry{
			QualifiedName: n.QualifiedName,
			Kind:          n.Kind,
			File:          n.Path,
			DeclarationID: n.DeclarationID,
		}
	}
	return outputResult(cmd, CLIResult{Command: "namespace", Results: entries, TotalCount: intPtr(len(entries))})
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Show the diagnostics stored for an indexed file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnostics,
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	e, err := openExistingEngine()
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	defer e.Close()

	diags, err := e.Query().FileDiagnostics(file)
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	if flagFormat == "lsp" {
		return outputResult(cmd, CLIResult{Command: "diagnostics", Results: lspconv.Diagnostics(fileURI(file), diags), TotalCount: intPtr(len(diags))})
	}
	return outputResult(cmd, CLIResult{Command: "diagnostics", Results: diagnosticsToCLI(file, diags), TotalCount: intPtr(len(diags))})
}

var filesCmd = &cobra.Command{
	Use:   "files [path-prefix]",
	Short: "List indexed files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) > 0 {
		p, err := resolveFilePath(args[0])
		if err != nil {
			return outputError(cmd, "files", err)
		}
		prefix = p
	}
	e, err := openExistingEngine()
	if err != nil {
		return outputError(cmd, "files", err)
	}
	defer e.Close()

	res, err := e.Query().Files(prefix, buildPagination())
	if err != nil {
		return outputError(cmd, "files", err)
	}
	files := make([]CLIFile, len(res.Items))
	for i, f := range res.Items {
		files[i] = CLIFile{ID: f.ID, Path: f.Path, Interface: f.Interface, LineCount: f.LineCount}
	}
	return outputResult(cmd, CLIResult{Command: "files", Results: files, TotalCount: intPtr(res.TotalCount)})
}
