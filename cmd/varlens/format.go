package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jward/varlens"
	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/resolve"
	"github.com/jward/varlens/internal/syntax"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "lsp"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}

// outputResult writes a CLIResult in the selected format. The lsp format is
// JSON whose results hold protocol values.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON modes the error is written to stdout as
// a CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func intPtr(n int) *int { return &n }

// --- Conversions ---

func spanToCLI(file string, s syntax.Span) CLILocation {
	return CLILocation{
		File:      file,
		StartLine: s.Start.Line,
		StartCol:  s.Start.Column,
		EndLine:   s.End.Line,
		EndCol:    s.End.Column,
	}
}

func locationsToCLI(locs []varlens.Location) []CLILocation {
	out := make([]CLILocation, len(locs))
	for i, l := range locs {
		out[i] = spanToCLI(l.URI, l.Span)
	}
	return out
}

func diagnosticsToCLI(file string, diags []diagnostics.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		cd := CLIDiagnostic{
			CLILocation: spanToCLI(file, d.Span),
			Severity:    d.Severity.String(),
			Code:        string(d.Code),
			Message:     d.Message,
		}
		for _, r := range d.Related {
			cd.Related = append(cd.Related, CLIRelated{CLILocation: spanToCLI(file, r.Span), Message: r.Message})
		}
		out[i] = cd
	}
	return out
}

func editsToCLI(we *resolve.WorkspaceEdit) []CLIEdit {
	if we == nil {
		return []CLIEdit{}
	}
	files := make([]string, 0, len(we.Changes))
	for file := range we.Changes {
		files = append(files, file)
	}
	sort.Strings(files)
	out := []CLIEdit{}
	for _, file := range files {
		for _, e := range we.Changes[file] {
			out = append(out, CLIEdit{CLILocation: spanToCLI(file, e.Span), NewText: e.NewText})
		}
	}
	return out
}

func declarationToCLI(d varlens.DeclarationResult) CLIDeclaration {
	return CLIDeclaration{
		CLILocation: CLILocation{
			File:      d.FilePath,
			StartLine: d.NameStartLine,
			StartCol:  d.NameStartCol,
			EndLine:   d.NameEndLine,
			EndCol:    d.NameEndCol,
		},
		ID:            d.ID,
		Name:          d.Name,
		Kind:          d.Kind,
		QualifiedName: d.QualifiedName,
		RefCount:      d.RefCount,
		Doc:           d.Doc,
	}
}

// --- Text output ---

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

func formatEditsText(w io.Writer, edits []CLIEdit) {
	for _, e := range edits {
		fmt.Fprintf(w, "%s:%d:%d-%d:%d\t%s\n", e.File, e.StartLine, e.StartCol, e.EndLine, e.EndCol, e.NewText)
	}
}

func formatHoverText(w io.Writer, h CLIHover) {
	fmt.Fprintln(w, h.Code)
	if len(h.Doc) > 0 {
		fmt.Fprintln(w)
		for _, line := range h.Doc {
			fmt.Fprintln(w, line)
		}
	}
}

// formatSymbolsText formats outline entries as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLINE\tCOL")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Name, s.Kind, s.StartLine, s.StartCol)
	}
	tw.Flush()
}

// formatDeclarationsText formats indexed declarations as aligned columns.
func formatDeclarationsText(w io.Writer, decls []CLIDeclaration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUALIFIED NAME\tKIND\tREFS\tFILE\tLINE")
	for _, d := range decls {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%d\n", d.ID, d.QualifiedName, d.Kind, d.RefCount, d.File, d.StartLine)
	}
	tw.Flush()
}

func formatNamespaceText(w io.Writer, entries []CLINamespaceEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUALIFIED NAME\tKIND\tFILE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.QualifiedName, e.Kind, e.File)
	}
	tw.Flush()
}

func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tINTERFACE\tLINES")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.ID, f.Path, f.Interface, f.LineCount)
	}
	tw.Flush()
}

func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n", d.File, d.StartLine+1, d.StartCol+1, d.Severity, d.Code, d.Message)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case CLILocation:
		formatLocationsText(w, []CLILocation{v})
	case []CLIEdit:
		formatEditsText(w, v)
	case CLIHover:
		formatHoverText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIDeclaration:
		formatDeclarationsText(w, v)
	case []CLINamespaceEntry:
		formatNamespaceText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
		// No output for nil results (e.g., hover over nothing).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLILocation:
		return len(r)
	case []CLIEdit:
		return len(r)
	case []CLISymbol:
		return len(r)
	case []CLIDeclaration:
		return len(r)
	case []CLINamespaceEntry:
		return len(r)
	case []CLIFile:
		return len(r)
	case []CLIDiagnostic:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// --- Pretty diagnostics ---

var (
	severityColors = map[diagnostics.Severity]*color.Color{
		diagnostics.SeverityError:       color.New(color.FgRed, color.Bold),
		diagnostics.SeverityWarning:     color.New(color.FgYellow, color.Bold),
		diagnostics.SeverityInformation: color.New(color.FgBlue, color.Bold),
		diagnostics.SeverityHint:        color.New(color.FgCyan),
	}
	locationColor = color.New(color.Bold)
	gutterColor   = color.New(color.FgBlue)
	caretColor    = color.New(color.FgGreen, color.Bold)
)

// printPretty writes diagnostics the way compilers do: a 1-based
// "path:line:col: severity code: message" header, the source line, and a
// caret underline of the span. Related locations follow as notes.
func printPretty(w io.Writer, path string, lines []string, diags []diagnostics.Diagnostic) {
	for _, d := range diags {
		sev := severityColors[d.Severity]
		if sev == nil {
			sev = color.New()
		}
		fmt.Fprintf(w, "%s %s %s: %s\n",
			locationColor.Sprintf("%s:%d:%d:", path, d.Span.Start.Line+1, d.Span.Start.Column+1),
			sev.Sprint(d.Severity.String()), d.Code, d.Message)
		printExcerpt(w, lines, d.Span)
		for _, r := range d.Related {
			fmt.Fprintf(w, "%s note: %s\n",
				locationColor.Sprintf("%s:%d:%d:", path, r.Span.Start.Line+1, r.Span.Start.Column+1), r.Message)
			printExcerpt(w, lines, r.Span)
		}
	}
}

// printExcerpt prints the first line of s with a caret underline. Columns
// are byte offsets; the underline is positioned by display width.
func printExcerpt(w io.Writer, lines []string, s syntax.Span) {
	if s.Start.Line < 0 || s.Start.Line >= len(lines) {
		return
	}
	line := strings.TrimRight(lines[s.Start.Line], "\r")
	start := min(s.Start.Column, len(line))
	end := len(line)
	if s.End.Line == s.Start.Line {
		end = min(s.End.Column, len(line))
	}
	if end < start {
		end = start
	}

	number := fmt.Sprintf("%d", s.Start.Line+1)
	fmt.Fprintf(w, "%s %s\n", gutterColor.Sprintf("%s |", number), line)

	var pad strings.Builder
	for _, r := range line[:start] {
		if r == '\t' {
			pad.WriteByte('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	width := max(runewidth.StringWidth(line[start:end]), 1)
	marker := "^" + strings.Repeat("~", width-1)
	fmt.Fprintf(w, "%s %s%s\n", gutterColor.Sprintf("%s |", strings.Repeat(" ", len(number))), pad.String(), caretColor.Sprint(marker))
}
