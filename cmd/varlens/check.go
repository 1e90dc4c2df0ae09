package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/varlens"
	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/lspconv"
	"github.com/jward/varlens/internal/runtime"
)

// errCheckFailed makes check exit non-zero once its report is written.
var errCheckFailed = errors.New("check found errors")

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Check varlink files for errors",
	Long: "Parses each file, reports duplicate declarations, unknown types, syntax errors and lint rule findings. " +
		"Without arguments every file matched by the configuration is checked. Exits with status 1 when any " +
		"error is found. Text output uses 1-based lines and columns.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	files, err := checkTargets(args)
	if err != nil {
		return outputError(cmd, "check", err)
	}

	rt := runtime.NewRuntime(cfg.RulesDir(), runtime.WithLogger(logger))
	opts := cfg.DiagnosticOptions()

	var (
		all       []CLIDiagnostic
		published []protocol.PublishDiagnosticsParams
		failed    bool
	)
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return outputError(cmd, "check", err)
		}
		snap, err := varlens.ParseSnapshot(path, 0, src)
		if err != nil {
			return outputError(cmd, "check", err)
		}
		diags := snap.Diagnostics(opts)
		found, err := rt.RunRules(cmd.Context(), runtime.NewFileInput(path, snap.Tree, snap.Symbols()))
		if err != nil {
			return outputError(cmd, "check", fmt.Errorf("%s: %w", path, err))
		}
		if len(found) > 0 {
			diags = append(diags, found...)
			diagnostics.SortByStart(diags)
		}
		if diagnostics.HasErrors(diags) {
			failed = true
		}
		logger.Debug().Str("file", path).Int("diagnostics", len(diags)).Msg("checked")

		switch flagFormat {
		case "text":
			printPretty(cmd.OutOrStdout(), displayPath(path), strings.Split(string(src), "\n"), diags)
		case "lsp":
			published = append(published, protocol.PublishDiagnosticsParams{
				URI:         protocol.DocumentUri(fileURI(path)),
				Diagnostics: lspconv.Diagnostics(fileURI(path), diags),
			})
		default:
			all = append(all, diagnosticsToCLI(path, diags)...)
		}
	}

	switch flagFormat {
	case "text":
		if len(files) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Checked %d file(s)\n", len(files))
		}
	case "lsp":
		if published == nil {
			published = []protocol.PublishDiagnosticsParams{}
		}
		if err := outputResult(cmd, CLIResult{Command: "check", Results: published, TotalCount: intPtr(len(published))}); err != nil {
			return err
		}
	default:
		if all == nil {
			all = []CLIDiagnostic{}
		}
		if err := outputResult(cmd, CLIResult{Command: "check", Results: all, TotalCount: intPtr(len(all))}); err != nil {
			return err
		}
	}

	if failed {
		errorHandled = true
		return errCheckFailed
	}
	return nil
}

// checkTargets returns the absolute paths to check: the arguments, or every
// file under the workspace root matched by the include patterns and not
// excluded.
func checkTargets(args []string) ([]string, error) {
	if len(args) > 0 {
		out := make([]string, len(args))
		for i, a := range args {
			abs, err := resolveFilePath(a)
			if err != nil {
				return nil, err
			}
			out[i] = abs
		}
		return out, nil
	}

	fsys := os.DirFS(cfg.Root)
	seen := map[string]bool{}
	var out []string
	for _, pat := range cfg.Index.Include {
		matches, err := doublestar.Glob(fsys, pat)
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pat, err)
		}
		for _, rel := range matches {
			if seen[rel] || !cfg.Matches(rel) {
				continue
			}
			seen[rel] = true
			out = append(out, filepath.Join(cfg.Root, filepath.FromSlash(rel)))
		}
	}
	sort.Strings(out)
	return out, nil
}

// displayPath shortens path relative to the working directory when it lies
// below it.
func displayPath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// fileURI converts an absolute path to a file:// URI.
func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
