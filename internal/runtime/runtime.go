// Package runtime runs user-supplied lint rules written in Risor against an
// analysed document.
//
// A rule is a top-level .risor file in the rules directory. Files whose name
// starts with an underscore are libraries that rules may import. Each rule
// runs once per document with these globals:
//
//	file_path            path of the document
//	interface_name       name of its interface declaration, or ""
//	declarations         list of maps: name, kind, scope, start_line,
//	                     start_col, end_line, end_col, name_start_line,
//	                     name_start_col, name_end_line, name_end_col
//	references           list of maps: name, context, start_line,
//	                     start_col, end_line, end_col
//	source_line(n)       text of line n, or nil
//	report(map[, msg])   record a finding
//	declarations_by_name(name)  indexed declarations across the workspace
//	log                  log.Info / log.Warn / log.Error
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/rs/zerolog"

	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/store"
)

// Runtime embeds a Risor VM and provides document data and optional index
// access to lint rules.
type Runtime struct {
	data     store.DataStore
	rulesDir string
	fsys     fs.FS
	log      zerolog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load rules from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithDataStore exposes workspace declarations to rules through
// declarations_by_name.
func WithDataStore(ds store.DataStore) RuntimeOption {
	return func(r *Runtime) {
		r.data = ds
	}
}

// WithLogger sets the logger behind the rules' log global.
func WithLogger(log zerolog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.log = log
	}
}

// NewRuntime creates a Runtime loading rules from rulesDir. An empty
// rulesDir without WithRuntimeFS means there are no rules.
func NewRuntime(rulesDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		rulesDir: rulesDir,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RuleName is the name a rule reports findings under: the file's base name
// without extension.
func RuleName(rulePath string) string {
	return strings.TrimSuffix(path.Base(filepath.ToSlash(rulePath)), ".risor")
}

// RunRule loads and executes one rule against a document.
func (r *Runtime) RunRule(ctx context.Context, rulePath string, in *FileInput) ([]diagnostics.Diagnostic, error) {
	src, err := r.LoadScript(rulePath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, RuleName(rulePath), src, in)
}

// RunSource executes Risor source directly as the named rule. Useful for
// testing without rule files.
func (r *Runtime) RunSource(ctx context.Context, rule, source string, in *FileInput) ([]diagnostics.Diagnostic, error) {
	return r.eval(ctx, rule, source, in)
}

// RunRules runs every rule against a document and returns the findings in
// rule order. The first failing rule aborts the run.
func (r *Runtime) RunRules(ctx context.Context, in *FileInput) ([]diagnostics.Diagnostic, error) {
	rules, err := r.ListRules()
	if err != nil {
		return nil, err
	}
	var out []diagnostics.Diagnostic
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := r.RunRule(ctx, rule, in)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (r *Runtime) eval(ctx context.Context, rule, source string, in *FileInput) ([]diagnostics.Diagnostic, error) {
	rep := &reporter{rule: rule}
	globals := r.buildGlobals(in, rep)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return nil, fmt.Errorf("runtime: rule %s: %w", rule, err)
	}
	r.log.Debug().Str("rule", rule).Str("file", in.Path).Int("findings", len(rep.found)).Msg("rule finished")
	return rep.found, nil
}

// buildImporter returns a Risor importer configured for the Runtime's rule source.
// Returns nil if neither fs.FS nor rulesDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.rulesDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.rulesDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with rulesDir as the base directory.
func (r *Runtime) LoadScript(p string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(p), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading rule %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := p
	if !filepath.IsAbs(p) {
		fullPath = filepath.Join(r.rulesDir, p)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading rule %s: %w", fullPath, err)
	}
	return string(data), nil
}

func isRuleFile(name string) bool {
	return strings.HasSuffix(name, ".risor") && !strings.HasPrefix(name, "_")
}

// scriptFiles returns every top-level .risor file, sorted. A missing rules
// directory holds none.
func (r *Runtime) scriptFiles() ([]string, error) {
	var entries []fs.DirEntry
	var err error
	switch {
	case r.fsys != nil:
		entries, err = fs.ReadDir(r.fsys, ".")
	case r.rulesDir != "":
		entries, err = os.ReadDir(r.rulesDir)
		if os.IsNotExist(err) {
			return nil, nil
		}
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runtime: list rules: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".risor") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ListRules returns the rule files, sorted.
func (r *Runtime) ListRules() ([]string, error) {
	files, err := r.scriptFiles()
	if err != nil {
		return nil, err
	}
	var rules []string
	for _, f := range files {
		if isRuleFile(f) {
			rules = append(rules, f)
		}
	}
	return rules, nil
}

// RulesHash fingerprints every .risor file, libraries included, so that an
// index built with different rules can be detected.
func (r *Runtime) RulesHash() (string, error) {
	files, err := r.scriptFiles()
	if err != nil {
		return "", err
	}
	scripts := make(map[string]string, len(files))
	for _, p := range files {
		src, err := r.LoadScript(p)
		if err != nil {
			return "", err
		}
		scripts[p] = src
	}
	return store.ComputeRulesHash(scripts), nil
}
