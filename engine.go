package varlens

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jward/varlens/internal/config"
	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/docstring"
	"github.com/jward/varlens/internal/runtime"
	"github.com/jward/varlens/internal/store"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// rulesHashKey is the metadata key holding the hash of the lint rules the
// index was built with.
const rulesHashKey = "rules_hash"

// Engine maintains the workspace index: file discovery, change detection,
// analysis, lint rules and query access.
type Engine struct {
	store    *store.Store
	runtime  *runtime.Runtime
	rulesDir string
	rulesFS  fs.FS
	cfg      *config.Config
	diagOpts diagnostics.Options
	log      zerolog.Logger

	// useParallel enables the parallel analysis pipeline.
	useParallel bool
	// force re-analyses files whose content hash is unchanged.
	force bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel analysis. When true (default), IndexFiles
// uses a worker pool for parsing and rule execution, with a single writer
// committing batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithRulesDir loads lint rules from dir.
func WithRulesDir(dir string) Option {
	return func(e *Engine) {
		e.rulesDir = dir
	}
}

// WithRulesFS loads lint rules from fsys instead of from disk.
func WithRulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.rulesFS = fsys
	}
}

// WithConfig applies the workspace configuration: file globs, diagnostic
// options and the rules directory. Later options override it.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
		e.diagOpts = cfg.DiagnosticOptions()
		if dir := cfg.RulesDir(); dir != "" {
			e.rulesDir = dir
		}
	}
}

// WithDiagnostics sets the options diagnostics run with.
func WithDiagnostics(opts diagnostics.Options) Option {
	return func(e *Engine) {
		e.diagOpts = opts
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithForce re-analyses every file given to IndexFiles, changed or not.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// New creates an Engine backed by a SQLite database at dbPath. The parent
// directory is created when missing.
func New(dbPath string, opts ...Option) (*Engine, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("varlens: create database directory: %w", err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("varlens: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("varlens: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		log:         zerolog.Nop(),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.runtime = e.newRuntime(s)
	return e, nil
}

// newRuntime builds a rule runtime whose declarations_by_name reads ds.
func (e *Engine) newRuntime(ds store.DataStore) *runtime.Runtime {
	rtOpts := []runtime.RuntimeOption{
		runtime.WithDataStore(ds),
		runtime.WithLogger(e.log),
	}
	if e.rulesFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.rulesFS))
	}
	return runtime.NewRuntime(e.rulesDir, rtOpts...)
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// RulesChanged reports whether the lint rules differ from the ones the index
// was built with. A database without a stored hash counts as changed.
func (e *Engine) RulesChanged() bool {
	current, err := e.runtime.RulesHash()
	if err != nil {
		return true
	}
	stored, err := e.store.GetMetadata(rulesHashKey)
	if err != nil || stored == "" {
		return true
	}
	return current != stored
}

func (e *Engine) storeRulesHash() error {
	h, err := e.runtime.RulesHash()
	if err != nil {
		return err
	}
	return e.store.SetMetadata(rulesHashKey, h)
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// uses a worker pool for concurrent analysis with batched SQLite writes.
// Otherwise falls back to the serial path.
//
// For each file:
//  1. Skip unchanged files (same content hash), unless rules changed
//  2. Delete stale data, insert the file record
//  3. Parse, check and run lint rules
//  4. Store declarations, references, resolutions and diagnostics
//
// Errors on individual files are logged and skipped; processing continues
// and the first one is returned at the end.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	force := e.force || e.RulesChanged()
	var err error
	if e.useParallel {
		err = e.indexFilesParallel(ctx, paths, force)
	} else {
		err = e.indexFilesSerial(ctx, paths, force)
	}
	if err != nil {
		return err
	}
	if err := e.storeRulesHash(); err != nil {
		return fmt.Errorf("varlens: store rules hash: %w", err)
	}
	return nil
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string, force bool) error {
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.indexFile(ctx, path, force); err != nil {
			e.log.Warn().Err(err).Str("file", path).Msg("indexing failed")
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		}
	}
	return joinIndexErrors(errs)
}

// joinIndexErrors summarises per-file failures, wrapping the first.
func joinIndexErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
}

// dropFile removes a file whose indexing did not complete so the next run
// retries it.
func (e *Engine) dropFile(fileID int64, path string) {
	if err := e.store.DeleteFile(fileID); err != nil {
		e.log.Warn().Err(err).Str("file", path).Msg("removing incomplete file")
	}
}

func (e *Engine) indexFile(ctx context.Context, path string, force bool) error {
	fileID, content, skip, err := e.prepareFile(path, force)
	if err != nil || skip {
		return err
	}
	iface, err := e.analyzeFile(ctx, e.runtime, e.store, fileID, path, content)
	if err != nil {
		e.dropFile(fileID, path)
		return err
	}
	return e.store.SetFileInterface(fileID, iface)
}

// prepareFile hashes the file, removes a stale copy and inserts a fresh file
// record. skip means the indexed copy is current, or that the file is not a
// varlink file and no configuration says otherwise.
func (e *Engine) prepareFile(path string, force bool) (fileID int64, content []byte, skip bool, err error) {
	if e.cfg == nil && !strings.HasSuffix(path, ".varlink") {
		return 0, nil, true, nil
	}
	content, err = os.ReadFile(path)
	if err != nil {
		return 0, nil, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return 0, nil, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !force {
		e.log.Debug().Str("file", path).Msg("unchanged")
		return 0, nil, true, nil
	}
	if existing != nil {
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return 0, nil, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err = e.store.InsertFile(&store.File{
		Path:        path,
		Hash:        hash,
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return 0, nil, false, fmt.Errorf("insert file: %w", err)
	}
	return fileID, content, false, nil
}

// analyzeFile parses and checks one document, runs the lint rules and writes
// the results to ds. It returns the document's interface name.
func (e *Engine) analyzeFile(ctx context.Context, rt *runtime.Runtime, ds store.DataStore, fileID int64, path string, content []byte) (string, error) {
	snap, err := ParseSnapshot(path, 0, content)
	if err != nil {
		return "", err
	}
	tbl := snap.Symbols()

	diags := snap.Diagnostics(e.diagOpts)
	found, err := rt.RunRules(ctx, runtime.NewFileInput(path, snap.Tree, tbl))
	if err != nil {
		return "", fmt.Errorf("lint rules: %w", err)
	}
	if len(found) > 0 {
		diags = append(diags, found...)
		diagnostics.SortByStart(diags)
	}

	iface, _ := tbl.InterfaceName()
	if err := writeAnalysis(ds, fileID, iface, snap.Tree, tbl, diags); err != nil {
		return "", err
	}
	e.log.Debug().Str("file", path).Int("diagnostics", len(diags)).Msg("indexed")
	return iface, nil
}

// writeAnalysis stores declarations, type references, their resolutions and
// diagnostics. Every type reference resolves to each same-named type of its
// own document.
func writeAnalysis(ds store.DataStore, fileID int64, iface string, t *syntax.Tree, tbl *symbols.Table, diags []diagnostics.Diagnostic) error {
	decls := symbols.Declarations(t)
	ids := make([]int64, len(decls))
	qualified := make([]string, len(decls))
	typeIDs := map[string][]int64{}

	for i, d := range decls {
		switch {
		case d.Kind == symbols.DeclInterface:
			qualified[i] = d.Name
		case d.Parent >= 0:
			qualified[i] = qualified[d.Parent] + "." + d.Name
		case iface != "":
			qualified[i] = iface + "." + d.Name
		default:
			qualified[i] = d.Name
		}

		sd := &store.Declaration{
			FileID:        fileID,
			Name:          d.Name,
			Kind:          string(d.Kind),
			QualifiedName: qualified[i],
			StartLine:     d.Span.Start.Line,
			StartCol:      d.Span.Start.Column,
			EndLine:       d.Span.End.Line,
			EndCol:        d.Span.End.Column,
			NameStartLine: d.NameSpan.Start.Line,
			NameStartCol:  d.NameSpan.Start.Column,
			NameEndLine:   d.NameSpan.End.Line,
			NameEndCol:    d.NameSpan.End.Column,
			Doc:           strings.Join(docstring.For(t, d.Node).Lines, "\n"),
		}
		if d.Parent >= 0 {
			pid := ids[d.Parent]
			sd.ParentID = &pid
		}
		id, err := ds.InsertDeclaration(sd)
		if err != nil {
			return fmt.Errorf("insert declaration %s: %w", d.Name, err)
		}
		ids[i] = id
		if d.Kind == symbols.DeclType {
			typeIDs[d.Name] = append(typeIDs[d.Name], id)
		}
	}

	for _, o := range tbl.TypeRefs.All() {
		ref := &store.Reference{
			FileID:    fileID,
			Name:      o.Name,
			Context:   runtime.ReferenceContext(t, o),
			StartLine: o.Span.Start.Line,
			StartCol:  o.Span.Start.Column,
			EndLine:   o.Span.End.Line,
			EndCol:    o.Span.End.Column,
		}
		refID, err := ds.InsertReference(ref)
		if err != nil {
			return fmt.Errorf("insert reference %s: %w", o.Name, err)
		}
		for _, declID := range typeIDs[o.Name] {
			rr := &store.ResolvedReference{ReferenceID: refID, DeclarationID: declID}
			if _, err := ds.InsertResolvedReference(rr); err != nil {
				return fmt.Errorf("insert resolution %s: %w", o.Name, err)
			}
		}
	}

	for _, d := range diags {
		if _, err := ds.InsertDiagnostic(storeDiagnostic(fileID, d)); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return nil
}

func storeDiagnostic(fileID int64, d diagnostics.Diagnostic) *store.Diagnostic {
	sd := &store.Diagnostic{
		FileID:    fileID,
		Severity:  int(d.Severity),
		Code:      string(d.Code),
		Message:   d.Message,
		StartLine: d.Span.Start.Line,
		StartCol:  d.Span.Start.Column,
		EndLine:   d.Span.End.Line,
		EndCol:    d.Span.End.Column,
	}
	for _, r := range d.Related {
		sd.Related = append(sd.Related, store.Related{
			StartLine: r.Span.Start.Line,
			StartCol:  r.Span.Start.Column,
			EndLine:   r.Span.End.Line,
			EndCol:    r.Span.End.Column,
			Message:   r.Message,
		})
	}
	return sd
}

// RemoveFiles deletes the given paths from the index. Paths that were never
// indexed are ignored.
func (e *Engine) RemoveFiles(paths []string) error {
	for _, path := range paths {
		f, err := e.store.FileByPath(path)
		if err != nil {
			return fmt.Errorf("varlens: lookup %s: %w", path, err)
		}
		if f == nil {
			continue
		}
		if err := e.store.DeleteFile(f.ID); err != nil {
			return fmt.Errorf("varlens: remove %s: %w", path, err)
		}
		e.log.Debug().Str("file", path).Msg("removed")
	}
	return nil
}

// skipDirs are excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// IndexDirectory indexes every varlink file under root and drops indexed
// files under root that no longer exist. If root is inside a git repository,
// uses git ls-files to respect .gitignore; otherwise walks the filesystem,
// skipping hidden directories, node_modules and vendor.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("varlens: resolve %s: %w", root, err)
	}
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.log.Debug().Err(err).Msg("git unavailable, walking directory")
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	if err := e.removeMissing(root, paths); err != nil {
		return err
	}
	return e.IndexFiles(ctx, paths)
}

// wanted reports whether path, under root, should be indexed.
func (e *Engine) wanted(root, path string) bool {
	if e.cfg == nil {
		return strings.HasSuffix(path, ".varlink")
	}
	base := e.cfg.Root
	if base == "" {
		base = root
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return e.cfg.Matches(rel)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if e.wanted(root, absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if e.wanted(root, path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// removeMissing deletes indexed files under root that are not in present.
func (e *Engine) removeMissing(root string, present []string) error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("varlens: list files: %w", err)
	}
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}
	prefix := root + string(filepath.Separator)
	var stale []string
	for _, f := range files {
		if strings.HasPrefix(f.Path, prefix) && !keep[f.Path] {
			stale = append(stale, f.Path)
		}
	}
	return e.RemoveFiles(stale)
}
