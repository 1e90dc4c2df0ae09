package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/parser"
	"github.com/jward/varlens/internal/store"
	"github.com/jward/varlens/internal/symbols"
)

const boxSource = `interface org.example.box

type Box (size: int, label: ?Label)

type Label (text: string)

method Get() -> (box: Box)
`

func boxInput(t *testing.T) *FileInput {
	t.Helper()
	tree, errs, err := parser.Parse([]byte(boxSource))
	require.NoError(t, err)
	require.Empty(t, errs)
	return NewFileInput("box.varlink", tree, symbols.Build(tree))
}

// --- Input tests ---

func TestNewFileInput(t *testing.T) {
	t.Parallel()
	in := boxInput(t)

	assert.Equal(t, "org.example.box", in.Interface)
	var names []string
	for _, d := range in.Declarations {
		names = append(names, d.Scope+"/"+d.Name)
	}
	assert.Equal(t, []string{
		"/org.example.box", "/Box", "Box/size", "Box/label", "/Label", "Label/text", "/Get", "Get/box",
	}, names)

	require.Len(t, in.References, 2)
	assert.Equal(t, "optional", ReferenceContext(in.Tree, in.References[0]))
	assert.Equal(t, "struct_field", ReferenceContext(in.Tree, in.References[1]))
}

// --- Risor integration tests (via RunSource) ---

func TestRunSource_Globals(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	script := `
assert(file_path == "box.varlink", "file_path")
assert(interface_name == "org.example.box", "interface_name")
assert(len(declarations) == 8, "declarations")
assert(declarations[2]["name"] == "size", "field name")
assert(declarations[2]["scope"] == "Box", "field scope")
assert(declarations[2]["kind"] == "field", "field kind")
assert(len(references) == 2, "references")
assert(references[1]["context"] == "struct_field", "context")
assert(source_line(2) == "type Box (size: int, label: ?Label)", "source_line")
assert(source_line(99) == nil, "source_line past end")
assert(len(declarations_by_name("Box")) == 0, "no index")
log.Info("done")
`
	found, err := rt.RunSource(context.Background(), "globals", script, boxInput(t))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRunSource_ReportAtDeclarationName(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	script := `
for _, d := range declarations {
	if d["kind"] == "type" && len(d["name"]) < 4 {
		report(d, "type name too short")
	}
}
`
	found, err := rt.RunSource(context.Background(), "short-names", script, boxInput(t))
	require.NoError(t, err)
	require.Len(t, found, 1)

	d := found[0]
	assert.Equal(t, diagnostics.SeverityWarning, d.Severity)
	assert.Equal(t, diagnostics.Code("rule:short-names"), d.Code)
	assert.Equal(t, "type name too short", d.Message)
	assert.Equal(t, 2, d.Span.Start.Line)
	assert.Equal(t, 5, d.Span.Start.Column)
	assert.Equal(t, 8, d.Span.End.Column)
}

func TestRunSource_ReportMapFields(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	script := `
report({"message": "check header", "severity": "error", "start_line": 0, "start_col": 0, "end_line": 0, "end_col": 9})
`
	found, err := rt.RunSource(context.Background(), "header", script, boxInput(t))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, diagnostics.SeverityError, found[0].Severity)
	assert.Equal(t, 9, found[0].Span.End.Column)
}

func TestRunSource_ReportErrors(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	tests := []struct {
		name   string
		script string
	}{
		{"no message", `report({"start_line": 1})`},
		{"bad severity", `report({"message": "x", "severity": "loud"})`},
		{"not a map", `report("x")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := rt.RunSource(context.Background(), "bad", tt.script, boxInput(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "rule bad")
		})
	}
}

func TestRunSource_DeclarationsByName(t *testing.T) {
	t.Parallel()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	fileID, err := s.InsertFile(&store.File{Path: "/other.varlink", Interface: "org.example.other"})
	require.NoError(t, err)
	_, err = s.InsertDeclaration(&store.Declaration{FileID: fileID, Name: "Box", Kind: "type", QualifiedName: "org.example.other.Box"})
	require.NoError(t, err)

	rt := NewRuntime("", WithDataStore(s))
	script := `
found := declarations_by_name("Box")
assert(len(found) == 1, "one match")
assert(found[0]["qualified_name"] == "org.example.other.Box", "qualified")
`
	_, err = rt.RunSource(context.Background(), "lookup", script, boxInput(t))
	require.NoError(t, err)
}

// --- Rule file tests ---

func writeRule(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestRunRules_FromDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeRule(t, dir, "b-methods.risor", `
for _, d := range declarations {
	if d["kind"] == "method" {
		report(d, 'method {d["name"]}')
	}
}
`)
	writeRule(t, dir, "a-optional.risor", `
for _, r := range references {
	if r["context"] == "optional" {
		report(r, "optional reference")
	}
}
`)
	writeRule(t, dir, "_lib.risor", `func unused() { return 1 }`)
	writeRule(t, dir, "notes.txt", "not a rule")

	rt := NewRuntime(dir)
	rules, err := rt.ListRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-optional.risor", "b-methods.risor"}, rules)

	found, err := rt.RunRules(context.Background(), boxInput(t))
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, diagnostics.Code("rule:a-optional"), found[0].Code)
	assert.Equal(t, "method Get", found[1].Message)
}

func TestRunRules_MissingDirectory(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(filepath.Join(t.TempDir(), "absent"))
	found, err := rt.RunRules(context.Background(), boxInput(t))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRunRule_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(t.TempDir())
	_, err := rt.RunRule(context.Background(), "nonexistent.risor", boxInput(t))
	require.Error(t, err)
}

func TestRunRule_ImportsLibraryFromFS(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"_naming.risor": &fstest.MapFile{Data: []byte(`func is_upper(s) { return s[0] >= "A" && s[0] <= "Z" }`)},
		"types.risor": &fstest.MapFile{Data: []byte(`
import _naming
for _, d := range declarations {
	if d["kind"] == "type" && !_naming.is_upper(d["name"]) {
		report(d, "type names start upper case")
	}
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(fsys))

	rules, err := rt.ListRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"types.risor"}, rules)

	found, err := rt.RunRule(context.Background(), "types.risor", boxInput(t))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestLoadScript_FromFS_StripsLeadingSeparator(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"check.risor": &fstest.MapFile{Data: []byte(`x := 1`)},
	}
	rt := NewRuntime("", WithRuntimeFS(fsys))
	src, err := rt.LoadScript("/check.risor")
	require.NoError(t, err)
	assert.Equal(t, "x := 1", src)
}

func TestRulesHash(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeRule(t, dir, "a.risor", `x := 1`)

	rt := NewRuntime(dir)
	h1, err := rt.RulesHash()
	require.NoError(t, err)
	assert.NotEmpty(t, h1)

	h2, err := rt.RulesHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// libraries count too
	writeRule(t, dir, "_lib.risor", `y := 2`)
	h3, err := rt.RulesHash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestRuleName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "no-optional", RuleName("rules/no-optional.risor"))
	assert.Equal(t, "plain", RuleName("plain.risor"))
}
