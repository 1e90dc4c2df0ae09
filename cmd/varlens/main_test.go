package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/varlens/internal/config"
	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/syntax"
)

const boxSrc = `# Box service.
interface org.example.box

# A sized box.
type Box (size: int, label: ?Label)

type Label (text: string)

method Get() -> (box: Box)
`

const brokenSrc = `interface org.example.broken

method Get() -> (box: Missing)
`

// newWorkspace writes a workspace with a varlens.toml, a clean and a broken
// file, and returns the config path and root.
func newWorkspace(t *testing.T, toml string) (cfgPath, root string) {
	t.Helper()
	root = t.TempDir()
	cfgPath = filepath.Join(root, config.FileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte(toml), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "api"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "api", "box.varlink"), []byte(boxSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "api", "broken.varlink"), []byte(brokenSrc), 0o644))
	return cfgPath, root
}

// runCLI executes the root command in-process with fresh flag values.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	flagDB, flagFormat, flagConfig, flagLogLevel, flagColor = "", "json", "", "", "off"
	flagForce, flagWrite, flagChildren, flagTopLevel = false, false, false, false
	flagLimit, flagOffset, flagKinds, flagPath = 50, 0, nil, ""
	errorHandled = false
	require.NoError(t, definitionCmd.Flags().Set("name", ""))
	require.NoError(t, referencesCmd.Flags().Set("name", ""))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--color", "off"}, args...))
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// decode unmarshals a CLIResult whose results have type T.
func decode[T any](t *testing.T, stdout string) (T, CLIResult) {
	t.Helper()
	var envelope struct {
		CLIResult
		Results T `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &envelope), "invalid JSON output: %s", stdout)
	return envelope.Results, envelope.CLIResult
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"json", "text", "lsp"} {
		assert.NoError(t, validateFormat(f))
	}
	assert.ErrorContains(t, validateFormat("xml"), `invalid format "xml"`)
}

func TestParseIntArg(t *testing.T) {
	n, err := parseIntArg("12", "line")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parseIntArg("-1", "line")
	assert.ErrorContains(t, err, "must be non-negative")
	_, err = parseIntArg("x", "col")
	assert.ErrorContains(t, err, `invalid col "x"`)
}

func TestPrintPretty(t *testing.T) {
	color.NoColor = true
	lines := strings.Split(brokenSrc, "\n")
	diags := []diagnostics.Diagnostic{{
		Severity: diagnostics.SeverityError,
		Code:     diagnostics.CodeUnknownType,
		Span: syntax.Span{
			Start: syntax.Point{Line: 2, Column: 22},
			End:   syntax.Point{Line: 2, Column: 29},
		},
		Message: "unknown type `Missing`",
	}}

	var buf bytes.Buffer
	printPretty(&buf, "api/broken.varlink", lines, diags)
	want := "api/broken.varlink:3:23: error unknown-type: unknown type `Missing`\n" +
		"3 | method Get() -> (box: Missing)\n" +
		"  |                       ^~~~~~~\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintExcerpt_WideRunes(t *testing.T) {
	color.NoColor = true
	// "日本" is two double-width runes of three bytes each.
	lines := []string{"# 日本 x"}
	var buf bytes.Buffer
	printExcerpt(&buf, lines, syntax.Span{
		Start: syntax.Point{Line: 0, Column: 9},
		End:   syntax.Point{Line: 0, Column: 10},
	})
	assert.Equal(t, "1 | # 日本 x\n  |        ^\n", buf.String())
}

func TestInvalidFormat(t *testing.T) {
	cfgPath, _ := newWorkspace(t, "")
	_, _, err := runCLI(t, "--config", cfgPath, "--format", "xml", "check")
	assert.ErrorContains(t, err, "invalid format")
}

func TestCheck_JSON(t *testing.T) {
	cfgPath, root := newWorkspace(t, "")

	stdout, _, err := runCLI(t, "--config", cfgPath, "check")
	require.ErrorIs(t, err, errCheckFailed)
	assert.True(t, errorHandled)

	diags, res := decode[[]CLIDiagnostic](t, stdout)
	assert.Equal(t, "check", res.Command)
	require.Len(t, diags, 1)
	assert.Equal(t, filepath.Join(root, "api", "broken.varlink"), diags[0].File)
	assert.Equal(t, "error", diags[0].Severity)
	assert.Equal(t, "unknown-type", diags[0].Code)
	assert.Equal(t, 2, diags[0].StartLine)
	assert.Equal(t, 22, diags[0].StartCol)
}

func TestCheck_CleanFile(t *testing.T) {
	cfgPath, root := newWorkspace(t, "")

	stdout, _, err := runCLI(t, "--config", cfgPath, "check", filepath.Join(root, "api", "box.varlink"))
	require.NoError(t, err)
	diags, _ := decode[[]CLIDiagnostic](t, stdout)
	assert.Empty(t, diags)
}

func TestCheck_TextAndRules(t *testing.T) {
	cfgPath, root := newWorkspace(t, "[rules]\ndir = \"lint\"\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lint"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lint", "no-optional.risor"), []byte(`
for _, r := range references {
	if r["context"] == "optional" {
		report(r, "prefer a required field")
	}
}
`), 0o644))

	stdout, stderr, err := runCLI(t, "--config", cfgPath, "--format", "text", "check")
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, stdout, "error unknown-type")
	assert.Contains(t, stdout, "^~~~~~~")
	assert.Contains(t, stdout, "warning rule:no-optional: prefer a required field")
	assert.Contains(t, stderr, "Checked 2 file(s)")
}

func TestCheck_LSP(t *testing.T) {
	cfgPath, root := newWorkspace(t, "")

	stdout, _, err := runCLI(t, "--config", cfgPath, "--format", "lsp", "check", filepath.Join(root, "api", "broken.varlink"))
	require.ErrorIs(t, err, errCheckFailed)

	type lspDiag struct {
		Range struct {
			Start struct {
				Line      int `json:"line"`
				Character int `json:"character"`
			} `json:"start"`
		} `json:"range"`
		Severity int    `json:"severity"`
		Source   string `json:"source"`
	}
	published, _ := decode[[]struct {
		URI         string    `json:"uri"`
		Diagnostics []lspDiag `json:"diagnostics"`
	}](t, stdout)
	require.Len(t, published, 1)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(root, "api", "broken.varlink")), published[0].URI)
	require.Len(t, published[0].Diagnostics, 1)
	assert.Equal(t, 2, published[0].Diagnostics[0].Range.Start.Line)
	assert.Equal(t, 1, published[0].Diagnostics[0].Severity)
	assert.Equal(t, "varlens", published[0].Diagnostics[0].Source)
}

func TestCheckTargets_ConfigGlobs(t *testing.T) {
	_, root := newWorkspace(t, "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "legacy"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "legacy", "old.varlink"), []byte(boxSrc), 0o644))

	cfg = config.Default()
	cfg.Root = root
	cfg.Index.Exclude = []string{"legacy/**"}

	files, err := checkTargets(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "api", "box.varlink"),
		filepath.Join(root, "api", "broken.varlink"),
	}, files)
}

func TestQuery_DatabaseMissing(t *testing.T) {
	cfgPath, _ := newWorkspace(t, "")

	stdout, _, err := runCLI(t, "--config", cfgPath, "query", "files")
	require.Error(t, err)
	_, res := decode[any](t, stdout)
	assert.Equal(t, "files", res.Command)
	assert.Contains(t, res.Error, "database not found")
}

func TestIndexAndQuery(t *testing.T) {
	cfgPath, root := newWorkspace(t, "")
	box := filepath.Join(root, "api", "box.varlink")
	broken := filepath.Join(root, "api", "broken.varlink")

	_, stderr, err := runCLI(t, "--config", cfgPath, "index")
	require.NoError(t, err)
	assert.Contains(t, stderr, "(2 files)")
	assert.FileExists(t, filepath.Join(root, ".varlens", "index.db"))

	t.Run("files", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "files")
		require.NoError(t, err)
		files, res := decode[[]CLIFile](t, stdout)
		require.Len(t, files, 2)
		assert.Equal(t, 2, *res.TotalCount)
		assert.Equal(t, "org.example.box", files[0].Interface)
	})

	t.Run("definition by name", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "definition", "--name", "org.example.box.Box")
		require.NoError(t, err)
		locs, _ := decode[[]CLILocation](t, stdout)
		assert.Equal(t, []CLILocation{{File: box, StartLine: 4, StartCol: 5, EndLine: 4, EndCol: 8}}, locs)
	})

	t.Run("references by name", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "references", "--name", "Box")
		require.NoError(t, err)
		locs, _ := decode[[]CLILocation](t, stdout)
		assert.Equal(t, []CLILocation{{File: box, StartLine: 8, StartCol: 22, EndLine: 8, EndCol: 25}}, locs)
	})

	t.Run("workspace symbols", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "workspace-symbols", "get")
		require.NoError(t, err)
		decls, _ := decode[[]CLIDeclaration](t, stdout)
		require.Len(t, decls, 2)
		assert.Equal(t, "org.example.box.Get", decls[0].QualifiedName)
		assert.Equal(t, "org.example.broken.Get", decls[1].QualifiedName)
	})

	t.Run("search", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "search", "*", "--kind", "field", "--limit", "1")
		require.NoError(t, err)
		decls, res := decode[[]CLIDeclaration](t, stdout)
		require.Len(t, decls, 1)
		assert.Equal(t, 5, *res.TotalCount)
	})

	t.Run("namespace children", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "namespace", "org.example", "--children")
		require.NoError(t, err)
		children, _ := decode[[]string](t, stdout)
		assert.Equal(t, []string{"box", "broken"}, children)
	})

	t.Run("stored diagnostics", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "diagnostics", broken)
		require.NoError(t, err)
		diags, _ := decode[[]CLIDiagnostic](t, stdout)
		require.Len(t, diags, 1)
		assert.Equal(t, "unknown-type", diags[0].Code)
	})

	t.Run("name and position are exclusive", func(t *testing.T) {
		_, _, err := runCLI(t, "--config", cfgPath, "query", "definition", box, "8", "23", "--name", "Box")
		assert.ErrorContains(t, err, "cannot be combined")
	})
}

func TestQuery_PositionCommands(t *testing.T) {
	cfgPath, root := newWorkspace(t, "")
	box := filepath.Join(root, "api", "box.varlink")

	t.Run("definition", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "definition", box, "8", "23")
		require.NoError(t, err)
		locs, _ := decode[[]CLILocation](t, stdout)
		assert.Equal(t, []CLILocation{{File: box, StartLine: 4, StartCol: 5, EndLine: 4, EndCol: 8}}, locs)
	})

	t.Run("references text", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "--format", "text", "query", "references", box, "4", "6")
		require.NoError(t, err)
		assert.Equal(t, box+":8:22\n", stdout)
	})

	t.Run("hover", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "hover", box, "8", "23")
		require.NoError(t, err)
		hover, _ := decode[CLIHover](t, stdout)
		assert.Equal(t, "type Box (size: int, label: ?Label)", hover.Code)
		assert.Equal(t, []string{"A sized box."}, hover.Doc)
	})

	t.Run("hover over nothing", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "hover", box, "2", "0")
		require.NoError(t, err)
		hover, _ := decode[*CLIHover](t, stdout)
		assert.Nil(t, hover)
	})

	t.Run("prepare-rename", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "prepare-rename", box, "4", "6")
		require.NoError(t, err)
		loc, _ := decode[CLILocation](t, stdout)
		assert.Equal(t, CLILocation{File: box, StartLine: 4, StartCol: 5, EndLine: 4, EndCol: 8}, loc)
	})

	t.Run("symbols", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "symbols", box)
		require.NoError(t, err)
		syms, _ := decode[[]CLISymbol](t, stdout)
		var names []string
		for _, s := range syms {
			names = append(names, s.Name+":"+s.Kind)
		}
		assert.Equal(t, []string{"org.example.box:namespace", "Box:class", "Label:class", "Get:method"}, names)
	})

	t.Run("invalid position", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--config", cfgPath, "query", "hover", box, "x", "0")
		require.Error(t, err)
		_, res := decode[any](t, stdout)
		assert.Contains(t, res.Error, `invalid line "x"`)
	})
}

func TestQuery_RenameWrite(t *testing.T) {
	cfgPath, root := newWorkspace(t, "")
	box := filepath.Join(root, "api", "box.varlink")

	stdout, _, err := runCLI(t, "--config", cfgPath, "query", "rename", box, "8", "23", "Crate", "--write")
	require.NoError(t, err)
	edits, _ := decode[[]CLIEdit](t, stdout)
	require.Len(t, edits, 2)
	assert.Equal(t, "Crate", edits[0].NewText)

	got, err := os.ReadFile(box)
	require.NoError(t, err)
	want := strings.Replace(boxSrc, "type Box", "type Crate", 1)
	want = strings.Replace(want, "(box: Box)", "(box: Crate)", 1)
	assert.Equal(t, want, string(got))
}

func TestWatcher_Reindex(t *testing.T) {
	cfgPath, root := newWorkspace(t, "")
	var err error
	cfg, err = config.Load(cfgPath)
	require.NoError(t, err)
	flagDB, flagFormat = "", "text"
	color.NoColor = true

	e, err := openEngine()
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.IndexDirectory(context.Background(), root))

	var out bytes.Buffer
	w := &watcher{engine: e, out: &out}
	box := filepath.Join(root, "api", "box.varlink")
	broken := filepath.Join(root, "api", "broken.varlink")

	// fix the broken file, break the clean one
	require.NoError(t, os.WriteFile(broken, []byte(boxSrc), 0o644))
	require.NoError(t, os.WriteFile(box, []byte(brokenSrc), 0o644))
	w.reindex(context.Background(), []string{box, broken, filepath.Join(root, "notes.md")})

	assert.Contains(t, out.String(), "box.varlink:3:23: error unknown-type")
	assert.Contains(t, out.String(), "broken.varlink: ok")

	require.NoError(t, os.Remove(box))
	out.Reset()
	w.reindex(context.Background(), []string{box})
	assert.Empty(t, out.String())
	diags, err := e.Query().FileDiagnostics(box)
	require.NoError(t, err)
	assert.Nil(t, diags, "deleted file should leave the index")
}

func TestWatchPathFilters(t *testing.T) {
	assert.True(t, shouldSkipWatchDir(".git"))
	assert.True(t, shouldSkipWatchDir("vendor"))
	assert.False(t, shouldSkipWatchDir("api"))

	ignore := map[string]bool{"/ws/.varlens/index.db": true}
	assert.True(t, shouldIgnoreWatchPath("/ws/.varlens/index.db", ignore))
	assert.True(t, shouldIgnoreWatchPath("/ws/api/.box.varlink.swp", ignore))
	assert.False(t, shouldIgnoreWatchPath("/ws/api/box.varlink", ignore))
}

func TestWatchNewDir_QueuesExistingFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "added")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	for _, name := range []string{"a.varlink", "nested/b.varlink", ".git/HEAD", "c.varlink~"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(boxSrc), 0o644))
	}

	fw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer fw.Close()

	var queued []string
	require.NoError(t, watchNewDir(fw, dir, map[string]bool{}, func(p string) { queued = append(queued, p) }))

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.varlink"),
		filepath.Join(dir, "nested", "b.varlink"),
	}, queued)
	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "nested")}, fw.WatchList())
}
