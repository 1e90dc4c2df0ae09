package varlens

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/features"
	"github.com/jward/varlens/internal/resolve"
	"github.com/jward/varlens/internal/syntax"
)

const boxURI = "file:///api/box.varlink"

func pt(line, col int) syntax.Point { return syntax.Point{Line: line, Column: col} }

func lineSpan(line, startCol, endCol int) syntax.Span {
	return syntax.Span{Start: pt(line, startCol), End: pt(line, endCol)}
}

func parseBox(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := ParseSnapshot(boxURI, 3, []byte(boxAPI))
	require.NoError(t, err)
	require.Empty(t, snap.ParseErrors)
	return snap
}

func TestParseSnapshot(t *testing.T) {
	snap := parseBox(t)
	assert.Equal(t, boxURI, snap.URI)
	assert.Equal(t, int32(3), snap.Version)

	name, ok := snap.Symbols().InterfaceName()
	require.True(t, ok)
	assert.Equal(t, "org.example.box", name)
	assert.Same(t, snap.Symbols(), snap.Symbols())
}

func TestSnapshot_SymbolsConcurrent(t *testing.T) {
	snap := parseBox(t)

	var wg sync.WaitGroup
	tables := make([]any, 8)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i] = snap.Symbols()
		}(i)
	}
	wg.Wait()
	for _, tbl := range tables {
		assert.Same(t, snap.Symbols(), tbl)
	}
}

func TestSnapshot_PositionLookups(t *testing.T) {
	snap := parseBox(t)

	leaf, ok := snap.LeafAt(pt(4, 6))
	require.True(t, ok)
	assert.Equal(t, syntax.Name, leaf.Kind)
	assert.Equal(t, lineSpan(4, 5, 8), leaf.Span)

	def, ok := snap.CaptureAt(pt(4, 11), syntax.Typedef)
	require.True(t, ok)
	assert.Equal(t, syntax.Typedef, def.Kind)
	assert.Equal(t, 4, def.Span.Start.Line)

	_, ok = snap.CaptureAt(pt(1, 3), syntax.Typedef)
	assert.False(t, ok)

	lo, hi := snap.SubtreeAt(pt(8, 22))
	assert.Less(t, lo, hi)
	var kinds []syntax.Kind
	for _, n := range snap.Tree.Nodes()[lo:hi] {
		kinds = append(kinds, n.Kind)
	}
	assert.Contains(t, kinds, syntax.Typeref)
}

func TestSnapshot_Diagnostics(t *testing.T) {
	assert.Empty(t, parseBox(t).Diagnostics(diagnostics.Options{}))

	broken, err := ParseSnapshot("file:///broken.varlink", 1, []byte(brokenAPI))
	require.NoError(t, err)
	diags := broken.Diagnostics(diagnostics.Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeUnknownType, diags[0].Code)
	assert.Equal(t, diagnostics.SeverityError, diags[0].Severity)
	assert.Equal(t, 2, diags[0].Span.Start.Line)

	noNewline, err := ParseSnapshot("file:///a.varlink", 1, []byte("interface a.b"))
	require.NoError(t, err)
	diags = noNewline.Diagnostics(diagnostics.Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeMissingNewline, diags[0].Code)
}

func TestSnapshot_Definition(t *testing.T) {
	snap := parseBox(t)
	want := []Location{{URI: boxURI, Span: lineSpan(4, 5, 8)}}

	tests := []struct {
		name string
		pos  syntax.Point
		want []Location
	}{
		{"inside reference", pt(8, 23), want},
		{"just after reference", pt(8, 25), want},
		{"on the definition itself", pt(4, 6), nil},
		{"on a builtin type", pt(4, 17), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := snap.Definition(tt.pos)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("definition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSnapshot_References(t *testing.T) {
	snap := parseBox(t)

	assert.Equal(t, []Location{{URI: boxURI, Span: lineSpan(8, 22, 25)}}, snap.References(pt(4, 6)))
	assert.Equal(t, []Location{{URI: boxURI, Span: lineSpan(4, 29, 34)}}, snap.References(pt(6, 7)))
	assert.Nil(t, snap.References(pt(8, 8)), "methods have no type references")
}

func TestSnapshot_PrepareRename(t *testing.T) {
	snap := parseBox(t)

	sp, ok := snap.PrepareRename(pt(4, 6))
	require.True(t, ok)
	assert.Equal(t, lineSpan(4, 5, 8), sp)

	_, ok = snap.PrepareRename(pt(2, 0))
	assert.False(t, ok)
}

func TestSnapshot_RenameTypeRoundTrip(t *testing.T) {
	snap := parseBox(t)

	edit, err := snap.Rename(pt(8, 23), "Crate")
	require.NoError(t, err)
	require.NotNil(t, edit)
	want := []resolve.Edit{
		{Span: lineSpan(4, 5, 8), NewText: "Crate"},
		{Span: lineSpan(8, 22, 25), NewText: "Crate"},
	}
	if diff := cmp.Diff(want, edit.Changes[boxURI]); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}

	out, err := resolve.ApplyEdits(snap.Tree, edit.Changes[boxURI])
	require.NoError(t, err)
	renamed, err := ParseSnapshot(boxURI, 4, out)
	require.NoError(t, err)
	assert.Empty(t, renamed.Diagnostics(diagnostics.Options{}))
	assert.Equal(t, []Location{{URI: boxURI, Span: lineSpan(8, 22, 27)}}, renamed.References(pt(4, 6)))
}

func TestSnapshot_RenameField(t *testing.T) {
	snap := parseBox(t)

	edit, err := snap.Rename(pt(4, 11), "volume")
	require.NoError(t, err)
	require.NotNil(t, edit)
	assert.Equal(t, []resolve.Edit{{Span: lineSpan(4, 10, 14), NewText: "volume"}}, edit.Changes[boxURI])

	edit, err = snap.Rename(pt(2, 0), "x")
	require.NoError(t, err)
	assert.Nil(t, edit)
}

func TestSnapshot_Hover(t *testing.T) {
	snap := parseBox(t)

	doc, ok := snap.Hover(pt(8, 23))
	require.True(t, ok)
	assert.Equal(t, []string{"A sized box."}, doc.Lines)
	assert.Equal(t, "type Box (size: int, label: ?Label)", doc.Code)

	doc, ok = snap.Hover(pt(1, 12))
	require.True(t, ok)
	assert.Equal(t, []string{"Box service."}, doc.Lines)

	doc, ok = snap.Hover(pt(6, 7))
	require.True(t, ok)
	assert.Empty(t, doc.Lines)

	_, ok = snap.Hover(pt(2, 0))
	assert.False(t, ok)
}

func TestSnapshot_Docstring(t *testing.T) {
	snap := parseBox(t)
	def, ok := snap.CaptureAt(pt(4, 6), syntax.Typedef)
	require.True(t, ok)

	doc := snap.Docstring(def.ID)
	assert.Equal(t, []string{"A sized box."}, doc.Lines)
	assert.Equal(t, def.Span, doc.Span)
}

func TestSnapshot_Features(t *testing.T) {
	snap := parseBox(t)

	var names []string
	for _, s := range snap.Outline() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"org.example.box", "Box", "Label", "Get"}, names)
	folds := snap.FoldingRanges()
	require.NotEmpty(t, folds)
	assert.Equal(t, 4, folds[0].Start.Line)
	assert.NotEmpty(t, snap.SemanticTokens())

	ranges := snap.SelectionRange(pt(4, 6))
	require.NotEmpty(t, ranges)
	assert.Equal(t, lineSpan(4, 5, 8), ranges[0])

	var types []string
	for _, c := range snap.Completion(pt(8, 22)) {
		if c.Kind == features.CompletionType {
			types = append(types, c.Label)
		}
	}
	assert.ElementsMatch(t, []string{"Box", "Label"}, types)
}
