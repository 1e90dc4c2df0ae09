package features

import (
	"strings"

	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// CompletionKind tells the editor what kind of thing a completion inserts.
type CompletionKind string

const (
	CompletionKeyword CompletionKind = "keyword"
	CompletionBuiltin CompletionKind = "builtin"
	CompletionType    CompletionKind = "type"
)

// Completion is one suggestion. Snippet marks InsertText as containing
// ${n} placeholders.
type Completion struct {
	Label      string         `json:"label"`
	Kind       CompletionKind `json:"kind"`
	InsertText string         `json:"insert_text,omitempty"`
	Snippet    bool           `json:"snippet,omitempty"`
}

var declarationSnippets = []Completion{
	{Label: "interface", Kind: CompletionKeyword, InsertText: "interface ${1}", Snippet: true},
	{Label: "method", Kind: CompletionKeyword, InsertText: "method ${1} (${2}) -> (${3})", Snippet: true},
	{Label: "type", Kind: CompletionKeyword, InsertText: "type ${1} (${2})", Snippet: true},
	{Label: "error", Kind: CompletionKeyword, InsertText: "error ${1} (${2})", Snippet: true},
}

var builtinTypeNames = []string{"bool", "int", "float", "string", "object"}

// typePositions are the texts that can directly precede a type.
var typePositions = []string{":", "?", "[]", "[string]"}

// Complete suggests declaration keywords at the start of an otherwise blank
// line, and builtin and defined type names where a type is expected. The
// word being typed at pos is ignored when deciding. Lines containing a
// comment get no type suggestions.
func Complete(t *syntax.Tree, tbl *symbols.Table, pos syntax.Point) []Completion {
	line, ok := t.Line(pos.Line)
	if !ok || pos.Column < 0 {
		return nil
	}
	before := line[:min(pos.Column, len(line))]
	before = strings.TrimRight(before, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_")
	before = strings.TrimSpace(before)

	var out []Completion
	if before == "" {
		out = append(out, declarationSnippets...)
	}
	if !strings.Contains(line, "#") && expectsType(before) {
		for _, name := range builtinTypeNames {
			out = append(out, Completion{Label: name, Kind: CompletionBuiltin, InsertText: name})
		}
		for _, name := range tbl.Typedefs.Names() {
			out = append(out, Completion{Label: name, Kind: CompletionType})
		}
	}
	return out
}

func expectsType(before string) bool {
	for _, suffix := range typePositions {
		if strings.HasSuffix(before, suffix) {
			return true
		}
	}
	return false
}
