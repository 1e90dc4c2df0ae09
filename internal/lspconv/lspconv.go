// Package lspconv converts analysis results to Language Server Protocol 3.16
// values. Columns pass through unchanged: the analysis counts bytes, which
// equals UTF-16 code units for the ASCII text varlink allows outside
// comments.
package lspconv

import (
	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/docstring"
	"github.com/jward/varlens/internal/features"
	"github.com/jward/varlens/internal/resolve"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// Source is reported as the origin of every diagnostic.
const Source = "varlens"

func u32(v int) protocol.UInteger {
	n, err := safecast.Conv[uint32](v)
	if err != nil {
		return 0
	}
	return n
}

// Position converts a point.
func Position(p syntax.Point) protocol.Position {
	return protocol.Position{Line: u32(p.Line), Character: u32(p.Column)}
}

// Point converts an LSP position back.
func Point(p protocol.Position) syntax.Point {
	return syntax.Point{Line: int(p.Line), Column: int(p.Character)}
}

// Range converts a span.
func Range(s syntax.Span) protocol.Range {
	return protocol.Range{Start: Position(s.Start), End: Position(s.End)}
}

// Location pairs a span with its document.
func Location(uri string, s syntax.Span) protocol.Location {
	return protocol.Location{URI: protocol.DocumentUri(uri), Range: Range(s)}
}

// Locations converts occurrences within one document.
func Locations(uri string, occ []symbols.Occurrence) []protocol.Location {
	out := make([]protocol.Location, 0, len(occ))
	for _, o := range occ {
		out = append(out, Location(uri, o.Span))
	}
	return out
}

// Diagnostic converts a finding in document uri.
func Diagnostic(uri string, d diagnostics.Diagnostic) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverity(d.Severity)
	source := Source
	out := protocol.Diagnostic{
		Range:    Range(d.Span),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: string(d.Code)},
		Source:   &source,
		Message:  d.Message,
	}
	for _, r := range d.Related {
		out.RelatedInformation = append(out.RelatedInformation, protocol.DiagnosticRelatedInformation{
			Location: Location(uri, r.Span),
			Message:  r.Message,
		})
	}
	return out
}

// Diagnostics converts a list of findings, never returning nil so that an
// empty report clears the client's list.
func Diagnostics(uri string, ds []diagnostics.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(ds))
	for _, d := range ds {
		out = append(out, Diagnostic(uri, d))
	}
	return out
}

// WorkspaceEdit converts a rename result.
func WorkspaceEdit(we *resolve.WorkspaceEdit) *protocol.WorkspaceEdit {
	if we == nil {
		return nil
	}
	changes := make(map[protocol.DocumentUri][]protocol.TextEdit, len(we.Changes))
	for uri, edits := range we.Changes {
		tes := make([]protocol.TextEdit, 0, len(edits))
		for _, e := range edits {
			tes = append(tes, protocol.TextEdit{Range: Range(e.Span), NewText: e.NewText})
		}
		changes[protocol.DocumentUri(uri)] = tes
	}
	return &protocol.WorkspaceEdit{Changes: changes}
}

// Hover renders a doc as a markdown hover card over the documented node.
func Hover(doc docstring.Doc) *protocol.Hover {
	r := Range(doc.Span)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: doc.Markdown(),
		},
		Range: &r,
	}
}

var symbolKinds = map[features.SymbolKind]protocol.SymbolKind{
	features.SymbolNamespace: protocol.SymbolKindNamespace,
	features.SymbolEvent:     protocol.SymbolKindEvent,
	features.SymbolMethod:    protocol.SymbolKindMethod,
	features.SymbolClass:     protocol.SymbolKindClass,
}

// DocumentSymbols converts an outline. The outline is flat.
func DocumentSymbols(syms []features.Symbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, protocol.DocumentSymbol{
			Name:           s.Name,
			Kind:           symbolKinds[s.Kind],
			Range:          Range(s.Span),
			SelectionRange: Range(s.Selection),
		})
	}
	return out
}

// SymbolInformation converts an outline entry found in document uri, as
// used for workspace symbol results.
func SymbolInformation(uri, container string, s features.Symbol) protocol.SymbolInformation {
	info := protocol.SymbolInformation{
		Name:     s.Name,
		Kind:     symbolKinds[s.Kind],
		Location: Location(uri, s.Selection),
	}
	if container != "" {
		info.ContainerName = &container
	}
	return info
}

// FoldingRanges converts folding spans.
func FoldingRanges(spans []syntax.Span) []protocol.FoldingRange {
	out := make([]protocol.FoldingRange, 0, len(spans))
	for _, s := range spans {
		startChar, endChar := u32(s.Start.Column), u32(s.End.Column)
		out = append(out, protocol.FoldingRange{
			StartLine:      u32(s.Start.Line),
			StartCharacter: &startChar,
			EndLine:        u32(s.End.Line),
			EndCharacter:   &endChar,
		})
	}
	return out
}

// SelectionRange links an innermost-first chain of spans.
func SelectionRange(chain []syntax.Span) *protocol.SelectionRange {
	var parent *protocol.SelectionRange
	for i := len(chain) - 1; i >= 0; i-- {
		parent = &protocol.SelectionRange{Range: Range(chain[i]), Parent: parent}
	}
	return parent
}

// SemanticTokensLegend describes the token types SemanticTokens emits.
func SemanticTokensLegend() protocol.SemanticTokensLegend {
	return protocol.SemanticTokensLegend{
		TokenTypes:     features.TokenTypes,
		TokenModifiers: []string{},
	}
}

// SemanticTokens encodes position-sorted tokens in the relative five-integer
// form. Tokens spanning lines are dropped; the protocol cannot express them
// without the multiline capability.
func SemanticTokens(tokens []features.Token) *protocol.SemanticTokens {
	data := make([]protocol.UInteger, 0, 5*len(tokens))
	var prevLine, prevCol int
	for _, tok := range tokens {
		if tok.Span.Start.Line != tok.Span.End.Line || tok.Span.Empty() {
			continue
		}
		line, col := tok.Span.Start.Line, tok.Span.Start.Column
		deltaCol := col
		if line == prevLine {
			deltaCol = col - prevCol
		}
		data = append(data,
			u32(line-prevLine),
			u32(deltaCol),
			u32(tok.Span.End.Column-col),
			protocol.UInteger(tok.Type),
			0,
		)
		prevLine, prevCol = line, col
	}
	return &protocol.SemanticTokens{Data: data}
}

var completionKinds = map[features.CompletionKind]protocol.CompletionItemKind{
	features.CompletionKeyword: protocol.CompletionItemKindKeyword,
	features.CompletionBuiltin: protocol.CompletionItemKindStruct,
	features.CompletionType:    protocol.CompletionItemKindClass,
}

// CompletionItems converts suggestions.
func CompletionItems(items []features.Completion) []protocol.CompletionItem {
	out := make([]protocol.CompletionItem, 0, len(items))
	for _, it := range items {
		kind := completionKinds[it.Kind]
		ci := protocol.CompletionItem{Label: it.Label, Kind: &kind}
		if it.InsertText != "" {
			text := it.InsertText
			format := protocol.InsertTextFormatPlainText
			if it.Snippet {
				format = protocol.InsertTextFormatSnippet
			}
			ci.InsertText = &text
			ci.InsertTextFormat = &format
		}
		out = append(out, ci)
	}
	return out
}
