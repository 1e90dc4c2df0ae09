package features

import (
	"sort"

	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// TokenType indexes TokenTypes.
type TokenType uint32

const (
	TokenComment TokenType = iota
	TokenDecorator
	TokenEnumMember
	TokenEvent
	TokenInterface
	TokenKeyword
	TokenMethod
	TokenNamespace
	TokenProperty
	TokenTypeName
)

// TokenTypes is the legend, in TokenType order.
var TokenTypes = []string{
	"comment",
	"decorator",
	"enumMember",
	"event",
	"interface",
	"keyword",
	"method",
	"namespace",
	"property",
	"type",
}

func (tt TokenType) String() string {
	if int(tt) < len(TokenTypes) {
		return TokenTypes[tt]
	}
	return "unknown"
}

// Token is one highlighted span.
type Token struct {
	Span syntax.Span `json:"span"`
	Type TokenType   `json:"type"`
}

// declaration keyword and name token types per declaration kind
var declTokens = map[syntax.Kind][2]TokenType{
	syntax.InterfaceDeclaration: {TokenInterface, TokenNamespace},
	syntax.Typedef:              {TokenKeyword, TokenTypeName},
	syntax.Error:                {TokenKeyword, TokenEvent},
	syntax.Method:               {TokenKeyword, TokenMethod},
}

// SemanticTokens classifies the interesting spans of the document, sorted
// by position.
func SemanticTokens(t *syntax.Tree) []Token {
	var out []Token
	add := func(n syntax.Node, tt TokenType) {
		out = append(out, Token{Span: n.Span, Type: tt})
	}

	for _, n := range t.Nodes() {
		switch n.Kind {
		case syntax.Comment:
			add(n, TokenComment)
		case syntax.Arrow:
			add(n, TokenDecorator)
		case syntax.Typeref, syntax.Bool, syntax.Int, syntax.Float, syntax.String, syntax.Object:
			add(n, TokenTypeName)
		case syntax.StructField:
			if name, ok := symbols.NameOf(t, n); ok {
				add(name, TokenProperty)
			}
		case syntax.Enum:
			for _, c := range t.Children(n.ID) {
				if c.Kind == syntax.Name {
					add(c, TokenEnumMember)
				}
			}
		case syntax.InterfaceDeclaration, syntax.Typedef, syntax.Error, syntax.Method:
			types := declTokens[n.Kind]
			if kw, ok := t.Child(n.ID, syntax.Keyword); ok {
				add(kw, types[0])
			}
			if name, ok := symbols.NameOf(t, n); ok {
				add(name, types[1])
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span.Start.Before(out[j].Span.Start)
	})
	return out
}
