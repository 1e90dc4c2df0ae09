// Package parser is a small recursive-descent parser for varlink interface
// definitions. It produces the same shape of tree as the tree-sitter grammar
// used by editors: top-level line terminators are Eol nodes, declarations own
// their keyword and name, and type references wrap a Name.
//
// Parsing never gives up. Text that does not fit the grammar is wrapped in a
// SyntaxError node running to the end of the line (or of the enclosing
// parentheses) and reported, and parsing resumes after it.
package parser

import (
	"fmt"

	"github.com/jward/varlens/internal/syntax"
)

// Parse builds a tree for src. The error is only non-nil if the resulting
// node sequence fails validation, which indicates a bug in the parser.
func Parse(src []byte) (*syntax.Tree, []syntax.ParseError, error) {
	p := &parser{lex: lexer{src: src}, b: syntax.NewBuilder(src)}
	p.tok = p.lex.next()

	p.b.Open(syntax.Interface, 0)
	for p.tok.kind != tokEOF {
		p.member()
		if p.failed {
			p.recover()
		}
	}
	p.b.Close(len(src))

	tree, err := p.b.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("parser: %w", err)
	}
	return tree, p.errs, nil
}

type parser struct {
	lex  lexer
	tok  token
	b    *syntax.Builder
	errs []syntax.ParseError

	lastEnd int // end of the last consumed token
	depth   int // open parentheses
	failed  bool
	errTok  token
}

func (p *parser) advance() {
	p.lastEnd = p.tok.end
	p.tok = p.lex.next()
}

func (p *parser) peek() token {
	l := p.lex
	return l.next()
}

func (p *parser) errorf(format string, args ...any) {
	if p.failed {
		return
	}
	p.failed = true
	p.errTok = p.tok
	start, end := p.tok.start, p.tok.end
	if p.tok.kind == tokNewline || p.tok.kind == tokEOF {
		end = start
	}
	p.errs = append(p.errs, syntax.ParseError{
		Span:    syntax.Span{Start: p.b.PointAt(start), End: p.b.PointAt(end)},
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) expected(what string) {
	p.errorf("expected %s, found %s", what, p.tok.describe())
}

// recover skips to the next top-level line break and records what it
// skipped as a SyntaxError.
func (p *parser) recover() {
	start, end := p.errTok.start, p.errTok.start
	depth := p.depth
	for p.tok.kind != tokEOF {
		if p.tok.kind == tokNewline && depth <= 0 {
			break
		}
		switch p.tok.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		}
		end = p.tok.end
		p.advance()
	}
	p.b.Leaf(syntax.SyntaxError, start, end)
	p.failed = false
	p.depth = 0
}

func (p *parser) member() {
	switch p.tok.kind {
	case tokNewline:
		p.b.Leaf(syntax.Eol, p.tok.start, p.tok.end)
		p.advance()
	case tokComment:
		p.b.Leaf(syntax.Comment, p.tok.start, p.tok.end)
		p.advance()
	case tokWord:
		switch p.tok.text {
		case "interface":
			p.interfaceDecl()
		case "type":
			p.typedef()
		case "error":
			p.errorDecl()
		case "method":
			p.method()
		default:
			p.expected("declaration")
		}
	default:
		p.expected("declaration")
	}
}

// open starts a node at the current token and arranges for the returned
// func to close it at the end of whatever was consumed.
func (p *parser) open(kind syntax.Kind) func() {
	p.b.Open(kind, p.tok.start)
	return func() { p.b.Close(p.lastEnd) }
}

func (p *parser) keyword() {
	p.b.Leaf(syntax.Keyword, p.tok.start, p.tok.end)
	p.advance()
}

func (p *parser) name(kind syntax.Kind) bool {
	if p.tok.kind != tokWord {
		p.expected("name")
		return false
	}
	p.b.Leaf(kind, p.tok.start, p.tok.end)
	p.advance()
	return true
}

func (p *parser) interfaceDecl() {
	defer p.open(syntax.InterfaceDeclaration)()
	p.keyword()
	p.name(syntax.InterfaceName)
}

func (p *parser) typedef() {
	defer p.open(syntax.Typedef)()
	p.keyword()
	if !p.name(syntax.Name) {
		return
	}
	if p.tok.kind != tokLParen {
		p.expected("`(`")
		return
	}
	if p.isEnum() {
		p.enum()
	} else {
		p.structure()
	}
}

func (p *parser) errorDecl() {
	defer p.open(syntax.Error)()
	p.keyword()
	if !p.name(syntax.Name) {
		return
	}
	p.structure()
}

func (p *parser) method() {
	defer p.open(syntax.Method)()
	p.keyword()
	if !p.name(syntax.Name) {
		return
	}
	if p.structure(); p.failed {
		return
	}
	if p.tok.kind != tokArrow {
		p.expected("`->`")
		return
	}
	p.b.Leaf(syntax.Arrow, p.tok.start, p.tok.end)
	p.advance()
	p.structure()
}

// isEnum looks past the opening parenthesis: a first member not followed by
// a colon makes the list an enum.
func (p *parser) isEnum() bool {
	l := p.lex
	var toks []token
	for len(toks) < 2 {
		t := l.next()
		switch t.kind {
		case tokNewline, tokComment:
			continue
		case tokEOF:
			return false
		}
		toks = append(toks, t)
	}
	return toks[0].kind == tokWord && toks[1].kind != tokColon
}

// trivia consumes line breaks and comments inside parentheses.
func (p *parser) trivia() {
	for {
		switch p.tok.kind {
		case tokNewline:
			p.advance()
		case tokComment:
			p.b.Leaf(syntax.Comment, p.tok.start, p.tok.end)
			p.advance()
		default:
			return
		}
	}
}

// list parses a parenthesised, comma separated list, calling item for each
// element.
func (p *parser) list(item func()) {
	if p.tok.kind != tokLParen {
		p.expected("`(`")
		return
	}
	p.advance()
	p.depth++
	p.trivia()
	for p.tok.kind != tokRParen {
		if item(); p.failed {
			return
		}
		p.trivia()
		if p.tok.kind == tokComma {
			p.advance()
			p.trivia()
			continue
		}
		if p.tok.kind != tokRParen {
			p.expected("`,` or `)`")
			return
		}
	}
	p.advance()
	p.depth--
}

func (p *parser) structure() {
	if p.tok.kind != tokLParen {
		p.expected("`(`")
		return
	}
	defer p.open(syntax.Struct)()
	p.list(p.field)
}

func (p *parser) enum() {
	defer p.open(syntax.Enum)()
	p.list(func() { p.name(syntax.Name) })
}

func (p *parser) field() {
	if p.tok.kind != tokWord {
		p.expected("field name")
		return
	}
	defer p.open(syntax.StructField)()
	p.name(syntax.Name)
	p.trivia()
	if p.tok.kind != tokColon {
		p.expected("`:`")
		return
	}
	p.advance()
	p.trivia()
	p.typ()
}

var builtinTypes = map[string]syntax.Kind{
	"bool":   syntax.Bool,
	"int":    syntax.Int,
	"float":  syntax.Float,
	"string": syntax.String,
	"object": syntax.Object,
}

func (p *parser) typ() {
	switch p.tok.kind {
	case tokQuestion:
		defer p.open(syntax.Optional)()
		p.advance()
		p.typ()
	case tokLBrack:
		p.container()
	case tokLParen:
		if p.isEnum() {
			p.enum()
		} else {
			p.structure()
		}
	case tokWord:
		if kind, ok := builtinTypes[p.tok.text]; ok {
			p.b.Leaf(kind, p.tok.start, p.tok.end)
			p.advance()
			return
		}
		defer p.open(syntax.Typeref)()
		p.name(syntax.Name)
	default:
		p.expected("type")
	}
}

// container parses `[]T` and `[string]T`.
func (p *parser) container() {
	next := p.peek()
	switch {
	case next.kind == tokRBrack:
		defer p.open(syntax.Array)()
		p.advance()
		p.advance()
	case next.kind == tokWord && next.text == "string":
		defer p.open(syntax.Dict)()
		p.advance()
		p.advance()
		if p.tok.kind != tokRBrack {
			p.expected("`]`")
			return
		}
		p.advance()
	default:
		p.advance()
		p.expected("`]` or `string`")
		return
	}
	p.typ()
}
