package parser

import "fmt"

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNewline
	tokComment
	tokWord
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokComma
	tokColon
	tokQuestion
	tokArrow
	tokIllegal
)

type token struct {
	kind  tokenKind
	start int
	end   int
	text  string
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "newline"
	case tokComment:
		return "comment"
	}
	return fmt.Sprintf("`%s`", t.text)
}

type lexer struct {
	src []byte
	pos int
}

func isWordByte(b byte) bool {
	return b == '_' || b == '.' || b == '-' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func isWordStart(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func (l *lexer) next() token {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\r':
			l.pos++
			continue
		}
		break
	}
	start := l.pos
	if start >= len(l.src) {
		return token{kind: tokEOF, start: start, end: start}
	}

	emit := func(kind tokenKind, n int) token {
		l.pos += n
		return token{kind: kind, start: start, end: l.pos, text: string(l.src[start:l.pos])}
	}

	switch c := l.src[start]; c {
	case '\n':
		return emit(tokNewline, 1)
	case '#':
		n := 0
		for start+n < len(l.src) && l.src[start+n] != '\n' {
			n++
		}
		// a trailing \r belongs to the line terminator
		if n > 1 && l.src[start+n-1] == '\r' {
			tok := emit(tokComment, n-1)
			l.pos++
			return tok
		}
		return emit(tokComment, n)
	case '(':
		return emit(tokLParen, 1)
	case ')':
		return emit(tokRParen, 1)
	case '[':
		return emit(tokLBrack, 1)
	case ']':
		return emit(tokRBrack, 1)
	case ',':
		return emit(tokComma, 1)
	case ':':
		return emit(tokColon, 1)
	case '?':
		return emit(tokQuestion, 1)
	case '-':
		if start+1 < len(l.src) && l.src[start+1] == '>' {
			return emit(tokArrow, 2)
		}
		return emit(tokIllegal, 1)
	default:
		if !isWordStart(c) {
			return emit(tokIllegal, 1)
		}
		n := 1
		for start+n < len(l.src) && isWordByte(l.src[start+n]) {
			if l.src[start+n] == '-' && start+n+1 < len(l.src) && l.src[start+n+1] == '>' {
				break
			}
			n++
		}
		return emit(tokWord, n)
	}
}
