package chord

import (
	"fmt"
	"unicode"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokOp
	tokPunct
	tokInvalid
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

func (t token) is(kind tokenKind, val string) bool {
	return t.kind == kind && t.val == val
}

type lexer struct {
	src string
	pos int
	buf *token
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) peek() token {
	if l.buf == nil {
		tok := l.scan()
		l.buf = &tok
	}
	return *l.buf
}

func (l *lexer) next() token {
	if l.buf != nil {
		tok := *l.buf
		l.buf = nil
		return tok
	}
	return l.scan()
}

func (l *lexer) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Src: l.src, Pos: tok.pos, Err: fmt.Errorf(format, args...)}
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch == ':' || ch < 0x80 && (unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)))
}

func (l *lexer) scan() token {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}
	}

	start := l.pos
	ch := l.src[l.pos]
	switch ch {
	case '+', '-', '|', '!':
		l.pos++
		return token{kind: tokOp, val: string(ch), pos: start}
	case '(', ')', '{', '}':
		l.pos++
		return token{kind: tokPunct, val: string(ch), pos: start}
	}

	if !isIdentByte(ch) {
		l.pos++
		return token{kind: tokInvalid, val: string(ch), pos: start}
	}
	for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, val: l.src[start:l.pos], pos: start}
}
