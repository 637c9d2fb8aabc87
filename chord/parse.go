package chord

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Parse errors
var (
	ErrEmpty           = errors.New("empty chord expression")
	ErrUnexpectedToken = errors.New("unexpected token")
	ErrUnknownKey      = errors.New("unknown key name")
	ErrBadButton       = errors.New("invalid pointer button")
	ErrBadModifier     = errors.New("invalid modifier")
	ErrAliasCycle      = errors.New("alias refers to itself")
)

// SyntaxError reports where in the source a parse failed.
type SyntaxError struct {
	Src string
	Pos int
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("chord %q at %d: %v", e.Src, e.Pos, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parser turns the textual chord syntax into expressions.
//
//	super + c - {n | shift + n}
//
// "+" builds All, "-" builds a Sequence, "|" builds Any and "!" toggles the
// replay flag of a single atom. "+" and "-" share a precedence level and
// bind tighter than "|"; both associate to the left. Braces and parentheses
// group. Atoms are keysym names, "button:N" or "mod:NAME"; names found in
// Aliases are replaced by their parsed definition.
type Parser struct {
	// Aliases maps a name to chord source, e.g. "super" -> "Super_L | Super_R".
	Aliases map[string]string

	// KnownKey validates keysym names. Nil accepts any name.
	KnownKey func(name string) bool

	cache     map[string]Expr
	resolving []string
}

// Parse parses src using only the default aliases.
func Parse(src string) (Expr, error) {
	p := &Parser{Aliases: DefaultAliases()}
	return p.Parse(src)
}

// MustParse is Parse for statically known sources.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// DefaultAliases returns the aliases predefined for every config.
func DefaultAliases() map[string]string {
	return map[string]string{
		"super": "Super_L | Super_R",
		"shift": "Shift_L | Shift_R",
		"ctrl":  "Control_L | Control_R",
		"alt":   "Alt_L | Alt_R",
	}
}

// Parse parses a chord expression.
func (p *Parser) Parse(src string) (Expr, error) {
	l := newLexer(src)
	if l.peek().kind == tokEOF {
		return Expr{}, &SyntaxError{Src: src, Pos: 0, Err: ErrEmpty}
	}
	e, err := p.parseAny(l)
	if err != nil {
		return Expr{}, err
	}
	if tok := l.peek(); tok.kind != tokEOF {
		return Expr{}, l.errorf(tok, "%w %q", ErrUnexpectedToken, tok.val)
	}
	return e, nil
}

func (p *Parser) parseAny(l *lexer) (Expr, error) {
	left, err := p.parseStep(l)
	if err != nil {
		return Expr{}, err
	}
	for l.peek().is(tokOp, "|") {
		l.next()
		right, err := p.parseStep(l)
		if err != nil {
			return Expr{}, err
		}
		left = Any(left, right)
	}
	return left, nil
}

func (p *Parser) parseStep(l *lexer) (Expr, error) {
	left, err := p.parseUnary(l)
	if err != nil {
		return Expr{}, err
	}
	for {
		tok := l.peek()
		if !tok.is(tokOp, "+") && !tok.is(tokOp, "-") {
			return left, nil
		}
		l.next()
		right, err := p.parseUnary(l)
		if err != nil {
			return Expr{}, err
		}
		if tok.val == "+" {
			left = All(left, right)
		} else {
			left = Then(left, right)
		}
	}
}

func (p *Parser) parseUnary(l *lexer) (Expr, error) {
	tok := l.peek()
	if !tok.is(tokOp, "!") {
		return p.parsePrimary(l)
	}
	l.next()
	e, err := p.parseUnary(l)
	if err != nil {
		return Expr{}, err
	}
	out, err := ToggleReplay(e)
	if err != nil {
		return Expr{}, l.errorf(tok, "%w", err)
	}
	return out, nil
}

func (p *Parser) parsePrimary(l *lexer) (Expr, error) {
	tok := l.next()
	switch {
	case tok.is(tokPunct, "("), tok.is(tokPunct, "{"):
		closing := ")"
		if tok.val == "{" {
			closing = "}"
		}
		e, err := p.parseAny(l)
		if err != nil {
			return Expr{}, err
		}
		end := l.next()
		if !end.is(tokPunct, closing) {
			return Expr{}, l.errorf(end, "%w %q, want %q", ErrUnexpectedToken, end.val, closing)
		}
		return e, nil
	case tok.kind == tokIdent:
		return p.atom(l, tok)
	case tok.kind == tokEOF:
		return Expr{}, l.errorf(tok, "%w: end of input", ErrUnexpectedToken)
	}
	return Expr{}, l.errorf(tok, "%w %q", ErrUnexpectedToken, tok.val)
}

func (p *Parser) atom(l *lexer, tok token) (Expr, error) {
	name := tok.val
	switch {
	case strings.HasPrefix(name, "button:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(name, "button:"), 10, 8)
		if err != nil || n == 0 {
			return Expr{}, l.errorf(tok, "%w %q", ErrBadButton, name)
		}
		return Button(uint8(n)), nil
	case strings.HasPrefix(name, "mod:"):
		mod := strings.ToLower(strings.TrimPrefix(name, "mod:"))
		if !slices.Contains(ModifierNames, mod) {
			return Expr{}, l.errorf(tok, "%w %q", ErrBadModifier, name)
		}
		return Modifier(mod), nil
	}

	if src, ok := p.Aliases[name]; ok {
		e, err := p.alias(name, src)
		if err != nil {
			return Expr{}, l.errorf(tok, "alias %q: %w", name, err)
		}
		return e, nil
	}

	if p.KnownKey != nil && !p.KnownKey(name) {
		return Expr{}, l.errorf(tok, "%w %q", ErrUnknownKey, name)
	}
	return Key(name), nil
}

func (p *Parser) alias(name, src string) (Expr, error) {
	if e, ok := p.cache[name]; ok {
		return e, nil
	}
	if slices.Contains(p.resolving, name) {
		return Expr{}, ErrAliasCycle
	}
	p.resolving = append(p.resolving, name)
	defer func() { p.resolving = p.resolving[:len(p.resolving)-1] }()

	e, err := p.Parse(src)
	if err != nil {
		return Expr{}, err
	}
	if p.cache == nil {
		p.cache = make(map[string]Expr)
	}
	p.cache[name] = e
	return e, nil
}
