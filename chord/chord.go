// Package chord provides the expression algebra used to declare hotkeys.
//
// An expression is an immutable tree over atoms:
//
//   - Single: a key, pointer button, or modifier (a leaf)
//   - All: both operands held at the same time ("super + c")
//   - Any: at least one operand held ("{n | o}"), numbered for dispatch
//   - Sequence: the first operand, then on a later event the second
//
// Leaves carry a replay flag that asks the daemon to pass the triggering
// event through to the focused client after the bound action runs.
package chord

import (
	"errors"
	"fmt"
	"strings"
)

// ErrReplayNotLeaf is returned when the replay toggle is applied to a group.
var ErrReplayNotLeaf = errors.New("replay can only be toggled on a single atom")

// Kind identifies what an input atom refers to.
type Kind uint8

const (
	KindKey Kind = iota
	KindButton
	KindModifier
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindButton:
		return "button"
	case KindModifier:
		return "modifier"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Modifier names understood by Modifier and the parser.
var ModifierNames = []string{"shift", "lock", "control", "mod1", "mod2", "mod3", "mod4", "mod5"}

// Input is the identity of an atom, independent of its replay flag.
// Two atoms with the same Input are realized by the same hardware codes.
type Input struct {
	Kind   Kind
	Name   string // keysym name or modifier name; empty for buttons
	Button uint8
}

func (in Input) String() string {
	switch in.Kind {
	case KindButton:
		return fmt.Sprintf("button:%d", in.Button)
	case KindModifier:
		return "mod:" + in.Name
	}
	return in.Name
}

// Atom is an indivisible input predicate.
type Atom struct {
	Input
	Replay bool
}

func (a Atom) String() string {
	if a.Replay {
		return "!" + a.Input.String()
	}
	return a.Input.String()
}

// Op tags the variant held by an Expr.
type Op uint8

const (
	OpSingle Op = iota
	OpAll
	OpAny
	OpSequence
)

func (o Op) String() string {
	switch o {
	case OpSingle:
		return "single"
	case OpAll:
		return "all"
	case OpAny:
		return "any"
	case OpSequence:
		return "sequence"
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Expr is an immutable chord expression. The zero value is not a valid
// expression; build one with Key, Button, Modifier, Single or the
// combinators.
type Expr struct {
	op    Op
	atom  Atom
	left  *Expr
	right *Expr
}

// Single wraps an atom as a leaf expression.
func Single(a Atom) Expr {
	return Expr{op: OpSingle, atom: a}
}

// Key returns a leaf for the named keysym ("a", "Return", "Super_L").
func Key(name string) Expr {
	return Single(Atom{Input: Input{Kind: KindKey, Name: name}})
}

// Button returns a leaf for a pointer button (1 = left, 2 = middle, ...).
func Button(n uint8) Expr {
	return Single(Atom{Input: Input{Kind: KindButton, Button: n}})
}

// Modifier returns a leaf for a modifier row ("shift", "control", "mod4").
func Modifier(name string) Expr {
	return Single(Atom{Input: Input{Kind: KindModifier, Name: strings.ToLower(name)}})
}

// All requires every operand to be held at the same time.
// Extra operands fold to the left: All(a, b, c) == All(All(a, b), c).
func All(left, right Expr, more ...Expr) Expr {
	return fold(OpAll, left, right, more)
}

// Any requires at least one operand to be held.
// Extra operands fold to the left, keeping declaration order for branch
// numbering.
func Any(left, right Expr, more ...Expr) Expr {
	return fold(OpAny, left, right, more)
}

// Then requires first, and on a later event second.
func Then(first, second Expr, more ...Expr) Expr {
	return fold(OpSequence, first, second, more)
}

func fold(op Op, left, right Expr, more []Expr) Expr {
	e := Expr{op: op, left: left.clone(), right: right.clone()}
	for _, m := range more {
		e = Expr{op: op, left: e.clone(), right: m.clone()}
	}
	return e
}

// ToggleReplay flips the replay flag of a leaf.
func ToggleReplay(e Expr) (Expr, error) {
	if e.op != OpSingle {
		return Expr{}, fmt.Errorf("%w: got %s", ErrReplayNotLeaf, e)
	}
	e.atom.Replay = !e.atom.Replay
	return e, nil
}

// MustToggleReplay is ToggleReplay for statically known leaves.
func MustToggleReplay(e Expr) Expr {
	out, err := ToggleReplay(e)
	if err != nil {
		panic(err)
	}
	return out
}

func (e Expr) clone() *Expr {
	c := e
	if e.left != nil {
		c.left = e.left.clone()
	}
	if e.right != nil {
		c.right = e.right.clone()
	}
	return &c
}

// Op returns the variant tag.
func (e Expr) Op() Op { return e.op }

// Atom returns the atom of a leaf. It is the zero Atom for other variants.
func (e Expr) Atom() Atom { return e.atom }

// Left returns the left operand (the first step of a Sequence).
func (e Expr) Left() Expr {
	if e.left == nil {
		return Expr{}
	}
	return *e.left
}

// Right returns the right operand (the tail of a Sequence).
func (e Expr) Right() Expr {
	if e.right == nil {
		return Expr{}
	}
	return *e.right
}

// IsZero reports whether e is the zero value.
func (e Expr) IsZero() bool {
	return e.op == OpSingle && e.atom == Atom{}
}

// Alternatives flattens directly nested Any nodes into their operands in
// canonical order. The position of an operand plus one is its branch index.
// For non-Any expressions it returns e alone.
func (e Expr) Alternatives() []Expr {
	if e.op != OpAny {
		return []Expr{e}
	}
	return append(e.left.Alternatives(), e.right.Alternatives()...)
}

// HasSequence reports whether any Sequence node occurs in e.
func (e Expr) HasSequence() bool {
	switch e.op {
	case OpSingle:
		return false
	case OpSequence:
		return true
	}
	return e.left.HasSequence() || e.right.HasSequence()
}

// Atoms returns every leaf atom in depth-first, left-to-right order.
func (e Expr) Atoms() []Atom {
	var out []Atom
	e.walk(func(a Atom) { out = append(out, a) })
	return out
}

// Inputs returns the distinct inputs referenced by e in first-seen order.
func (e Expr) Inputs() []Input {
	seen := make(map[Input]bool)
	var out []Input
	e.walk(func(a Atom) {
		if !seen[a.Input] {
			seen[a.Input] = true
			out = append(out, a.Input)
		}
	})
	return out
}

func (e Expr) walk(fn func(Atom)) {
	if e.op == OpSingle {
		fn(e.atom)
		return
	}
	e.left.walk(fn)
	e.right.walk(fn)
}

// Equal reports structural equality.
func (e Expr) Equal(other Expr) bool {
	if e.op != other.op {
		return false
	}
	if e.op == OpSingle {
		return e.atom == other.atom
	}
	return e.left.Equal(*other.left) && e.right.Equal(*other.right)
}

// String renders e in the syntax accepted by Parse.
func (e Expr) String() string {
	var sb strings.Builder
	e.format(&sb, 0)
	return sb.String()
}

// binding strength used to decide where parentheses are needed
const (
	precAny = iota + 1
	precStep
)

func (e Expr) format(sb *strings.Builder, parent int) {
	switch e.op {
	case OpSingle:
		sb.WriteString(e.atom.String())
	case OpAny:
		if parent > precAny {
			sb.WriteByte('{')
		}
		e.left.format(sb, precAny)
		sb.WriteString(" | ")
		e.right.format(sb, precAny)
		if parent > precAny {
			sb.WriteByte('}')
		}
	case OpAll, OpSequence:
		sym := " + "
		if e.op == OpSequence {
			sym = " - "
		}
		if parent > precStep {
			sb.WriteByte('(')
		}
		e.left.format(sb, precStep)
		sb.WriteString(sym)
		// right operand of a left-assoc operator needs grouping when it is
		// itself a binary step
		e.right.format(sb, precStep+1)
		if parent > precStep {
			sb.WriteByte(')')
		}
	}
}
