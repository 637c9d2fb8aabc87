package engine

import (
	"fmt"
	"strings"

	"chordd/chord"
)

// node is a position in a compiled binding: the steps that may be taken
// from here, tried in order.
type node struct {
	steps []step
}

// step is one transition. cond never contains a Sequence. A nil next means
// taking the step completes the binding.
type step struct {
	cond   chord.Expr
	branch int
	next   *node
}

// candidate is an intermediate expansion: a sequence-free condition, the
// remainder of the expression still to be satisfied afterwards, and the
// branch the condition dispatches.
type candidate struct {
	cond   chord.Expr
	rest   *chord.Expr
	branch int
}

func compile(e chord.Expr) *node {
	cands := expand(e)
	n := &node{steps: make([]step, len(cands))}
	for i, c := range cands {
		n.steps[i] = step{cond: c.cond, branch: c.branch}
		if c.rest != nil {
			n.steps[i].next = compile(*c.rest)
		}
	}
	return n
}

// expand rewrites e into the ordered list of first steps it admits.
//
// Any contributes one candidate per flattened alternative numbered from 1.
// All distributes over both operands; the right operand decides the branch
// so that an alternative of modifiers such as {Super_L | Super_R} + x does
// not dispatch. Sequence keeps the first operand's step and defers the rest.
func expand(e chord.Expr) []candidate {
	switch e.Op() {
	case chord.OpAny:
		var out []candidate
		for i, alt := range e.Alternatives() {
			for _, c := range expand(alt) {
				c.branch = i + 1
				out = append(out, c)
			}
		}
		return out
	case chord.OpAll:
		left, right := expand(e.Left()), expand(e.Right())
		out := make([]candidate, 0, len(left)*len(right))
		for _, l := range left {
			for _, r := range right {
				out = append(out, candidate{
					cond:   chord.All(l.cond, r.cond),
					rest:   joinRest(l.rest, r.rest),
					branch: r.branch,
				})
			}
		}
		return out
	case chord.OpSequence:
		second := e.Right()
		first := expand(e.Left())
		for i, c := range first {
			if c.rest == nil {
				first[i].rest = &second
			} else {
				tail := chord.Then(*c.rest, second)
				first[i].rest = &tail
			}
		}
		return first
	}
	return []candidate{{cond: e}}
}

func joinRest(l, r *chord.Expr) *chord.Expr {
	switch {
	case l == nil:
		return r
	case r == nil:
		return l
	}
	both := chord.All(*l, *r)
	return &both
}

// Explain lists every path through the compiled form of e, one line per
// completing path, for display by -check.
func Explain(e chord.Expr) []string {
	var out []string
	var walk func(n *node, prefix []string, branch int)
	walk = func(n *node, prefix []string, branch int) {
		for _, s := range n.steps {
			path := append(append([]string(nil), prefix...), s.cond.String())
			b := carry(branch, s.branch)
			if s.next != nil {
				walk(s.next, path, b)
				continue
			}
			line := strings.Join(path, " -> ")
			if b > 0 {
				line += fmt.Sprintf("  [branch %d]", b)
			}
			out = append(out, line)
		}
	}
	walk(compile(e), nil, 0)
	return out
}

// carry keeps the outermost dispatching branch.
func carry(outer, inner int) int {
	if outer != 0 {
		return outer
	}
	return inner
}

// Shadow is a first step of a binding that an earlier binding always takes
// first.
type Shadow struct {
	Binding string
	Step    string
	By      string
}

func (s Shadow) String() string {
	return fmt.Sprintf("binding %q cannot start with %s: %q takes it first", s.Binding, s.Step, s.By)
}

// Shadows reports the first steps that can never start their binding.
// Bindings are tried in order at the root, so a step whose keys include
// every key of an earlier binding's first step is always claimed by the
// earlier one. At most one Shadow is reported per pair of bindings.
func Shadows[S any](bindings []Binding[S]) []Shadow {
	roots := make([][]step, len(bindings))
	for i, b := range bindings {
		roots[i] = compile(b.Expr).steps
	}

	var out []Shadow
	for j := range bindings {
		for i := range j {
			if s, ok := shadowed(roots[j], roots[i]); ok {
				out = append(out, Shadow{
					Binding: bindingName(bindings[j]),
					Step:    s.cond.String(),
					By:      bindingName(bindings[i]),
				})
			}
		}
	}
	return out
}

// shadowed returns the first of later's steps whose inputs cover one of
// earlier's.
func shadowed(later, earlier []step) (step, bool) {
	for _, s := range later {
		held := make(map[chord.Input]bool)
		for _, in := range s.cond.Inputs() {
			held[in] = true
		}
		for _, e := range earlier {
			if covers(held, e.cond) {
				return s, true
			}
		}
	}
	return step{}, false
}

func covers(held map[chord.Input]bool, cond chord.Expr) bool {
	for _, in := range cond.Inputs() {
		if !held[in] {
			return false
		}
	}
	return true
}

func bindingName[S any](b Binding[S]) string {
	if b.Name != "" {
		return b.Name
	}
	return b.Expr.String()
}

// ReplaysWhilePending reports whether a step after the first of e carries a
// replay-flagged atom, i.e. whether e asks for events to pass through while
// it is pending.
func ReplaysWhilePending(e chord.Expr) bool {
	var below func(n *node) bool
	below = func(n *node) bool {
		for _, s := range n.steps {
			for _, a := range s.cond.Atoms() {
				if a.Replay {
					return true
				}
			}
			if s.next != nil && below(s.next) {
				return true
			}
		}
		return false
	}
	for _, s := range compile(e).steps {
		if s.next != nil && below(s.next) {
			return true
		}
	}
	return false
}
