package engine

import (
	"chordd/chord"
	"chordd/display"
	"chordd/keystate"
)

// holds evaluates a sequence-free condition against the pressed set.
func holds(e chord.Expr, tr *keystate.Tracker) bool {
	switch e.Op() {
	case chord.OpSingle:
		return tr.IsActive(e.Atom().Input)
	case chord.OpAll:
		return holds(e.Left(), tr) && holds(e.Right(), tr)
	case chord.OpAny:
		return holds(e.Left(), tr) || holds(e.Right(), tr)
	}
	return false
}

// triggeredBy reports whether code realizes one of the atoms of e. A step
// only fires on a press that takes part in it, so a held chord does not
// match again on unrelated presses.
func triggeredBy(e chord.Expr, code display.Code, tr *keystate.Tracker) bool {
	for _, in := range e.Inputs() {
		if tr.Realizes(in, code) {
			return true
		}
	}
	return false
}

// replayedBy reports whether code realizes a replay-flagged atom of e.
func replayedBy(e chord.Expr, code display.Code, tr *keystate.Tracker) bool {
	for _, a := range e.Atoms() {
		if a.Replay && tr.Realizes(a.Input, code) {
			return true
		}
	}
	return false
}

// continuation is a pending node plus the branch dispatched on the way to it.
type continuation struct {
	node   *node
	branch int
}

// outcome of offering one press to a set of continuations.
type outcome struct {
	matched bool
	// done is set when the press completes the binding.
	done   bool
	branch int
	// replay is set when the completing condition is a single replay atom.
	replay bool
	next   []continuation
}

// advance offers a press to conts in order. The first step that holds and
// is triggered by the press decides: a completing step completes the
// binding; a continuing step collects every continuing step that matches,
// so alternatives sharing a prefix stay candidates.
func advance(conts []continuation, code display.Code, tr *keystate.Tracker) outcome {
	var out outcome
	for _, c := range conts {
		for _, s := range c.node.steps {
			if !holds(s.cond, tr) || !triggeredBy(s.cond, code, tr) {
				continue
			}
			branch := carry(c.branch, s.branch)
			if !out.matched {
				out.matched = true
				if s.next == nil {
					out.done = true
					out.branch = branch
					out.replay = s.cond.Op() == chord.OpSingle && s.cond.Atom().Replay
					return out
				}
			}
			if s.next != nil {
				out.next = append(out.next, continuation{node: s.next, branch: branch})
			}
		}
	}
	return out
}

// replays reports whether an unmatched press while pending should be
// passed through.
func replays(conts []continuation, code display.Code, tr *keystate.Tracker) bool {
	for _, c := range conts {
		for _, s := range c.node.steps {
			if replayedBy(s.cond, code, tr) {
				return true
			}
		}
	}
	return false
}
