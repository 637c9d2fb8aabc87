// Package engine drives compiled chord bindings over the display event
// stream and decides, per event, whether it is hidden or replayed.
package engine

import (
	"context"
	"errors"
	"fmt"

	"chordd/chord"
	"chordd/display"
	"chordd/grab"
	"chordd/keystate"
)

// Result lets a callback override where the executor goes next.
type Result int

const (
	// Advance follows the default transition.
	Advance Result = iota
	// Restart returns to the root.
	Restart
)

// Callback is invoked when a binding completes. branch is the 1-based index
// of the dispatching alternative, or 0.
type Callback[S any] func(branch int, state *S) (Result, error)

// Binding pairs a chord expression with its action.
type Binding[S any] struct {
	Name   string
	Expr   chord.Expr
	Action Callback[S]
	// Repeat keeps the binding pending after its final step so the step can
	// be taken again without the prefix.
	Repeat bool
}

type compiled[S any] struct {
	Binding[S]
	root *node
}

// pending is the non-root executor state.
type pending struct {
	binding int
	conts   []continuation
	depth   int
}

// Engine is the chord state machine. It is driven from a single goroutine.
type Engine[S any] struct {
	client   display.Client
	bindings []compiled[S]
	state    *S
	opts     options

	tracker *keystate.Tracker
	grabs   *grab.Set
	pending *pending
	hidden  map[display.Code]struct{}
	locked  bool
}

// New compiles bindings and prepares the grab set. Nothing is grabbed until
// Acquire or Run.
func New[S any](client display.Client, bindings []Binding[S], state *S, opts ...Option) (*Engine[S], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine[S]{
		client:  client,
		state:   state,
		opts:    o,
		tracker: keystate.New(),
		hidden:  make(map[display.Code]struct{}),
	}

	inputs := []chord.Input{o.reset}
	for i, b := range bindings {
		if b.Expr.IsZero() {
			return nil, fmt.Errorf("binding %d (%s): %w", i, b.Name, ErrEmptyBinding)
		}
		b.Name = bindingName(b)
		e.bindings = append(e.bindings, compiled[S]{Binding: b, root: compile(b.Expr)})
		inputs = append(inputs, b.Expr.Inputs()...)
	}
	e.grabs = grab.New(client, inputs)
	return e, nil
}

// ErrEmptyBinding is returned by New for a binding without an expression.
var ErrEmptyBinding = errors.New("binding has no chord expression")

// Tracker exposes the key state, mainly for diagnostics.
func (e *Engine[S]) Tracker() *keystate.Tracker { return e.tracker }

// Pending reports the name of the binding in progress, if any.
func (e *Engine[S]) Pending() (string, bool) {
	if e.pending == nil {
		return "", false
	}
	return e.bindings[e.pending.binding].Name, true
}

// Acquire grabs every input. Failures are reported to the observer and
// returned; inputs that could not be grabbed stay inert.
func (e *Engine[S]) Acquire() []error {
	errs := e.grabs.Acquire(e.tracker)
	for _, err := range errs {
		e.opts.observer.GrabFailed(err)
	}
	return errs
}

// Release drops every grab and the keyboard lock.
func (e *Engine[S]) Release() error {
	e.unlock()
	return e.grabs.Release()
}

// Run grabs, then consumes events until ctx is done or the display
// connection fails. Grabs are released on every return path.
func (e *Engine[S]) Run(ctx context.Context) (err error) {
	e.Acquire()
	defer func() {
		if rerr := e.Release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release grabs: %w", rerr))
		}
	}()

	for {
		ev, err := e.client.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("next event: %w", err)
		}
		d := e.Step(ev)
		if err := e.grabs.Allow(ev, d); err != nil {
			return fmt.Errorf("allow %s: %w", ev, err)
		}
	}
}

// Step applies one event and returns its disposition. Layout changes
// refresh the grabs and return Hide; they need no Allow.
func (e *Engine[S]) Step(ev display.Event) display.Decision {
	if !ev.IsInput() {
		errs := e.grabs.Refresh(e.tracker)
		for _, err := range errs {
			e.opts.observer.GrabFailed(err)
		}
		e.opts.observer.LayoutChanged(len(e.grabs.Held()))
		return display.Hide
	}

	e.tracker.Update(ev)

	var d display.Decision
	if ev.IsPress() {
		d = e.press(ev.Code)
		if d == display.Hide {
			e.hidden[ev.Code] = struct{}{}
		} else {
			delete(e.hidden, ev.Code)
		}
	} else {
		d = display.Replay
		if _, ok := e.hidden[ev.Code]; ok {
			delete(e.hidden, ev.Code)
			d = display.Hide
		}
	}
	e.opts.observer.Decision(ev, d)
	return d
}

func (e *Engine[S]) press(code display.Code) display.Decision {
	if p := e.pending; p != nil {
		if e.tracker.Realizes(e.opts.reset, code) {
			e.opts.observer.ChordReset(e.bindings[p.binding].Name)
			e.toRoot()
			return display.Hide
		}
		out := advance(p.conts, code, e.tracker)
		if !out.matched {
			if replays(p.conts, code, e.tracker) {
				return display.Replay
			}
			return display.Hide
		}
		return e.take(p.binding, p.conts, p.depth, out)
	}

	for i := range e.bindings {
		root := []continuation{{node: e.bindings[i].root}}
		out := advance(root, code, e.tracker)
		if out.matched {
			return e.take(i, nil, 0, out)
		}
	}
	return display.Replay
}

// take applies a match of binding i. from is the continuation set the match
// was made from; nil at the root.
func (e *Engine[S]) take(i int, from []continuation, depth int, out outcome) display.Decision {
	b := &e.bindings[i]
	if !out.done {
		e.pending = &pending{binding: i, conts: out.next, depth: depth + 1}
		e.opts.observer.ChordPending(b.Name, depth+1)
		e.lock()
		return display.Hide
	}

	e.opts.observer.BindingFired(b.Name, out.branch)
	res, err := e.call(b, out.branch)
	switch {
	case err != nil:
		e.opts.observer.ActionFailed(b.Name, err)
		e.toRoot()
	case res == Restart, !b.Repeat, from == nil:
		e.toRoot()
	default:
		e.pending = &pending{binding: i, conts: from, depth: depth}
	}

	if out.replay {
		return display.Replay
	}
	return display.Hide
}

func (e *Engine[S]) call(b *compiled[S], branch int) (res Result, err error) {
	if b.Action == nil {
		return Advance, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return b.Action(branch, e.state)
}

func (e *Engine[S]) toRoot() {
	e.pending = nil
	e.unlock()
}

func (e *Engine[S]) lock() {
	if !e.opts.lockKeyboard || e.locked {
		return
	}
	kl, ok := e.client.(display.KeyboardLocker)
	if !ok {
		return
	}
	if err := kl.LockKeyboard(); err != nil {
		e.opts.observer.GrabFailed(fmt.Errorf("lock keyboard: %w", err))
		return
	}
	e.locked = true
}

func (e *Engine[S]) unlock() {
	if !e.locked {
		return
	}
	e.locked = false
	if kl, ok := e.client.(display.KeyboardLocker); ok {
		if err := kl.UnlockKeyboard(); err != nil {
			e.opts.observer.GrabFailed(fmt.Errorf("unlock keyboard: %w", err))
		}
	}
}
