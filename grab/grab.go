// Package grab owns the passive grabs for every input a chord set refers to.
package grab

import (
	"errors"
	"fmt"

	"chordd/chord"
	"chordd/display"
	"chordd/keystate"
)

// Set holds the grabs of one chord set. It is not safe for concurrent use.
type Set struct {
	client display.Client
	inputs []chord.Input
	held   map[display.Code]bool
	order  []display.Code
}

// New prepares grabs for inputs. Duplicates are ignored.
func New(client display.Client, inputs []chord.Input) *Set {
	seen := make(map[chord.Input]bool)
	var uniq []chord.Input
	for _, in := range inputs {
		if !seen[in] {
			seen[in] = true
			uniq = append(uniq, in)
		}
	}
	return &Set{
		client: client,
		inputs: uniq,
		held:   make(map[display.Code]bool),
	}
}

// Inputs returns the distinct inputs in registration order.
func (s *Set) Inputs() []chord.Input {
	return s.inputs
}

// Acquire resolves every input, grabs its codes under any modifier state and
// records the grabbed codes in tr. A code that cannot be grabbed does not
// realize its input; the failures are returned and the rest stay grabbed.
func (s *Set) Acquire(tr *keystate.Tracker) []error {
	var errs []error
	for _, in := range s.inputs {
		codes, err := s.client.Resolve(in)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve %s: %w", in, err))
			tr.SetCodes(in, nil)
			continue
		}
		var live []display.Code
		for _, c := range codes {
			if s.held[c] {
				live = append(live, c)
				continue
			}
			if err := s.client.Grab(c, display.ModAny); err != nil {
				var ge *display.GrabError
				if !errors.As(err, &ge) {
					ge = &display.GrabError{Input: in, Code: c, Modifiers: display.ModAny, Err: err}
				}
				errs = append(errs, ge)
				continue
			}
			s.held[c] = true
			s.order = append(s.order, c)
			live = append(live, c)
		}
		tr.SetCodes(in, live)
	}
	return errs
}

// Refresh re-resolves every input after a keyboard mapping change. The
// pressed set kept by tr is preserved.
func (s *Set) Refresh(tr *keystate.Tracker) []error {
	var errs []error
	if err := s.Release(); err != nil {
		errs = append(errs, err)
	}
	tr.Reset()
	return append(errs, s.Acquire(tr)...)
}

// Release drops every grab held by the set.
func (s *Set) Release() error {
	var errs []error
	for _, c := range s.order {
		if err := s.client.Ungrab(c, display.ModAny); err != nil {
			errs = append(errs, fmt.Errorf("ungrab %s: %w", c, err))
		}
	}
	clear(s.held)
	s.order = s.order[:0]
	return errors.Join(errs...)
}

// Held returns the grabbed codes in grab order.
func (s *Set) Held() []display.Code {
	return append([]display.Code(nil), s.order...)
}

// Allow releases the server's hold on one input event.
func (s *Set) Allow(ev display.Event, d display.Decision) error {
	if !ev.IsInput() {
		return nil
	}
	return s.client.Allow(ev, d)
}
