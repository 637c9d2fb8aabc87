// Package keystate tracks which hardware codes are held down and which
// codes realize each chord input.
package keystate

import (
	"slices"

	"chordd/chord"
	"chordd/display"
)

type Tracker struct {
	pressed map[display.Code]struct{}
	codes   map[chord.Input][]display.Code
}

func New() *Tracker {
	return &Tracker{
		pressed: make(map[display.Code]struct{}),
		codes:   make(map[chord.Input][]display.Code),
	}
}

// Update applies a press or release. Other events are ignored.
func (t *Tracker) Update(ev display.Event) {
	switch ev.Kind {
	case display.KeyPress, display.ButtonPress:
		t.pressed[ev.Code] = struct{}{}
	case display.KeyRelease, display.ButtonRelease:
		delete(t.pressed, ev.Code)
	}
}

// SetCodes replaces the codes realizing in. The pressed set is untouched.
func (t *Tracker) SetCodes(in chord.Input, codes []display.Code) {
	if len(codes) == 0 {
		delete(t.codes, in)
		return
	}
	t.codes[in] = slices.Clone(codes)
}

// Codes returns the codes realizing in.
func (t *Tracker) Codes(in chord.Input) []display.Code {
	return t.codes[in]
}

// Reset forgets every code mapping.
func (t *Tracker) Reset() {
	clear(t.codes)
}

// IsActive reports whether any code realizing in is held.
func (t *Tracker) IsActive(in chord.Input) bool {
	for _, c := range t.codes[in] {
		if _, ok := t.pressed[c]; ok {
			return true
		}
	}
	return false
}

// IsPressed reports whether code is held.
func (t *Tracker) IsPressed(code display.Code) bool {
	_, ok := t.pressed[code]
	return ok
}

// Realizes reports whether code is one of the codes realizing in.
func (t *Tracker) Realizes(in chord.Input, code display.Code) bool {
	return slices.Contains(t.codes[in], code)
}

// Pressed returns the held codes, keyboard first, in ascending order.
func (t *Tracker) Pressed() []display.Code {
	out := make([]display.Code, 0, len(t.pressed))
	for c := range t.pressed {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b display.Code) int {
		if a.Source != b.Source {
			return int(a.Source) - int(b.Source)
		}
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})
	return out
}
