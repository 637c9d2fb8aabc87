// Package display defines the contract between the chord engine and the
// display server that owns the input devices.
package display

import (
	"context"
	"errors"
	"fmt"

	"chordd/chord"
)

// ModAny grabs a code regardless of the modifier state.
const ModAny uint16 = 0x8000

// ErrAlreadyGrabbed is wrapped by GrabError when another client owns the
// combination.
var ErrAlreadyGrabbed = errors.New("the combination is already grabbed")

// Source tells keyboard codes from pointer codes.
type Source uint8

const (
	Keyboard Source = iota
	Pointer
)

func (s Source) String() string {
	if s == Pointer {
		return "pointer"
	}
	return "keyboard"
}

// Code is a hardware code: a keycode or a pointer button number.
type Code struct {
	Source Source
	Value  uint32
}

func (c Code) String() string {
	if c.Source == Pointer {
		return fmt.Sprintf("button %d", c.Value)
	}
	return fmt.Sprintf("keycode %d", c.Value)
}

// EventKind is the type of an event delivered by NextEvent.
type EventKind uint8

const (
	KeyPress EventKind = iota
	KeyRelease
	ButtonPress
	ButtonRelease
	LayoutChanged
)

func (k EventKind) String() string {
	switch k {
	case KeyPress:
		return "key press"
	case KeyRelease:
		return "key release"
	case ButtonPress:
		return "button press"
	case ButtonRelease:
		return "button release"
	case LayoutChanged:
		return "layout changed"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event is one input event. Code is unset for LayoutChanged.
type Event struct {
	Kind EventKind
	Code Code
}

// IsPress reports whether the event adds a code to the pressed set.
func (e Event) IsPress() bool {
	return e.Kind == KeyPress || e.Kind == ButtonPress
}

// IsInput reports whether the event is a press or release that the server
// holds until Allow is called.
func (e Event) IsInput() bool {
	return e.Kind != LayoutChanged
}

func (e Event) String() string {
	if !e.IsInput() {
		return e.Kind.String()
	}
	return e.Kind.String() + " " + e.Code.String()
}

// Press and Release build input events for a code.
func Press(c Code) Event {
	if c.Source == Pointer {
		return Event{Kind: ButtonPress, Code: c}
	}
	return Event{Kind: KeyPress, Code: c}
}

func Release(c Code) Event {
	if c.Source == Pointer {
		return Event{Kind: ButtonRelease, Code: c}
	}
	return Event{Kind: KeyRelease, Code: c}
}

// Decision is the fate of a synchronously grabbed event.
type Decision uint8

const (
	// Hide withholds the event from the focused client.
	Hide Decision = iota
	// Replay releases the event unchanged to the focused client.
	Replay
)

func (d Decision) String() string {
	if d == Replay {
		return "replay"
	}
	return "hide"
}

// GrabError reports a failed grab for one code of an input.
type GrabError struct {
	Input     chord.Input
	Code      Code
	Modifiers uint16
	Err       error
}

func (e *GrabError) Error() string {
	return fmt.Sprintf("grab %s (%s, modifiers %#x): %v", e.Input, e.Code, e.Modifiers, e.Err)
}

func (e *GrabError) Unwrap() error { return e.Err }

// Client is a connection to the display server.
//
// NextEvent is the only blocking call. Every press and release returned by
// NextEvent is frozen by the server until Allow is called for it.
type Client interface {
	// Resolve returns the hardware codes currently producing the input.
	Resolve(in chord.Input) ([]Code, error)
	Grab(c Code, modifiers uint16) error
	Ungrab(c Code, modifiers uint16) error
	NextEvent(ctx context.Context) (Event, error)
	Allow(ev Event, d Decision) error
	Close() error
}

// KeyboardLocker is implemented by clients able to route the whole keyboard
// to the daemon while a chord is pending.
type KeyboardLocker interface {
	LockKeyboard() error
	UnlockKeyboard() error
}

// Namer is implemented by clients that can name a hardware code.
type Namer interface {
	CodeName(c Code) string
}

// Window describes the window holding the input focus. Fields the server
// does not know are left empty.
type Window struct {
	PID     int
	Process string
	Class   string
	Title   string
}

// ErrNoFocus is returned by FocusReader when no window has the focus.
var ErrNoFocus = errors.New("no focused window")

// FocusReader is implemented by clients that can report the focused window.
type FocusReader interface {
	Focused() (Window, error)
}
