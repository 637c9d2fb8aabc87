package engine

import (
	"chordd/chord"
	"chordd/display"
)

// Observer receives engine events. Implementations must not block.
type Observer interface {
	GrabFailed(err error)
	LayoutChanged(grabbed int)
	ChordPending(binding string, depth int)
	ChordReset(binding string)
	BindingFired(binding string, branch int)
	ActionFailed(binding string, err error)
	Decision(ev display.Event, d display.Decision)
}

// NopObserver ignores everything. Embed it to implement part of Observer.
type NopObserver struct{}

func (NopObserver) GrabFailed(error)                         {}
func (NopObserver) LayoutChanged(int)                        {}
func (NopObserver) ChordPending(string, int)                 {}
func (NopObserver) ChordReset(string)                        {}
func (NopObserver) BindingFired(string, int)                 {}
func (NopObserver) ActionFailed(string, error)               {}
func (NopObserver) Decision(display.Event, display.Decision) {}

type options struct {
	reset        chord.Input
	observer     Observer
	lockKeyboard bool
}

func defaultOptions() options {
	return options{
		reset:    chord.Key("Escape").Atom().Input,
		observer: NopObserver{},
	}
}

// Option configures an Engine.
type Option func(*options)

// WithReset sets the input that abandons a pending chord. Escape by default.
func WithReset(in chord.Input) Option {
	return func(o *options) { o.reset = in }
}

// WithObserver routes engine events to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithKeyboardLock grabs the whole keyboard while a chord is pending, when
// the display client supports it.
func WithKeyboardLock(on bool) Option {
	return func(o *options) { o.lockKeyboard = on }
}
