package main

import (
	"sync/atomic"

	"chordd/beep"
	"chordd/display"
	"chordd/log"
)

// EventSink abstracts the display layer so the monitor TUI receives the
// same chord progress events that go to the logs.
type EventSink interface {
	ChordPending(binding string, depth int)
	ChordReset(binding string)
	BindingFired(binding string, branch int)
	Problem(text string)
	GrabCount(n int)
	Decision(replayed bool)
}

// observer fans engine notifications out to the logs, the audible cues and
// an optional EventSink.
type observer struct {
	ui    EventSink
	fired atomic.Int64
}

func newObserver(ui EventSink) *observer {
	return &observer{ui: ui}
}

// Fired returns the number of bindings fired so far.
func (o *observer) Fired() int { return int(o.fired.Load()) }

func (o *observer) GrabFailed(err error) {
	log.GrabFailed(err)
	if o.ui != nil {
		o.ui.Problem(err.Error())
	}
}

func (o *observer) LayoutChanged(grabbed int) {
	log.LayoutChanged(grabbed)
	if o.ui != nil {
		o.ui.GrabCount(grabbed)
	}
}

func (o *observer) ChordPending(binding string, depth int) {
	log.ChordPending(binding, depth)
	beep.Pending(depth)
	if o.ui != nil {
		o.ui.ChordPending(binding, depth)
	}
}

func (o *observer) ChordReset(binding string) {
	log.ChordReset(binding)
	beep.Reset()
	if o.ui != nil {
		o.ui.ChordReset(binding)
	}
}

func (o *observer) BindingFired(binding string, branch int) {
	o.fired.Add(1)
	log.BindingFired(binding, branch)
	beep.Fired()
	if o.ui != nil {
		o.ui.BindingFired(binding, branch)
	}
}

func (o *observer) ActionFailed(binding string, err error) {
	log.ActionFailed(binding, err)
	beep.Failed()
	if o.ui != nil {
		o.ui.Problem(binding + ": " + err.Error())
	}
}

func (o *observer) Decision(ev display.Event, d display.Decision) {
	if o.ui != nil && ev.IsPress() {
		o.ui.Decision(d == display.Replay)
	}
}
