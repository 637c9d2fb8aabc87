// Package fake provides a scripted display client for tests.
package fake

import (
	"context"
	"errors"
	"slices"
	"sync"

	"chordd/chord"
	"chordd/display"
)

// ErrDisconnected is returned by NextEvent after Disconnect.
var ErrDisconnected = errors.New("fake display disconnected")

// Allowed records one Allow call.
type Allowed struct {
	Event    display.Event
	Decision display.Decision
}

type grabKey struct {
	code display.Code
	mods uint16
}

// Client is an in-memory display.Client, display.KeyboardLocker and
// display.FocusReader.
type Client struct {
	mu       sync.Mutex
	codes    map[chord.Input][]display.Code
	failures map[display.Code]error
	grabbed  map[grabKey]bool
	allowed  []Allowed
	locked   bool
	locks    int
	closed   bool
	focus    *display.Window

	events chan display.Event
	gone   chan struct{}
	once   sync.Once
}

func New() *Client {
	return &Client{
		codes:    make(map[chord.Input][]display.Code),
		failures: make(map[display.Code]error),
		grabbed:  make(map[grabKey]bool),
		events:   make(chan display.Event, 256),
		gone:     make(chan struct{}),
	}
}

// SetKey maps a keysym name to keycodes.
func (c *Client) SetKey(name string, keycodes ...uint32) {
	codes := make([]display.Code, len(keycodes))
	for i, k := range keycodes {
		codes[i] = display.Code{Source: display.Keyboard, Value: k}
	}
	c.SetCodes(chord.Key(name).Atom().Input, codes...)
}

// SetCodes replaces the codes an input resolves to.
func (c *Client) SetCodes(in chord.Input, codes ...display.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[in] = codes
}

// FailGrab makes every grab of code fail with err.
func (c *Client) FailGrab(code display.Code, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[code] = err
}

func (c *Client) Resolve(in chord.Input) ([]display.Code, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrDisconnected
	}
	return append([]display.Code(nil), c.codes[in]...), nil
}

func (c *Client) Grab(code display.Code, mods uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failures[code]; ok {
		return err
	}
	c.grabbed[grabKey{code, mods}] = true
	return nil
}

func (c *Client) Ungrab(code display.Code, mods uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.grabbed, grabKey{code, mods})
	return nil
}

// CodeName returns the name of the first input mapped to c.
func (c *Client) CodeName(code display.Code) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for in, codes := range c.codes {
		if slices.Contains(codes, code) {
			names = append(names, in.String())
		}
	}
	if len(names) == 0 {
		return code.String()
	}
	slices.Sort(names)
	return names[0]
}

// SetFocus sets the window reported by Focused. Nil means no focus.
func (c *Client) SetFocus(w *display.Window) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focus = w
}

func (c *Client) Focused() (display.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.focus == nil {
		return display.Window{}, display.ErrNoFocus
	}
	return *c.focus, nil
}

// IsGrabbed reports whether code is grabbed with display.ModAny.
func (c *Client) IsGrabbed(code display.Code) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grabbed[grabKey{code, display.ModAny}]
}

// GrabCount returns the number of live grabs.
func (c *Client) GrabCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.grabbed)
}

func (c *Client) NextEvent(ctx context.Context) (display.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	default:
	}
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.gone:
		return display.Event{}, ErrDisconnected
	case <-ctx.Done():
		return display.Event{}, ctx.Err()
	}
}

func (c *Client) Allow(ev display.Event, d display.Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowed = append(c.allowed, Allowed{Event: ev, Decision: d})
	return nil
}

// Allowed returns every Allow call so far.
func (c *Client) Allowed() []Allowed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Allowed(nil), c.allowed...)
}

func (c *Client) LockKeyboard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = true
	c.locks++
	return nil
}

func (c *Client) UnlockKeyboard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
	return nil
}

// Locked reports whether the keyboard is currently locked and how many
// times it was locked.
func (c *Client) Locked() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked, c.locks
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
	return nil
}

// Disconnect makes NextEvent fail once queued events are drained.
func (c *Client) Disconnect() {
	c.once.Do(func() { close(c.gone) })
}

// SimPress queues a press of code.
func (c *Client) SimPress(code display.Code) { c.events <- display.Press(code) }

// SimRelease queues a release of code.
func (c *Client) SimRelease(code display.Code) { c.events <- display.Release(code) }

// SimKey queues a press and release of a keycode.
func (c *Client) SimKey(keycode uint32) {
	code := display.Code{Source: display.Keyboard, Value: keycode}
	c.SimPress(code)
	c.SimRelease(code)
}

// SimLayoutChange queues a keyboard mapping change.
func (c *Client) SimLayoutChange() {
	c.events <- display.Event{Kind: display.LayoutChanged}
}
