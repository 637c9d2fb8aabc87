// Package x11 implements display.Client over the core X11 protocol using
// passive grabs with synchronous delivery.
package x11

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"chordd/chord"
	"chordd/display"
	"chordd/keysym"
	"chordd/log"
)

// ErrUnknownKeysym is returned by Resolve for names missing from the keysym
// table.
var ErrUnknownKeysym = errors.New("unknown keysym name")

// ErrConnectionClosed is returned by NextEvent once the server hangs up.
var ErrConnectionClosed = errors.New("x11 connection closed")

type pumped struct {
	ev  xgb.Event
	err xgb.Error
}

type Client struct {
	conn *xgb.Conn
	root xproto.Window
	min  xproto.Keycode
	max  xproto.Keycode

	mu      sync.Mutex
	keysyms map[xproto.Keycode][]xproto.Keysym
	modmap  [8][]xproto.Keycode
	atoms   map[string]xproto.Atom

	events    chan pumped
	done      chan struct{}
	closeOnce sync.Once
}

// Connect opens the display named by name, or $DISPLAY when empty.
func Connect(name string) (*Client, error) {
	conn, err := xgb.NewConnDisplay(name)
	if err != nil {
		return nil, fmt.Errorf("connect to X display: %w", err)
	}
	setup := xproto.Setup(conn)
	c := &Client{
		conn:   conn,
		root:   setup.DefaultScreen(conn).Root,
		min:    setup.MinKeycode,
		max:    setup.MaxKeycode,
		events: make(chan pumped),
		done:   make(chan struct{}),
		atoms:  make(map[string]xproto.Atom),
	}
	if err := c.loadMaps(); err != nil {
		conn.Close()
		return nil, err
	}
	go c.pump()
	return c, nil
}

func (c *Client) pump() {
	for {
		ev, xerr := c.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			close(c.events)
			return
		}
		select {
		case c.events <- pumped{ev: ev, err: xerr}:
		case <-c.done:
			return
		}
	}
}

func (c *Client) loadMaps() error {
	count := byte(c.max - c.min + 1)
	km, err := xproto.GetKeyboardMapping(c.conn, c.min, count).Reply()
	if err != nil {
		return fmt.Errorf("get keyboard mapping: %w", err)
	}
	mm, err := xproto.GetModifierMapping(c.conn).Reply()
	if err != nil {
		return fmt.Errorf("get modifier mapping: %w", err)
	}

	per := int(km.KeysymsPerKeycode)
	keysyms := make(map[xproto.Keycode][]xproto.Keysym, count)
	for i := 0; i < int(count); i++ {
		syms := km.Keysyms[i*per : (i+1)*per]
		keysyms[c.min+xproto.Keycode(i)] = syms
	}

	var modmap [8][]xproto.Keycode
	kpm := int(mm.KeycodesPerModifier)
	for row := range modmap {
		for _, kc := range mm.Keycodes[row*kpm : (row+1)*kpm] {
			if kc != 0 {
				modmap[row] = append(modmap[row], kc)
			}
		}
	}

	c.mu.Lock()
	c.keysyms = keysyms
	c.modmap = modmap
	c.mu.Unlock()
	return nil
}

func (c *Client) Resolve(in chord.Input) ([]display.Code, error) {
	switch in.Kind {
	case chord.KindButton:
		return []display.Code{{Source: display.Pointer, Value: uint32(in.Button)}}, nil
	case chord.KindModifier:
		row := slices.Index(chord.ModifierNames, in.Name)
		if row < 0 {
			return nil, fmt.Errorf("%w: %s", chord.ErrBadModifier, in.Name)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		codes := make([]display.Code, 0, len(c.modmap[row]))
		for _, kc := range c.modmap[row] {
			codes = append(codes, display.Code{Source: display.Keyboard, Value: uint32(kc)})
		}
		return codes, nil
	}

	sym, ok := keysym.Lookup(in.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeysym, in.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var codes []display.Code
	for kc := c.min; ; kc++ {
		if slices.Contains(c.keysyms[kc], xproto.Keysym(sym)) {
			codes = append(codes, display.Code{Source: display.Keyboard, Value: uint32(kc)})
		}
		if kc == c.max {
			break
		}
	}
	return codes, nil
}

func (c *Client) Grab(code display.Code, mods uint16) error {
	var err error
	if code.Source == display.Pointer {
		err = xproto.GrabButtonChecked(c.conn, true, c.root,
			uint16(xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease),
			xproto.GrabModeSync, xproto.GrabModeAsync,
			xproto.WindowNone, xproto.CursorNone,
			byte(code.Value), mods).Check()
	} else {
		err = xproto.GrabKeyChecked(c.conn, true, c.root, mods,
			xproto.Keycode(code.Value),
			xproto.GrabModeAsync, xproto.GrabModeSync).Check()
	}
	return grabError(err)
}

func grabError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(xproto.AccessError); ok {
		return display.ErrAlreadyGrabbed
	}
	return err
}

func (c *Client) Ungrab(code display.Code, mods uint16) error {
	if code.Source == display.Pointer {
		return xproto.UngrabButtonChecked(c.conn, byte(code.Value), c.root, mods).Check()
	}
	return xproto.UngrabKeyChecked(c.conn, xproto.Keycode(code.Value), c.root, mods).Check()
}

// NextEvent blocks until a grabbed input event or a mapping change arrives.
func (c *Client) NextEvent(ctx context.Context) (display.Event, error) {
	for {
		var p pumped
		var ok bool
		select {
		case <-ctx.Done():
			return display.Event{}, ctx.Err()
		case p, ok = <-c.events:
			if !ok {
				return display.Event{}, ErrConnectionClosed
			}
		}

		if p.err != nil {
			log.Warnf("x11: %v", p.err)
			continue
		}

		switch ev := p.ev.(type) {
		case xproto.KeyPressEvent:
			return display.Event{Kind: display.KeyPress, Code: keyCode(ev.Detail)}, nil
		case xproto.KeyReleaseEvent:
			return display.Event{Kind: display.KeyRelease, Code: keyCode(ev.Detail)}, nil
		case xproto.ButtonPressEvent:
			return display.Event{Kind: display.ButtonPress, Code: buttonCode(ev.Detail)}, nil
		case xproto.ButtonReleaseEvent:
			return display.Event{Kind: display.ButtonRelease, Code: buttonCode(ev.Detail)}, nil
		case xproto.MappingNotifyEvent:
			if ev.Request == xproto.MappingPointer {
				continue
			}
			if err := c.loadMaps(); err != nil {
				return display.Event{}, err
			}
			return display.Event{Kind: display.LayoutChanged}, nil
		}
	}
}

func keyCode(kc xproto.Keycode) display.Code {
	return display.Code{Source: display.Keyboard, Value: uint32(kc)}
}

func buttonCode(b xproto.Button) display.Code {
	return display.Code{Source: display.Pointer, Value: uint32(b)}
}

// Allow thaws the device frozen by a synchronous grab. Hide keeps the grab
// synchronous until the next event; Replay hands the event to the client
// that would have received it.
func (c *Client) Allow(ev display.Event, d display.Decision) error {
	var mode byte
	switch {
	case ev.Code.Source == display.Pointer && d == display.Replay:
		mode = xproto.AllowReplayPointer
	case ev.Code.Source == display.Pointer:
		mode = xproto.AllowSyncPointer
	case d == display.Replay:
		mode = xproto.AllowReplayKeyboard
	default:
		mode = xproto.AllowSyncKeyboard
	}
	return xproto.AllowEventsChecked(c.conn, mode, xproto.TimeCurrentTime).Check()
}

func (c *Client) LockKeyboard() error {
	reply, err := xproto.GrabKeyboard(c.conn, true, c.root, xproto.TimeCurrentTime,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	if err != nil {
		return err
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("grab keyboard: status %d", reply.Status)
	}
	return nil
}

func (c *Client) UnlockKeyboard() error {
	return xproto.UngrabKeyboardChecked(c.conn, xproto.TimeCurrentTime).Check()
}

// CodeName returns the keysym name of a keycode in its unshifted column.
func (c *Client) CodeName(code display.Code) string {
	if code.Source == display.Pointer {
		return fmt.Sprintf("button:%d", code.Value)
	}
	c.mu.Lock()
	syms := c.keysyms[xproto.Keycode(code.Value)]
	c.mu.Unlock()
	if len(syms) > 0 {
		if name, ok := keysym.Name(uint32(syms[0])); ok {
			return name
		}
	}
	return fmt.Sprintf("keycode:%d", code.Value)
}

// Close drops every grab this client holds on the root window and closes
// the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		xproto.UngrabKey(c.conn, xproto.GrabAny, c.root, xproto.ModMaskAny)
		xproto.UngrabButton(c.conn, xproto.ButtonIndexAny, c.root, xproto.ModMaskAny)
		xproto.UngrabKeyboard(c.conn, xproto.TimeCurrentTime)
		close(c.done)
		c.conn.Close()
	})
	return nil
}
