//go:build !linux

package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"

	"chordd/chord"
	"chordd/display"
	"chordd/log"
)

// ErrClosed is returned by NextEvent after Close.
var ErrClosed = errors.New("hotkey client closed")

var keys = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"Return": hotkey.KeyReturn,
	"Escape": hotkey.KeyEscape,
	"Delete": hotkey.KeyDelete,
	"Tab":    hotkey.KeyTab,
	"Left":   hotkey.KeyLeft,
	"Right":  hotkey.KeyRight,
	"Up":     hotkey.KeyUp,
	"Down":   hotkey.KeyDown,
}

func init() {
	letters := []hotkey.Key{
		hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
		hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
		hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
		hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
		hotkey.KeyY, hotkey.KeyZ,
	}
	for i, k := range letters {
		keys[string(rune('a'+i))] = k
	}
	digits := []hotkey.Key{
		hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
		hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
	}
	for i, k := range digits {
		keys[string(rune('0'+i))] = k
	}
	fkeys := []hotkey.Key{
		hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4, hotkey.KeyF5,
		hotkey.KeyF6, hotkey.KeyF7, hotkey.KeyF8, hotkey.KeyF9, hotkey.KeyF10,
		hotkey.KeyF11, hotkey.KeyF12, hotkey.KeyF13, hotkey.KeyF14, hotkey.KeyF15,
		hotkey.KeyF16, hotkey.KeyF17, hotkey.KeyF18, hotkey.KeyF19, hotkey.KeyF20,
	}
	for i, k := range fkeys {
		keys[fmt.Sprintf("F%d", i+1)] = k
	}
}

func lookup(name string) (hotkey.Key, bool) {
	if k, ok := keys[name]; ok {
		return k, true
	}
	if len(name) == 1 {
		k, ok := keys[strings.ToLower(name)]
		return k, ok
	}
	for n, k := range keys {
		if strings.EqualFold(n, name) {
			return k, true
		}
	}
	return 0, false
}

type registration struct {
	hk   *hotkey.Hotkey
	stop chan struct{}
}

// Client implements display.Client on top of golang.design/x/hotkey.
type Client struct {
	mu       sync.Mutex
	regs     map[display.Code]*registration
	events   chan display.Event
	done     chan struct{}
	once     sync.Once
	warnOnce sync.Once
}

func New() *Client {
	return &Client{
		regs:   make(map[display.Code]*registration),
		events: make(chan display.Event, 16),
		done:   make(chan struct{}),
	}
}

func (c *Client) Resolve(in chord.Input) ([]display.Code, error) {
	if in.Kind != chord.KindKey {
		return nil, fmt.Errorf("%s atom %s: %w", in.Kind, in, ErrUnsupported)
	}
	k, ok := lookup(in.Name)
	if !ok {
		return nil, fmt.Errorf("key %s: %w", in.Name, ErrUnsupported)
	}
	return []display.Code{{Source: display.Keyboard, Value: uint32(k)}}, nil
}

func (c *Client) Grab(code display.Code, _ uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.regs[code]; ok {
		return nil
	}
	hk := hotkey.New(nil, hotkey.Key(code.Value))
	if err := hk.Register(); err != nil {
		return fmt.Errorf("%w: %v", display.ErrAlreadyGrabbed, err)
	}
	reg := &registration{hk: hk, stop: make(chan struct{})}
	c.regs[code] = reg
	go c.forward(reg, code)
	return nil
}

func (c *Client) forward(reg *registration, code display.Code) {
	for {
		var ev display.Event
		select {
		case <-reg.hk.Keydown():
			ev = display.Press(code)
		case <-reg.hk.Keyup():
			ev = display.Release(code)
		case <-reg.stop:
			return
		}
		select {
		case c.events <- ev:
		case <-reg.stop:
			return
		}
	}
}

func (c *Client) Ungrab(code display.Code, _ uint16) error {
	c.mu.Lock()
	reg, ok := c.regs[code]
	delete(c.regs, code)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	close(reg.stop)
	return reg.hk.Unregister()
}

func (c *Client) NextEvent(ctx context.Context) (display.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		return display.Event{}, ErrClosed
	case <-ctx.Done():
		return display.Event{}, ctx.Err()
	}
}

// Allow is a no-op: the platform has already delivered the event.
func (c *Client) Allow(_ display.Event, d display.Decision) error {
	if d == display.Replay {
		c.warnOnce.Do(func() {
			log.Warn("replay is not supported by the platform hotkey API; events are always consumed")
		})
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	codes := make([]display.Code, 0, len(c.regs))
	for code := range c.regs {
		codes = append(codes, code)
	}
	c.mu.Unlock()

	var errs []error
	for _, code := range codes {
		if err := c.Ungrab(code, 0); err != nil {
			errs = append(errs, err)
		}
	}
	c.once.Do(func() { close(c.done) })
	return errors.Join(errs...)
}
