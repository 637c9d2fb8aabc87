package x11

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"chordd/display"
)

func (c *Client) atom(name string) (xproto.Atom, error) {
	c.mu.Lock()
	a, ok := c.atoms[name]
	c.mu.Unlock()
	if ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(c.conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern %s: %w", name, err)
	}
	c.mu.Lock()
	c.atoms[name] = reply.Atom
	c.mu.Unlock()
	return reply.Atom, nil
}

// property reads a window property of any type. A missing atom or property
// yields nil.
func (c *Client) property(w xproto.Window, name string) ([]byte, uint32, error) {
	a, err := c.atom(name)
	if err != nil || a == xproto.AtomNone {
		return nil, 0, err
	}
	reply, err := xproto.GetProperty(c.conn, false, w, a, xproto.GetPropertyTypeAny, 0, 1<<16).Reply()
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", name, err)
	}
	return reply.Value, uint32(reply.Format), nil
}

// Focused reports the window named by the window manager's
// _NET_ACTIVE_WINDOW, falling back to the core input focus.
func (c *Client) Focused() (display.Window, error) {
	win, err := c.activeWindow()
	if err != nil {
		return display.Window{}, err
	}
	if win == xproto.WindowNone || win == c.root {
		return display.Window{}, display.ErrNoFocus
	}

	var w display.Window
	if v, format, err := c.property(win, "_NET_WM_PID"); err != nil {
		return w, err
	} else if format == 32 && len(v) >= 4 {
		w.PID = int(xgb.Get32(v))
		w.Process = processName(w.PID)
	}
	if v, _, err := c.property(win, "WM_CLASS"); err != nil {
		return w, err
	} else if parts := strings.Split(strings.TrimRight(string(v), "\x00"), "\x00"); len(parts) > 0 {
		// instance then class
		w.Class = parts[len(parts)-1]
	}
	if v, _, err := c.property(win, "_NET_WM_NAME"); err != nil {
		return w, err
	} else if len(v) > 0 {
		w.Title = string(v)
	} else if v, _, err := c.property(win, "WM_NAME"); err == nil {
		w.Title = string(v)
	}
	return w, nil
}

func (c *Client) activeWindow() (xproto.Window, error) {
	v, format, err := c.property(c.root, "_NET_ACTIVE_WINDOW")
	if err != nil {
		return 0, err
	}
	if format == 32 && len(v) >= 4 {
		if w := xproto.Window(xgb.Get32(v)); w != xproto.WindowNone {
			return w, nil
		}
	}
	reply, err := xproto.GetInputFocus(c.conn).Reply()
	if err != nil {
		return 0, fmt.Errorf("get input focus: %w", err)
	}
	return reply.Focus, nil
}

// processName reads the command name of pid from procfs. Empty where procfs
// is unavailable.
func processName(pid int) string {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
