package action

import (
	"errors"
	"fmt"
	"strings"

	"chordd/engine"
)

// ErrSendUnsupported is returned by Send on platforms without synthetic
// keystroke support.
var ErrSendUnsupported = errors.New("sending keystrokes is not supported on this platform")

// ErrBadKeystroke is returned by Send for an unparsable combination.
var ErrBadKeystroke = errors.New("invalid keystroke")

type keystroke struct {
	ctrl, shift, alt, super bool
	key                     string
}

// parseKeystroke reads "ctrl+shift+t" style combinations: any modifiers
// followed by exactly one key.
func parseKeystroke(s string) (keystroke, error) {
	var ks keystroke
	parts := strings.Split(s, "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i < len(parts)-1 {
			switch strings.ToLower(p) {
			case "ctrl", "control":
				ks.ctrl = true
			case "shift":
				ks.shift = true
			case "alt":
				ks.alt = true
			case "super", "cmd", "win":
				ks.super = true
			default:
				return keystroke{}, fmt.Errorf("%w %q: unknown modifier %q", ErrBadKeystroke, s, p)
			}
			continue
		}
		if p == "" {
			return keystroke{}, fmt.Errorf("%w %q: missing key", ErrBadKeystroke, s)
		}
		ks.key = p
	}
	return ks, nil
}

// Send types a key combination into the focused window.
func Send(combo string) (engine.Callback[State], error) {
	ks, err := parseKeystroke(combo)
	if err != nil {
		return nil, err
	}
	press, err := prepareKeystroke(ks)
	if err != nil {
		return nil, fmt.Errorf("send %q: %w", combo, err)
	}
	return func(int, *State) (engine.Result, error) {
		return engine.Advance, press()
	}, nil
}
