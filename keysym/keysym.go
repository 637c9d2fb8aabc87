// Package keysym maps symbolic key names to X11 keysym values.
package keysym

import (
	"fmt"
	"sort"
	"strings"
)

var table = map[string]uint32{
	"space":      0x0020,
	"apostrophe": 0x0027,
	"comma":      0x002c,
	"minus":      0x002d,
	"period":     0x002e,
	"slash":      0x002f,
	"semicolon":  0x003b,
	"equal":      0x003d,

	"bracketleft":  0x005b,
	"backslash":    0x005c,
	"bracketright": 0x005d,
	"grave":        0x0060,

	"BackSpace":   0xff08,
	"Tab":         0xff09,
	"Return":      0xff0d,
	"Pause":       0xff13,
	"Scroll_Lock": 0xff14,
	"Escape":      0xff1b,
	"Home":        0xff50,
	"Left":        0xff51,
	"Up":          0xff52,
	"Right":       0xff53,
	"Down":        0xff54,
	"Prior":       0xff55,
	"Next":        0xff56,
	"End":         0xff57,
	"Print":       0xff61,
	"Insert":      0xff63,
	"Menu":        0xff67,
	"Num_Lock":    0xff7f,
	"KP_Enter":    0xff8d,
	"Delete":      0xffff,

	"Shift_L":          0xffe1,
	"Shift_R":          0xffe2,
	"Control_L":        0xffe3,
	"Control_R":        0xffe4,
	"Caps_Lock":        0xffe5,
	"Meta_L":           0xffe7,
	"Meta_R":           0xffe8,
	"Alt_L":            0xffe9,
	"Alt_R":            0xffea,
	"Super_L":          0xffeb,
	"Super_R":          0xffec,
	"Hyper_L":          0xffed,
	"Hyper_R":          0xffee,
	"ISO_Level3_Shift": 0xfe03,

	"XF86MonBrightnessUp":   0x1008ff02,
	"XF86MonBrightnessDown": 0x1008ff03,
	"XF86AudioLowerVolume":  0x1008ff11,
	"XF86AudioMute":         0x1008ff12,
	"XF86AudioRaiseVolume":  0x1008ff13,
	"XF86AudioPlay":         0x1008ff14,
	"XF86AudioStop":         0x1008ff15,
	"XF86AudioPrev":         0x1008ff16,
	"XF86AudioNext":         0x1008ff17,
	"XF86HomePage":          0x1008ff18,
	"XF86Mail":              0x1008ff19,
	"XF86Search":            0x1008ff1b,
	"XF86Calculator":        0x1008ff1d,
	"XF86PowerOff":          0x1008ff2a,
	"XF86Sleep":             0x1008ff2f,
	"XF86Explorer":          0x1008ff5d,
	"XF86AudioMicMute":      0x1008ffb2,
}

// byFold indexes multi-character names case-insensitively.
var byFold = map[string]string{}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		table[string(c)] = uint32(c)
	}
	for c := '0'; c <= '9'; c++ {
		table[string(c)] = uint32(c)
	}
	for i := 1; i <= 24; i++ {
		table[fmt.Sprintf("F%d", i)] = 0xffbe + uint32(i-1)
	}
	for name := range table {
		if len(name) > 1 {
			byFold[strings.ToLower(name)] = name
		}
	}
}

// Lookup returns the keysym for name. Single characters are case sensitive;
// longer names fall back to a case-insensitive match ("return", "super_l").
func Lookup(name string) (uint32, bool) {
	if v, ok := table[name]; ok {
		return v, true
	}
	if len(name) == 1 {
		// uppercase letters are the shifted level of the same key
		c := name[0]
		if c >= 'A' && c <= 'Z' {
			return uint32(c - 'A' + 'a'), true
		}
		return 0, false
	}
	canon, ok := byFold[strings.ToLower(name)]
	if !ok {
		return 0, false
	}
	return table[canon], true
}

// Known reports whether Lookup would succeed.
func Known(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Name returns the canonical name of a keysym value.
func Name(sym uint32) (string, bool) {
	for name, v := range table {
		if v == sym {
			return name, true
		}
	}
	return "", false
}

// Names returns every canonical name in sorted order.
func Names() []string {
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
