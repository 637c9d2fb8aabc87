// Package action builds the callbacks bound to chords: shell commands, Lua
// snippets, clipboard writes and synthetic keystrokes.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cb "github.com/atotto/clipboard"
	lua "github.com/yuin/gopher-lua"

	"chordd/display"
	"chordd/engine"
)

// ErrNoBranch is returned when a per-branch list has no entry for the
// dispatched branch.
var ErrNoBranch = errors.New("no entry for branch")

// DefaultLuaTimeout bounds one Lua callback.
const DefaultLuaTimeout = 2 * time.Second

// State is the context shared by every callback across invocations.
type State struct {
	// Counters holds named counters updated by Lua's counter().
	Counters map[string]int

	luaTimeout time.Duration
	lstate     *lua.LState

	spawn     func(cmd string) error
	writeClip func(text string) error
	focus     display.FocusReader
}

// NewState returns a State with a Lua timeout; zero means DefaultLuaTimeout.
func NewState(luaTimeout time.Duration) *State {
	if luaTimeout <= 0 {
		luaTimeout = DefaultLuaTimeout
	}
	return &State{
		Counters:   make(map[string]int),
		luaTimeout: luaTimeout,
		spawn:      startShell,
		writeClip:  cb.WriteAll,
	}
}

// SetFocusReader lets Lua's focus() ask fr for the focused window.
func (s *State) SetFocusReader(fr display.FocusReader) { s.focus = fr }

// Close releases the Lua interpreter.
func (s *State) Close() {
	if s.lstate != nil {
		s.lstate.Close()
		s.lstate = nil
	}
}

// pick selects the entry for branch from a per-branch list. A single entry
// serves every branch.
func pick(list []string, branch int) (string, error) {
	switch {
	case len(list) == 1:
		return list[0], nil
	case branch >= 1 && branch <= len(list):
		return list[branch-1], nil
	}
	return "", fmt.Errorf("%w %d (have %d)", ErrNoBranch, branch, len(list))
}

func substitute(s string, branch int) string {
	return strings.ReplaceAll(s, "{branch}", strconv.Itoa(branch))
}

// Shell runs a command through sh -c without waiting for it. With several
// commands, branch n runs the n-th. "{branch}" is replaced by the branch.
func Shell(cmds []string) engine.Callback[State] {
	return func(branch int, st *State) (engine.Result, error) {
		cmd, err := pick(cmds, branch)
		if err != nil {
			return engine.Advance, err
		}
		return engine.Advance, st.spawn(substitute(cmd, branch))
	}
}

// Copy writes text to the clipboard, one entry per branch like Shell.
func Copy(texts []string) engine.Callback[State] {
	return func(branch int, st *State) (engine.Result, error) {
		text, err := pick(texts, branch)
		if err != nil {
			return engine.Advance, err
		}
		if err := st.writeClip(substitute(text, branch)); err != nil {
			return engine.Advance, fmt.Errorf("clipboard: %w", err)
		}
		return engine.Advance, nil
	}
}
