package action

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"chordd/engine"
)

// Lua compiles src once and returns a callback running it in the shared
// interpreter. The chunk sees:
//
//	branch              the dispatched branch
//	ctx                 a table kept across invocations
//	run(cmd)            start a shell command
//	copy(text)          write the clipboard
//	counter(name [, n]) add n (default 1) to a named counter, return it
//	focus()             the focused window as {pid, process, class, title},
//	                    or nil and a message
//
// Returning the string "restart" abandons a repeating chord.
func Lua(name, src string) (engine.Callback[State], error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("lua %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("lua %s: %w", name, err)
	}
	return func(branch int, st *State) (engine.Result, error) {
		return st.runLua(proto, branch)
	}, nil
}

func (s *State) interp() *lua.LState {
	if s.lstate != nil {
		return s.lstate
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("ctx", L.NewTable())
	L.SetGlobal("run", L.NewFunction(func(L *lua.LState) int {
		if err := s.spawn(L.CheckString(1)); err != nil {
			L.RaiseError("%v", err)
		}
		return 0
	}))
	L.SetGlobal("copy", L.NewFunction(func(L *lua.LState) int {
		if err := s.writeClip(L.CheckString(1)); err != nil {
			L.RaiseError("clipboard: %v", err)
		}
		return 0
	}))
	L.SetGlobal("counter", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		s.Counters[name] += L.OptInt(2, 1)
		L.Push(lua.LNumber(s.Counters[name]))
		return 1
	}))

	L.SetGlobal("focus", L.NewFunction(s.luaFocus))

	s.lstate = L
	return L
}

func (s *State) runLua(proto *lua.FunctionProto, branch int) (res engine.Result, err error) {
	L := s.interp()

	ctx, cancel := context.WithTimeout(context.Background(), s.luaTimeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	L.SetGlobal("branch", lua.LNumber(branch))
	top := L.GetTop()
	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		L.SetTop(top)
		return engine.Advance, err
	}
	ret := L.Get(-1)
	L.SetTop(top)

	if str, ok := ret.(lua.LString); ok && string(str) == "restart" {
		return engine.Restart, nil
	}
	return engine.Advance, nil
}

func (s *State) luaFocus(L *lua.LState) int {
	if s.focus == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("focus is not available on this display"))
		return 2
	}
	w, err := s.focus.Focused()
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	t := L.NewTable()
	t.RawSetString("pid", lua.LNumber(w.PID))
	t.RawSetString("process", lua.LString(w.Process))
	t.RawSetString("class", lua.LString(w.Class))
	t.RawSetString("title", lua.LString(w.Title))
	L.Push(t)
	return 1
}
