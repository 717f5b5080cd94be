// Package lua embeds a sandboxed Lua runtime for script plugins. Each
// script plugin gets its own State; the host exposes its functions through
// RegisterModule and calls the plugin's global handlers through Call.
package lua

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ErrStateClosed is returned by every operation after Close.
var ErrStateClosed = errors.New("lua: state closed")

// State wraps a gopher-lua interpreter with a restricted library set.
//
// gopher-lua's LState is not goroutine-safe; the mutex serializes all Go
// entry points, and Lua execution itself is single-threaded. Each plugin
// owns exactly one State, and the plugin host already serializes calls into
// a plugin, so in practice the lock is uncontended.
type State struct {
	mu     sync.Mutex
	l      *lua.LState
	closed bool
}

// NewState creates a Lua state with only the safe standard libraries: base,
// table, string, and math. io, os, debug, and package stay closed so a
// script cannot touch the filesystem or spawn processes; everything a plugin
// needs from the host comes in through registered modules.
func NewState() *State {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)
	return &State{l: l}
}

// DoFile loads and runs a Lua file.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.recovering(func() error { return s.l.DoFile(path) })
}

// DoString runs a chunk of Lua source.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.recovering(func() error { return s.l.DoString(code) })
}

// Has reports whether the script defined a global function with the given
// name.
func (s *State) Has(fn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.l.GetGlobal(fn).Type() == lua.LTFunction
}

// Call invokes a global Lua function. Missing functions are an error;
// callers that treat handlers as optional should check Has first. The
// returned slice holds whatever the function returned, possibly empty.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.l.GetGlobal(fn)
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("lua: %q is not a function (got %s)", fn, fnVal.Type())
	}

	top := s.l.GetTop()
	s.l.Push(fnVal)
	for _, a := range args {
		s.l.Push(a)
	}

	err := s.recovering(func() error { return s.l.PCall(len(args), lua.MultRet, nil) })
	if err != nil {
		return nil, err
	}

	n := s.l.GetTop() - top
	if n <= 0 {
		return []lua.LValue{}, nil
	}
	out := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		out[i] = s.l.Get(top + i + 1)
	}
	s.l.Pop(n)
	return out, nil
}

// RegisterModule exposes a table of Go functions to the script under a
// global name.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	mod := s.l.SetFuncs(s.l.NewTable(), funcs)
	s.l.SetGlobal(name, mod)
}

// Bridge returns a value bridge bound to this state's interpreter. The
// bridge must only be used while the caller is the sole user of the state,
// which holds inside registered module functions and before the state is
// shared.
func (s *State) Bridge() *Bridge {
	return &Bridge{l: s.l}
}

// Closed reports whether Close has been called.
func (s *State) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close shuts the interpreter down. Further calls return ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.l.Close()
	s.closed = true
}

// recovering runs fn, converting an interpreter panic into an error.
func (s *State) recovering(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua: panic: %v", r)
		}
	}()
	return fn()
}
