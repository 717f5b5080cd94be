package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts between Go values and Lua values for one interpreter.
// The supported Go shapes are the ones event payloads and message bodies
// are built from: nil, bool, numbers, strings, []any, []string, and
// map[string]any, nested arbitrarily.
type Bridge struct {
	l *lua.LState
}

// ToLua converts a Go value to its Lua representation. Unsupported types
// become nil rather than panicking; payload producers stay within the
// supported shapes.
func (b *Bridge) ToLua(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []string:
		t := b.l.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case []any:
		t := b.l.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, b.ToLua(e))
		}
		return t
	case map[string]any:
		t := b.l.NewTable()
		for k, e := range val {
			t.RawSetString(k, b.ToLua(e))
		}
		return t
	case lua.LValue:
		return val
	default:
		return lua.LNil
	}
}

// ToGo converts a Lua value back to a Go value. Tables with contiguous
// 1-based integer keys become []any, all other tables become
// map[string]any. Functions and userdata convert to nil.
func (b *Bridge) ToGo(lv lua.LValue) any {
	return toGo(lv, make(map[*lua.LTable]bool))
}

func toGo(lv lua.LValue, seen map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if seen[v] {
			return nil
		}
		seen[v] = true
		return tableToGo(v, seen)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, seen map[*lua.LTable]bool) any {
	n := t.Len()
	if n > 0 {
		// Treat as an array only when integer keys are the whole story.
		count := 0
		t.ForEach(func(lua.LValue, lua.LValue) { count++ })
		if count == n {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = toGo(t.RawGetInt(i), seen)
			}
			return arr
		}
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = toGo(v, seen)
	})
	return m
}

// TableToStringMap converts a Lua table's string-keyed, string-valued
// entries to a Go map, skipping everything else.
func (b *Bridge) TableToStringMap(t *lua.LTable) map[string]string {
	out := make(map[string]string)
	t.ForEach(func(k, v lua.LValue) {
		ks, kok := k.(lua.LString)
		vs, vok := v.(lua.LString)
		if kok && vok {
			out[string(ks)] = string(vs)
		}
	})
	return out
}

// TableToStringSlice converts a Lua array of strings to a Go slice,
// skipping non-string entries.
func (b *Bridge) TableToStringSlice(t *lua.LTable) []string {
	var out []string
	for i := 1; i <= t.Len(); i++ {
		if s, ok := t.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}
