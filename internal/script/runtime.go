package script

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
)

// Object is the view of a city object handed to the Lua hook
type Object struct {
	Name       string
	Type       string
	File       string
	Parents    []string
	Children   []string
	LoDs       []string
	Attributes map[string]any
}

// Runtime runs a user script exposing cityjson.process_object(object).
// Returning false from the hook filters the object out; changes made to
// object.attributes are kept.
type Runtime struct {
	L       *lua.LState
	mu      sync.Mutex
	process lua.LValue
}

// NewRuntime creates a Lua state with the cityjson API registered
func NewRuntime() *Runtime {
	r := &Runtime{L: lua.NewState()}
	r.registerAPI()
	return r
}

// Close releases Lua resources
func (r *Runtime) Close() {
	r.L.Close()
}

func (r *Runtime) registerAPI() {
	api := r.L.NewTable()
	api.RawSetString("version", lua.LString("1.0.0"))
	r.L.SetGlobal("cityjson", api)

	RegisterTransforms(r.L)
	r.L.SetGlobal("print", r.L.NewFunction(luaPrint))
}

// LoadFile loads and executes a Lua script file
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	r.extractCallbacks()
	return nil
}

// LoadString loads and executes Lua code from a string
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	r.extractCallbacks()
	return nil
}

func (r *Runtime) extractCallbacks() {
	if api, ok := r.L.GetGlobal("cityjson").(*lua.LTable); ok {
		r.process = api.RawGetString("process_object")
	}
}

// HasProcessObject reports whether the script defines the hook
func (r *Runtime) HasProcessObject() bool {
	return r.process != nil && r.process.Type() == lua.LTFunction
}

// ProcessObject calls the hook. It returns whether the object is kept and
// its attributes after the hook ran.
func (r *Runtime) ProcessObject(obj Object) (bool, map[string]any, error) {
	if !r.HasProcessObject() {
		return true, obj.Attributes, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tbl := r.objectToLua(obj)
	if err := r.L.CallByParam(lua.P{
		Fn:      r.process,
		NRet:    1,
		Protect: true,
	}, tbl); err != nil {
		return false, nil, fmt.Errorf("lua callback error for %s: %w", obj.Name, err)
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)

	keep := ret != lua.LFalse
	attrs := obj.Attributes
	if at, ok := tbl.RawGetString("attributes").(*lua.LTable); ok {
		attrs = tableToMap(at)
	}
	return keep, attrs, nil
}

func (r *Runtime) objectToLua(obj Object) *lua.LTable {
	L := r.L
	tbl := L.NewTable()
	tbl.RawSetString("name", lua.LString(obj.Name))
	tbl.RawSetString("type", lua.LString(obj.Type))
	tbl.RawSetString("file", lua.LString(obj.File))
	tbl.RawSetString("parents", stringList(L, obj.Parents))
	tbl.RawSetString("children", stringList(L, obj.Children))
	tbl.RawSetString("lods", stringList(L, obj.LoDs))
	tbl.RawSetString("attributes", toLua(L, obj.Attributes))
	return tbl
}

func stringList(L *lua.LState, items []string) *lua.LTable {
	tbl := L.CreateTable(len(items), 0)
	for i, s := range items {
		tbl.RawSetInt(i+1, lua.LString(s))
	}
	return tbl
}

// toLua converts attribute values to Lua values
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := L.CreateTable(len(val), 0)
		for i, item := range val {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tbl.RawSetString(k, toLua(L, val[k]))
		}
		return tbl
	}
	return lua.LString(fmt.Sprint(v))
}

// fromLua converts a Lua value back to attribute values. Whole numbers come
// back as int64; sequence tables as []any.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(val.RawGetInt(i)))
			}
			return out
		}
		return tableToMap(val)
	}
	return nil
}

func tableToMap(tbl *lua.LTable) map[string]any {
	out := make(map[string]any)
	tbl.ForEach(func(key, value lua.LValue) {
		if key.Type() != lua.LTString {
			return
		}
		out[string(key.(lua.LString))] = fromLua(value)
	})
	return out
}

func luaPrint(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	logger.Get().Info("lua", zap.String("msg", strings.Join(parts, "\t")))
	return 0
}
