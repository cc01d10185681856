package script

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	lua "github.com/yuin/gopher-lua"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// RegisterTransforms registers attribute helper functions under
// cityjson.transforms, with the common ones also available as globals.
func RegisterTransforms(L *lua.LState) {
	transforms := L.NewTable()

	L.SetField(transforms, "trim", L.NewFunction(luaTrim))
	L.SetField(transforms, "lower", L.NewFunction(luaLower))
	L.SetField(transforms, "upper", L.NewFunction(luaUpper))
	L.SetField(transforms, "clean_spaces", L.NewFunction(luaCleanSpaces))
	L.SetField(transforms, "truncate", L.NewFunction(luaTruncate))

	L.SetField(transforms, "parse_int", L.NewFunction(luaParseInt))
	L.SetField(transforms, "parse_real", L.NewFunction(luaParseReal))
	L.SetField(transforms, "parse_bool", L.NewFunction(luaParseBool))

	L.SetField(transforms, "attributes_to_json", L.NewFunction(luaAttributesToJSON))
	L.SetField(transforms, "filter_attributes", L.NewFunction(luaFilterAttributes))

	api, ok := L.GetGlobal("cityjson").(*lua.LTable)
	if !ok {
		api = L.NewTable()
		L.SetGlobal("cityjson", api)
	}
	L.SetField(api, "transforms", transforms)

	L.SetGlobal("trim", L.NewFunction(luaTrim))
	L.SetGlobal("parse_int", L.NewFunction(luaParseInt))
	L.SetGlobal("parse_bool", L.NewFunction(luaParseBool))
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

func luaLower(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

func luaUpper(L *lua.LState) int {
	L.Push(lua.LString(strings.ToUpper(L.CheckString(1))))
	return 1
}

// luaCleanSpaces collapses runs of whitespace and trims
func luaCleanSpaces(L *lua.LState) int {
	s := whitespaceRegex.ReplaceAllString(L.CheckString(1), " ")
	L.Push(lua.LString(strings.TrimSpace(s)))
	return 1
}

// luaTruncate cuts a string to at most n characters
func luaTruncate(L *lua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	runes := []rune(s)
	if n < 0 || len(runes) <= n {
		L.Push(lua.LString(s))
	} else {
		L.Push(lua.LString(string(runes[:n])))
	}
	return 1
}

// luaParseInt parses a string to an integer, with an optional default
func luaParseInt(L *lua.LState) int {
	s := strings.TrimSpace(L.CheckString(1))
	def := int64(0)
	if L.GetTop() >= 2 {
		def = L.CheckInt64(2)
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		L.Push(lua.LNumber(v))
	} else if f, err := strconv.ParseFloat(s, 64); err == nil {
		L.Push(lua.LNumber(int64(f)))
	} else {
		L.Push(lua.LNumber(def))
	}
	return 1
}

// luaParseReal parses a string to a float, with an optional default
func luaParseReal(L *lua.LState) int {
	s := strings.TrimSpace(L.CheckString(1))
	def := 0.0
	if L.GetTop() >= 2 {
		def = float64(L.CheckNumber(2))
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		L.Push(lua.LNumber(v))
	} else {
		L.Push(lua.LNumber(def))
	}
	return 1
}

func luaParseBool(L *lua.LState) int {
	switch strings.ToLower(strings.TrimSpace(L.CheckString(1))) {
	case "yes", "true", "1", "on":
		L.Push(lua.LTrue)
	default:
		L.Push(lua.LFalse)
	}
	return 1
}

// luaAttributesToJSON serialises an attribute table
func luaAttributesToJSON(L *lua.LState) int {
	data, err := json.Marshal(tableToMap(L.CheckTable(1)))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(data))
	return 1
}

// luaFilterAttributes returns a copy of the table without the listed keys
func luaFilterAttributes(L *lua.LState) int {
	tbl := L.CheckTable(1)
	drop := make(map[string]bool)
	L.CheckTable(2).ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			drop[string(s)] = true
		}
	})

	out := L.NewTable()
	tbl.ForEach(func(k, v lua.LValue) {
		if s, ok := k.(lua.LString); ok && drop[string(s)] {
			return
		}
		out.RawSet(k, v)
	})
	L.Push(out)
	return 1
}
