package script

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"
)

// luaToJSON encodes a Lua value as JSON. Tables with contiguous integer keys
// starting at 1 become arrays, every other table an object.
func luaToJSON(lv lua.LValue) ([]byte, error) {
	return encodeLua(lv, make(map[*lua.LTable]bool))
}

func encodeLua(lv lua.LValue, visiting map[*lua.LTable]bool) ([]byte, error) {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return []byte("null"), nil
	case lua.LBool:
		return []byte(strconv.FormatBool(bool(v))), nil
	case lua.LNumber:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("cannot encode number %v", f)
		}
		return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
	case lua.LString:
		return json.Marshal(string(v))
	case *lua.LTable:
		if visiting[v] {
			return nil, fmt.Errorf("cannot encode recursive table")
		}
		visiting[v] = true
		defer delete(visiting, v)
		if isArray(v) {
			return encodeArray(v, visiting)
		}
		return encodeObject(v, visiting)
	default:
		return nil, fmt.Errorf("cannot encode lua %s", lv.Type())
	}
}

func encodeArray(t *lua.LTable, visiting map[*lua.LTable]bool) ([]byte, error) {
	doc := []byte("[]")
	for i := 1; i <= t.MaxN(); i++ {
		raw, err := encodeLua(t.RawGetInt(i), visiting)
		if err != nil {
			return nil, err
		}
		if doc, err = sjson.SetRawBytes(doc, "-1", raw); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func encodeObject(t *lua.LTable, visiting map[*lua.LTable]bool) ([]byte, error) {
	doc := []byte("{}")
	var firstErr error
	t.ForEach(func(k, v lua.LValue) {
		if firstErr != nil {
			return
		}
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			firstErr = fmt.Errorf("cannot encode table key of type %s", k.Type())
			return
		}
		raw, err := encodeLua(v, visiting)
		if err != nil {
			firstErr = err
			return
		}
		doc, firstErr = sjson.SetRawBytes(doc, escapePath(key), raw)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return doc, nil
}

func isArray(t *lua.LTable) bool {
	n := t.MaxN()
	if n == 0 {
		return false
	}
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })
	return count == n
}

// escapePath makes key usable as a single sjson path component.
func escapePath(key string) string {
	if !strings.ContainsAny(key, `.*?|#@\:!=<>%`) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`.*?|#@\:!=<>%`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// jsonToLua converts a parsed JSON value into Lua values owned by L.
func jsonToLua(L *lua.LState, r gjson.Result) lua.LValue {
	switch r.Type {
	case gjson.Null:
		return lua.LNil
	case gjson.False:
		return lua.LFalse
	case gjson.True:
		return lua.LTrue
	case gjson.Number:
		return lua.LNumber(r.Num)
	case gjson.String:
		return lua.LString(r.Str)
	}

	tbl := L.NewTable()
	if r.IsArray() {
		r.ForEach(func(_, v gjson.Result) bool {
			tbl.Append(jsonToLua(L, v))
			return true
		})
		return tbl
	}
	r.ForEach(func(k, v gjson.Result) bool {
		tbl.RawSetString(k.String(), jsonToLua(L, v))
		return true
	})
	return tbl
}
