package scripting

import (
	"fmt"
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Component structs cross into Lua as tables keyed by their yaml field names
// (or the lower-cased Go name). Only scalar fields are mapped.

func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(f.Name)
}

func toLua(L *lua.LState, v any) lua.LValue {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct {
		return scalarToLua(rv)
	}
	t := L.NewTable()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		t.RawSetString(fieldName(f), scalarToLua(rv.Field(i)))
	}
	return t
}

func scalarToLua(v reflect.Value) lua.LValue {
	switch v.Kind() {
	case reflect.Bool:
		return lua.LBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(v.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(v.Float())
	case reflect.String:
		return lua.LString(v.String())
	}
	return lua.LNil
}

// fromLua builds a value of the same type as current, starting from current
// and overwriting the fields present in lv.
func fromLua(lv lua.LValue, current any) (any, error) {
	rv := reflect.New(reflect.TypeOf(current)).Elem()
	rv.Set(reflect.ValueOf(current))
	if rv.Kind() != reflect.Struct {
		if err := setScalar(rv, lv); err != nil {
			return nil, err
		}
		return rv.Interface(), nil
	}
	t, ok := lv.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("want table for %s, got %s", rv.Type(), lv.Type())
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		field := t.RawGetString(fieldName(f))
		if field == lua.LNil {
			continue
		}
		if err := setScalar(rv.Field(i), field); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", rt.Name(), f.Name, err)
		}
	}
	return rv.Interface(), nil
}

func setScalar(dst reflect.Value, lv lua.LValue) error {
	switch dst.Kind() {
	case reflect.Bool:
		dst.SetBool(lua.LVAsBool(lv))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return fmt.Errorf("want number, got %s", lv.Type())
		}
		dst.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := lv.(lua.LNumber)
		if !ok || n < 0 {
			return fmt.Errorf("want unsigned number, got %s", lv.String())
		}
		dst.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return fmt.Errorf("want number, got %s", lv.Type())
		}
		dst.SetFloat(float64(n))
	case reflect.String:
		s, ok := lv.(lua.LString)
		if !ok {
			return fmt.Errorf("want string, got %s", lv.Type())
		}
		dst.SetString(string(s))
	}
	return nil
}
