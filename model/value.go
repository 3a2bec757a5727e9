package model

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/c360/mmif/errors"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

// String returns the JSON-ish name of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a closed variant holding one free-form property value: a string,
// an integer, a float, a boolean, null, an ordered list of values or an
// ordered map of values.
//
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	b    bool
	list []Value
	m    *Map
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps i.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Float wraps f.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ListOf wraps a sequence of values.
func ListOf(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// Object wraps an ordered map. A nil map becomes an empty one.
func Object(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// ValueOf converts a Go value into a Value. Supported inputs are nil,
// Value, strings, booleans, every integer and float type, *Map, slices and
// string-keyed maps of supported inputs. Anything else fails with
// errors.ErrInvalidValue.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Null(), nil
		}
		return *x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return uintValue(x)
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case *Map:
		return Object(x), nil
	case []Value:
		return ListOf(x...), nil
	case []any:
		items := make([]Value, 0, len(x))
		for i, item := range x {
			iv, err := ValueOf(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, iv)
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		m := NewMap()
		for _, k := range sortedKeys(x) {
			iv, err := ValueOf(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m.Set(k, iv)
		}
		return Object(m), nil
	}
	return reflectValue(reflect.ValueOf(v))
}

// MustValueOf is ValueOf that panics on unsupported input. Intended for
// literals in tests and examples.
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", errors.ErrInvalidValue, u)
	}
	return Int(int64(u)), nil
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %v is not representable in JSON", errors.ErrInvalidValue, f)
	}
	return Float(f), nil
}

func reflectValue(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		items := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			iv, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, iv)
		}
		return Value{kind: KindList, list: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sortStrings(keys)
		m := NewMap()
		for _, k := range keys {
			iv, err := ValueOf(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m.Set(k, iv)
		}
		return Object(m), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	}
	return Value{}, fmt.Errorf("%w: %s", errors.ErrInvalidValue, rv.Type())
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether v is null, an empty string, or an empty
// collection.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return v.m.IsEmpty()
	}
	return false
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Int returns the integer held by v.
func (v Value) Int() (int64, bool) {
	return v.num, v.kind == KindInt
}

// Float returns the number held by v; integers are widened.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.flt, true
	case KindInt:
		return float64(v.num), true
	}
	return 0, false
}

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Items returns the elements of a list value, or nil.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Map returns the map held by v, or nil.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Strings returns the string elements of a list value. Non-string
// elements are skipped. A plain string value yields a one-element slice.
func (v Value) Strings() []string {
	switch v.kind {
	case KindString:
		return []string{v.str}
	case KindList:
		out := make([]string, 0, len(v.list))
		for _, item := range v.list {
			if s, ok := item.Str(); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Any converts v back to plain Go values (string, int64, float64, bool,
// []any, map[string]any or nil). Map ordering is lost.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		for k, item := range v.m.All() {
			out[k] = item.Any()
		}
		return out
	}
	return nil
}

// Equal reports deep equality. Integers and floats never compare equal to
// each other; map comparison respects key order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.num == other.num
	case KindFloat:
		return v.flt == other.flt
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(other.m)
	}
	return false
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return Value{kind: KindList, list: items}
	case KindMap:
		return Object(v.m.Clone())
	}
	return v
}

// String renders strings verbatim and everything else as JSON.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return fmt.Sprintf("%%!(%v)", err)
	}
	return buf.String()
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Key order of nested objects
// and the integer/float distinction are preserved.
func (v *Value) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.WrapFatal(errors.ErrStructural, "Value", "UnmarshalJSON", "parse JSON")
	}
	parsed, err := valueFromResult(gjson.ParseBytes(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.num, 10))
	case KindFloat:
		s, err := formatFloat(v.flt)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		return v.m.writeJSON(buf)
	}
	return nil
}

// formatFloat always yields a float literal: integral values keep a
// trailing ".0" so they decode back as floats.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v is not representable in JSON", errors.ErrInvalidValue, f)
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

func valueFromResult(r gjson.Result) (Value, error) {
	switch r.Type {
	case gjson.Null:
		return Null(), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.False:
		return Bool(false), nil
	case gjson.String:
		return String(r.Str), nil
	case gjson.Number:
		if strings.ContainsAny(r.Raw, ".eE") {
			return Float(r.Float()), nil
		}
		if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return Int(i), nil
		}
		return Float(r.Float()), nil
	case gjson.JSON:
		if r.IsArray() {
			items := make([]Value, 0)
			var err error
			r.ForEach(func(_, item gjson.Result) bool {
				var iv Value
				iv, err = valueFromResult(item)
				if err != nil {
					return false
				}
				items = append(items, iv)
				return true
			})
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindList, list: items}, nil
		}
		m := NewMap()
		var err error
		r.ForEach(func(key, item gjson.Result) bool {
			var iv Value
			iv, err = valueFromResult(item)
			if err != nil {
				return false
			}
			m.Set(key.Str, iv)
			return true
		})
		if err != nil {
			return Value{}, err
		}
		return Object(m), nil
	}
	return Value{}, errors.WrapFatal(errors.ErrStructural, "Value", "valueFromResult",
		fmt.Sprintf("decode %q", r.Raw))
}
