package model

import (
	"bytes"

	"github.com/tidwall/gjson"

	"github.com/c360/mmif/errors"
)

// Map is an ordered property bag of Values. It encodes as a JSON object
// whose keys appear in insertion order.
type Map struct {
	Dict[string, Value]
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{Dict: *NewDict[string, Value]()}
}

// MapOf builds a Map from alternating key/value arguments. Values go
// through ValueOf.
func MapOf(kv ...any) (*Map, error) {
	m := NewMap()
	if len(kv)%2 != 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidValue, "Map", "MapOf", "pair arguments")
	}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidValue, "Map", "MapOf", "read key")
		}
		if err := m.SetAny(key, kv[i+1]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetAny converts v with ValueOf and stores it under key.
func (m *Map) SetAny(key string, v any) error {
	val, err := ValueOf(v)
	if err != nil {
		return errors.WrapInvalid(err, "Map", "SetAny", "convert "+key)
	}
	m.Set(key, val)
	return nil
}

// Len returns the number of entries. Safe on a nil Map.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.Dict.Len()
}

// IsEmpty reports whether m holds no entries. Safe on a nil Map.
func (m *Map) IsEmpty() bool { return m.Len() == 0 }

// Clone returns a deep copy. Cloning nil yields an empty Map.
func (m *Map) Clone() *Map {
	out := NewMap()
	for k, v := range m.entries() {
		out.Set(k, v.Clone())
	}
	return out
}

// Equal reports whether both maps hold equal values under the same keys
// in the same order.
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		if !m.items[k].Equal(other.items[k]) {
			return false
		}
	}
	return true
}

// entries tolerates a nil receiver.
func (m *Map) entries() func(func(string, Value) bool) {
	if m == nil {
		return func(func(string, Value) bool) {}
	}
	return m.All()
}

// MarshalJSON implements json.Marshaler.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.WrapFatal(errors.ErrStructural, "Map", "UnmarshalJSON", "parse JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return errors.WrapFatal(errors.ErrStructural, "Map", "UnmarshalJSON", "expect object")
	}
	v, err := valueFromResult(res)
	if err != nil {
		return err
	}
	*m = *v.Map()
	return nil
}

func (m *Map) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	for k, v := range m.entries() {
		if err := writeMember(buf, &first, k, v); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeMember(buf *bytes.Buffer, first *bool, key string, v any) error {
	kb, err := Marshal(key)
	if err != nil {
		return err
	}
	vb, err := Marshal(v)
	if err != nil {
		return errors.Wrap(err, "model", "writeMember", "encode "+key)
	}
	if !*first {
		buf.WriteByte(',')
	}
	*first = false
	buf.Write(kb)
	buf.WriteByte(':')
	buf.Write(vb)
	return nil
}
