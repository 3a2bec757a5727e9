package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/c360/mmif/errors"
)

var (
	reservedMu    sync.RWMutex
	reservedNames = map[string]struct{}{
		"@type":      {},
		"@id":        {},
		"@context":   {},
		"@value":     {},
		"@language":  {},
		"properties": {},
	}
)

// IsReserved reports whether name is reserved for the framework and may not
// be used as an ordinary property key.
func IsReserved(name string) bool {
	reservedMu.RLock()
	defer reservedMu.RUnlock()
	_, ok := reservedNames[name]
	return ok
}

// Reserve adds names to the reserved-name registry.
func Reserve(names ...string) {
	reservedMu.Lock()
	defer reservedMu.Unlock()
	for _, n := range names {
		reservedNames[n] = struct{}{}
	}
}

// ReservedNames returns the registered reserved names, sorted.
func ReservedNames() []string {
	reservedMu.RLock()
	defer reservedMu.RUnlock()
	out := make([]string, 0, len(reservedNames))
	for n := range reservedNames {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Marshal encodes v as compact JSON without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Serialize encodes v and, when indent is true, pretty prints it with
// two-space indentation. Key order is preserved either way.
func Serialize(v any, indent bool) ([]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	if !indent {
		return b, nil
	}
	return Pretty(b), nil
}

// Pretty reformats JSON with two-space indentation.
func Pretty(b []byte) []byte {
	out := pretty.PrettyOptions(b, &pretty.Options{Width: 80, Indent: "  "})
	return bytes.TrimRight(out, "\n")
}

// Bytes normalizes the accepted JSON inputs into raw bytes: []byte,
// json.RawMessage, string, io.Reader or an already-parsed value
// (map[string]any, []any, *Map) which is re-encoded first.
func Bytes(src any) ([]byte, error) {
	switch s := src.(type) {
	case nil:
		return nil, errors.WrapFatal(fmt.Errorf("%w: empty input", errors.ErrStructural), "model", "Bytes", "read input")
	case []byte:
		return s, nil
	case json.RawMessage:
		return s, nil
	case string:
		return []byte(s), nil
	case io.Reader:
		b, err := io.ReadAll(s)
		if err != nil {
			return nil, errors.Wrap(err, "model", "Bytes", "read input")
		}
		return b, nil
	}
	b, err := Marshal(src)
	if err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrStructural, err), "model", "Bytes", "encode parsed input")
	}
	return b, nil
}

// Field is one declared attribute of an entity being encoded.
type Field struct {
	Name     string
	Value    any
	Required bool
}

// EncodeObject writes the declared fields in order, skipping empty
// optional ones, followed by the extras in their insertion order.
func EncodeObject(fields []Field, extras *Map) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f.Name] = struct{}{}
		if !f.Required && IsEmpty(f.Value) {
			continue
		}
		v := f.Value
		if v == nil || isNilPointer(v) {
			v = nil
		}
		if err := writeMember(&buf, &first, f.Name, v); err != nil {
			return nil, err
		}
	}
	for k, v := range extras.entries() {
		if _, ok := declared[k]; ok {
			continue
		}
		if err := writeMember(&buf, &first, k, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IsEmpty reports whether v counts as empty for serialization: nil, a nil
// pointer, a zero-length string, slice or map, or a value whose IsEmpty
// method returns true.
func IsEmpty(v any) bool {
	if v == nil || isNilPointer(v) {
		return true
	}
	if e, ok := v.(interface{ IsEmpty() bool }); ok {
		return e.IsEmpty()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// Shape declares how an entity decodes: the attributes it knows, those it
// requires, and whether unknown keys are kept (Open) or rejected.
type Shape struct {
	Entity   string
	Known    []string
	Required []string
	Open     bool
}

func (s Shape) knows(name string) bool {
	for _, k := range s.Known {
		if k == name {
			return true
		}
	}
	for _, k := range s.Required {
		if k == name {
			return true
		}
	}
	return false
}

// SetAdditional stores an undeclared property in extras. Closed shapes
// fail with errors.ErrUndeclaredProperty; declared attributes and reserved
// names fail with errors.ErrReservedName.
func (s Shape) SetAdditional(extras *Map, key string, value any) error {
	if !s.Open {
		return errors.WrapInvalid(fmt.Errorf("%w: %s does not accept %q", errors.ErrUndeclaredProperty, s.Entity, key),
			s.Entity, "SetAdditional", "check shape")
	}
	if key == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty property name", errors.ErrInvalidValue),
			s.Entity, "SetAdditional", "check key")
	}
	if s.knows(key) || IsReserved(key) {
		return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrReservedName, key),
			s.Entity, "SetAdditional", "check key")
	}
	if extras == nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %s has no additional properties", errors.ErrUndeclaredProperty, s.Entity),
			s.Entity, "SetAdditional", "check extras")
	}
	return extras.SetAny(key, value)
}

// Decoded holds one decoded JSON object: raw declared attributes and the
// additional properties of an open entity.
type Decoded struct {
	fields map[string]gjson.Result
	Extras *Map
	entity string
}

// DecodeObject splits a JSON object according to shape. Malformed input,
// a non-object, or a missing required attribute fail with
// errors.ErrStructural; unknown keys on a closed shape fail with
// errors.ErrUndeclaredProperty.
func DecodeObject(data []byte, shape Shape) (*Decoded, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.WrapFatal(fmt.Errorf("%w: malformed JSON", errors.ErrStructural),
			shape.Entity, "Decode", "parse")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, errors.WrapFatal(fmt.Errorf("%w: expected object", errors.ErrStructural),
			shape.Entity, "Decode", "parse")
	}

	d := &Decoded{fields: make(map[string]gjson.Result), Extras: NewMap(), entity: shape.Entity}
	var err error
	res.ForEach(func(key, val gjson.Result) bool {
		name := key.Str
		switch {
		case shape.knows(name):
			d.fields[name] = val
		case shape.Open:
			var v Value
			v, err = valueFromResult(val)
			if err != nil {
				return false
			}
			d.Extras.Set(name, v)
		default:
			err = errors.WrapFatal(fmt.Errorf("%w: %w: %q", errors.ErrStructural, errors.ErrUndeclaredProperty, name),
				shape.Entity, "Decode", "accept attribute")
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	for _, name := range shape.Required {
		if _, ok := d.fields[name]; !ok {
			return nil, errors.WrapFatal(fmt.Errorf("%w: missing required attribute %q", errors.ErrStructural, name),
				shape.Entity, "Decode", "check required")
		}
	}
	return d, nil
}

// Has reports whether the attribute was present and not null.
func (d *Decoded) Has(name string) bool {
	r, ok := d.fields[name]
	return ok && r.Type != gjson.Null
}

// Raw returns the attribute's raw JSON.
func (d *Decoded) Raw(name string) ([]byte, bool) {
	r, ok := d.fields[name]
	if !ok {
		return nil, false
	}
	return []byte(r.Raw), true
}

// String returns a string attribute. Absent or null attributes yield "".
func (d *Decoded) String(name string) (string, error) {
	r, ok := d.fields[name]
	if !ok || r.Type == gjson.Null {
		return "", nil
	}
	if r.Type != gjson.String {
		return "", d.typeError(name, "string", r)
	}
	return r.Str, nil
}

// Value returns an attribute as a Value. Absent attributes yield null.
func (d *Decoded) Value(name string) (Value, error) {
	r, ok := d.fields[name]
	if !ok {
		return Null(), nil
	}
	return valueFromResult(r)
}

// Map returns an object attribute. Absent or null attributes yield an
// empty Map.
func (d *Decoded) Map(name string) (*Map, error) {
	r, ok := d.fields[name]
	if !ok || r.Type == gjson.Null {
		return NewMap(), nil
	}
	if !r.IsObject() {
		return nil, d.typeError(name, "object", r)
	}
	v, err := valueFromResult(r)
	if err != nil {
		return nil, err
	}
	return v.Map(), nil
}

// Strings returns a list-of-strings attribute.
func (d *Decoded) Strings(name string) ([]string, error) {
	r, ok := d.fields[name]
	if !ok || r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, d.typeError(name, "array", r)
	}
	var out []string
	var err error
	r.ForEach(func(_, item gjson.Result) bool {
		if item.Type != gjson.String {
			err = d.typeError(name, "array of strings", r)
			return false
		}
		out = append(out, item.Str)
		return true
	})
	return out, err
}

func (d *Decoded) typeError(name, want string, got gjson.Result) error {
	return errors.WrapFatal(fmt.Errorf("%w: attribute %q must be %s, got %s", errors.ErrStructural, name, want, got.Type),
		d.entity, "Decode", "read "+name)
}
