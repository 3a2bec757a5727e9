package mmif

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/tidwall/gjson"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/vocabulary"
)

// Contain is one advertised type of a view with its shared metadata.
type Contain struct {
	Type     vocabulary.Type
	Metadata *model.Map
}

// Contains records the types a view holds. Entries are keyed by the full
// type URI and kept in insertion order.
type Contains struct {
	entries model.Dict[string, *Contain]
}

// NewContains creates an empty Contains.
func NewContains() *Contains {
	return &Contains{entries: *model.NewDict[string, *Contain]()}
}

// Len returns the number of advertised types.
func (c *Contains) Len() int { return c.entries.Len() }

// IsEmpty reports whether nothing is advertised.
func (c *Contains) IsEmpty() bool { return c.entries.IsEmpty() }

// Types returns the advertised types in order.
func (c *Contains) Types() []vocabulary.Type {
	out := make([]vocabulary.Type, 0, c.Len())
	for _, e := range c.entries.All() {
		out = append(out, e.Type)
	}
	return out
}

// All iterates over the entries in order.
func (c *Contains) All() iter.Seq2[vocabulary.Type, *Contain] {
	return func(yield func(vocabulary.Type, *Contain) bool) {
		for _, e := range c.entries.All() {
			if !yield(e.Type, e) {
				return
			}
		}
	}
}

// Get returns the entry for t. An entry under the exact URI wins; otherwise
// the first entry of the same type at another version matches, and the
// version difference is reported.
func (c *Contains) Get(t vocabulary.Type) (*Contain, bool) {
	if e, ok := c.entries.Get(t.String()); ok {
		return e, true
	}
	for _, e := range c.entries.All() {
		if e.Type.Key() == t.Key() {
			return e, t.FuzzyEqual(e.Type)
		}
	}
	return nil, false
}

// Has reports whether t is advertised at any version.
func (c *Contains) Has(t vocabulary.Type) bool {
	_, ok := c.Get(t)
	return ok
}

// lookup is Get without version reporting, for the view's own bookkeeping.
func (c *Contains) lookup(t vocabulary.Type) (*Contain, bool) {
	if e, ok := c.entries.Get(t.String()); ok {
		return e, true
	}
	for _, e := range c.entries.All() {
		if e.Type.Key() == t.Key() {
			return e, true
		}
	}
	return nil, false
}

// NewContain advertises t. When t is already advertised at any version the
// existing entry is returned unchanged.
func (c *Contains) NewContain(t vocabulary.Type, metadata *model.Map) *Contain {
	if e, ok := c.lookup(t); ok {
		return e
	}
	if metadata == nil {
		metadata = model.NewMap()
	}
	e := &Contain{Type: t, Metadata: metadata}
	c.entries.Set(t.String(), e)
	return e
}

// Set advertises t with metadata under its exact URI, replacing any entry
// with that URI.
func (c *Contains) Set(t vocabulary.Type, metadata *model.Map) *Contain {
	if metadata == nil {
		metadata = model.NewMap()
	}
	e := &Contain{Type: t, Metadata: metadata}
	c.entries.Set(t.String(), e)
	return e
}

// Remove drops the entry stored under t's exact URI.
func (c *Contains) Remove(t vocabulary.Type) bool {
	return c.entries.Delete(t.String())
}

// Clear drops every entry.
func (c *Contains) Clear() { c.entries.Clear() }

// Equal reports whether both advertise the same URIs with equal metadata
// in the same order.
func (c *Contains) Equal(other *Contains) bool {
	if c.Len() != other.Len() {
		return false
	}
	a, b := c.entries.Keys(), other.entries.Keys()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
		x, _ := c.entries.Get(a[i])
		y, _ := other.entries.Get(b[i])
		if !x.Metadata.Equal(y.Metadata) {
			return false
		}
	}
	return true
}

func (c *Contains) clone() *Contains {
	out := NewContains()
	for _, e := range c.entries.All() {
		out.entries.Set(e.Type.String(), &Contain{Type: e.Type, Metadata: e.Metadata.Clone()})
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (c *Contains) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for uri, e := range c.entries.All() {
		k, err := model.Marshal(uri)
		if err != nil {
			return nil, err
		}
		v, err := model.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeContains(data []byte) (*Contains, error) {
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, errors.WrapFatal(fmt.Errorf("%w: contains must be an object", errors.ErrStructural),
			"Contains", "Decode", "parse")
	}
	c := NewContains()
	var err error
	res.ForEach(func(key, val gjson.Result) bool {
		var t vocabulary.Type
		if t, err = vocabulary.Parse(key.Str); err != nil {
			err = errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrStructural, err), "Contains", "Decode", "parse type")
			return false
		}
		meta := model.NewMap()
		if val.Type != gjson.Null {
			if err = meta.UnmarshalJSON([]byte(val.Raw)); err != nil {
				return false
			}
		}
		c.entries.Set(key.Str, &Contain{Type: t, Metadata: meta})
		return true
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
