package model

import (
	"bytes"
	"fmt"
	"iter"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/c360/mmif/errors"
)

// List is an ordered sequence of elements addressed by an identifier
// derived from each element. Identifiers are unique within a List.
type List[T any] struct {
	keyOf func(T) string
	items Dict[string, T]
}

// NewList creates an empty List keyed by keyOf.
func NewList[T any](keyOf func(T) string) *List[T] {
	return &List[T]{keyOf: keyOf, items: *NewDict[string, T]()}
}

// Append adds v at the end. When an element with the same identifier is
// present it is replaced in place if overwrite is true, otherwise Append
// fails with errors.ErrDuplicateID.
func (l *List[T]) Append(v T, overwrite bool) error {
	return l.items.Insert(l.keyOf(v), v, overwrite)
}

// Get returns the element with the given identifier.
func (l *List[T]) Get(id string) (T, bool) {
	return l.items.Get(id)
}

// Has reports whether an element with the given identifier is present.
func (l *List[T]) Has(id string) bool {
	return l.items.Has(id)
}

// Find returns the first element satisfying pred.
func (l *List[T]) Find(pred func(T) bool) (T, bool) {
	for _, v := range l.All() {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns every element satisfying pred in order.
func (l *List[T]) Filter(pred func(T) bool) []T {
	var out []T
	for _, v := range l.All() {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Remove deletes the element with the given identifier.
func (l *List[T]) Remove(id string) bool {
	return l.items.Delete(id)
}

// Len returns the number of elements.
func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}
	return l.items.Len()
}

// IsEmpty reports whether the List has no elements. Safe on a nil List.
func (l *List[T]) IsEmpty() bool { return l.Len() == 0 }

// Clear removes every element.
func (l *List[T]) Clear() { l.items.Clear() }

// Items returns the elements in order.
func (l *List[T]) Items() []T {
	if l == nil {
		return nil
	}
	return l.items.Values()
}

// IDs returns the element identifiers in order.
func (l *List[T]) IDs() []string {
	if l == nil {
		return nil
	}
	return l.items.Keys()
}

// All iterates index and element pairs in order.
func (l *List[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		if l == nil {
			return
		}
		i := 0
		for _, v := range l.items.All() {
			if !yield(i, v) {
				return
			}
			i++
		}
	}
}

// Reversed returns the elements from last to first.
func (l *List[T]) Reversed() []T {
	items := l.Items()
	slices.Reverse(items)
	return items
}

// MarshalJSON encodes the elements as a JSON array.
func (l *List[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range l.All() {
		b, err := Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "List", "MarshalJSON", fmt.Sprintf("encode element %d", i))
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// DecodeList decodes a JSON array into l, building each element with
// decode. Duplicate identifiers in the input fail with
// errors.ErrDuplicateID.
func DecodeList[T any](data []byte, l *List[T], decode func([]byte) (T, error)) error {
	if !gjson.ValidBytes(data) {
		return errors.WrapFatal(errors.ErrStructural, "List", "DecodeList", "parse JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsArray() {
		return errors.WrapFatal(fmt.Errorf("%w: expected array", errors.ErrStructural),
			"List", "DecodeList", "decode")
	}
	var err error
	res.ForEach(func(_, item gjson.Result) bool {
		var v T
		v, err = decode([]byte(item.Raw))
		if err != nil {
			return false
		}
		err = l.Append(v, false)
		return err == nil
	})
	return err
}
