package model

import (
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/c360/mmif/errors"
)

// Dict is an insertion-ordered map with unique keys. Replacing a value
// keeps its original position. The zero Dict is empty and ready to use.
type Dict[K comparable, V any] struct {
	keys  []K
	items map[K]V
}

// NewDict creates an empty Dict.
func NewDict[K comparable, V any]() *Dict[K, V] {
	return &Dict[K, V]{items: make(map[K]V)}
}

// Get returns the value stored under key.
func (d *Dict[K, V]) Get(key K) (V, bool) {
	if d == nil || d.items == nil {
		var zero V
		return zero, false
	}
	v, ok := d.items[key]
	return v, ok
}

// GetOr returns the value stored under key, or def when absent.
func (d *Dict[K, V]) GetOr(key K, def V) V {
	if v, ok := d.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (d *Dict[K, V]) Has(key K) bool {
	_, ok := d.Get(key)
	return ok
}

// Set stores v under key, appending new keys at the end.
func (d *Dict[K, V]) Set(key K, v V) {
	if d.items == nil {
		d.items = make(map[K]V)
	}
	if _, ok := d.items[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.items[key] = v
}

// Insert stores v under key. When key is already present and overwrite is
// false it fails with errors.ErrDuplicateID and leaves the Dict unchanged.
func (d *Dict[K, V]) Insert(key K, v V, overwrite bool) error {
	if !overwrite && d.Has(key) {
		return fmt.Errorf("%w: %v", errors.ErrDuplicateID, key)
	}
	d.Set(key, v)
	return nil
}

// Update copies every entry of other into d in other's order. Existing keys
// are replaced only when overwrite is true; otherwise they are kept as-is.
func (d *Dict[K, V]) Update(other *Dict[K, V], overwrite bool) {
	for k, v := range other.All() {
		if !overwrite && d.Has(k) {
			continue
		}
		d.Set(k, v)
	}
}

// Delete removes key, reporting whether it was present.
func (d *Dict[K, V]) Delete(key K) bool {
	if !d.Has(key) {
		return false
	}
	delete(d.items, key)
	d.keys = slices.DeleteFunc(d.keys, func(k K) bool { return k == key })
	return true
}

// Len returns the number of entries.
func (d *Dict[K, V]) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// IsEmpty reports whether d holds no entries. Safe on a nil Dict.
func (d *Dict[K, V]) IsEmpty() bool { return d.Len() == 0 }

// Clear removes every entry.
func (d *Dict[K, V]) Clear() {
	d.keys = nil
	d.items = make(map[K]V)
}

// Keys returns the keys in insertion order.
func (d *Dict[K, V]) Keys() []K {
	if d == nil {
		return nil
	}
	return slices.Clone(d.keys)
}

// Values returns the values in insertion order.
func (d *Dict[K, V]) Values() []V {
	if d == nil {
		return nil
	}
	out := make([]V, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, d.items[k])
	}
	return out
}

// All iterates entries in insertion order.
func (d *Dict[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if d == nil {
			return
		}
		for _, k := range slices.Clone(d.keys) {
			v, ok := d.items[k]
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortStrings(s []string) { sort.Strings(s) }
