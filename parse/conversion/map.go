package conversion

import (
	"fmt"
	"iter"
)

type mappingShape interface {
	wrapMapping(src Mapping) any
}

// KeyValue is a single entry yielded by Map.All.
type KeyValue[E any] struct {
	Key   string
	Value E
}

// Map is a read-only view over a decoded string-keyed mapping that coerces
// each value to E when it is read. Obtain one with To[Map[E]] or As[Map[E]].
type Map[E any] struct {
	src Mapping
}

var _ Mapping = Map[any]{}

func (Map[E]) wrapMapping(src Mapping) any {
	return Map[E]{src: src}
}

func (m Map[E]) Len() int {
	if m.src == nil {
		return 0
	}
	return m.src.Len()
}

// Keys returns the keys of the underlying mapping. Go maps are reported in
// ascending key order.
func (m Map[E]) Keys() []string {
	if m.src == nil {
		return nil
	}
	return m.src.Keys()
}

// Lookup returns the raw, unconverted value stored under key.
func (m Map[E]) Lookup(key string) (any, bool) {
	if m.src == nil {
		return nil, false
	}
	return m.src.Lookup(key)
}

func (m Map[E]) ContainsKey(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Get returns the value under key coerced to E. A missing key yields the zero
// E without error; use ContainsKey to distinguish it.
func (m Map[E]) Get(key string) (E, error) {
	raw, ok := m.Lookup(key)
	if !ok {
		var zero E
		return zero, nil
	}
	return To[E](raw)
}

// All yields the entries in Keys order together with their conversion error.
func (m Map[E]) All() iter.Seq2[KeyValue[E], error] {
	return func(yield func(KeyValue[E], error) bool) {
		for _, key := range m.Keys() {
			raw, _ := m.src.Lookup(key)
			v, err := To[E](raw)
			if !yield(KeyValue[E]{Key: key, Value: v}, err) {
				return
			}
		}
	}
}

// ToMap materializes the view, stopping at the first value that fails.
func (m Map[E]) ToMap() (map[string]E, error) {
	out := make(map[string]E, m.Len())
	for _, key := range m.Keys() {
		raw, _ := m.src.Lookup(key)
		v, err := To[E](raw)
		if err != nil {
			return nil, fmt.Errorf("conversion: key %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}
