package core

import "slices"

// fieldMap keeps field values alongside their insertion order.
type fieldMap struct {
	keys   []string
	values map[string]any
}

func newFieldMap(capacity int) fieldMap {
	return fieldMap{
		keys:   make([]string, 0, capacity),
		values: make(map[string]any, capacity),
	}
}

func (f fieldMap) clone() fieldMap {
	out := newFieldMap(len(f.keys))
	out.keys = append(out.keys, f.keys...)
	for key, value := range f.values {
		out.values[key] = value
	}
	return out
}

func (f *fieldMap) set(key string, value any) {
	if f.values == nil {
		f.values = make(map[string]any)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *fieldMap) remove(key string) bool {
	if _, ok := f.values[key]; !ok {
		return false
	}
	delete(f.values, key)
	if idx := slices.Index(f.keys, key); idx >= 0 {
		f.keys = slices.Delete(f.keys, idx, idx+1)
	}
	return true
}

func (f fieldMap) lookup(key string) (any, bool) {
	value, ok := f.values[key]
	return value, ok
}

func (f fieldMap) len() int {
	return len(f.keys)
}
