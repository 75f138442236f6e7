package runtime

import (
	"fmt"

	"github.com/parsekit/parsekit/parse/conversion"
	"github.com/parsekit/parsekit/parse/core"
)

// Get reads key from state and coerces it to T. An absent key fails with
// ErrKeyNotFound; a failed coercion returns the *conversion.ConversionError.
func Get[T any](state core.ObjectState, key string) (T, error) {
	var zero T
	if state == nil {
		return zero, ErrNilState
	}
	raw, ok := state.Lookup(key)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	out, err := conversion.To[T](raw)
	if err != nil {
		return zero, fmt.Errorf("runtime: field %q: %w", key, err)
	}
	return out, nil
}

// TryGet reads key from state and reports whether it was present and could be
// coerced to T.
func TryGet[T any](state core.ObjectState, key string) (T, bool) {
	var zero T
	if state == nil {
		return zero, false
	}
	raw, ok := state.Lookup(key)
	if !ok {
		return zero, false
	}
	return conversion.As[T](raw)
}

// GetList reads a sequence field as a lazy list of E.
func GetList[E any](state core.ObjectState, key string) (conversion.List[E], error) {
	return Get[conversion.List[E]](state, key)
}

// GetMap reads a mapping field as a lazy map of E.
func GetMap[E any](state core.ObjectState, key string) (conversion.Map[E], error) {
	return Get[conversion.Map[E]](state, key)
}
