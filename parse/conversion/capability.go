package conversion

import (
	"reflect"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Sequence is implemented by decoded values that behave as an ordered,
// indexable list. Slices and arrays are recognised without implementing it.
type Sequence interface {
	Len() int
	Index(i int) any
}

// Mapping is implemented by decoded values that behave as a string-keyed map.
// Maps with a string key kind are recognised without implementing it.
type Mapping interface {
	Len() int
	Keys() []string
	Lookup(key string) (any, bool)
}

type capabilityKind uint8

const (
	capabilitySequence capabilityKind = iota + 1
	capabilityMapping
)

type capabilityKey struct {
	concrete reflect.Type
	kind     capabilityKind
}

// capability is the result of a lookup: whether the concrete type offers the
// capability, and whether it is a native slice/array/map (accessed through
// reflect) rather than a Sequence or Mapping implementation.
type capability struct {
	ok     bool
	native bool
}

var (
	sequenceType = reflect.TypeFor[Sequence]()
	mappingType  = reflect.TypeFor[Mapping]()
)

// capabilityCache memoizes (concrete type, capability) lookups for the life of
// the process. Entries are never invalidated since types do not change.
var capabilityCache = xsync.NewMapOf[capabilityKey, capability]()

func lookupCapability(t reflect.Type, kind capabilityKind) capability {
	c, _ := capabilityCache.LoadOrCompute(capabilityKey{concrete: t, kind: kind}, func() capability {
		return describeCapability(t, kind)
	})
	return c
}

func describeCapability(t reflect.Type, kind capabilityKind) capability {
	switch kind {
	case capabilitySequence:
		if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
			return capability{ok: true, native: true}
		}
		if t.Implements(sequenceType) {
			return capability{ok: true}
		}
	case capabilityMapping:
		if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
			return capability{ok: true, native: true}
		}
		if t.Implements(mappingType) {
			return capability{ok: true}
		}
	}
	return capability{}
}

// CapabilityCacheSize returns the number of memoized lookups.
func CapabilityCacheSize() int {
	return capabilityCache.Size()
}

// ResetCapabilityCache clears memoized lookups; primarily intended for tests.
func ResetCapabilityCache() {
	capabilityCache.Clear()
}

func sequenceOf(value any, rv reflect.Value) (Sequence, bool) {
	c := lookupCapability(rv.Type(), capabilitySequence)
	if !c.ok {
		return nil, false
	}
	if c.native {
		return reflectSequence{rv: rv}, true
	}
	return value.(Sequence), true
}

func mappingOf(value any, rv reflect.Value) (Mapping, bool) {
	c := lookupCapability(rv.Type(), capabilityMapping)
	if !c.ok {
		return nil, false
	}
	if c.native {
		return reflectMapping{rv: rv}, true
	}
	return value.(Mapping), true
}

type reflectSequence struct {
	rv reflect.Value
}

func (s reflectSequence) Len() int {
	return s.rv.Len()
}

func (s reflectSequence) Index(i int) any {
	return s.rv.Index(i).Interface()
}

type reflectMapping struct {
	rv reflect.Value
}

func (m reflectMapping) Len() int {
	return m.rv.Len()
}

// Keys returns the map keys in ascending order.
func (m reflectMapping) Keys() []string {
	keys := make([]string, 0, m.rv.Len())
	iter := m.rv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)
	return keys
}

func (m reflectMapping) Lookup(key string) (any, bool) {
	v := m.rv.MapIndex(reflect.ValueOf(key).Convert(m.rv.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}
