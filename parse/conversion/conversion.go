// Package conversion adapts loosely typed decoded values (primitives, []any,
// map[string]any, json.Number, nil) to the static type a caller asks for.
//
// The rules are applied in a fixed order:
//
//  1. a value that already is a T, or nil, is returned unchanged;
//  2. primitive targets (bool, integers, floats, strings) are parsed from text
//     with locale independent rules, or converted numerically;
//  3. pointers to primitives behave as nullable primitives, text targets
//     (encoding.TextUnmarshaler) are parsed from strings, and List[E] / Map[E]
//     targets wrap sequences and string-keyed mappings in lazy views;
//  4. anything else is passed through untouched.
//
// As and To are the typed entry points. ConvertTo exposes the raw algorithm,
// including the rule 4 pass-through, for callers working with reflect.Type.
package conversion

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidCast indicates the value has no conversion to the requested type.
	ErrInvalidCast = errors.New("conversion: invalid cast")
	// ErrOverflow indicates a numeric value does not fit the requested type.
	ErrOverflow = errors.New("conversion: value out of range")
	// ErrIndexOutOfRange is returned by List.At for indices outside [0, Len).
	ErrIndexOutOfRange = errors.New("conversion: index out of range")
)

// ConversionError reports a failed coercion of Value to Target.
type ConversionError struct {
	Value  any
	Target reflect.Type
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion: cannot convert %T to %s: %v", e.Value, e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// As converts value to T and reports whether it succeeded. It never fails
// loudly: any conversion error yields the zero T and false. A nil value
// yields the zero T and true.
func As[T any](value any) (T, bool) {
	out, err := To[T](value)
	return out, err == nil
}

// To converts value to T. It returns a *ConversionError when the value cannot
// be coerced, including when the pass-through rule leaves a value that is not
// a T. A nil value yields the zero T.
func To[T any](value any) (T, error) {
	var zero T
	if v, ok := value.(T); ok {
		return v, nil
	}
	if value == nil {
		return zero, nil
	}

	target := reflect.TypeFor[T]()
	out, err := convertTo(value, target)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	v, ok := out.(T)
	if !ok {
		return zero, &ConversionError{Value: value, Target: target, Err: ErrInvalidCast}
	}
	return v, nil
}

// ConvertTo applies the coercion rules for target and returns the result as
// an untyped value. When no rule applies the input is returned unchanged, so
// callers that need strict typing must check the result themselves.
func ConvertTo(value any, target reflect.Type) (any, error) {
	if target == nil {
		return value, nil
	}
	return convertTo(value, target)
}

func convertTo(value any, target reflect.Type) (any, error) {
	if value == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return value, nil
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, nil
	}

	if rv.Kind() == reflect.String && isTextTarget(target) {
		return unmarshalText(value, rv.String(), target)
	}

	switch {
	case isPrimitive(target):
		return convertPrimitive(value, rv, target)
	case target.Kind() == reflect.Pointer && isPrimitive(target.Elem()):
		out, err := convertPrimitive(value, rv, target.Elem())
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(reflect.ValueOf(out))
		return ptr.Interface(), nil
	}

	if view, ok := wrapView(value, rv, target); ok {
		return view, nil
	}

	return value, nil
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

func isTextTarget(target reflect.Type) bool {
	return target.Kind() != reflect.Interface && reflect.PointerTo(target).Implements(textUnmarshalerType)
}

func unmarshalText(value any, text string, target reflect.Type) (any, error) {
	ptr := reflect.New(target)
	if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
		return nil, &ConversionError{Value: value, Target: target, Err: err}
	}
	return ptr.Elem().Interface(), nil
}

// wrapView builds a lazy List or Map view when target is one of the view
// types and value offers the matching capability.
func wrapView(value any, rv reflect.Value, target reflect.Type) (any, bool) {
	switch shape := reflect.Zero(target).Interface().(type) {
	case sequenceShape:
		if src, ok := sequenceOf(value, rv); ok {
			return shape.wrapSequence(src), true
		}
	case mappingShape:
		if src, ok := mappingOf(value, rv); ok {
			return shape.wrapMapping(src), true
		}
	}
	return nil, false
}
