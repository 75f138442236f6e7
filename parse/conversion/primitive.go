package conversion

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
)

func isPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	}
	return false
}

// convertPrimitive parses text sources first and falls back to a numeric
// change of type. json.Number text that is not valid for the target (for
// example "2.5" for an int) takes the numeric route.
func convertPrimitive(value any, rv reflect.Value, target reflect.Type) (any, error) {
	if rv.Kind() == reflect.String {
		out, err := parseText(rv.String(), target)
		if err == nil {
			return out, nil
		}
		if _, isNumber := value.(json.Number); !isNumber {
			return nil, &ConversionError{Value: value, Target: target, Err: err}
		}
	}

	out, err := changeType(value, rv, target)
	if err != nil {
		return nil, &ConversionError{Value: value, Target: target, Err: err}
	}
	return out.Interface(), nil
}

func parseText(raw string, target reflect.Type) (any, error) {
	s := strings.TrimSpace(raw)

	var (
		out any
		err error
	)
	switch target.Kind() {
	case reflect.String:
		out = raw
	case reflect.Bool:
		out, err = parseBool(s)
	case reflect.Float32:
		out, err = parseFloat[float32](s)
	case reflect.Float64:
		out, err = parseFloat[float64](s)
	case reflect.Int:
		out, err = parseSigned[int](s)
	case reflect.Int8:
		out, err = parseSigned[int8](s)
	case reflect.Int16:
		out, err = parseSigned[int16](s)
	case reflect.Int32:
		out, err = parseSigned[int32](s)
		if err != nil && utf8.RuneCountInString(raw) == 1 {
			r, _ := utf8.DecodeRuneInString(raw)
			out, err = r, nil
		}
	case reflect.Int64:
		out, err = parseSigned[int64](s)
	case reflect.Uint:
		out, err = parseUnsigned[uint](s)
	case reflect.Uint8:
		out, err = parseUnsigned[uint8](s)
	case reflect.Uint16:
		out, err = parseUnsigned[uint16](s)
	case reflect.Uint32:
		out, err = parseUnsigned[uint32](s)
	case reflect.Uint64:
		out, err = parseUnsigned[uint64](s)
	default:
		return nil, ErrInvalidCast
	}
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(out).Convert(target).Interface(), nil
}

// parseBool accepts only "true" and "false", in any letter case.
func parseBool(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, &strconv.NumError{Func: "parseBool", Num: s, Err: strconv.ErrSyntax}
}

func parseSigned[T constraints.Signed](s string) (T, error) {
	n, err := strconv.ParseInt(s, 10, bitSize[T]())
	return T(n), err
}

func parseUnsigned[T constraints.Unsigned](s string) (T, error) {
	n, err := strconv.ParseUint(s, 10, bitSize[T]())
	return T(n), err
}

func parseFloat[T constraints.Float](s string) (T, error) {
	f, err := strconv.ParseFloat(s, bitSize[T]())
	return T(f), err
}

func bitSize[T constraints.Integer | constraints.Float]() int {
	return reflect.TypeFor[T]().Bits()
}

// changeType converts between bool, numeric and text kinds.
func changeType(value any, rv reflect.Value, target reflect.Type) (reflect.Value, error) {
	if n, ok := value.(json.Number); ok {
		num, err := numberValue(n)
		if err != nil {
			return reflect.Value{}, err
		}
		rv = num
	}

	switch rv.Kind() {
	case reflect.Bool:
		return fromBool(rv.Bool(), target)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromInt(rv.Int(), target)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fromUint(rv.Uint(), target)
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float(), rv.Type().Bits(), target)
	}
	return reflect.Value{}, ErrInvalidCast
}

func numberValue(n json.Number) (reflect.Value, error) {
	if i, err := n.Int64(); err == nil {
		return reflect.ValueOf(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(f), nil
}

func fromBool(b bool, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Bool:
		out.SetBool(b)
	case reflect.String:
		out.SetString(strconv.FormatBool(b))
	default:
		var n int64
		if b {
			n = 1
		}
		return fromInt(n, target)
	}
	return out, nil
}

func fromInt(i int64, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Bool:
		out.SetBool(i != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if out.OverflowInt(i) {
			return reflect.Value{}, ErrOverflow
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if i < 0 || out.OverflowUint(uint64(i)) {
			return reflect.Value{}, ErrOverflow
		}
		out.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		out.SetFloat(float64(i))
	case reflect.String:
		out.SetString(strconv.FormatInt(i, 10))
	default:
		return reflect.Value{}, ErrInvalidCast
	}
	return out, nil
}

func fromUint(u uint64, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Bool:
		out.SetBool(u != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
			return reflect.Value{}, ErrOverflow
		}
		out.SetInt(int64(u))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if out.OverflowUint(u) {
			return reflect.Value{}, ErrOverflow
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		out.SetFloat(float64(u))
	case reflect.String:
		out.SetString(strconv.FormatUint(u, 10))
	default:
		return reflect.Value{}, ErrInvalidCast
	}
	return out, nil
}

// fromFloat rounds half to even when the target is an integer.
func fromFloat(f float64, bits int, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Bool:
		out.SetBool(f != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		r := math.RoundToEven(f)
		if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 || out.OverflowInt(int64(r)) {
			return reflect.Value{}, ErrOverflow
		}
		out.SetInt(int64(r))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		r := math.RoundToEven(f)
		if math.IsNaN(r) || r < 0 || r >= math.MaxUint64 || out.OverflowUint(uint64(r)) {
			return reflect.Value{}, ErrOverflow
		}
		out.SetUint(uint64(r))
	case reflect.Float32, reflect.Float64:
		if !math.IsInf(f, 0) && out.OverflowFloat(f) {
			return reflect.Value{}, ErrOverflow
		}
		out.SetFloat(f)
	case reflect.String:
		out.SetString(strconv.FormatFloat(f, 'g', -1, bits))
	default:
		return reflect.Value{}, ErrInvalidCast
	}
	return out, nil
}
