package stub

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// ErrUnsupportedParam is returned when a parameter value has no JSON form.
var ErrUnsupportedParam = errors.New("unsupported parameter value")

var canonicalOptions = ojg.Options{Sort: true}

// canonicalParams renders params as compact JSON with sorted object members.
// Nil and empty params both render as the empty string.
func canonicalParams(params Params) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	norm, err := NormalizeValue(params)
	if err != nil {
		return "", err
	}
	return oj.JSON(norm, &canonicalOptions), nil
}

// NormalizeValue converts v into the canonical JSON data model: nil, bool,
// string, int64, float64, []any and map[string]any. Integral floats that fit
// in an int64 become int64 so that 4545 and 4545.0 normalize identically.
func NormalizeValue(v any) (any, error) {
	return normalize(v, "")
}

// EqualValues reports whether a and b are equal JSON-typed values.
func EqualValues(a, b any) bool {
	na, errA := normalize(a, "")
	nb, errB := normalize(b, "")
	if errA != nil || errB != nil {
		return false
	}
	return oj.JSON(na, &canonicalOptions) == oj.JSON(nb, &canonicalOptions)
}

func normalize(v any, path string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w at %s: %q", ErrUnsupportedParam, pathOrRoot(path), t)
		}
		return normalizeFloat(f, path)
	case float64:
		return normalizeFloat(t, path)
	case float32:
		return normalizeFloat(float64(t), path)
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return normalizeUint(uint64(t)), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return normalizeUint(t), nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalize(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := normalize(e, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	return normalizeReflect(reflect.ValueOf(v), path)
}

// normalizeReflect handles typed slices and string-keyed maps such as
// []int or map[string]string.
func normalizeReflect(rv reflect.Value, path string) (any, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			n, err := normalize(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			n, err := normalize(iter.Value().Interface(), joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface(), path)
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return normalizeUint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float(), path)
	}
	return nil, fmt.Errorf("%w at %s: %T", ErrUnsupportedParam, pathOrRoot(path), rv.Interface())
}

func normalizeFloat(f float64, path string) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnsupportedParam, pathOrRoot(path), f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f), nil
	}
	return f, nil
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return float64(u)
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "$"
	}
	return path
}
