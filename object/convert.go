package object

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// FromGo converts a Go value to a script value. Maps become objects, slices
// become arrays and functions with the BuiltinFunction signature become
// builtins.
func FromGo(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Null, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return NumberValue(float64(v)), nil
	case int32:
		return Int(v), nil
	case int64:
		return NumberValue(float64(v)), nil
	case uint32:
		return Uint(v), nil
	case float32:
		return Number(v), nil
	case float64:
		return Number(v), nil
	case string:
		return String(v), nil
	case []any:
		values := make([]Value, len(v))
		for i, item := range v {
			val, err := FromGo(item)
			if err != nil {
				return nil, err
			}
			values[i] = val
		}
		return NewArray(values), nil
	case map[string]any:
		obj := NewDynamic("Object", nil)
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val, err := FromGo(v[k])
			if err != nil {
				return nil, err
			}
			if err := obj.SetProperty("", k, val); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case func(ctx context.Context, this Value, args []Value) (Value, error):
		return NewBuiltin("", v), nil
	case BuiltinFunction:
		return NewBuiltin("", v), nil
	}
	return nil, fmt.Errorf("unsupported go type %T", v)
}

// AsObjects converts a map of Go values to script values.
func AsObjects(m map[string]any) (map[string]Value, error) {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		val, err := FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// ToGo converts a script value to plain Go data suitable for encoding.
func ToGo(v Value) any {
	return toGo(v, 0)
}

func toGo(v Value, depth int) any {
	if depth > 32 {
		return "..."
	}
	switch v := v.(type) {
	case nil:
		return nil
	case Bool:
		return bool(v)
	case Int:
		return int64(v)
	case Uint:
		return int64(v)
	case Number:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return FormatNumber(f)
		}
		return f
	case String:
		return string(v)
	case *Namespace:
		return v.NS.URI
	case Callable:
		return v.Inspect()
	case *Dynamic:
		if v.class == "Array" {
			values := ArrayValues(v)
			out := make([]any, len(values))
			for i, item := range values {
				out[i] = toGo(item, depth+1)
			}
			return out
		}
		out := map[string]any{}
		for _, k := range v.order {
			if k.ns != "" {
				continue
			}
			out[k.name] = toGo(v.props[k], depth+1)
		}
		return out
	}
	if v == Undefined || v == Null {
		return nil
	}
	return v.Inspect()
}
