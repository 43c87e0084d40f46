package protocol

import (
	"fmt"
	"math"
	"strconv"
)

// Schema-less decoding yields a small set of dynamic types. These helpers
// coerce them into the positional field types each frame expects.

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case float32:
		return asInt(float64(n))
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// asOptString treats nil as the empty string.
func asOptString(v any) (string, bool) {
	if v == nil {
		return "", true
	}
	return asString(v)
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case nil:
		return false, true
	}
	if n, ok := asInt(v); ok {
		return n != 0, true
	}
	return false, false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case nil:
		return nil, true
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := asString(k)
			if !ok {
				ks = fmt.Sprint(k)
			}
			out[ks] = val
		}
		return out, true
	case nil:
		return nil, true
	}
	return nil, false
}

// asStringMap converts a decoded map to map[string]string. Scalar values are
// stringified; booleans become "true"/"false"; nil values are dropped.
func asStringMap(v any) (map[string]string, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("want map, got %T", v)
	}
	if err := checkCount(len(m)); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		switch x := val.(type) {
		case nil:
			continue
		case string:
			out[k] = x
		case []byte:
			out[k] = string(x)
		case bool:
			out[k] = strconv.FormatBool(x)
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			if n, ok := asInt(x); ok {
				out[k] = strconv.FormatInt(n, 10)
				continue
			}
			return nil, fmt.Errorf("key %q: unsupported value %T", k, val)
		}
	}
	return out, nil
}

// stringMapValue converts a string map to a wire value, keeping nil as nil.
func stringMapValue(m map[string]string) any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// optString encodes "" as nil.
func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
