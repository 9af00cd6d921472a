// ABOUTME: Immutable update-at-path helpers and value coercions for config trees.
// ABOUTME: Only the spine along the path is copied; untouched branches are shared.

package configtext

import (
	"sort"
	"strconv"
)

// GetIn walks nested maps by key.
func GetIn(root any, keys ...string) (any, bool) {
	cur := root
	for _, k := range keys {
		m, ok := cur.(*Map)
		if !ok {
			return nil, false
		}
		if cur, ok = m.Get(k); !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetIn returns a copy of root with value stored at the nested key path.
// Missing or non-mapping intermediate values are replaced by new maps.
func SetIn(root any, value any, keys ...string) any {
	if len(keys) == 0 {
		return value
	}
	m, ok := root.(*Map)
	if !ok {
		m = NewMap()
	}
	child, _ := m.Get(keys[0])
	return m.With(keys[0], SetIn(child, value, keys[1:]...))
}

// DeleteIn returns a copy of root without the value at the nested key path.
// A path that does not exist returns root unchanged.
func DeleteIn(root any, keys ...string) any {
	if len(keys) == 0 {
		return nil
	}
	m, ok := root.(*Map)
	if !ok || !m.Has(keys[0]) {
		return root
	}
	if len(keys) == 1 {
		return m.Without(keys[0])
	}
	child, _ := m.Get(keys[0])
	return m.With(keys[0], DeleteIn(child, keys[1:]...))
}

// AsMap returns v as a map, or a new empty map when v is not one.
func AsMap(v any) *Map {
	if m, ok := v.(*Map); ok && m != nil {
		return m
	}
	return NewMap()
}

// AsSlice returns v as a slice, or an empty slice when v is not one.
func AsSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{}
}

// AsString renders scalars as text; containers and nil become "".
func AsString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// AsNumber coerces v to a number. Strings that do not parse, and anything
// else that is not numeric, become 0.
func AsNumber(v any) any {
	switch t := v.(type) {
	case int, int64, uint64, float64:
		return t
	case string:
		if i, err := strconv.Atoi(t); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

// AsBool coerces v to a boolean; "true" and non-zero numbers are true.
func AsBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	if n, ok := number(v); ok {
		return n != 0
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
