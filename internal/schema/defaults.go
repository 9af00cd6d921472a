// ABOUTME: Type-appropriate default values and container shape repair for field schemas.
// ABOUTME: These helpers never fail; malformed input is coerced to the nearest empty container.

package schema

import "github.com/2389/airtruct-console/internal/configtext"

// DefaultValue returns the schema default, or the zero value for the field type.
// The result is a fresh copy that callers may mutate.
func DefaultValue(f *FieldSchema) any {
	if f == nil {
		return ""
	}
	if f.HasDefault && f.Default != nil {
		return configtext.Clone(f.Default)
	}
	switch f.Type {
	case TypeInput, TypeCode, TypeDynamicSelect:
		return ""
	case TypeNumber:
		return 0
	case TypeBool:
		return false
	case TypeSelect:
		if len(f.Options) > 0 {
			return f.Options[0]
		}
		return ""
	case TypeKeyValue, TypeObject:
		return configtext.NewMap()
	case TypeArray, TypeProcessorList, TypeProcessorCases, TypeOutputList, TypeOutputCases, TypeInputList:
		return []any{}
	}
	return ""
}

// EnsureShape returns value with every container field of f in the right shape.
// Objects with properties are walked recursively: present nested values are
// coerced, and absent required containers are materialized from their defaults.
// Absent optional fields stay absent so that presence keeps meaning "enabled".
// Primitive values are returned untouched.
func EnsureShape(value any, f *FieldSchema) any {
	if f == nil {
		return value
	}
	switch f.Type {
	case TypeObject:
		m, ok := value.(*configtext.Map)
		if !ok || m == nil {
			m = configtext.NewMap()
		} else {
			m = m.Copy()
		}
		for _, p := range f.Properties {
			cur, present := m.Get(p.Name)
			switch {
			case present:
				m.Set(p.Name, EnsureShape(cur, p.Schema))
			case p.Schema.Required && isContainer(p.Schema.Type):
				m.Set(p.Name, EnsureShape(DefaultValue(p.Schema), p.Schema))
			}
		}
		return m
	case TypeKeyValue:
		if m, ok := value.(*configtext.Map); ok && m != nil {
			return m
		}
		return configtext.NewMap()
	case TypeArray, TypeProcessorList, TypeProcessorCases, TypeOutputList, TypeOutputCases, TypeInputList:
		if s, ok := value.([]any); ok {
			return s
		}
		return []any{}
	}
	return value
}

func isContainer(t FieldType) bool {
	return t == TypeObject || t == TypeKeyValue || t == TypeArray || t.IsList()
}

// DefaultConfig builds the initial configuration for a newly created resource:
// every field that declares a default, in schema order.
func DefaultConfig(c *ComponentSchema) *configtext.Map {
	out := configtext.NewMap()
	if c == nil {
		return out
	}
	for _, p := range c.Properties {
		if p.Schema.HasDefault {
			out.Set(p.Name, DefaultValue(p.Schema))
		}
	}
	return out
}
