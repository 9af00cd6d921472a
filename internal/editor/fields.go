// ABOUTME: Field-level operations addressed by path: values, toggles, key/value pairs, arrays.
// ABOUTME: Nested object properties are updated immutably along the path.

package editor

import (
	"fmt"
	"strings"

	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
)

// Path addresses a top-level field followed by nested object property names.
type Path []string

// ParsePath splits a dotted path such as "tls.enabled".
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// fieldAt resolves the schema of the field a path points to.
func (e *Editor) fieldAt(path Path) (*schema.FieldSchema, error) {
	if len(path) == 0 || e.schema.Flat {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, path.String())
	}
	props := e.schema.Properties
	var f *schema.FieldSchema
	for i, name := range path {
		var ok bool
		if f, ok = props.Get(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, path[:i+1].String())
		}
		if i < len(path)-1 && f.Type != schema.TypeObject {
			return nil, fmt.Errorf("%w: %q is not an object", ErrUnknownField, path[:i+1].String())
		}
		props = f.Properties
	}
	return f, nil
}

// top returns the state of the path's top-level field, which must be enabled.
func (e *Editor) top(path Path) (*FieldState, error) {
	st, ok := e.fields[path[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, path[0])
	}
	if !st.Enabled {
		return nil, fmt.Errorf("%w: %q", ErrFieldDisabled, path[0])
	}
	return st, nil
}

// valueAt returns the current value at path and whether it is present.
func (e *Editor) valueAt(path Path) (any, bool) {
	st, ok := e.fields[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return st.Value, true
	}
	return configtext.GetIn(st.Value, path[1:]...)
}

// Enabled reports whether the field at path participates in the output.
func (e *Editor) Enabled(path Path) bool {
	f, err := e.fieldAt(path)
	if err != nil {
		return false
	}
	st := e.fields[path[0]]
	if !st.Enabled {
		return false
	}
	if len(path) == 1 || f.Required {
		return true
	}
	_, present := configtext.GetIn(st.Value, path[1:]...)
	return present
}

func (e *Editor) store(path Path, v any) error {
	st, err := e.top(path)
	if err != nil {
		return err
	}
	if len(path) == 1 {
		st.Value = v
	} else {
		st.Value = configtext.SetIn(st.Value, v, path[1:]...)
	}
	e.changed()
	return nil
}

// SetValue assigns a value to the field at path, coercing it to the field type.
// Numbers that do not parse become 0; booleans accept true/false text.
func (e *Editor) SetValue(path Path, v any) error {
	f, err := e.fieldAt(path)
	if err != nil {
		return err
	}
	coerced, err := coerce(f, v)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return e.store(path, coerced)
}

func coerce(f *schema.FieldSchema, v any) (any, error) {
	switch f.Type {
	case schema.TypeInput, schema.TypeCode, schema.TypeSelect, schema.TypeDynamicSelect:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return configtext.AsString(v), nil
	case schema.TypeNumber:
		return configtext.AsNumber(v), nil
	case schema.TypeBool:
		return configtext.AsBool(v), nil
	case schema.TypeKeyValue, schema.TypeObject, schema.TypeArray:
		return schema.EnsureShape(v, f), nil
	case schema.TypeProcessorList, schema.TypeProcessorCases, schema.TypeOutputList, schema.TypeOutputCases, schema.TypeInputList:
		return nil, ErrWrongFieldType
	}
	return nil, ErrWrongFieldType
}

// SetEnabled toggles whether an optional field is emitted. Top-level fields keep
// their value while disabled; nested properties are stashed and restored on re-enable.
func (e *Editor) SetEnabled(path Path, on bool) error {
	f, err := e.fieldAt(path)
	if err != nil {
		return err
	}
	if f.Required && !on {
		return fmt.Errorf("%s: %w", path, ErrRequiredField)
	}

	if len(path) == 1 {
		st := e.fields[path[0]]
		if st.Enabled == on {
			return nil
		}
		st.Enabled = on
		if on && f.Type == schema.TypeObject {
			st.Value = withRequired(st.Value, f)
		}
		e.changed()
		return nil
	}

	st, err := e.top(path)
	if err != nil {
		return err
	}
	key := path.String()
	cur, present := configtext.GetIn(st.Value, path[1:]...)
	switch {
	case on && !present:
		v, stashed := e.stash[key]
		if !stashed {
			v = withRequired(schema.DefaultValue(f), f)
		}
		delete(e.stash, key)
		st.Value = configtext.SetIn(st.Value, v, path[1:]...)
	case !on && present:
		e.stash[key] = cur
		st.Value = configtext.DeleteIn(st.Value, path[1:]...)
	default:
		return nil
	}
	e.changed()
	return nil
}

// withRequired shapes an object value and fills in its required properties.
func withRequired(v any, f *schema.FieldSchema) any {
	if f.Type != schema.TypeObject {
		return v
	}
	m := schema.EnsureShape(v, f).(*configtext.Map)
	for _, p := range f.Properties {
		if p.Schema.Required && !m.Has(p.Name) {
			m = m.With(p.Name, withRequired(schema.DefaultValue(p.Schema), p.Schema))
		}
	}
	return m
}

// pairsAt returns the key/value map at path for editing.
func (e *Editor) pairsAt(path Path) (*configtext.Map, error) {
	f, err := e.fieldAt(path)
	if err != nil {
		return nil, err
	}
	if f.Type != schema.TypeKeyValue && !(f.Type == schema.TypeObject && len(f.Properties) == 0) {
		return nil, fmt.Errorf("%s: %w", path, ErrWrongFieldType)
	}
	if _, err := e.top(path); err != nil {
		return nil, err
	}
	v, _ := e.valueAt(path)
	return configtext.AsMap(v).Copy(), nil
}

// AddPair appends an empty pair to a key/value field.
func (e *Editor) AddPair(path Path) error {
	m, err := e.pairsAt(path)
	if err != nil {
		return err
	}
	if m.Has("") {
		return nil
	}
	m.Set("", "")
	return e.store(path, m)
}

// RenamePair moves a value to a new key in place. Renaming to a blank key drops the pair.
func (e *Editor) RenamePair(path Path, oldKey, newKey string) error {
	m, err := e.pairsAt(path)
	if err != nil {
		return err
	}
	if !m.Has(oldKey) || oldKey == newKey {
		return nil
	}
	if strings.TrimSpace(newKey) == "" {
		m.Delete(oldKey)
	} else {
		m.Rename(oldKey, newKey)
	}
	return e.store(path, m)
}

// SetPair assigns the value of one key.
func (e *Editor) SetPair(path Path, key, value string) error {
	m, err := e.pairsAt(path)
	if err != nil {
		return err
	}
	m.Set(key, value)
	return e.store(path, m)
}

// RemovePair deletes one key.
func (e *Editor) RemovePair(path Path, key string) error {
	m, err := e.pairsAt(path)
	if err != nil {
		return err
	}
	m.Delete(key)
	return e.store(path, m)
}

func (e *Editor) itemsAt(path Path) ([]any, error) {
	f, err := e.fieldAt(path)
	if err != nil {
		return nil, err
	}
	if f.Type != schema.TypeArray {
		return nil, fmt.Errorf("%s: %w", path, ErrWrongFieldType)
	}
	if _, err := e.top(path); err != nil {
		return nil, err
	}
	v, _ := e.valueAt(path)
	items := configtext.AsSlice(v)
	out := make([]any, len(items))
	copy(out, items)
	return out, nil
}

// AppendItem adds an empty item to an array field.
func (e *Editor) AppendItem(path Path) error {
	items, err := e.itemsAt(path)
	if err != nil {
		return err
	}
	return e.store(path, append(items, ""))
}

// SetItem replaces one array item.
func (e *Editor) SetItem(path Path, index int, value string) error {
	items, err := e.itemsAt(path)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(items) {
		return ErrIndexOutOfRange
	}
	items[index] = value
	return e.store(path, items)
}

// RemoveItem deletes one array item.
func (e *Editor) RemoveItem(path Path, index int) error {
	items, err := e.itemsAt(path)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(items) {
		return ErrIndexOutOfRange
	}
	return e.store(path, append(items[:index], items[index+1:]...))
}
