// ABOUTME: Schema-driven configuration editor that owns per-field state for one component.
// ABOUTME: Text in through New/Sync, text out through Text and the OnChange callback.

package editor

import (
	"errors"
	"log"

	"github.com/2389/airtruct-console/internal/bridge"
	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
)

var (
	ErrRequiredField    = errors.New("required fields cannot be disabled")
	ErrUnknownField     = errors.New("unknown field")
	ErrFieldDisabled    = errors.New("field is disabled")
	ErrWrongFieldType   = errors.New("operation does not apply to this field type")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrUnknownComponent = errors.New("component has no schema")
	ErrNotFlat          = errors.New("component is not flat")
)

// Options configures an editor.
type Options struct {
	// Catalog supplies the selectable components for list fields.
	Catalog schema.Catalog
	// OnChange receives the serialized text once per semantic change.
	OnChange func(text string)
}

// FieldState is the runtime state of one top-level field.
type FieldState struct {
	Enabled bool
	Value   any
}

// Editor edits the configuration of a single component. It is not safe for
// concurrent use; Sessions serializes access for the web console.
type Editor struct {
	schema   *schema.ComponentSchema
	bridge   *bridge.Bridge
	onChange func(string)

	fields map[string]*FieldState
	lists  map[string]*listState
	extras *configtext.Map // keys present in the text but unknown to the schema
	stash  map[string]any  // values of disabled nested properties, keyed by path

	flatText string

	// upstream is the last text this editor loaded or emitted.
	upstream string
}

// New creates an editor for a component schema seeded with existing config text.
func New(cs *schema.ComponentSchema, text string, opts Options) *Editor {
	return newEditor(cs, text, bridge.New(opts.Catalog), opts.OnChange)
}

func newEditor(cs *schema.ComponentSchema, text string, b *bridge.Bridge, onChange func(string)) *Editor {
	e := &Editor{schema: cs, bridge: b, onChange: onChange}
	e.load(text)
	return e
}

// Schema returns the component schema being edited.
func (e *Editor) Schema() *schema.ComponentSchema {
	return e.schema
}

// Flat reports whether the component is edited as a single inlined value.
func (e *Editor) Flat() bool {
	return e.schema.Flat
}

func (e *Editor) load(text string) {
	e.fields = make(map[string]*FieldState)
	e.lists = make(map[string]*listState)
	e.extras = configtext.NewMap()
	e.stash = make(map[string]any)
	e.flatText = ""
	e.upstream = text

	if field, ok := e.schema.FlatField(); ok {
		if field.Schema.Type.IsList() {
			e.lists[field.Name] = decodeList(e.bridge, field.Schema.Type, text)
		} else {
			e.flatText = text
		}
		return
	}

	data, err := configtext.ParseMap(text)
	if err != nil {
		log.Printf("Failed to parse %s config, starting empty: %v", e.schema.Name, err)
		data = configtext.NewMap()
	}

	for _, p := range e.schema.Properties {
		raw, present := data.Get(p.Name)
		st := &FieldState{Enabled: p.Schema.Required || present}
		switch {
		case p.Schema.Type.IsList():
			e.lists[p.Name] = listFromValue(e.bridge, p.Schema.Type, raw)
			st.Value = []any{}
		case present:
			st.Value = schema.EnsureShape(raw, p.Schema)
		default:
			st.Value = schema.DefaultValue(p.Schema)
		}
		if p.Schema.Type == schema.TypeObject {
			e.loadNestedLists(Path{p.Name}, p.Schema.Properties, raw)
		}
		e.fields[p.Name] = st
	}

	data.Range(func(k string, v any) bool {
		if _, known := e.schema.Properties.Get(k); !known {
			e.extras.Set(k, v)
		}
		return true
	})
}

// loadNestedLists seeds list state for list-kind properties inside objects, keyed by dotted path.
func (e *Editor) loadNestedLists(prefix Path, props schema.Properties, value any) {
	m, _ := value.(*configtext.Map)
	for _, p := range props {
		var raw any
		if m != nil {
			raw, _ = m.Get(p.Name)
		}
		sub := append(append(Path{}, prefix...), p.Name)
		switch {
		case p.Schema.Type.IsList():
			e.lists[sub.String()] = listFromValue(e.bridge, p.Schema.Type, raw)
		case p.Schema.Type == schema.TypeObject:
			e.loadNestedLists(sub, p.Schema.Properties, raw)
		}
	}
}

// State returns a copy of a top-level field's state.
func (e *Editor) State(name string) (FieldState, bool) {
	st, ok := e.fields[name]
	if !ok {
		return FieldState{}, false
	}
	return FieldState{Enabled: st.Enabled, Value: configtext.Clone(st.Value)}, true
}

// Text derives the serialized configuration from the current state. It has no side effects.
func (e *Editor) Text() string {
	if field, ok := e.schema.FlatField(); ok {
		if field.Schema.Type.IsList() {
			return e.lists[field.Name].text(e.bridge)
		}
		return e.flatText
	}

	out := configtext.NewMap()
	for _, p := range e.schema.Properties {
		st := e.fields[p.Name]
		if st == nil || !st.Enabled {
			continue
		}
		if p.Schema.Type.IsList() {
			out.Set(p.Name, e.lists[p.Name].value(e.bridge))
			continue
		}
		out.Set(p.Name, e.prune(Path{p.Name}, st.Value, p.Schema))
	}
	e.extras.Range(func(k string, v any) bool {
		out.Set(k, v)
		return true
	})

	text, err := configtext.Dump(out)
	if err != nil {
		log.Printf("Failed to encode %s config: %v", e.schema.Name, err)
		return ""
	}
	return text
}

// prune drops pairs whose key is still blank from key/value maps and replaces
// nested list values with the current state of their list editors.
func (e *Editor) prune(path Path, v any, f *schema.FieldSchema) any {
	switch f.Type {
	case schema.TypeKeyValue:
		return withoutBlankKey(v)
	case schema.TypeObject:
		m, ok := v.(*configtext.Map)
		if !ok {
			return v
		}
		if len(f.Properties) == 0 {
			return withoutBlankKey(m)
		}
		out := m
		for _, p := range f.Properties {
			cur, ok := m.Get(p.Name)
			if !ok {
				continue
			}
			sub := append(append(Path{}, path...), p.Name)
			if l, isList := e.lists[sub.String()]; isList && p.Schema.Type.IsList() {
				out = out.With(p.Name, l.value(e.bridge))
				continue
			}
			out = out.With(p.Name, e.prune(sub, cur, p.Schema))
		}
		return out
	}
	return v
}

func withoutBlankKey(v any) any {
	if m, ok := v.(*configtext.Map); ok && m.Has("") {
		return m.Without("")
	}
	return v
}

// Sync offers new upstream text. The editor re-initializes only when the text
// differs semantically from what it last loaded or emitted, and reports whether it did.
func (e *Editor) Sync(text string) bool {
	if e.sameAsUpstream(text) {
		e.upstream = text
		return false
	}
	e.load(text)
	return true
}

func (e *Editor) sameAsUpstream(text string) bool {
	if field, ok := e.schema.FlatField(); ok && !field.Schema.Type.IsList() {
		return text == e.upstream
	}
	return configtext.EqualText(text, e.upstream)
}

// changed emits the current text if it differs semantically from upstream.
func (e *Editor) changed() {
	text := e.Text()
	if e.sameAsUpstream(text) {
		return
	}
	e.upstream = text
	if e.onChange != nil {
		e.onChange(text)
	}
}

// SetFlat replaces the whole value of a flat scalar component such as a mapping.
func (e *Editor) SetFlat(text string) error {
	field, ok := e.schema.FlatField()
	if !ok {
		return ErrNotFlat
	}
	if field.Schema.Type.IsList() {
		return ErrWrongFieldType
	}
	e.flatText = text
	e.changed()
	return nil
}
