// ABOUTME: Typed widget tree describing an editor's current state for renderers.
// ABOUTME: One widget kind per field type; preview mode hides disabled fields and edit affordances.

package editor

import (
	"encoding/json"

	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
)

// PreviewLimit is the number of characters shown for long text values in previews.
const PreviewLimit = 30

// Widget is implemented by exactly the widget types in this file.
type Widget interface {
	Kind() schema.FieldType
}

type TextWidget struct {
	Value   string `json:"value"`
	Preview string `json:"preview"`
}

type CodeWidget struct {
	Value   string `json:"value"`
	Preview string `json:"preview"`
}

type NumberWidget struct {
	Value string   `json:"value"`
	Min   *float64 `json:"min,omitempty"`
}

type BoolWidget struct {
	Value bool `json:"value"`
}

type SelectWidget struct {
	Value   string   `json:"value"`
	Options []string `json:"options"`
}

// DynamicSelectWidget is filled in by the renderer from an OptionSet for Source.
type DynamicSelectWidget struct {
	Value  string            `json:"value"`
	Source schema.DataSource `json:"source"`
}

type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type KeyValueWidget struct {
	Pairs []Pair `json:"pairs"`
}

type ArrayWidget struct {
	Items []string `json:"items"`
}

type ObjectWidget struct {
	Fields []Field `json:"fields"`
}

// EntryView is one component in a list or case. Child is nil until a
// component with a known schema has been selected.
type EntryView struct {
	Ref         Ref    `json:"ref"`
	ComponentID string `json:"componentId"`
	Component   string `json:"component"`
	Title       string `json:"title"`
	Child       *View  `json:"child,omitempty"`
}

// Choice is a selectable component for a list entry.
type Choice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ListWidget struct {
	Role    schema.Role `json:"role"`
	Entries []EntryView `json:"entries"`
	Choices []Choice    `json:"choices,omitempty"`
}

type CaseView struct {
	Index int    `json:"index"`
	Check string `json:"check"`
	// Flag is fallthrough for processor cases and continue for output cases.
	Flag     bool        `json:"flag"`
	FlagName string      `json:"flagName"`
	Entries  []EntryView `json:"entries"`
}

type CasesWidget struct {
	kind    schema.FieldType
	Role    schema.Role `json:"role"`
	Cases   []CaseView  `json:"cases"`
	Choices []Choice    `json:"choices,omitempty"`
}

func (TextWidget) Kind() schema.FieldType          { return schema.TypeInput }
func (CodeWidget) Kind() schema.FieldType          { return schema.TypeCode }
func (NumberWidget) Kind() schema.FieldType        { return schema.TypeNumber }
func (BoolWidget) Kind() schema.FieldType          { return schema.TypeBool }
func (SelectWidget) Kind() schema.FieldType        { return schema.TypeSelect }
func (DynamicSelectWidget) Kind() schema.FieldType { return schema.TypeDynamicSelect }
func (KeyValueWidget) Kind() schema.FieldType      { return schema.TypeKeyValue }
func (ArrayWidget) Kind() schema.FieldType         { return schema.TypeArray }
func (ObjectWidget) Kind() schema.FieldType        { return schema.TypeObject }

func (w ListWidget) Kind() schema.FieldType {
	switch w.Role {
	case schema.RoleInput:
		return schema.TypeInputList
	case schema.RoleOutput:
		return schema.TypeOutputList
	}
	return schema.TypeProcessorList
}

func (w CasesWidget) Kind() schema.FieldType { return w.kind }

// Field is one rendered field.
type Field struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
	Required    bool   `json:"required"`
	Enabled     bool   `json:"enabled"`
	Widget      Widget `json:"widget"`
}

// MarshalJSON tags the widget with its kind so clients can switch on it.
func (f Field) MarshalJSON() ([]byte, error) {
	type plain Field
	return json.Marshal(struct {
		plain
		Kind schema.FieldType `json:"kind"`
	}{plain(f), f.Widget.Kind()})
}

// View is the rendered state of one editor.
type View struct {
	Component string  `json:"component"`
	Title     string  `json:"title"`
	Flat      bool    `json:"flat"`
	Preview   bool    `json:"preview"`
	Fields    []Field `json:"fields"`
}

// Truncate shortens s to PreviewLimit characters followed by an ellipsis.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= PreviewLimit {
		return s
	}
	return string(r[:PreviewLimit]) + "..."
}

// View renders the editor. Child editors of list entries are created as needed.
func (e *Editor) View(preview bool) View {
	v := View{
		Component: e.schema.Name,
		Title:     e.schema.Title,
		Flat:      e.schema.Flat,
		Preview:   preview,
	}

	if flat, ok := e.schema.FlatField(); ok {
		f := Field{
			Name:     flat.Name,
			Title:    flat.Schema.Label(flat.Name),
			Path:     flat.Name,
			Required: true,
			Enabled:  true,
		}
		if flat.Schema.Type.IsList() {
			f.Widget = e.listWidget(flat.Name, flat.Schema.Type, preview)
		} else {
			f.Widget = scalarWidget(flat.Schema, e.flatText)
		}
		v.Fields = append(v.Fields, f)
		return v
	}

	for _, p := range e.schema.Properties {
		st := e.fields[p.Name]
		if preview && !st.Enabled {
			continue
		}
		f := Field{
			Name:        p.Name,
			Title:       p.Schema.Label(p.Name),
			Description: p.Schema.Description,
			Path:        p.Name,
			Required:    p.Schema.Required,
			Enabled:     st.Enabled,
		}
		if p.Schema.Type.IsList() {
			f.Widget = e.listWidget(p.Name, p.Schema.Type, preview)
		} else {
			f.Widget = e.valueWidget(Path{p.Name}, p.Schema, st.Value, preview)
		}
		v.Fields = append(v.Fields, f)
	}
	return v
}

func scalarWidget(f *schema.FieldSchema, value any) Widget {
	s := configtext.AsString(value)
	switch f.Type {
	case schema.TypeCode:
		return CodeWidget{Value: s, Preview: Truncate(s)}
	case schema.TypeNumber:
		return NumberWidget{Value: s, Min: f.Min}
	case schema.TypeBool:
		return BoolWidget{Value: configtext.AsBool(value)}
	case schema.TypeSelect:
		return SelectWidget{Value: s, Options: f.Options}
	case schema.TypeDynamicSelect:
		return DynamicSelectWidget{Value: s, Source: f.DataSource}
	}
	return TextWidget{Value: s, Preview: Truncate(s)}
}

func (e *Editor) valueWidget(path Path, f *schema.FieldSchema, value any, preview bool) Widget {
	switch f.Type {
	case schema.TypeKeyValue:
		return keyValueWidget(value)
	case schema.TypeArray:
		items := configtext.AsSlice(value)
		w := ArrayWidget{Items: make([]string, 0, len(items))}
		for _, it := range items {
			w.Items = append(w.Items, configtext.AsString(it))
		}
		return w
	case schema.TypeObject:
		if len(f.Properties) == 0 {
			return keyValueWidget(value)
		}
		return e.objectWidget(path, f, value, preview)
	}
	return scalarWidget(f, value)
}

func keyValueWidget(value any) KeyValueWidget {
	w := KeyValueWidget{Pairs: []Pair{}}
	configtext.AsMap(value).Range(func(k string, v any) bool {
		w.Pairs = append(w.Pairs, Pair{Key: k, Value: configtext.AsString(v)})
		return true
	})
	return w
}

func (e *Editor) objectWidget(path Path, f *schema.FieldSchema, value any, preview bool) ObjectWidget {
	m := configtext.AsMap(value)
	w := ObjectWidget{Fields: []Field{}}
	for _, p := range f.Properties {
		cur, present := m.Get(p.Name)
		enabled := present || p.Schema.Required
		if preview && !enabled {
			continue
		}
		if !present {
			cur = schema.DefaultValue(p.Schema)
		}
		sub := append(append(Path{}, path...), p.Name)
		var widget Widget
		if _, ok := e.lists[sub.String()]; ok && p.Schema.Type.IsList() {
			widget = e.listWidget(sub.String(), p.Schema.Type, preview)
		} else {
			widget = e.valueWidget(sub, p.Schema, cur, preview)
		}
		w.Fields = append(w.Fields, Field{
			Name:        p.Name,
			Title:       p.Schema.Label(p.Name),
			Description: p.Schema.Description,
			Path:        sub.String(),
			Required:    p.Schema.Required,
			Enabled:     enabled,
			Widget:      widget,
		})
	}
	return w
}

func (e *Editor) listWidget(field string, kind schema.FieldType, preview bool) Widget {
	l := e.lists[field]
	if l == nil {
		l = &listState{kind: kind}
	}
	role := kind.ListRole()
	// Entries of a disabled list are listed read-only, without child editors.
	live := e.listEnabled(field)
	var choices []Choice
	if !preview && live {
		for _, ref := range e.bridge.Catalog().ForRole(role) {
			choices = append(choices, Choice{ID: ref.ID, Name: ref.Name})
		}
	}

	if !kind.IsCases() {
		w := ListWidget{Role: role, Entries: []EntryView{}, Choices: choices}
		for i := range l.entries {
			w.Entries = append(w.Entries, e.entryView(l, Ref{Field: field, Index: i}, live, preview))
		}
		return w
	}

	w := CasesWidget{kind: kind, Role: role, Cases: []CaseView{}, Choices: choices}
	for i, c := range l.cases {
		cv := CaseView{Index: i, Check: c.check, Flag: c.flag, Entries: []EntryView{}}
		if kind == schema.TypeOutputCases {
			cv.FlagName = "continue"
			cv.Entries = append(cv.Entries, e.entryView(l, Ref{Field: field, Case: i}, live, preview))
		} else {
			cv.FlagName = "fallthrough"
			for j := range c.processors {
				cv.Entries = append(cv.Entries, e.entryView(l, Ref{Field: field, Case: i, Index: j}, live, preview))
			}
		}
		w.Cases = append(w.Cases, cv)
	}
	return w
}

func (e *Editor) entryView(l *listState, ref Ref, live, preview bool) EntryView {
	ev := EntryView{Ref: ref}
	es, err := l.entry(ref)
	if err != nil {
		return ev
	}
	role := l.kind.ListRole()
	ev.ComponentID, ev.Component = es.entry.ComponentID, es.entry.Component
	if cref, ok := e.bridge.Catalog().Find(role, es.entry.ComponentID); ok {
		ev.Title = cref.Name
	} else {
		ev.Title = es.entry.ComponentID
	}
	if es.entry.ComponentID == "" || !live {
		return ev
	}
	if child, err := e.Child(ref); err == nil {
		cv := child.View(preview)
		ev.Child = &cv
	}
	return ev
}
