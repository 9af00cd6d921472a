// ABOUTME: Structured state for component-list and switch-case fields.
// ABOUTME: Each entry owns a lazily created child editor for its own configuration.

package editor

import (
	"fmt"
	"log"

	"github.com/2389/airtruct-console/internal/bridge"
	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
)

// Ref addresses one component entry in a list field. Case selects the case of
// a case field; Index selects the entry within the list or the case's processors.
// Index is ignored for output cases, which hold exactly one output.
type Ref struct {
	Field string `json:"field"`
	Case  int    `json:"case"`
	Index int    `json:"index"`
}

type entryState struct {
	entry bridge.Entry
	child *Editor
}

type caseState struct {
	check      string
	flag       bool // fallthrough for processor cases, continue for output cases
	processors []*entryState
	output     *entryState
}

type listState struct {
	kind    schema.FieldType
	entries []*entryState
	cases   []*caseState
}

func wrapEntries(entries []bridge.Entry) []*entryState {
	out := make([]*entryState, 0, len(entries))
	for _, en := range entries {
		out = append(out, &entryState{entry: en})
	}
	return out
}

func listFromValue(b *bridge.Bridge, kind schema.FieldType, v any) *listState {
	l := &listState{kind: kind}
	switch kind {
	case schema.TypeProcessorCases:
		for _, c := range b.ToProcessorCases(v) {
			l.cases = append(l.cases, &caseState{check: c.Check, flag: c.Fallthrough, processors: wrapEntries(c.Processors)})
		}
	case schema.TypeOutputCases:
		for _, c := range b.ToOutputCases(v) {
			l.cases = append(l.cases, &caseState{check: c.Check, flag: c.Continue, output: &entryState{entry: c.Output}})
		}
	default:
		l.entries = wrapEntries(b.ToList(kind.ListRole(), v))
	}
	return l
}

func decodeList(b *bridge.Bridge, kind schema.FieldType, text string) *listState {
	v, err := configtext.Parse(text)
	if err != nil {
		log.Printf("Failed to parse %s text, starting empty: %v", kind, err)
		v = nil
	}
	return listFromValue(b, kind, v)
}

func (l *listState) processorCases() []bridge.ProcessorCase {
	out := make([]bridge.ProcessorCase, 0, len(l.cases))
	for _, c := range l.cases {
		out = append(out, bridge.ProcessorCase{Check: c.check, Processors: unwrap(c.processors), Fallthrough: c.flag})
	}
	return out
}

func (l *listState) outputCases() []bridge.OutputCase {
	out := make([]bridge.OutputCase, 0, len(l.cases))
	for _, c := range l.cases {
		oc := bridge.OutputCase{Check: c.check, Continue: c.flag}
		if c.output != nil {
			oc.Output = c.output.entry
		}
		out = append(out, oc)
	}
	return out
}

func unwrap(states []*entryState) []bridge.Entry {
	out := make([]bridge.Entry, 0, len(states))
	for _, s := range states {
		out = append(out, s.entry)
	}
	return out
}

// value is the forward conversion of the list through the bridge.
func (l *listState) value(b *bridge.Bridge) []any {
	switch l.kind {
	case schema.TypeProcessorCases:
		return b.ProcessorCases(l.processorCases())
	case schema.TypeOutputCases:
		return b.OutputCases(l.outputCases())
	case schema.TypeInputList:
		return b.InputList(unwrap(l.entries))
	case schema.TypeOutputList:
		return b.OutputList(unwrap(l.entries))
	}
	return b.ProcessorList(unwrap(l.entries))
}

func (l *listState) text(b *bridge.Bridge) string {
	items := l.value(b)
	if len(items) == 0 {
		return ""
	}
	return configtext.MustDump(items)
}

// Entries returns the entries of a plain list field.
func (e *Editor) Entries(field string) []bridge.Entry {
	l, ok := e.lists[field]
	if !ok {
		return nil
	}
	return unwrap(l.entries)
}

// ProcessorCases returns the cases of a processor switch field.
func (e *Editor) ProcessorCases(field string) []bridge.ProcessorCase {
	l, ok := e.lists[field]
	if !ok || l.kind != schema.TypeProcessorCases {
		return nil
	}
	return l.processorCases()
}

// OutputCases returns the cases of an output switch field.
func (e *Editor) OutputCases(field string) []bridge.OutputCase {
	l, ok := e.lists[field]
	if !ok || l.kind != schema.TypeOutputCases {
		return nil
	}
	return l.outputCases()
}

// list returns the list state of an enabled list field. Lists inside objects
// are addressed by their dotted path, such as "batching.processors".
func (e *Editor) list(field string) (*listState, error) {
	l, ok := e.lists[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a list field", ErrUnknownField, field)
	}
	if !e.listEnabled(field) {
		return nil, fmt.Errorf("%w: %q", ErrFieldDisabled, field)
	}
	return l, nil
}

func (e *Editor) listEnabled(field string) bool {
	path := ParsePath(field)
	if len(path) > 1 {
		return e.Enabled(path)
	}
	st, ok := e.fields[field]
	return !ok || st.Enabled
}

func (e *Editor) caseAt(field string, i int) (*listState, *caseState, error) {
	l, err := e.list(field)
	if err != nil {
		return nil, nil, err
	}
	if !l.kind.IsCases() {
		return nil, nil, fmt.Errorf("%s: %w", field, ErrWrongFieldType)
	}
	if i < 0 || i >= len(l.cases) {
		return nil, nil, ErrIndexOutOfRange
	}
	return l, l.cases[i], nil
}

// slot resolves the entry slice a ref indexes into, for kinds with entry lists.
func (e *Editor) slot(ref Ref) (*[]*entryState, error) {
	l, err := e.list(ref.Field)
	if err != nil {
		return nil, err
	}
	switch l.kind {
	case schema.TypeOutputCases:
		return nil, fmt.Errorf("%s: %w", ref.Field, ErrWrongFieldType)
	case schema.TypeProcessorCases:
		_, c, err := e.caseAt(ref.Field, ref.Case)
		if err != nil {
			return nil, err
		}
		return &c.processors, nil
	}
	return &l.entries, nil
}

// entryAt resolves a ref to a single entry of an enabled list.
func (e *Editor) entryAt(ref Ref) (*entryState, schema.Role, error) {
	l, err := e.list(ref.Field)
	if err != nil {
		return nil, "", err
	}
	es, err := l.entry(ref)
	if err != nil {
		return nil, "", err
	}
	return es, l.kind.ListRole(), nil
}

// entry looks up a ref within the list, whether or not the list is enabled.
func (l *listState) entry(ref Ref) (*entryState, error) {
	var entries []*entryState
	switch l.kind {
	case schema.TypeOutputCases, schema.TypeProcessorCases:
		if ref.Case < 0 || ref.Case >= len(l.cases) {
			return nil, ErrIndexOutOfRange
		}
		c := l.cases[ref.Case]
		if l.kind == schema.TypeOutputCases {
			if c.output == nil {
				c.output = &entryState{}
			}
			return c.output, nil
		}
		entries = c.processors
	default:
		entries = l.entries
	}
	if ref.Index < 0 || ref.Index >= len(entries) {
		return nil, ErrIndexOutOfRange
	}
	return entries[ref.Index], nil
}

// AddEntry appends an unselected entry to a list field, or to the processors of
// a processor case when the field holds cases.
func (e *Editor) AddEntry(ref Ref) error {
	entries, err := e.slot(ref)
	if err != nil {
		return err
	}
	*entries = append(*entries, &entryState{})
	e.changed()
	return nil
}

// RemoveEntry deletes an entry.
func (e *Editor) RemoveEntry(ref Ref) error {
	entries, err := e.slot(ref)
	if err != nil {
		return err
	}
	if ref.Index < 0 || ref.Index >= len(*entries) {
		return ErrIndexOutOfRange
	}
	*entries = append((*entries)[:ref.Index], (*entries)[ref.Index+1:]...)
	e.changed()
	return nil
}

// MoveEntry moves an entry to a new position, shifting the others.
func (e *Editor) MoveEntry(ref Ref, to int) error {
	entries, err := e.slot(ref)
	if err != nil {
		return err
	}
	n := len(*entries)
	if ref.Index < 0 || ref.Index >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	list := *entries
	moved := list[ref.Index]
	list = append(list[:ref.Index], list[ref.Index+1:]...)
	list = append(list[:to], append([]*entryState{moved}, list[to:]...)...)
	*entries = list
	e.changed()
	return nil
}

// SelectComponent chooses the component of an entry. Choosing a different
// component discards the entry's configuration.
func (e *Editor) SelectComponent(ref Ref, componentID string) error {
	es, role, err := e.entryAt(ref)
	if err != nil {
		return err
	}
	if componentID == es.entry.ComponentID {
		return nil
	}
	component := componentID
	if cref, ok := e.bridge.Catalog().Find(role, componentID); ok {
		component = cref.Component
	}
	es.entry = bridge.Entry{ComponentID: componentID, Component: component}
	es.child = nil
	e.changed()
	return nil
}

// SetEntryConfig replaces the configuration text of an entry.
func (e *Editor) SetEntryConfig(ref Ref, text string) error {
	es, _, err := e.entryAt(ref)
	if err != nil {
		return err
	}
	if es.child != nil {
		es.child.Sync(text)
	}
	es.entry.ConfigYAML = text
	e.changed()
	return nil
}

// Child returns the editor for an entry's own configuration. Changes made
// through it flow back into the entry and out through this editor.
func (e *Editor) Child(ref Ref) (*Editor, error) {
	es, role, err := e.entryAt(ref)
	if err != nil {
		return nil, err
	}
	if es.child != nil {
		return es.child, nil
	}
	cs := e.bridge.Schema(role, es.entry)
	if cs == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, es.entry.Component)
	}
	es.child = newEditor(cs, es.entry.ConfigYAML, e.bridge, func(text string) {
		es.entry.ConfigYAML = text
		e.changed()
	})
	return es.child, nil
}

// Descend follows a chain of refs through nested child editors.
func (e *Editor) Descend(refs []Ref) (*Editor, error) {
	cur := e
	for i, ref := range refs {
		next, err := cur.Child(ref)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// AddCase appends an empty case to a case field.
func (e *Editor) AddCase(field string) error {
	l, err := e.list(field)
	if err != nil {
		return err
	}
	if !l.kind.IsCases() {
		return fmt.Errorf("%s: %w", field, ErrWrongFieldType)
	}
	c := &caseState{}
	if l.kind == schema.TypeOutputCases {
		c.output = &entryState{}
	}
	l.cases = append(l.cases, c)
	e.changed()
	return nil
}

// RemoveCase deletes a case.
func (e *Editor) RemoveCase(field string, i int) error {
	l, _, err := e.caseAt(field, i)
	if err != nil {
		return err
	}
	l.cases = append(l.cases[:i], l.cases[i+1:]...)
	e.changed()
	return nil
}

// SetCheck sets the condition of a case.
func (e *Editor) SetCheck(field string, i int, check string) error {
	_, c, err := e.caseAt(field, i)
	if err != nil {
		return err
	}
	c.check = check
	e.changed()
	return nil
}

// SetCaseFlag sets fallthrough on a processor case or continue on an output case.
func (e *Editor) SetCaseFlag(field string, i int, on bool) error {
	_, c, err := e.caseAt(field, i)
	if err != nil {
		return err
	}
	c.flag = on
	e.changed()
	return nil
}
