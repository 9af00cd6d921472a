// ABOUTME: Converts composite component lists between editor entries and config values.
// ABOUTME: Handles processor/input/output lists and processor/output switch cases in both directions.

package bridge

import (
	"log"
	"strings"

	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
)

// Entry is one selected component inside a list field.
type Entry struct {
	ComponentID string `json:"componentId"`
	Component   string `json:"component"`
	ConfigYAML  string `json:"configYaml"`
}

// ProcessorCase is one branch of a processor switch.
type ProcessorCase struct {
	Check       string  `json:"check"`
	Processors  []Entry `json:"processors"`
	Fallthrough bool    `json:"fallthrough,omitempty"`
}

// OutputCase is one branch of an output switch.
type OutputCase struct {
	Check    string `json:"check"`
	Output   Entry  `json:"output"`
	Continue bool   `json:"continue,omitempty"`
}

// Bridge resolves components against a catalog while converting.
type Bridge struct {
	catalog schema.Catalog
}

// New creates a bridge over the given catalog.
func New(catalog schema.Catalog) *Bridge {
	return &Bridge{catalog: catalog}
}

// Catalog returns the catalog the bridge resolves against.
func (b *Bridge) Catalog() schema.Catalog {
	return b.catalog
}

// Schema returns the component schema an entry refers to, if known.
func (b *Bridge) Schema(role schema.Role, e Entry) *schema.ComponentSchema {
	if ref, ok := b.catalog.Find(role, e.ComponentID); ok {
		return ref.Schema
	}
	return nil
}

// resolvable reports whether an entry names a catalog component, or is a
// tolerant reference to a component the catalog does not know.
func (b *Bridge) resolvable(role schema.Role, e Entry) bool {
	if e.ComponentID == "" || e.Component == "" {
		return false
	}
	if _, ok := b.catalog.Find(role, e.ComponentID); ok {
		return true
	}
	return e.ComponentID == e.Component
}

// entryValue returns the serialized {component: config} value of a complete entry.
func (b *Bridge) entryValue(role schema.Role, e Entry) (*configtext.Map, bool) {
	if !b.resolvable(role, e) {
		return nil, false
	}
	cs := b.Schema(role, e)

	if field, ok := cs.FlatField(); ok {
		if field.Schema.Type.IsList() {
			items := configtext.AsSlice(parseNested(e.Component, e.ConfigYAML))
			if len(items) == 0 {
				return nil, false
			}
			return configtext.MapOf(e.Component, items), true
		}
		text := strings.TrimSpace(e.ConfigYAML)
		if text == "" {
			return nil, false
		}
		return configtext.MapOf(e.Component, text), true
	}

	parsed := parseNested(e.Component, e.ConfigYAML)
	switch {
	case cs.Empty():
		m, ok := parsed.(*configtext.Map)
		if !ok {
			m = configtext.NewMap()
		}
		return configtext.MapOf(e.Component, m), true
	case cs == nil:
		if isEmpty(parsed) {
			return nil, false
		}
		return configtext.MapOf(e.Component, parsed), true
	}
	m, ok := parsed.(*configtext.Map)
	if !ok || m.Len() == 0 {
		return nil, false
	}
	return configtext.MapOf(e.Component, m), true
}

func parseNested(component, text string) any {
	v, err := configtext.Parse(text)
	if err != nil {
		log.Printf("Failed to parse %s config, treating it as empty: %v", component, err)
		return configtext.NewMap()
	}
	return v
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *configtext.Map:
		return t.Len() == 0
	case []any:
		return len(t) == 0
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func (b *Bridge) list(role schema.Role, entries []Entry) []any {
	out := []any{}
	for _, e := range entries {
		if v, ok := b.entryValue(role, e); ok {
			out = append(out, v)
		}
	}
	return out
}

// ProcessorList converts processor entries to a config list, dropping incomplete entries.
func (b *Bridge) ProcessorList(entries []Entry) []any {
	return b.list(schema.RoleProcessor, entries)
}

// InputList converts input entries to a config list.
func (b *Bridge) InputList(entries []Entry) []any {
	return b.list(schema.RoleInput, entries)
}

// OutputList converts output entries to a config list.
func (b *Bridge) OutputList(entries []Entry) []any {
	return b.list(schema.RoleOutput, entries)
}

// ProcessorCases converts switch cases; a case without any complete processor is dropped.
func (b *Bridge) ProcessorCases(cases []ProcessorCase) []any {
	out := []any{}
	for _, c := range cases {
		procs := b.ProcessorList(c.Processors)
		if len(procs) == 0 {
			continue
		}
		item := configtext.MapOf("check", c.Check, "processors", procs)
		if c.Fallthrough {
			item.Set("fallthrough", true)
		}
		out = append(out, item)
	}
	return out
}

// OutputCases converts output switch cases; a case without a complete output is dropped.
func (b *Bridge) OutputCases(cases []OutputCase) []any {
	out := []any{}
	for _, c := range cases {
		output, ok := b.entryValue(schema.RoleOutput, c.Output)
		if !ok {
			continue
		}
		item := configtext.MapOf("check", c.Check, "output", output)
		if c.Continue {
			item.Set("continue", true)
		}
		out = append(out, item)
	}
	return out
}

// ToList converts a config list back to entries for the given role. Items that
// are not single-component mappings are skipped.
func (b *Bridge) ToList(role schema.Role, v any) []Entry {
	var out []Entry
	for i, item := range configtext.AsSlice(v) {
		m, ok := item.(*configtext.Map)
		if !ok || m.Len() == 0 {
			log.Printf("Skipping %s list item %d: not a component mapping", role, i)
			continue
		}
		component := m.Keys()[0]
		nested, _ := m.Get(component)
		out = append(out, b.toEntry(role, component, nested))
	}
	return out
}

func (b *Bridge) toEntry(role schema.Role, component string, nested any) Entry {
	ref := b.catalog.Resolve(role, component)
	e := Entry{ComponentID: ref.ID, Component: component}

	if field, ok := ref.Schema.FlatField(); ok && !field.Schema.Type.IsList() {
		if s, isString := nested.(string); isString {
			e.ConfigYAML = s
			return e
		}
		e.ConfigYAML = configtext.AsString(nested)
		return e
	}
	text, err := configtext.Dump(nested)
	if err != nil {
		log.Printf("Failed to encode %s config: %v", component, err)
	}
	e.ConfigYAML = text
	return e
}

// ToProcessorList converts a config list to processor entries.
func (b *Bridge) ToProcessorList(v any) []Entry {
	return b.ToList(schema.RoleProcessor, v)
}

// ToInputList converts a config list to input entries.
func (b *Bridge) ToInputList(v any) []Entry {
	return b.ToList(schema.RoleInput, v)
}

// ToOutputList converts a config list to output entries.
func (b *Bridge) ToOutputList(v any) []Entry {
	return b.ToList(schema.RoleOutput, v)
}

// ToProcessorCases converts a config list to processor switch cases.
func (b *Bridge) ToProcessorCases(v any) []ProcessorCase {
	var out []ProcessorCase
	for _, item := range configtext.AsSlice(v) {
		m, ok := item.(*configtext.Map)
		if !ok {
			continue
		}
		check, _ := m.Get("check")
		procs, _ := m.Get("processors")
		fall, _ := m.Get("fallthrough")
		out = append(out, ProcessorCase{
			Check:       configtext.AsString(check),
			Processors:  b.ToProcessorList(procs),
			Fallthrough: configtext.AsBool(fall),
		})
	}
	return out
}

// ToOutputCases converts a config list to output switch cases.
func (b *Bridge) ToOutputCases(v any) []OutputCase {
	var out []OutputCase
	for _, item := range configtext.AsSlice(v) {
		m, ok := item.(*configtext.Map)
		if !ok {
			continue
		}
		check, _ := m.Get("check")
		cont, _ := m.Get("continue")
		c := OutputCase{Check: configtext.AsString(check), Continue: configtext.AsBool(cont)}
		if output, ok := m.Get("output"); ok {
			if entries := b.ToOutputList([]any{output}); len(entries) > 0 {
				c.Output = entries[0]
			}
		}
		out = append(out, c)
	}
	return out
}
