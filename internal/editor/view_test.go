// ABOUTME: Tests for the widget tree produced by Editor.View.
// ABOUTME: Checks widget kinds, preview filtering, truncation, and nested entries.

package editor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/2389/airtruct-console/internal/schema"
)

func fieldNamed(t *testing.T, fields []Field, name string) Field {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %q not in view", name)
	return Field{}
}

func TestView_WidgetPerFieldType(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "topics: [orders]\n")
	v := ed.View(false)

	if v.Component != "kafka" || v.Title != "Kafka" || v.Flat {
		t.Errorf("view header = %+v", v)
	}
	tests := map[string]schema.FieldType{
		"addresses":         schema.TypeArray,
		"consumer_group":    schema.TypeInput,
		"start_from_oldest": schema.TypeBool,
		"checkpoint_limit":  schema.TypeNumber,
		"sasl":              schema.TypeObject,
	}
	for name, want := range tests {
		if got := fieldNamed(t, v.Fields, name).Widget.Kind(); got != want {
			t.Errorf("%s widget = %s, want %s", name, got, want)
		}
	}

	sasl := fieldNamed(t, v.Fields, "sasl").Widget.(ObjectWidget)
	mech := fieldNamed(t, sasl.Fields, "mechanism")
	if mech.Path != "sasl.mechanism" {
		t.Errorf("nested path = %q", mech.Path)
	}
	if sel, ok := mech.Widget.(SelectWidget); !ok || len(sel.Options) != 4 {
		t.Errorf("mechanism widget = %#v", mech.Widget)
	}
}

func TestView_PreviewHidesDisabled(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "topics: [orders]\n")

	full := ed.View(false)
	preview := ed.View(true)
	if len(preview.Fields) != 1 || preview.Fields[0].Name != "topics" {
		t.Errorf("preview fields = %+v", preview.Fields)
	}
	if len(full.Fields) <= len(preview.Fields) {
		t.Errorf("full view has %d fields", len(full.Fields))
	}
}

func TestView_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 45)
	ed, _ := open(t, schema.SectionPipeline, "mapping", long)

	w := ed.View(true).Fields[0].Widget.(CodeWidget)
	if w.Value != long {
		t.Errorf("value = %q", w.Value)
	}
	if want := strings.Repeat("x", PreviewLimit) + "..."; w.Preview != want {
		t.Errorf("preview = %q, want %q", w.Preview, want)
	}
	if got := Truncate("short"); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	if got := Truncate(strings.Repeat("é", 31)); got != strings.Repeat("é", 30)+"..." {
		t.Errorf("Truncate counts bytes instead of characters: %q", got)
	}
}

func TestView_ListEntriesRecurse(t *testing.T) {
	ed, _ := open(t, schema.SectionPipeline, "catch", "- json_schema:\n    schema: a\n- bloblang_v9: {}\n")

	v := ed.View(false)
	list, ok := v.Fields[0].Widget.(ListWidget)
	if !ok {
		t.Fatalf("catch widget = %T", v.Fields[0].Widget)
	}
	if list.Kind() != schema.TypeProcessorList || len(list.Choices) == 0 {
		t.Errorf("list kind = %s, %d choices", list.Kind(), len(list.Choices))
	}
	if len(list.Entries) != 2 {
		t.Fatalf("entries = %d", len(list.Entries))
	}
	if list.Entries[0].Title != "JSON Schema" || list.Entries[0].Child == nil {
		t.Errorf("entry 0 = %+v", list.Entries[0])
	}
	if list.Entries[1].Child != nil {
		t.Error("unknown component rendered a child editor")
	}

	preview := ed.View(true).Fields[0].Widget.(ListWidget)
	if preview.Choices != nil {
		t.Error("preview offers component choices")
	}
}

func TestView_Cases(t *testing.T) {
	ed, _ := open(t, schema.SectionOutput, "switch", "cases:\n  - check: this.urgent\n    output:\n      sync_response: {}\n    continue: true\n")

	w := fieldNamed(t, ed.View(false).Fields, "cases").Widget.(CasesWidget)
	if w.Kind() != schema.TypeOutputCases {
		t.Errorf("kind = %s", w.Kind())
	}
	if len(w.Cases) != 1 || w.Cases[0].Check != "this.urgent" || !w.Cases[0].Flag || w.Cases[0].FlagName != "continue" {
		t.Errorf("cases = %+v", w.Cases)
	}
	if len(w.Cases[0].Entries) != 1 || w.Cases[0].Entries[0].ComponentID != "sync_response" {
		t.Errorf("case entries = %+v", w.Cases[0].Entries)
	}
}

func TestView_JSONCarriesKind(t *testing.T) {
	ed, _ := open(t, schema.SectionRateLimit, "coordinator", "")
	data, err := json.Marshal(ed.View(false))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"kind":"number"`) || !strings.Contains(string(data), `"kind":"select"`) {
		t.Errorf("JSON = %s", data)
	}
}
