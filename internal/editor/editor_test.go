// ABOUTME: Tests for editor initialization, field operations, and text emission.
// ABOUTME: Covers round trips, required and disabled fields, flat components, and nested objects.

package editor

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
)

var registry = schema.MustBuiltin()

func component(t *testing.T, section schema.Section, name string) *schema.ComponentSchema {
	t.Helper()
	cs, ok := registry.Component(section, name)
	if !ok {
		t.Fatalf("component %s.%s not in catalog", section, name)
	}
	return cs
}

// recorder collects emitted texts.
type recorder struct {
	texts []string
}

func (r *recorder) onChange(text string) {
	r.texts = append(r.texts, text)
}

func (r *recorder) last() string {
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

func open(t *testing.T, section schema.Section, name, text string) (*Editor, *recorder) {
	t.Helper()
	rec := &recorder{}
	ed := New(component(t, section, name), text, Options{Catalog: registry.Catalog(), OnChange: rec.onChange})
	return ed, rec
}

func keysOf(t *testing.T, text string) []string {
	t.Helper()
	m, err := configtext.ParseMap(text)
	if err != nil {
		t.Fatalf("ParseMap(%q) error = %v", text, err)
	}
	return m.Keys()
}

func TestKafkaInput_RoundTripWithoutEdits(t *testing.T) {
	in := "addresses: [\"broker:9092\"]\ntopics: [\"orders\"]\nstart_from_oldest: true"
	ed, rec := open(t, schema.SectionInput, "kafka", in)

	out := ed.Text()
	if !configtext.EqualText(in, out) {
		t.Errorf("Text() = %q, want same meaning as %q", out, in)
	}
	want := []string{"addresses", "topics", "start_from_oldest"}
	if got := keysOf(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if len(rec.texts) != 0 {
		t.Errorf("loading emitted %d changes, want none", len(rec.texts))
	}
}

func TestRequiredField_AlwaysEnabled(t *testing.T) {
	ed, _ := open(t, schema.SectionRateLimit, "coordinator", "")

	for _, name := range []string{"count", "interval"} {
		st, ok := ed.State(name)
		if !ok || !st.Enabled {
			t.Errorf("State(%q) = %+v, want enabled", name, st)
		}
		err := ed.SetEnabled(Path{name}, false)
		if !errors.Is(err, ErrRequiredField) {
			t.Errorf("SetEnabled(%q, false) error = %v, want ErrRequiredField", name, err)
		}
	}
	if st, _ := ed.State("burst"); st.Enabled {
		t.Error("optional burst enabled without a value")
	}
	if got := keysOf(t, ed.Text()); !reflect.DeepEqual(got, []string{"count", "interval"}) {
		t.Errorf("keys = %v", got)
	}
}

func TestDisabledField_OmittedButKept(t *testing.T) {
	ed, rec := open(t, schema.SectionInput, "kafka", "topics: [orders]\nclient_id: worker-1\n")

	if err := ed.SetEnabled(Path{"client_id"}, false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if strings.Contains(ed.Text(), "client_id") {
		t.Errorf("disabled field serialized: %q", ed.Text())
	}
	if rec.last() != ed.Text() {
		t.Errorf("emitted %q, want %q", rec.last(), ed.Text())
	}
	if st, _ := ed.State("client_id"); st.Value != "worker-1" {
		t.Errorf("disabled value = %#v, want kept", st.Value)
	}

	if err := ed.SetEnabled(Path{"client_id"}, true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if !strings.Contains(ed.Text(), "client_id: worker-1") {
		t.Errorf("re-enabled text = %q", ed.Text())
	}
}

func TestDisabledField_RejectsEdits(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "")
	if err := ed.SetValue(Path{"client_id"}, "x"); !errors.Is(err, ErrFieldDisabled) {
		t.Errorf("SetValue() on disabled field error = %v, want ErrFieldDisabled", err)
	}
	if err := ed.SetValue(Path{"nope"}, "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("SetValue() on unknown field error = %v, want ErrUnknownField", err)
	}
}

func TestFlatComponent_Passthrough(t *testing.T) {
	ed, rec := open(t, schema.SectionPipeline, "mapping", "root = this\n  # not: [yaml")

	if got := ed.Text(); got != "root = this\n  # not: [yaml" {
		t.Errorf("Text() = %q, want original text untouched", got)
	}
	if err := ed.SetFlat("root.id = uuid_v4()"); err != nil {
		t.Fatalf("SetFlat() error = %v", err)
	}
	if len(rec.texts) != 1 || rec.texts[0] != "root.id = uuid_v4()" {
		t.Errorf("emitted %q, want the bare mapping", rec.texts)
	}
	if err := ed.SetValue(Path{"mapping"}, "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("SetValue() on flat component error = %v", err)
	}
}

func TestSetFlat_NotFlat(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "")
	if err := ed.SetFlat("x"); !errors.Is(err, ErrNotFlat) {
		t.Errorf("SetFlat() error = %v, want ErrNotFlat", err)
	}
}

func TestEmit_OncePerSemanticChange(t *testing.T) {
	ed, rec := open(t, schema.SectionRateLimit, "coordinator", "count: 10\ninterval: 1s\n")

	if err := ed.SetValue(Path{"count"}, "25"); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if err := ed.SetValue(Path{"count"}, 25); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if len(rec.texts) != 1 {
		t.Fatalf("emitted %d times, want 1: %q", len(rec.texts), rec.texts)
	}
	if !strings.Contains(rec.texts[0], "count: 25") {
		t.Errorf("emitted %q", rec.texts[0])
	}
}

func TestNumberCoercion(t *testing.T) {
	ed, _ := open(t, schema.SectionRateLimit, "coordinator", "")
	tests := []struct {
		in   any
		want any
	}{
		{"12", 12},
		{"1.5", 1.5},
		{"abc", 0},
		{"", 0},
		{true, 1},
	}
	for _, tt := range tests {
		if err := ed.SetValue(Path{"count"}, tt.in); err != nil {
			t.Fatalf("SetValue(%#v) error = %v", tt.in, err)
		}
		if st, _ := ed.State("count"); st.Value != tt.want {
			t.Errorf("SetValue(%#v) stored %#v, want %#v", tt.in, st.Value, tt.want)
		}
	}
}

func TestBool_SerializesAsLiteral(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "")
	if err := ed.SetEnabled(Path{"start_from_oldest"}, true); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetValue(Path{"start_from_oldest"}, "true"); err != nil {
		t.Fatal(err)
	}
	if got := ed.Text(); got != "start_from_oldest: true\n" {
		t.Errorf("Text() = %q", got)
	}
}

func TestSync_Guarded(t *testing.T) {
	ed, rec := open(t, schema.SectionInput, "kafka", "topics: [orders]\n")

	if ed.Sync("topics:\n  - orders\n") {
		t.Error("Sync() re-initialized on a formatting-only change")
	}

	if err := ed.SetEnabled(Path{"client_id"}, true); err != nil {
		t.Fatal(err)
	}
	if ed.Sync(rec.last()) {
		t.Error("Sync() re-initialized on the editor's own output")
	}
	if st, _ := ed.State("client_id"); !st.Enabled {
		t.Error("own-output sync lost state")
	}

	if !ed.Sync("topics: [payments]\n") {
		t.Error("Sync() ignored a semantic change")
	}
	if st, _ := ed.State("client_id"); st.Enabled {
		t.Error("Sync() kept stale state after re-initializing")
	}
	if n := len(rec.texts); n != 1 {
		t.Errorf("Sync emitted changes: %q", rec.texts)
	}
}

func TestInvalidText_StartsEmpty(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "topics: [unclosed")
	if got := ed.Text(); got != "" {
		t.Errorf("Text() = %q, want empty config", got)
	}
}

func TestUnknownKeys_Preserved(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "legacy_flag: on\ntopics: [a]\n")
	if err := ed.SetEnabled(Path{"client_id"}, true); err != nil {
		t.Fatal(err)
	}
	want := []string{"topics", "client_id", "legacy_flag"}
	if got := keysOf(t, ed.Text()); !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestKeyValue_RenamePreservesValueAndOrder(t *testing.T) {
	in := "url: http://svc\nheaders:\n  Accept: application/json\n  Authorization: Bearer t\n  X-Trace: \"1\"\n"
	ed, rec := open(t, schema.SectionOutput, "http_client", in)

	if err := ed.RenamePair(Path{"headers"}, "Authorization", "X-Auth"); err != nil {
		t.Fatalf("RenamePair() error = %v", err)
	}
	st, _ := ed.State("headers")
	m := st.Value.(*configtext.Map)
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"Accept", "X-Auth", "X-Trace"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := m.Get("X-Auth"); v != "Bearer t" {
		t.Errorf("X-Auth = %#v", v)
	}
	if len(rec.texts) != 1 || strings.Contains(rec.texts[0], "Authorization") {
		t.Errorf("emitted %q", rec.texts)
	}
}

func TestKeyValue_BlankKeyPruned(t *testing.T) {
	ed, rec := open(t, schema.SectionOutput, "http_client", "url: http://svc\nheaders: {}\n")

	if err := ed.AddPair(Path{"headers"}); err != nil {
		t.Fatal(err)
	}
	if len(rec.texts) != 0 {
		t.Errorf("adding a blank pair emitted %q", rec.texts)
	}
	if err := ed.RenamePair(Path{"headers"}, "", "Accept"); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetPair(Path{"headers"}, "Accept", "text/plain"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ed.Text(), "Accept: text/plain") {
		t.Errorf("Text() = %q", ed.Text())
	}
	if err := ed.RemovePair(Path{"headers"}, "Accept"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(ed.Text(), "Accept") {
		t.Errorf("Text() = %q after remove", ed.Text())
	}
}

func TestArray_Operations(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "topics: [a, b]\n")
	p := Path{"topics"}

	if err := ed.AppendItem(p); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetItem(p, 2, "c"); err != nil {
		t.Fatal(err)
	}
	if err := ed.RemoveItem(p, 0); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetItem(p, 5, "x"); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("SetItem(out of range) error = %v", err)
	}
	st, _ := ed.State("topics")
	if !reflect.DeepEqual(st.Value, []any{"b", "c"}) {
		t.Errorf("topics = %#v", st.Value)
	}
}

func TestObject_ToggleRestoresValues(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "topics: [a]\n")

	if err := ed.SetEnabled(Path{"sasl"}, true); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetValue(Path{"sasl", "mechanism"}, "PLAIN"); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetValue(Path{"sasl", "user"}, "svc"); err != nil {
		t.Fatal(err)
	}
	before := ed.Text()

	if err := ed.SetEnabled(Path{"sasl"}, false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(ed.Text(), "sasl") {
		t.Errorf("disabled object serialized: %q", ed.Text())
	}
	if err := ed.SetEnabled(Path{"sasl"}, true); err != nil {
		t.Fatal(err)
	}
	if got := ed.Text(); got != before {
		t.Errorf("after toggle Text() = %q, want %q", got, before)
	}
}

func TestNestedProperty_ToggleRestoresValue(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "sasl:\n  mechanism: PLAIN\n  user: svc\n")
	p := Path{"sasl", "user"}

	if !ed.Enabled(p) {
		t.Fatal("present nested property reported disabled")
	}
	if err := ed.SetEnabled(p, false); err != nil {
		t.Fatal(err)
	}
	if ed.Enabled(p) || strings.Contains(ed.Text(), "user") {
		t.Errorf("nested property still present: %q", ed.Text())
	}
	if err := ed.SetEnabled(p, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ed.Text(), "user: svc") {
		t.Errorf("nested value not restored: %q", ed.Text())
	}

	fresh := Path{"sasl", "password"}
	if err := ed.SetEnabled(fresh, true); err != nil {
		t.Fatal(err)
	}
	if v, ok := configtext.GetIn(mustState(t, ed, "sasl").Value, "password"); !ok || v != "" {
		t.Errorf("fresh nested property = %#v, want default", v)
	}
}

func mustState(t *testing.T, ed *Editor, name string) FieldState {
	t.Helper()
	st, ok := ed.State(name)
	if !ok {
		t.Fatalf("no state for %q", name)
	}
	return st
}

func TestWrongFieldType(t *testing.T) {
	ed, _ := open(t, schema.SectionInput, "kafka", "topics: [a]\n")
	if err := ed.AddPair(Path{"topics"}); !errors.Is(err, ErrWrongFieldType) {
		t.Errorf("AddPair(array) error = %v", err)
	}
	if err := ed.AppendItem(Path{"sasl", "user"}); err == nil {
		t.Error("AppendItem(input) succeeded")
	}
}

func TestParsePath(t *testing.T) {
	if got := ParsePath("sasl.user"); !reflect.DeepEqual(got, Path{"sasl", "user"}) {
		t.Errorf("ParsePath() = %v", got)
	}
	if got := ParsePath(""); got != nil {
		t.Errorf("ParsePath(\"\") = %v", got)
	}
	if got := (Path{"a", "b"}).String(); got != "a.b" {
		t.Errorf("String() = %q", got)
	}
}
