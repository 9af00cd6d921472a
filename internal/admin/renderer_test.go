// ABOUTME: Tests for the editor fragment renderer and list tables.
// ABOUTME: Checks the htmx wiring each widget emits rather than exact markup.

package admin

import (
	"strings"
	"testing"

	"github.com/2389/airtruct-console/internal/editor"
	"github.com/2389/airtruct-console/internal/schema"
)

func openEditor(t *testing.T, section schema.Section, name, text string) *editor.Editor {
	t.Helper()
	cs, ok := testRegistry.Component(section, name)
	if !ok {
		t.Fatalf("component %s.%s not in catalog", section, name)
	}
	return editor.New(cs, text, editor.Options{Catalog: testRegistry.Catalog()})
}

func TestRenderEditor_Wiring(t *testing.T) {
	ed := openEditor(t, schema.SectionCache, "memory", "default_ttl: 30s\n")
	out := RenderEditor("abc", ed, nil)

	for _, want := range []string{
		`id="editor-abc"`,
		`hx-post="/admin/editor/abc/ops"`,
		`hx-target="#editor-abc"`,
		`hx-swap="outerHTML"`,
		"Raw configuration",
		"default_ttl: 30s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("fragment missing %q", want)
		}
	}
	if strings.Contains(out, "<form") {
		t.Error("editor fragment must not contain a form")
	}
}

func TestRenderEditor_Problem(t *testing.T) {
	ed := openEditor(t, schema.SectionCache, "memory", "")
	out := renderEditor("abc", ed, nil, "bad <value>")
	if !strings.Contains(out, `role="alert"`) || !strings.Contains(out, "bad &lt;value&gt;") {
		t.Error("problem banner missing or unescaped")
	}
}

func TestRenderEditor_DynamicSelectLoadsLazily(t *testing.T) {
	ed := openEditor(t, schema.SectionInput, "shopify", "shop_name: acme\ncache_resource: hot\n")
	out := RenderEditor("abc", ed, nil)
	if !strings.Contains(out, `hx-get="/admin/options/abc/caches?`) {
		t.Fatalf("cache resource select should fetch options: %s", out)
	}
	if !strings.Contains(out, `hx-trigger="load"`) || !strings.Contains(out, "Loading...") {
		t.Error("options should load lazily with a loading placeholder")
	}
}

func TestRenderPreview(t *testing.T) {
	ed := openEditor(t, schema.SectionCache, "memory", "default_ttl: 30s\nshards: 4\n")
	out := RenderPreview(ed.View(true))
	if !strings.Contains(out, "30s") || !strings.Contains(out, "4") {
		t.Errorf("preview missing values: %s", out)
	}
	if strings.Contains(out, "hx-post") {
		t.Error("preview must be read-only")
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Key"}, []Row{{ID: "a/b", Cells: []string{"<a/b>"}}}, []Action{
		{Name: "Delete", Method: "DELETE", Endpoint: "/secrets/{id}", Confirm: true},
	})
	if !strings.Contains(out, `hx-delete="/secrets/a%2Fb"`) {
		t.Errorf("row id not path-escaped: %s", out)
	}
	if !strings.Contains(out, "&lt;a/b&gt;") {
		t.Error("cell not escaped")
	}
	if !strings.Contains(out, "hx-confirm") {
		t.Error("confirm attribute missing")
	}

	empty := RenderTable([]string{"Key"}, nil, nil)
	if !strings.Contains(empty, "Nothing here yet.") {
		t.Error("empty table message missing")
	}
}

func TestRenderEditor_NestedListUsesDottedRef(t *testing.T) {
	ed := openEditor(t, schema.SectionOutput, "broker", "outputs: []\nbatching:\n  processors:\n    - mapping: root = this\n")
	out := RenderEditor("abc", ed, nil)

	for _, want := range []string{
		`data-field="batching.processors"`,
		`&#34;ref&#34;:&#34;batching.processors.0.0&#34;`,
		`&#34;refs&#34;:&#34;batching.processors.0.0&#34;`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("fragment missing %q", want)
		}
	}
}
