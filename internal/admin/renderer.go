// ABOUTME: Schema-driven HTML renderer for editor sessions and list tables.
// ABOUTME: Generates Tailwind-styled htmx markup from editor views; every control posts one editor op.

package admin

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/2389/airtruct-console/internal/editor"
	"github.com/2389/airtruct-console/internal/schema"
)

const (
	inputClass  = "mt-1 block w-full rounded border-gray-300 shadow-sm px-3 py-2 border text-sm"
	codeClass   = "mt-1 block w-full rounded border-gray-300 shadow-sm px-3 py-2 border font-mono text-xs"
	buttonClass = "px-2 py-1 text-xs rounded bg-gray-100 text-gray-700 hover:bg-gray-200"
	removeClass = "px-2 py-1 text-xs rounded text-red-600 hover:text-red-900"
)

// editorID is the DOM id of a session's editor fragment.
func editorID(sessionID string) string {
	return "editor-" + sessionID
}

type editorRenderer struct {
	sb      strings.Builder
	session string
	options *editor.OptionSet
}

// RenderEditor renders a live editor as a self-replacing htmx fragment. It must
// be called with exclusive access to the editor.
func RenderEditor(sessionID string, ed *editor.Editor, options *editor.OptionSet) string {
	return renderEditor(sessionID, ed, options, "")
}

// renderEditor renders the fragment with an optional error from the last op.
func renderEditor(sessionID string, ed *editor.Editor, options *editor.OptionSet, problem string) string {
	r := &editorRenderer{session: sessionID, options: options}
	v := ed.View(false)

	r.sb.WriteString(fmt.Sprintf(`<div id="%s" class="space-y-4" data-component="%s">`,
		editorID(sessionID), html.EscapeString(v.Component)))
	if problem != "" {
		r.sb.WriteString(fmt.Sprintf(`<div class="rounded bg-red-50 px-3 py-2 text-sm text-red-700" role="alert">%s</div>`, html.EscapeString(problem)))
	}
	if len(v.Fields) == 0 {
		r.sb.WriteString(`<p class="text-sm text-gray-500">This component has no configuration.</p>`)
	}
	r.view(v, nil)

	r.sb.WriteString(`<details class="border-t pt-3"><summary class="text-xs text-gray-500 cursor-pointer">Raw configuration</summary>`)
	r.sb.WriteString(fmt.Sprintf(`<textarea name="value" rows="8" class="%s" %s hx-trigger="change">%s</textarea>`,
		codeClass, r.opAttrs(map[string]string{"op": "sync"}), html.EscapeString(ed.Text())))
	r.sb.WriteString(`</details>`)
	r.sb.WriteString(`</div>`)
	return r.sb.String()
}

// RenderPreview renders a read-only summary of a view: enabled fields only, long values truncated.
func RenderPreview(v editor.View) string {
	var sb strings.Builder
	sb.WriteString(`<dl class="divide-y divide-gray-100 text-sm">`)
	previewFields(&sb, v.Fields)
	sb.WriteString(`</dl>`)
	return sb.String()
}

func previewFields(sb *strings.Builder, fields []editor.Field) {
	for _, f := range fields {
		sb.WriteString(`<div class="py-1 grid grid-cols-3 gap-2">`)
		sb.WriteString(fmt.Sprintf(`<dt class="text-gray-500">%s</dt><dd class="col-span-2 text-gray-900">`, html.EscapeString(f.Title)))
		switch w := f.Widget.(type) {
		case editor.TextWidget:
			sb.WriteString(html.EscapeString(w.Preview))
		case editor.CodeWidget:
			sb.WriteString(`<code class="text-xs">` + html.EscapeString(w.Preview) + `</code>`)
		case editor.NumberWidget:
			sb.WriteString(html.EscapeString(w.Value))
		case editor.BoolWidget:
			sb.WriteString(yesNo(w.Value))
		case editor.SelectWidget:
			sb.WriteString(html.EscapeString(w.Value))
		case editor.DynamicSelectWidget:
			sb.WriteString(html.EscapeString(w.Value))
		case editor.KeyValueWidget:
			for _, p := range w.Pairs {
				sb.WriteString(fmt.Sprintf(`<div>%s: %s</div>`, html.EscapeString(p.Key), html.EscapeString(editor.Truncate(p.Value))))
			}
		case editor.ArrayWidget:
			sb.WriteString(html.EscapeString(strings.Join(w.Items, ", ")))
		case editor.ObjectWidget:
			sb.WriteString(`<dl class="pl-2 border-l">`)
			previewFields(sb, w.Fields)
			sb.WriteString(`</dl>`)
		case editor.ListWidget:
			previewEntries(sb, w.Entries)
		case editor.CasesWidget:
			for _, c := range w.Cases {
				sb.WriteString(fmt.Sprintf(`<div class="text-xs text-gray-500">when %s</div>`, html.EscapeString(orDefault(c.Check, "always"))))
				previewEntries(sb, c.Entries)
			}
		}
		sb.WriteString(`</dd></div>`)
	}
}

func previewEntries(sb *strings.Builder, entries []editor.EntryView) {
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf(`<div class="font-medium">%s</div>`, html.EscapeString(orDefault(e.Title, e.Component))))
		if e.Child != nil {
			sb.WriteString(`<dl class="pl-2 border-l">`)
			previewFields(sb, e.Child.Fields)
			sb.WriteString(`</dl>`)
		}
	}
}

// opAttrs returns the htmx attributes that post an editor op and swap the fragment.
func (r *editorRenderer) opAttrs(vals map[string]string) string {
	data, _ := json.Marshal(vals)
	return fmt.Sprintf(`hx-post="/admin/editor/%s/ops" hx-target="#%s" hx-swap="outerHTML" hx-vals="%s"`,
		html.EscapeString(r.session), editorID(r.session), html.EscapeString(string(data)))
}

func (r *editorRenderer) vals(refs []editor.Ref, op, path string) map[string]string {
	m := map[string]string{"op": op}
	if path != "" {
		m["path"] = path
	}
	if len(refs) > 0 {
		m["refs"] = encodeRefs(refs)
	}
	return m
}

func (r *editorRenderer) button(label, class string, vals map[string]string) {
	r.sb.WriteString(fmt.Sprintf(`<button type="button" class="%s" %s>%s</button>`, class, r.opAttrs(vals), html.EscapeString(label)))
}

func (r *editorRenderer) view(v editor.View, refs []editor.Ref) {
	for _, f := range v.Fields {
		r.field(f, refs, v.Flat)
	}
}

// field renders one field. Scalar fields of flat components are set through
// the flat op since they have no key of their own in the text.
func (r *editorRenderer) field(f editor.Field, refs []editor.Ref, flat bool) {
	r.sb.WriteString(fmt.Sprintf(`<div class="space-y-1" data-field="%s">`, html.EscapeString(f.Path)))
	r.sb.WriteString(`<div class="flex items-center gap-2">`)
	if !f.Required {
		op, checked := "enable", ""
		if f.Enabled {
			op, checked = "disable", "checked"
		}
		r.sb.WriteString(fmt.Sprintf(`<input type="checkbox" %s class="rounded border-gray-300" %s>`, checked, r.opAttrs(r.vals(refs, op, f.Path))))
	}
	r.sb.WriteString(fmt.Sprintf(`<label class="text-sm font-medium text-gray-700">%s`, html.EscapeString(f.Title)))
	if f.Required {
		r.sb.WriteString(` <span class="text-red-500">*</span>`)
	}
	r.sb.WriteString(`</label></div>`)
	if f.Description != "" {
		r.sb.WriteString(fmt.Sprintf(`<p class="text-xs text-gray-500">%s</p>`, html.EscapeString(f.Description)))
	}
	if f.Enabled {
		r.widget(f, refs, flat)
	} else if w, ok := f.Widget.(editor.ListWidget); ok && len(w.Entries) > 0 {
		r.sb.WriteString(`<div class="text-sm text-gray-400">`)
		previewEntries(&r.sb, w.Entries)
		r.sb.WriteString(`</div>`)
	}
	r.sb.WriteString(`</div>`)
}

func (r *editorRenderer) widget(f editor.Field, refs []editor.Ref, flat bool) {
	set := r.vals(refs, "set", f.Path)
	if flat {
		set = r.vals(refs, "flat", "")
	}
	switch w := f.Widget.(type) {
	case editor.TextWidget:
		r.sb.WriteString(fmt.Sprintf(`<input type="text" name="value" value="%s" class="%s" %s hx-trigger="change">`,
			html.EscapeString(w.Value), inputClass, r.opAttrs(set)))
	case editor.CodeWidget:
		r.sb.WriteString(fmt.Sprintf(`<textarea name="value" rows="6" class="%s" %s hx-trigger="change">%s</textarea>`,
			codeClass, r.opAttrs(set), html.EscapeString(w.Value)))
	case editor.NumberWidget:
		minAttr := ""
		if w.Min != nil {
			minAttr = fmt.Sprintf(` min="%g"`, *w.Min)
		}
		r.sb.WriteString(fmt.Sprintf(`<input type="number" name="value" value="%s"%s class="%s" %s hx-trigger="change">`,
			html.EscapeString(w.Value), minAttr, inputClass, r.opAttrs(set)))
	case editor.BoolWidget:
		set["value"] = fmt.Sprint(!w.Value)
		checked := ""
		if w.Value {
			checked = "checked"
		}
		r.sb.WriteString(fmt.Sprintf(`<input type="checkbox" %s class="rounded border-gray-300" %s>`, checked, r.opAttrs(set)))
	case editor.SelectWidget:
		r.sb.WriteString(fmt.Sprintf(`<select name="value" class="%s" %s hx-trigger="change">`, inputClass, r.opAttrs(set)))
		r.selectOptions(w.Options, w.Value, "Select...")
		r.sb.WriteString(`</select>`)
	case editor.DynamicSelectWidget:
		r.dynamicSelect(f.Path, refs, w)
	case editor.KeyValueWidget:
		r.keyValue(f.Path, refs, w)
	case editor.ArrayWidget:
		r.array(f.Path, refs, w)
	case editor.ObjectWidget:
		r.sb.WriteString(`<div class="pl-4 border-l-2 border-gray-100 space-y-3">`)
		for _, sub := range w.Fields {
			r.field(sub, refs, false)
		}
		r.sb.WriteString(`</div>`)
	case editor.ListWidget:
		r.list(f.Path, refs, w)
	case editor.CasesWidget:
		r.cases(f.Path, refs, w)
	}
}

func (r *editorRenderer) selectOptions(options []string, current, placeholder string) {
	if current == "" || !contains(options, current) {
		sel := ""
		if current == "" {
			sel = " selected"
		}
		r.sb.WriteString(fmt.Sprintf(`<option value=""%s>%s</option>`, sel, html.EscapeString(placeholder)))
		if current != "" {
			r.sb.WriteString(fmt.Sprintf(`<option value="%s" selected>%s</option>`, html.EscapeString(current), html.EscapeString(current)))
		}
	}
	for _, o := range options {
		sel := ""
		if o == current {
			sel = " selected"
		}
		r.sb.WriteString(fmt.Sprintf(`<option value="%s"%s>%s</option>`, html.EscapeString(o), sel, html.EscapeString(o)))
	}
}

func (r *editorRenderer) dynamicSelect(path string, refs []editor.Ref, w editor.DynamicSelectWidget) {
	var st editor.OptionState
	if r.options != nil {
		st = r.options.State(w.Source)
	}
	if !st.Loaded {
		r.sb.WriteString(fmt.Sprintf(`<div hx-get="/admin/options/%s/%s?path=%s&refs=%s&value=%s" hx-trigger="load" hx-swap="outerHTML">`,
			html.EscapeString(r.session), html.EscapeString(string(w.Source)),
			queryEscape(path), queryEscape(encodeRefs(refs)), queryEscape(w.Value)))
		r.sb.WriteString(fmt.Sprintf(`<select disabled class="%s"><option>Loading...</option></select></div>`, inputClass))
		return
	}
	r.sb.WriteString(fmt.Sprintf(`<select name="value" class="%s" %s hx-trigger="change">`, inputClass, r.opAttrs(r.vals(refs, "set", path))))
	if len(st.Options) == 0 {
		r.sb.WriteString(`<option value="">No options available</option>`)
		if w.Value != "" {
			r.sb.WriteString(fmt.Sprintf(`<option value="%s" selected>%s</option>`, html.EscapeString(w.Value), html.EscapeString(w.Value)))
		}
	} else {
		r.selectOptions(st.Options, w.Value, "Select...")
	}
	r.sb.WriteString(`</select>`)
}

func (r *editorRenderer) keyValue(path string, refs []editor.Ref, w editor.KeyValueWidget) {
	r.sb.WriteString(`<div class="space-y-2">`)
	for _, p := range w.Pairs {
		rename := r.vals(refs, "pair_rename", path)
		rename["key"] = p.Key
		set := r.vals(refs, "pair_set", path)
		set["key"] = p.Key
		remove := r.vals(refs, "pair_remove", path)
		remove["key"] = p.Key

		r.sb.WriteString(`<div class="flex gap-2 items-center">`)
		r.sb.WriteString(fmt.Sprintf(`<input type="text" name="new_key" value="%s" placeholder="key" class="%s" %s hx-trigger="change">`,
			html.EscapeString(p.Key), inputClass, r.opAttrs(rename)))
		r.sb.WriteString(fmt.Sprintf(`<input type="text" name="value" value="%s" placeholder="value" class="%s" %s hx-trigger="change">`,
			html.EscapeString(p.Value), inputClass, r.opAttrs(set)))
		r.button("Remove", removeClass, remove)
		r.sb.WriteString(`</div>`)
	}
	r.button("Add pair", buttonClass, r.vals(refs, "pair_add", path))
	r.sb.WriteString(`</div>`)
}

func (r *editorRenderer) array(path string, refs []editor.Ref, w editor.ArrayWidget) {
	r.sb.WriteString(`<div class="space-y-2">`)
	for i, item := range w.Items {
		set := r.vals(refs, "item_set", path)
		set["index"] = fmt.Sprint(i)
		remove := r.vals(refs, "item_remove", path)
		remove["index"] = fmt.Sprint(i)

		r.sb.WriteString(`<div class="flex gap-2 items-center">`)
		r.sb.WriteString(fmt.Sprintf(`<input type="text" name="value" value="%s" class="%s" %s hx-trigger="change">`,
			html.EscapeString(item), inputClass, r.opAttrs(set)))
		r.button("Remove", removeClass, remove)
		r.sb.WriteString(`</div>`)
	}
	r.button("Add item", buttonClass, r.vals(refs, "item_append", path))
	r.sb.WriteString(`</div>`)
}

func (r *editorRenderer) entryVals(refs []editor.Ref, op string, ref editor.Ref) map[string]string {
	m := r.vals(refs, op, "")
	m["ref"] = encodeRef(ref)
	return m
}

func (r *editorRenderer) list(field string, refs []editor.Ref, w editor.ListWidget) {
	r.sb.WriteString(`<div class="space-y-3">`)
	for i, e := range w.Entries {
		r.entry(refs, e, w.Choices, i, len(w.Entries), true)
	}
	r.button("Add "+string(w.Role), buttonClass, r.entryVals(refs, "entry_add", editor.Ref{Field: field}))
	r.sb.WriteString(`</div>`)
}

func (r *editorRenderer) cases(field string, refs []editor.Ref, w editor.CasesWidget) {
	r.sb.WriteString(`<div class="space-y-3">`)
	for _, c := range w.Cases {
		ref := editor.Ref{Field: field, Case: c.Index}
		flag := r.entryVals(refs, "case_flag", ref)
		flag["on"] = fmt.Sprint(!c.Flag)
		checked := ""
		if c.Flag {
			checked = "checked"
		}

		r.sb.WriteString(`<div class="rounded border border-gray-200 p-3 space-y-2">`)
		r.sb.WriteString(`<div class="flex gap-2 items-center">`)
		r.sb.WriteString(fmt.Sprintf(`<input type="text" name="value" value="%s" placeholder="check (empty matches everything)" class="%s font-mono" %s hx-trigger="change">`,
			html.EscapeString(c.Check), inputClass, r.opAttrs(r.entryVals(refs, "case_check", ref))))
		r.sb.WriteString(fmt.Sprintf(`<label class="text-xs text-gray-600 flex items-center gap-1"><input type="checkbox" %s %s>%s</label>`,
			checked, r.opAttrs(flag), html.EscapeString(c.FlagName)))
		r.button("Remove case", removeClass, r.entryVals(refs, "case_remove", ref))
		r.sb.WriteString(`</div>`)

		if w.Kind() == schema.TypeOutputCases {
			for _, e := range c.Entries {
				r.entry(refs, e, w.Choices, 0, 1, false)
			}
		} else {
			for i, e := range c.Entries {
				r.entry(refs, e, w.Choices, i, len(c.Entries), true)
			}
			r.button("Add processor", buttonClass, r.entryVals(refs, "entry_add", ref))
		}
		r.sb.WriteString(`</div>`)
	}
	r.button("Add case", buttonClass, r.entryVals(refs, "case_add", editor.Ref{Field: field}))
	r.sb.WriteString(`</div>`)
}

func (r *editorRenderer) entry(refs []editor.Ref, e editor.EntryView, choices []editor.Choice, i, n int, movable bool) {
	r.sb.WriteString(`<div class="rounded border border-gray-200 bg-gray-50 p-3 space-y-2">`)
	r.sb.WriteString(`<div class="flex gap-2 items-center">`)
	r.sb.WriteString(fmt.Sprintf(`<select name="component" class="%s" %s hx-trigger="change">`, inputClass, r.opAttrs(r.entryVals(refs, "entry_select", e.Ref))))
	if e.ComponentID == "" {
		r.sb.WriteString(`<option value="" selected>Select a component...</option>`)
	}
	known := false
	for _, c := range choices {
		sel := ""
		if c.ID == e.ComponentID {
			sel, known = " selected", true
		}
		r.sb.WriteString(fmt.Sprintf(`<option value="%s"%s>%s</option>`, html.EscapeString(c.ID), sel, html.EscapeString(c.Name)))
	}
	if e.ComponentID != "" && !known {
		r.sb.WriteString(fmt.Sprintf(`<option value="%s" selected>%s</option>`, html.EscapeString(e.ComponentID), html.EscapeString(e.Component)))
	}
	r.sb.WriteString(`</select>`)
	if movable {
		if i > 0 {
			up := r.entryVals(refs, "entry_move", e.Ref)
			up["to"] = fmt.Sprint(i - 1)
			r.button("Up", buttonClass, up)
		}
		if i < n-1 {
			down := r.entryVals(refs, "entry_move", e.Ref)
			down["to"] = fmt.Sprint(i + 1)
			r.button("Down", buttonClass, down)
		}
		r.button("Remove", removeClass, r.entryVals(refs, "entry_remove", e.Ref))
	}
	r.sb.WriteString(`</div>`)

	switch {
	case e.Child != nil:
		child := append(append([]editor.Ref{}, refs...), e.Ref)
		r.sb.WriteString(`<div class="pl-2 space-y-3">`)
		r.view(*e.Child, child)
		r.sb.WriteString(`</div>`)
	case e.ComponentID != "":
		r.sb.WriteString(fmt.Sprintf(`<p class="text-xs text-gray-500">No schema for %s; its configuration is kept unchanged.</p>`, html.EscapeString(e.Component)))
	}
	r.sb.WriteString(`</div>`)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func queryEscape(s string) string {
	return html.EscapeString(url.QueryEscape(s))
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Action is a per-row table action. Endpoint may contain {id}.
type Action struct {
	Name     string
	Method   string
	Endpoint string
	Confirm  bool
}

// Row is one table row. Link, when set, makes the first cell a link.
type Row struct {
	ID    string
	Link  string
	Cells []string
}

// RenderTable generates a table list view with optional row actions.
func RenderTable(columns []string, rows []Row, actions []Action) string {
	var sb strings.Builder

	sb.WriteString(`<table class="min-w-full divide-y divide-gray-200">`)
	sb.WriteString(`<thead class="bg-gray-50"><tr>`)
	for _, col := range columns {
		sb.WriteString(fmt.Sprintf(`<th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">%s</th>`,
			html.EscapeString(col)))
	}
	if len(actions) > 0 {
		sb.WriteString(`<th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">Actions</th>`)
	}
	sb.WriteString(`</tr></thead>`)
	sb.WriteString(`<tbody class="bg-white divide-y divide-gray-200">`)

	if len(rows) == 0 {
		sb.WriteString(fmt.Sprintf(`<tr><td colspan="%d" class="px-6 py-8 text-center text-sm text-gray-500">Nothing here yet.</td></tr>`,
			len(columns)+1))
	}
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf(`<tr id="row-%s">`, html.EscapeString(row.ID)))
		for i, cell := range row.Cells {
			text := html.EscapeString(cell)
			if i == 0 && row.Link != "" {
				text = fmt.Sprintf(`<a href="%s" class="text-blue-600 hover:text-blue-900">%s</a>`, html.EscapeString(row.Link), text)
			}
			sb.WriteString(`<td class="px-6 py-4 whitespace-nowrap text-sm text-gray-900">` + text + `</td>`)
		}
		if len(actions) > 0 {
			sb.WriteString(`<td class="px-6 py-4 whitespace-nowrap text-right text-sm space-x-3">`)
			sb.WriteString(RenderActions(actions, row.ID))
			sb.WriteString(`</td>`)
		}
		sb.WriteString(`</tr>`)
	}

	sb.WriteString(`</tbody></table>`)
	return sb.String()
}

// RenderActions generates action links and htmx buttons for one row.
func RenderActions(actions []Action, id string) string {
	var sb strings.Builder

	for i, action := range actions {
		if i > 0 {
			sb.WriteString(" ")
		}
		endpoint := strings.ReplaceAll(action.Endpoint, "{id}", url.PathEscape(id))

		if action.Method == "GET" {
			sb.WriteString(fmt.Sprintf(`<a href="%s" class="text-blue-600 hover:text-blue-900">%s</a>`,
				html.EscapeString(endpoint), html.EscapeString(action.Name)))
			continue
		}

		confirmAttr := ""
		if action.Confirm {
			confirmAttr = fmt.Sprintf(` hx-confirm="%s this item?"`, html.EscapeString(action.Name))
		}
		cssClass := "text-blue-600 hover:text-blue-900"
		if action.Method == "DELETE" {
			cssClass = "text-red-600 hover:text-red-900"
		}
		sb.WriteString(fmt.Sprintf(`<button %s="%s"%s class="%s">%s</button>`,
			getHTMXAttribute(action.Method), html.EscapeString(endpoint), confirmAttr, cssClass, html.EscapeString(action.Name)))
	}

	return sb.String()
}

func getHTMXAttribute(method string) string {
	switch method {
	case "DELETE":
		return "hx-delete"
	case "PUT":
		return "hx-put"
	case "PATCH":
		return "hx-patch"
	default:
		return "hx-post"
	}
}
