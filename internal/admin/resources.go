// ABOUTME: Resource pages for buffers, caches, rate limits and component configs.
// ABOUTME: One generic list/create/edit flow per kind, with the component config in a live editor.

package admin

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) registerResourceRoutes(r chi.Router) {
	r.Route("/resources/{kind}", func(r chi.Router) {
		r.Get("/", h.resourceList)
		r.Get("/new", h.resourceNew)
		r.Post("/", h.resourceCreate)
		r.Get("/{id}/edit", h.resourceEdit)
		r.Post("/{id}", h.resourceUpdate)
		r.Delete("/{id}", h.resourceDelete)
	})
}

func kindParam(r *http.Request) (api.Kind, bool) {
	kind := api.Kind(chi.URLParam(r, "kind"))
	return kind, kind.Valid()
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// resourceForm is the data behind the create and edit pages.
type resourceForm struct {
	Kind       api.Kind
	ID         int64
	Label      string
	Section    schema.Section
	Sections   []schema.Section
	Component  string
	Components []*schema.ComponentSchema
	Session    string
	Editor     template.HTML
	// RawConfig is edited as text when the component has no schema.
	RawConfig string
	Problems  []string
	Action    string
}

func (f *resourceForm) title() string {
	if f.ID != 0 {
		return "Edit " + f.Label
	}
	return "New " + strings.TrimSuffix(f.Kind.Title(), "s")
}

func (h *Handlers) resourceList(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	items, err := h.backend.ListResources(r.Context(), kind)
	if expired(w, r, err) {
		return
	}
	pageErr := ""
	if err != nil {
		log.Printf("Error listing %s: %v", kind, err)
		pageErr = errorMessage(err)
	}

	columns := []string{"Label", "Component", "Created"}
	if kind == api.KindComponentConfigs {
		columns = []string{"Label", "Section", "Component", "Created"}
	}
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		id := strconv.FormatInt(it.ID, 10)
		cells := []string{it.Label, it.Component, formatTime(it.CreatedAt)}
		if kind == api.KindComponentConfigs {
			cells = []string{it.Label, string(it.Section), it.Component, formatTime(it.CreatedAt)}
		}
		rows = append(rows, Row{ID: id, Link: fmt.Sprintf("/resources/%s/%s/edit", kind, id), Cells: cells})
	}
	table := RenderTable(columns, rows, []Action{
		{Name: "Edit", Method: "GET", Endpoint: "/resources/" + string(kind) + "/{id}/edit"},
		{Name: "Delete", Method: "DELETE", Endpoint: "/resources/" + string(kind) + "/{id}", Confirm: true},
	})

	h.page(w, r, "resources-list", kind.Title(), string(kind), map[string]any{
		"Kind":  kind,
		"Table": template.HTML(table),
	}, pageErr)
}

// sectionFor picks the catalog section of a form. Component configs choose theirs.
func sectionFor(kind api.Kind, requested string) schema.Section {
	if sec := kind.Section(); sec != "" {
		return sec
	}
	if sec := schema.Section(requested); sec.Valid() {
		return sec
	}
	return schema.SectionInput
}

func (h *Handlers) newResourceForm(kind api.Kind, section schema.Section) *resourceForm {
	f := &resourceForm{
		Kind:       kind,
		Section:    section,
		Components: h.registry.Schemas(section),
		Action:     "/resources/" + string(kind),
	}
	if kind == api.KindComponentConfigs {
		f.Sections = schema.Sections
	}
	return f
}

// attachEditor opens a live editor for the form's component, falling back to raw text.
func (h *Handlers) attachEditor(f *resourceForm, config string) {
	if f.Component == "" {
		return
	}
	sess, err := h.openSession(f.Section, f.Component, config)
	if err != nil {
		f.RawConfig = config
		f.Problems = append(f.Problems, fmt.Sprintf("Component %q has no schema; its configuration is edited as text.", f.Component))
		return
	}
	f.Session = sess.ID
	f.Editor = template.HTML(h.renderSession(sess, ""))
}

func (h *Handlers) resourceNew(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f := h.newResourceForm(kind, sectionFor(kind, r.URL.Query().Get("section")))
	f.Label = r.URL.Query().Get("label")
	f.Component = r.URL.Query().Get("component")
	h.attachEditor(f, h.defaultConfig(f.Section, f.Component))
	h.page(w, r, "resource-form", f.title(), string(kind), f, "")
}

// defaultConfig is the starting text for a new resource: every field the schema gives a default.
func (h *Handlers) defaultConfig(section schema.Section, component string) string {
	cs, ok := h.registry.Component(section, component)
	if !ok || cs.Flat {
		return ""
	}
	text, err := configtext.Dump(schema.DefaultConfig(cs))
	if err != nil {
		log.Printf("Warning: default config for %s %s: %v", section, component, err)
		return ""
	}
	return text
}

func (h *Handlers) resourceEdit(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	id, idOK := idParam(r)
	if !ok || !idOK {
		http.NotFound(w, r)
		return
	}
	res, err := h.backend.GetResource(r.Context(), kind, id)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		setFlash(w, errorMessage(err))
		redirect(w, r, "/resources/"+string(kind))
		return
	}

	f := h.newResourceForm(kind, sectionFor(kind, string(res.Section)))
	f.ID = res.ID
	f.Label = res.Label
	f.Component = res.Component
	f.Action = fmt.Sprintf("/resources/%s/%d", kind, res.ID)
	h.attachEditor(f, res.Config)
	h.page(w, r, "resource-form", f.title(), string(kind), f, "")
}

// submittedResource rebuilds the form from a POST and returns the config to save.
func (h *Handlers) submittedResource(r *http.Request, kind api.Kind) (*resourceForm, string) {
	f := h.newResourceForm(kind, sectionFor(kind, r.FormValue("section")))
	f.Label = strings.TrimSpace(r.FormValue("label"))
	f.Component = r.FormValue("component")
	f.Session = r.FormValue("session")

	if f.Session == "" {
		f.RawConfig = r.FormValue("config")
		return f, f.RawConfig
	}
	text, ok := h.sessionText(f.Session)
	if !ok {
		f.Problems = append(f.Problems, "The editor expired before saving and its changes were lost. Review the configuration and save again.")
		f.Session = ""
		h.attachEditor(f, r.FormValue("config"))
		return f, ""
	}
	sess, _ := h.sessions.Get(f.Session)
	f.Editor = template.HTML(h.renderSession(sess, ""))
	return f, text
}

// checkResource applies local validation. Saving is blocked while it reports problems.
func (h *Handlers) checkResource(f *resourceForm, config string) {
	if f.Label == "" {
		f.Problems = append(f.Problems, "Label is required")
	}
	if f.Component == "" {
		f.Problems = append(f.Problems, "Component is required")
		return
	}
	if cs, ok := h.registry.Component(f.Section, f.Component); ok {
		for _, p := range h.registry.ValidateConfig(cs, config) {
			f.Problems = append(f.Problems, p.String())
		}
	}
}

func (h *Handlers) resourceCreate(w http.ResponseWriter, r *http.Request) {
	h.saveResource(w, r, 0)
}

func (h *Handlers) resourceUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.saveResource(w, r, id)
}

func (h *Handlers) saveResource(w http.ResponseWriter, r *http.Request, id int64) {
	kind, ok := kindParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, config := h.submittedResource(r, kind)
	f.ID = id
	if id != 0 {
		f.Action = fmt.Sprintf("/resources/%s/%d", kind, id)
	}
	if len(f.Problems) == 0 {
		h.checkResource(f, config)
	}
	if len(f.Problems) > 0 {
		h.pageStatus(w, r, http.StatusUnprocessableEntity, "resource-form", f.title(), string(kind), f, "")
		return
	}

	req := api.ResourceRequest{Label: f.Label, Component: f.Component, Config: config}
	if kind == api.KindComponentConfigs {
		req.Section = f.Section
	}
	var err error
	if id == 0 {
		_, err = h.backend.CreateResource(r.Context(), kind, req)
	} else {
		_, err = h.backend.UpdateResource(r.Context(), kind, id, req)
	}
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error saving %s %q: %v", kind, f.Label, err)
		h.page(w, r, "resource-form", f.title(), string(kind), f, errorMessage(err))
		return
	}

	if f.Session != "" {
		h.sessions.Close(f.Session)
	}
	setFlash(w, fmt.Sprintf("Saved %s", f.Label))
	redirect(w, r, "/resources/"+string(kind))
}

func (h *Handlers) resourceDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	id, idOK := idParam(r)
	if !ok || !idOK {
		http.NotFound(w, r)
		return
	}
	err := h.backend.DeleteResource(r.Context(), kind, id)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error deleting %s %d: %v", kind, id, err)
		setFlash(w, "Delete failed: "+errorMessage(err))
	} else {
		setFlash(w, "Deleted")
	}
	redirect(w, r, "/resources/"+string(kind))
}
