// ABOUTME: Live editor endpoints: htmx fragment ops, lazy option loading and the JSON editor API.
// ABOUTME: Each op runs under the session lock and is counted in the editor metrics.

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/2389/airtruct-console/internal/editor"
	apierrors "github.com/2389/airtruct-console/internal/errors"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/go-chi/chi/v5"
)

// openSession creates a live editor for a component seeded with its current config.
func (h *Handlers) openSession(section schema.Section, component, text string) (*editor.Session, error) {
	cs, ok := h.registry.Component(section, component)
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", section, component, editor.ErrUnknownComponent)
	}
	ed := editor.New(cs, text, editor.Options{Catalog: h.registry.Catalog()})
	options := editor.NewOptionSet(context.Background(), h.options)
	return h.sessions.Create(string(section), ed, options), nil
}

// sessionText returns the current config text of a session, or "" when it is gone.
func (h *Handlers) sessionText(id string) (string, bool) {
	sess, ok := h.sessions.Get(id)
	if !ok {
		return "", false
	}
	var text string
	sess.Do(func(ed *editor.Editor) error {
		text = ed.Text()
		return nil
	})
	return text, true
}

func (h *Handlers) renderSession(sess *editor.Session, problem string) string {
	var out string
	sess.Do(func(ed *editor.Editor) error {
		out = renderEditor(sess.ID, ed, sess.Options, problem)
		return nil
	})
	return out
}

func (h *Handlers) editorOp(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "session"))
	if !ok {
		http.Error(w, "This editor has expired. Reload the page to continue.", http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op, err := opFromForm(r.FormValue)
	if err == nil {
		err = sess.Do(op.apply)
	}
	h.metrics.RecordEditorOp(op.Op, err)

	problem := ""
	if err != nil {
		log.Printf("Editor op %s failed: %v", op.Op, err)
		problem = err.Error()
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, h.renderSession(sess, problem))
}

func (h *Handlers) editorOptions(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "session"))
	if !ok {
		http.Error(w, "This editor has expired. Reload the page to continue.", http.StatusNotFound)
		return
	}
	source := schema.DataSource(chi.URLParam(r, "source"))
	if !source.Valid() {
		http.NotFound(w, r)
		return
	}
	refs, err := parseRefs(r.URL.Query().Get("refs"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess.Options.Fetch(r.Context(), source)

	rd := &editorRenderer{session: sess.ID, options: sess.Options}
	rd.dynamicSelect(r.URL.Query().Get("path"), refs, editor.DynamicSelectWidget{
		Value:  r.URL.Query().Get("value"),
		Source: source,
	})
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, rd.sb.String())
}

// sessionSnapshot is the JSON form of a live editor.
type sessionSnapshot struct {
	ID        string      `json:"id"`
	Section   string      `json:"section"`
	Component string      `json:"component"`
	Text      string      `json:"text"`
	View      editor.View `json:"view"`
}

func snapshot(sess *editor.Session) sessionSnapshot {
	snap := sessionSnapshot{ID: sess.ID, Section: sess.Section}
	sess.Do(func(ed *editor.Editor) error {
		snap.Component = ed.Schema().Name
		snap.Text = ed.Text()
		snap.View = ed.View(false)
		return nil
	})
	return snap
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

type createSessionRequest struct {
	Section   schema.Section `json:"section"`
	Component string         `json:"component"`
	Config    string         `json:"config"`
}

func (h *Handlers) apiCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Request body must be JSON")
		return
	}
	if !req.Section.Valid() {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest,
			fmt.Sprintf("unknown section %q", req.Section), "section")
		return
	}
	if req.Component == "" {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrMissingField, "component is required", "component")
		return
	}
	sess, err := h.openSession(req.Section, req.Component, req.Config)
	if err != nil {
		apierrors.WriteErrorWithField(w, http.StatusNotFound, apierrors.ErrNotFound, err.Error(), "component")
		return
	}
	writeJSON(w, http.StatusCreated, snapshot(sess))
}

func (h *Handlers) apiGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "editor session not found")
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handlers) apiCloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(chi.URLParam(r, "id")) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "editor session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// opsRequest accepts either a single op or a batch under "ops".
type opsRequest struct {
	Op
	Ops []Op `json:"ops"`
}

func (h *Handlers) apiSessionOps(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "editor session not found")
		return
	}
	var req opsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Request body must be JSON")
		return
	}
	ops := req.Ops
	if len(ops) == 0 {
		ops = []Op{req.Op}
	}

	for i, op := range ops {
		err := sess.Do(op.apply)
		h.metrics.RecordEditorOp(op.Op, err)
		if err == nil {
			continue
		}
		if errors.Is(err, errUnknownOp) || errors.Is(err, errMalformedOp) {
			apierrors.WriteErrorWithDetails(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, err.Error(), fmt.Sprintf("operation %d", i))
			return
		}
		status, code := apierrors.Classify(err)
		apierrors.WriteErrorWithDetails(w, status, code, err.Error(), fmt.Sprintf("operation %d", i))
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handlers) apiSessionOptions(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "editor session not found")
		return
	}
	source := schema.DataSource(chi.URLParam(r, "source"))
	if !source.Valid() {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, fmt.Sprintf("unknown data source %q", source))
		return
	}
	writeJSON(w, http.StatusOK, sess.Options.Fetch(r.Context(), source))
}

func (h *Handlers) apiCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Catalog())
}

func (h *Handlers) apiCatalogSection(w http.ResponseWriter, r *http.Request) {
	section := schema.Section(chi.URLParam(r, "section"))
	if !section.Valid() {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, fmt.Sprintf("unknown section %q", section))
		return
	}
	writeJSON(w, http.StatusOK, h.registry.Schemas(section))
}

// componentDetail is a component schema plus the config a new instance starts with.
type componentDetail struct {
	*schema.ComponentSchema
	Defaults string `json:"defaults"`
}

func (h *Handlers) apiCatalogComponent(w http.ResponseWriter, r *http.Request) {
	section := schema.Section(chi.URLParam(r, "section"))
	cs, ok := h.registry.Component(section, chi.URLParam(r, "component"))
	if !ok {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "component not found")
		return
	}
	defaults := editor.New(cs, "", editor.Options{Catalog: h.registry.Catalog()}).Text()
	writeJSON(w, http.StatusOK, componentDetail{ComponentSchema: cs, Defaults: defaults})
}
