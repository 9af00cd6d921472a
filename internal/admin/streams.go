// ABOUTME: Stream pages: list, builder form, status changes, events, and remote validate/try.
// ABOUTME: The builder form is rebuilt from posted node fields; node configs live in editor sessions.

package admin

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/builder"
	"github.com/2389/airtruct-console/internal/editor"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) registerStreamRoutes(r chi.Router) {
	r.Route("/streams", func(r chi.Router) {
		r.Get("/", h.streamList)
		r.Get("/new", h.streamNew)
		r.Post("/", h.streamCreate)
		r.Get("/{id}/edit", h.streamEdit)
		r.Post("/{id}", h.streamUpdate)
		r.Post("/{id}/status/{status}", h.streamStatus)
		r.Delete("/{id}", h.streamDelete)
		r.Get("/{id}/events", h.streamEvents)
	})
	r.Post("/builder/nodes", h.builderNodes)
	r.Post("/builder/validate", h.builderValidate)
	r.Post("/builder/try", h.builderTry)
}

func (h *Handlers) streamList(w http.ResponseWriter, r *http.Request) {
	streams, err := h.backend.ListStreams(r.Context())
	if expired(w, r, err) {
		return
	}
	pageErr := ""
	if err != nil {
		log.Printf("Error listing streams: %v", err)
		pageErr = errorMessage(err)
	}

	rows := make([]Row, 0, len(streams))
	for _, s := range streams {
		id := strconv.FormatInt(s.ID, 10)
		rows = append(rows, Row{
			ID:   id,
			Link: "/streams/" + id + "/edit",
			Cells: []string{
				s.Name,
				s.Status,
				s.InputComponent,
				strconv.Itoa(len(s.Processors)),
				s.OutputComponent,
				formatTime(s.CreatedAt),
			},
		})
	}
	table := RenderTable([]string{"Name", "Status", "Input", "Processors", "Output", "Created"}, rows, []Action{
		{Name: "Edit", Method: "GET", Endpoint: "/streams/{id}/edit"},
		{Name: "Events", Method: "GET", Endpoint: "/streams/{id}/events"},
		{Name: "Pause", Method: "POST", Endpoint: "/streams/{id}/status/" + api.StatusPaused},
		{Name: "Resume", Method: "POST", Endpoint: "/streams/{id}/status/" + api.StatusActive},
		{Name: "Complete", Method: "POST", Endpoint: "/streams/{id}/status/" + api.StatusCompleted, Confirm: true},
		{Name: "Delete", Method: "DELETE", Endpoint: "/streams/{id}", Confirm: true},
	})

	h.page(w, r, "streams-list", "Streams", "streams", map[string]any{
		"Table": template.HTML(table),
		"Count": len(streams),
	}, pageErr)
}

// nodeView is one node card in the builder.
type nodeView struct {
	Node     *builder.Node
	Title    string
	Choices  []schema.ComponentRef
	Session  string
	Editor   template.HTML
	Raw      bool
	Errors   []string
	Index    int
	Last     bool
	Movable  bool
	Selected string
}

// streamForm is the data behind the builder page and its fragments.
type streamForm struct {
	Draft      *builder.Draft
	Statuses   []string
	Buffers    []api.Resource
	BufferID   int64
	Input      *nodeView
	Processors []*nodeView
	Output     *nodeView
	Errors     []string
	Action     string
	Messages   []string
}

// formDraft is a draft rebuilt from a builder post, with each node's editor session.
type formDraft struct {
	draft    *builder.Draft
	sessions map[string]string
}

// draftFromForm rebuilds the draft from posted fields. Node configs come from their
// editor sessions; a changed component selection resets the node's config.
func (h *Handlers) draftFromForm(r *http.Request) *formDraft {
	d := builder.New()
	d.Name = strings.TrimSpace(r.FormValue("name"))
	if status := r.FormValue("status"); status != "" {
		d.Status = status
	}
	if id, err := strconv.ParseInt(r.FormValue("id"), 10, 64); err == nil {
		d.ID = id
	}
	if b, err := strconv.ParseInt(r.FormValue("buffer_id"), 10, 64); err == nil && b > 0 {
		d.BufferID = &b
	}

	fd := &formDraft{draft: d, sessions: map[string]string{}}
	d.Processors = nil
	for _, id := range r.Form["node"] {
		n := &builder.Node{
			ID:          id,
			Label:       strings.TrimSpace(r.FormValue("label." + id)),
			Role:        schema.Role(r.FormValue("role." + id)),
			ComponentID: r.FormValue("selected." + id),
			ConfigYAML:  r.FormValue("config." + id),
		}
		if sid := r.FormValue("session." + id); sid != "" {
			if text, ok := h.sessionText(sid); ok {
				n.ConfigYAML = text
				fd.sessions[id] = sid
			}
		}
		switch n.Role {
		case schema.RoleInput:
			d.Input = n
		case schema.RoleOutput:
			d.Output = n
		default:
			n.Role = schema.RoleProcessor
			d.Processors = append(d.Processors, n)
		}
	}

	for _, n := range d.Nodes() {
		picked, posted := r.Form["component."+n.ID]
		if !posted || picked[0] == n.ComponentID {
			continue
		}
		d.SelectComponent(n.ID, picked[0])
		fd.drop(h, n.ID)
	}
	return fd
}

func (fd *formDraft) drop(h *Handlers, nodeID string) {
	if sid, ok := fd.sessions[nodeID]; ok {
		h.sessions.Close(sid)
		delete(fd.sessions, nodeID)
	}
}

func (fd *formDraft) closeAll(h *Handlers) {
	for id := range fd.sessions {
		fd.drop(h, id)
	}
}

func (h *Handlers) nodeView(fd *formDraft, n *builder.Node, title string) *nodeView {
	nv := &nodeView{Node: n, Title: title, Choices: h.registry.Catalog().ForRole(n.Role), Selected: n.ComponentID}
	if n.ComponentID == "" {
		return nv
	}
	if sid, ok := fd.sessions[n.ID]; ok {
		if sess, ok := h.sessions.Get(sid); ok {
			nv.Session = sid
			nv.Editor = template.HTML(h.renderSession(sess, ""))
			return nv
		}
	}
	ref, ok := h.registry.Catalog().Find(n.Role, n.ComponentID)
	if !ok || ref.Schema == nil {
		nv.Raw = true
		return nv
	}
	sess, err := h.openSession(n.Role.Section(), ref.Component, n.ConfigYAML)
	if err != nil {
		nv.Raw = true
		return nv
	}
	fd.sessions[n.ID] = sess.ID
	nv.Session = sess.ID
	nv.Editor = template.HTML(h.renderSession(sess, ""))
	return nv
}

func (h *Handlers) streamForm(r *http.Request, fd *formDraft, fieldErrs []builder.FieldError) *streamForm {
	d := fd.draft
	f := &streamForm{Draft: d, Statuses: api.Statuses, Action: "/streams", Messages: r.Form["message"]}
	if d.ID != 0 {
		f.Action = fmt.Sprintf("/streams/%d", d.ID)
	}
	if d.BufferID != nil {
		f.BufferID = *d.BufferID
	}
	buffers, err := h.backend.ListResources(r.Context(), api.KindBuffers)
	if err != nil {
		log.Printf("Error listing buffers: %v", err)
	}
	f.Buffers = buffers

	f.Input = h.nodeView(fd, d.Input, "Input")
	for i, n := range d.Processors {
		nv := h.nodeView(fd, n, fmt.Sprintf("Processor %d", i+1))
		nv.Index, nv.Movable, nv.Last = i, true, i == len(d.Processors)-1
		f.Processors = append(f.Processors, nv)
	}
	f.Output = h.nodeView(fd, d.Output, "Output")

	byNode := map[string]*nodeView{f.Input.Node.ID: f.Input, f.Output.Node.ID: f.Output}
	for _, nv := range f.Processors {
		byNode[nv.Node.ID] = nv
	}
	for _, fe := range fieldErrs {
		if nv, ok := byNode[fe.Node]; ok {
			nv.Errors = append(nv.Errors, fe.Message)
		} else {
			f.Errors = append(f.Errors, fe.Message)
		}
	}
	if len(f.Messages) == 0 {
		f.Messages = []string{""}
	}
	return f
}

func (h *Handlers) streamNew(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	fd := &formDraft{draft: builder.New(), sessions: map[string]string{}}
	h.page(w, r, "stream-form", "New Stream", "streams", h.streamForm(r, fd, nil), "")
}

func (h *Handlers) streamEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s, err := h.backend.GetStream(r.Context(), id)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		setFlash(w, errorMessage(err))
		redirect(w, r, "/streams")
		return
	}
	r.ParseForm()
	fd := &formDraft{draft: builder.FromStream(*s, h.registry.Catalog()), sessions: map[string]string{}}
	h.page(w, r, "stream-form", "Edit "+s.Name, "streams", h.streamForm(r, fd, nil), "")
}

func (h *Handlers) streamCreate(w http.ResponseWriter, r *http.Request) {
	h.saveStream(w, r, 0)
}

func (h *Handlers) streamUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.saveStream(w, r, id)
}

func (h *Handlers) saveStream(w http.ResponseWriter, r *http.Request, id int64) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fd := h.draftFromForm(r)
	d := fd.draft
	d.ID = id
	title := "New Stream"
	if id != 0 {
		title = "Edit " + d.Name
	}

	if errs := d.Validate(h.registry); len(errs) > 0 {
		h.pageStatus(w, r, http.StatusUnprocessableEntity, "stream-form", title, "streams", h.streamForm(r, fd, errs), "")
		return
	}

	cat := h.registry.Catalog()
	var err error
	if id == 0 {
		_, err = h.backend.CreateStream(r.Context(), d.Request(cat))
	} else {
		_, err = h.backend.UpdateStream(r.Context(), id, d.Request(cat))
	}
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error saving stream %q: %v", d.Name, err)
		h.page(w, r, "stream-form", title, "streams", h.streamForm(r, fd, nil), errorMessage(err))
		return
	}

	fd.closeAll(h)
	setFlash(w, fmt.Sprintf("Saved stream %s", d.Name))
	redirect(w, r, "/streams")
}

func (h *Handlers) streamStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	status := chi.URLParam(r, "status")
	if !ok || !contains(api.Statuses, status) {
		http.NotFound(w, r)
		return
	}
	s, err := api.UpdateStreamStatus(r.Context(), h.backend, id, status)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error updating stream %d status: %v", id, err)
		setFlash(w, "Status change failed: "+errorMessage(err))
	} else {
		setFlash(w, fmt.Sprintf("Stream %s is now %s", s.Name, s.Status))
	}
	redirect(w, r, "/streams")
}

func (h *Handlers) streamDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	err := h.backend.DeleteStream(r.Context(), id)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error deleting stream %d: %v", id, err)
		setFlash(w, "Delete failed: "+errorMessage(err))
	} else {
		setFlash(w, "Stream deleted")
	}
	redirect(w, r, "/streams")
}

// builderNodes applies a node operation and re-renders the node list.
func (h *Handlers) builderNodes(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fd := h.draftFromForm(r)
	d := fd.draft
	node := r.FormValue("node_id")

	var err error
	switch r.FormValue("op") {
	case "add":
		d.AddProcessor()
	case "remove":
		if err = d.RemoveProcessor(node); err == nil {
			fd.drop(h, node)
		}
	case "move":
		to, convErr := strconv.Atoi(r.FormValue("to"))
		if convErr != nil {
			http.Error(w, "invalid position", http.StatusBadRequest)
			return
		}
		err = d.MoveProcessor(node, to)
	case "select":
		// Selection changes are applied while the draft is rebuilt.
	default:
		http.Error(w, "unknown builder operation", http.StatusBadRequest)
		return
	}

	f := h.streamForm(r, fd, nil)
	if err != nil {
		f.Errors = append(f.Errors, err.Error())
	}
	w.Header().Set("Content-Type", "text/html")
	if err := renderPartial(w, "builder", f); err != nil {
		log.Printf("Failed to render builder: %v", err)
	}
}

// resultData is the validate/try result panel.
type resultData struct {
	Title   string
	OK      bool
	Message string
	Outputs []api.TryOutput
}

func (h *Handlers) renderResult(w http.ResponseWriter, res resultData) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderPartial(w, "result", res); err != nil {
		log.Printf("Failed to render result: %v", err)
	}
}

func (h *Handlers) builderValidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d := h.draftFromForm(r).draft
	res, err := d.RemoteValidate(r.Context(), h.backend, h.registry.Catalog())
	if expired(w, r, err) {
		return
	}
	switch {
	case err != nil:
		h.renderResult(w, resultData{Title: "Validation failed", Message: errorMessage(err)})
	case res.Valid:
		h.renderResult(w, resultData{Title: "Validation", OK: true, Message: "Stream configuration is valid"})
	default:
		h.renderResult(w, resultData{Title: "Validation failed", Message: res.Error})
	}
}

func (h *Handlers) builderTry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d := h.draftFromForm(r).draft
	res, err := d.Try(r.Context(), h.backend, h.registry.Catalog(), r.Form["message"])
	if expired(w, r, err) {
		return
	}
	switch {
	case err != nil:
		h.renderResult(w, resultData{Title: "Try failed", Message: errorMessage(err)})
	case res.Error != "":
		h.renderResult(w, resultData{Title: "Try failed", Message: res.Error, Outputs: res.Outputs})
	default:
		h.renderResult(w, resultData{Title: "Try", OK: true, Outputs: res.Outputs})
	}
}

// nodePreview is a read-only node summary on the events page.
type nodePreview struct {
	Title     string
	Label     string
	Component string
	Preview   template.HTML
}

func (h *Handlers) preview(role schema.Role, title, label, component, config string) nodePreview {
	p := nodePreview{Title: title, Label: label, Component: component}
	ref := h.registry.Catalog().Resolve(role, component)
	if ref.Schema == nil {
		p.Preview = template.HTML(`<code class="text-xs">` + template.HTMLEscapeString(editor.Truncate(config)) + `</code>`)
		return p
	}
	ed := editor.New(ref.Schema, config, editor.Options{Catalog: h.registry.Catalog()})
	p.Preview = template.HTML(RenderPreview(ed.View(true)))
	return p
}

const eventsPerPage = 25

// parseLocal reads a datetime-local input value. Blank or malformed input means no bound.
func parseLocal(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (h *Handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	query := api.EventQuery{Limit: eventsPerPage, Offset: offset, Start: parseLocal(q.Get("start")), End: parseLocal(q.Get("end"))}

	s, err := h.backend.GetStream(r.Context(), id)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		setFlash(w, errorMessage(err))
		redirect(w, r, "/streams")
		return
	}
	page, err := h.backend.StreamEvents(r.Context(), id, query)
	if expired(w, r, err) {
		return
	}
	pageErr := ""
	if err != nil {
		log.Printf("Error loading events for stream %d: %v", id, err)
		pageErr = errorMessage(err)
		page = &api.EventPage{}
	}

	data := map[string]any{
		"Stream": s,
		"Events": page.Data,
		"Total":  page.Total,
		"Offset": offset,
		"Prev":   max(offset-eventsPerPage, 0),
		"Next":   offset + eventsPerPage,
		"More":   offset+eventsPerPage < page.Total,
		"Start":  q.Get("start"),
		"End":    q.Get("end"),
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html")
		if err := renderPartial(w, "events", data); err != nil {
			log.Printf("Failed to render events: %v", err)
		}
		return
	}

	nodes := []nodePreview{h.preview(schema.RoleInput, "Input", s.InputLabel, s.InputComponent, s.InputConfig)}
	for i, p := range s.Processors {
		nodes = append(nodes, h.preview(schema.RoleProcessor, fmt.Sprintf("Processor %d", i+1), p.Label, p.Component, p.Config))
	}
	nodes = append(nodes, h.preview(schema.RoleOutput, "Output", s.OutputLabel, s.OutputComponent, s.OutputConfig))
	data["Nodes"] = nodes

	h.page(w, r, "stream-events", s.Name+" events", "streams", data, pageErr)
}
