// ABOUTME: File pages: list, create, edit and delete stored files, plus the worker list.
// ABOUTME: File content is edited as text; the backend transports it base64-encoded.

package admin

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) registerFileRoutes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Get("/", h.filesList)
		r.Get("/new", h.fileNew)
		r.Post("/", h.fileCreate)
		r.Get("/{id}/edit", h.fileEdit)
		r.Post("/{id}", h.fileUpdate)
		r.Delete("/{id}", h.fileDelete)
	})
}

type fileForm struct {
	ID      int64
	Key     string
	Content string
	Action  string
}

func (h *Handlers) filesList(w http.ResponseWriter, r *http.Request) {
	files, err := h.backend.ListFiles(r.Context())
	if expired(w, r, err) {
		return
	}
	pageErr := ""
	if err != nil {
		log.Printf("Error listing files: %v", err)
		pageErr = errorMessage(err)
	}
	rows := make([]Row, 0, len(files))
	for _, f := range files {
		id := strconv.FormatInt(f.ID, 10)
		rows = append(rows, Row{
			ID:    id,
			Link:  "/files/" + id + "/edit",
			Cells: []string{f.Key, strconv.FormatInt(f.Size, 10), formatTime(f.CreatedAt), formatTime(f.UpdatedAt)},
		})
	}
	table := RenderTable([]string{"Key", "Size", "Created", "Updated"}, rows, []Action{
		{Name: "Edit", Method: "GET", Endpoint: "/files/{id}/edit"},
		{Name: "Delete", Method: "DELETE", Endpoint: "/files/{id}", Confirm: true},
	})
	h.page(w, r, "files-list", "Files", "files", map[string]any{"Table": template.HTML(table)}, pageErr)
}

func (h *Handlers) fileNew(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "file-form", "New File", "files", fileForm{Action: "/files"}, "")
}

func (h *Handlers) fileEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := h.backend.GetFile(r.Context(), id)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		setFlash(w, errorMessage(err))
		redirect(w, r, "/files")
		return
	}
	h.page(w, r, "file-form", "Edit "+f.Key, "files", fileForm{
		ID:      f.ID,
		Key:     f.Key,
		Content: string(f.Content),
		Action:  fmt.Sprintf("/files/%d", f.ID),
	}, "")
}

func (h *Handlers) fileCreate(w http.ResponseWriter, r *http.Request) {
	h.saveFile(w, r, 0)
}

func (h *Handlers) fileUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.saveFile(w, r, id)
}

func (h *Handlers) saveFile(w http.ResponseWriter, r *http.Request, id int64) {
	form := fileForm{
		ID:      id,
		Key:     strings.TrimSpace(r.FormValue("key")),
		Content: r.FormValue("content"),
		Action:  "/files",
	}
	title := "New File"
	if id != 0 {
		form.Action = fmt.Sprintf("/files/%d", id)
		title = "Edit " + form.Key
	}
	if form.Key == "" {
		h.pageStatus(w, r, http.StatusUnprocessableEntity, "file-form", title, "files", form, "Key is required")
		return
	}

	req := api.FileRequest{Key: form.Key, Content: []byte(form.Content)}
	var err error
	if id == 0 {
		_, err = h.backend.CreateFile(r.Context(), req)
	} else {
		_, err = h.backend.UpdateFile(r.Context(), id, req)
	}
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error saving file %q: %v", form.Key, err)
		h.page(w, r, "file-form", title, "files", form, errorMessage(err))
		return
	}
	setFlash(w, fmt.Sprintf("Saved file %s", form.Key))
	redirect(w, r, "/files")
}

func (h *Handlers) fileDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	err := h.backend.DeleteFile(r.Context(), id)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error deleting file %d: %v", id, err)
		setFlash(w, "Delete failed: "+errorMessage(err))
	} else {
		setFlash(w, "File deleted")
	}
	redirect(w, r, "/files")
}

func (h *Handlers) workersList(w http.ResponseWriter, r *http.Request) {
	workers, err := h.backend.ListWorkers(r.Context())
	if expired(w, r, err) {
		return
	}
	pageErr := ""
	if err != nil {
		log.Printf("Error listing workers: %v", err)
		pageErr = errorMessage(err)
	}
	rows := make([]Row, 0, len(workers))
	for _, wk := range workers {
		rows = append(rows, Row{ID: wk.ID, Cells: []string{
			wk.ID, wk.Status, wk.Address, strconv.Itoa(wk.ActiveStreams), formatTime(wk.LastHeartbeat),
		}})
	}
	table := RenderTable([]string{"ID", "Status", "Address", "Active Streams", "Last Heartbeat"}, rows, nil)
	h.page(w, r, "workers-list", "Workers", "workers", map[string]any{"Table": template.HTML(table)}, pageErr)
}
