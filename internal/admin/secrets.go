// ABOUTME: Secret pages: list keys, add a key/value pair, delete by key.
// ABOUTME: Values are write-only; the console never displays them.

package admin

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) registerSecretRoutes(r chi.Router) {
	r.Get("/secrets", h.secretsList)
	r.Post("/secrets", h.secretCreate)
	r.Delete("/secrets/{key}", h.secretDelete)
}

func (h *Handlers) secretsPage(w http.ResponseWriter, r *http.Request, status int, key, pageErr string) {
	secrets, err := h.backend.ListSecrets(r.Context())
	if expired(w, r, err) {
		return
	}
	if err != nil && pageErr == "" {
		log.Printf("Error listing secrets: %v", err)
		pageErr = errorMessage(err)
	}
	rows := make([]Row, 0, len(secrets))
	for _, s := range secrets {
		rows = append(rows, Row{ID: s.Key, Cells: []string{s.Key, formatTime(s.CreatedAt)}})
	}
	table := RenderTable([]string{"Key", "Created"}, rows, []Action{
		{Name: "Delete", Method: "DELETE", Endpoint: "/secrets/{id}", Confirm: true},
	})
	h.pageStatus(w, r, status, "secrets-list", "Secrets", "secrets", map[string]any{
		"Table": template.HTML(table),
		"Key":   key,
	}, pageErr)
}

func (h *Handlers) secretsList(w http.ResponseWriter, r *http.Request) {
	h.secretsPage(w, r, http.StatusOK, "", "")
}

func (h *Handlers) secretCreate(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.FormValue("key"))
	value := r.FormValue("value")
	switch {
	case key == "":
		h.secretsPage(w, r, http.StatusUnprocessableEntity, key, "Key is required")
		return
	case value == "":
		h.secretsPage(w, r, http.StatusUnprocessableEntity, key, "Value is required")
		return
	}

	err := h.backend.CreateSecret(r.Context(), api.SecretRequest{Key: key, Value: value})
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error creating secret %q: %v", key, err)
		h.secretsPage(w, r, http.StatusOK, key, errorMessage(err))
		return
	}
	setFlash(w, fmt.Sprintf("Saved secret %s", key))
	redirect(w, r, "/secrets")
}

func (h *Handlers) secretDelete(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	err = h.backend.DeleteSecret(r.Context(), key)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("Error deleting secret %q: %v", key, err)
		setFlash(w, "Delete failed: "+errorMessage(err))
	} else {
		setFlash(w, fmt.Sprintf("Deleted secret %s", key))
	}
	redirect(w, r, "/secrets")
}
