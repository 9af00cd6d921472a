// ABOUTME: HTTP handlers for the console pages.
// ABOUTME: Serves the dashboard, request logs and login, and wires every console route.

package admin

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/auth"
	"github.com/2389/airtruct-console/internal/editor"
	"github.com/2389/airtruct-console/internal/metrics"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/2389/airtruct-console/internal/store"
	"github.com/go-chi/chi/v5"
)

// Config wires the console to its data.
type Config struct {
	Backend  api.Backend
	Registry *schema.Registry
	Sessions *editor.Sessions
	// Logs is read by the dashboard and the request log page. Nil hides both.
	Logs    *store.Store
	Metrics *metrics.Collector
	// Options supplies dynamic select values. Defaults to the backend's caches, rate limits and secrets.
	Options editor.OptionSource
	// RequireLogin sends requests without a token to the login page.
	RequireLogin bool
}

type Handlers struct {
	backend      api.Backend
	registry     *schema.Registry
	sessions     *editor.Sessions
	logs         *store.Store
	metrics      *metrics.Collector
	options      editor.OptionSource
	requireLogin bool
}

func NewHandlers(cfg Config) *Handlers {
	h := &Handlers{
		backend:      cfg.Backend,
		registry:     cfg.Registry,
		sessions:     cfg.Sessions,
		logs:         cfg.Logs,
		metrics:      cfg.Metrics,
		options:      cfg.Options,
		requireLogin: cfg.RequireLogin,
	}
	if h.options == nil {
		h.options = api.Options{Backend: cfg.Backend}
	}
	return h
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Get(auth.LoginPath, h.loginForm)
	r.Post(auth.LoginPath, h.login)
	r.Get("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)

		r.Get("/", h.dashboard)
		r.Get("/logs", h.logsList)
		h.registerStreamRoutes(r)
		h.registerResourceRoutes(r)
		h.registerSecretRoutes(r)
		h.registerFileRoutes(r)
		r.Get("/workers", h.workersList)

		r.Post("/admin/editor/{session}/ops", h.editorOp)
		r.Get("/admin/options/{session}/{source}", h.editorOptions)

		r.Route("/api", func(r chi.Router) {
			r.Post("/editor/sessions", h.apiCreateSession)
			r.Get("/editor/sessions/{id}", h.apiGetSession)
			r.Delete("/editor/sessions/{id}", h.apiCloseSession)
			r.Post("/editor/sessions/{id}/ops", h.apiSessionOps)
			r.Get("/editor/sessions/{id}/options/{source}", h.apiSessionOptions)
			r.Get("/catalog", h.apiCatalog)
			r.Get("/catalog/{section}", h.apiCatalogSection)
			r.Get("/catalog/{section}/{component}", h.apiCatalogComponent)
		})
	})
}

// pageData is what every page template receives.
type pageData struct {
	Title  string
	Active string
	Flash  string
	Error  string
	Kinds  []api.Kind
	Logs   bool
	Data   any
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request, name, title, active string, data any, pageErr string) {
	h.pageStatus(w, r, http.StatusOK, name, title, active, data, pageErr)
}

func (h *Handlers) pageStatus(w http.ResponseWriter, r *http.Request, status int, name, title, active string, data any, pageErr string) {
	p := pageData{
		Title:  title,
		Active: active,
		Flash:  popFlash(w, r),
		Error:  pageErr,
		Kinds:  api.Kinds,
		Logs:   h.logs != nil,
		Data:   data,
	}
	w.Header().Set("Content-Type", "text/html")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := renderPage(w, name, p); err != nil {
		log.Printf("Failed to render %s: %v", name, err)
	}
}

const flashCookie = "airtruct_flash"

func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// redirect sends the browser to target, through HX-Redirect for htmx requests.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// expired reports whether err means the coordinator token is no longer valid,
// and if so sends the user to the login page.
func expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, api.ErrUnauthorized) {
		auth.Expired(w, r)
		return true
	}
	return false
}

// errorMessage is the text shown to users for a failed backend call.
func errorMessage(err error) string {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, api.ErrNotFound):
		return "Not found"
	case errors.Is(err, api.ErrConflict):
		return "An item with that name already exists"
	}
	return err.Error()
}

func (h *Handlers) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.requireLogin && auth.TokenFromContext(r.Context()) == "" {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"code":"unauthorized","message":"login required","status":401}`)
				return
			}
			redirect(w, r, auth.LoginPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (h *Handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	msg := ""
	if r.URL.Query().Get("error") == "session_expired" {
		msg = "Your session has expired. Please sign in again."
	}
	h.page(w, r, "login", "Sign in", "", nil, msg)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.FormValue("token"))
	if token == "" {
		h.page(w, r, "login", "Sign in", "", nil, "Token is required")
		return
	}
	auth.SetCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

type dashboardData struct {
	Streams      map[string]int
	StreamTotal  int
	Resources    map[api.Kind]int
	Secrets      int
	Workers      int
	Stats        *store.RequestLogStats
	TopEndpoints []store.EndpointCount
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := dashboardData{Streams: map[string]int{}, Resources: map[api.Kind]int{}}
	var problems []string

	streams, err := h.backend.ListStreams(ctx)
	if expired(w, r, err) {
		return
	}
	if err != nil {
		problems = append(problems, "streams: "+errorMessage(err))
	}
	for _, s := range streams {
		d.Streams[s.Status]++
	}
	d.StreamTotal = len(streams)

	for _, kind := range api.Kinds {
		items, err := h.backend.ListResources(ctx, kind)
		if err != nil {
			problems = append(problems, kind.Title()+": "+errorMessage(err))
			continue
		}
		d.Resources[kind] = len(items)
	}
	if secrets, err := h.backend.ListSecrets(ctx); err == nil {
		d.Secrets = len(secrets)
	} else {
		problems = append(problems, "secrets: "+errorMessage(err))
	}
	if workers, err := h.backend.ListWorkers(ctx); err == nil {
		d.Workers = len(workers)
	} else {
		problems = append(problems, "workers: "+errorMessage(err))
	}

	if h.logs != nil {
		if d.Stats, err = h.logs.GetRequestLogStats(); err != nil {
			log.Printf("Failed to load request stats: %v", err)
		}
		if d.TopEndpoints, err = h.logs.GetTopEndpoints(5); err != nil {
			log.Printf("Failed to load top endpoints: %v", err)
		}
	}

	h.page(w, r, "dashboard", "Dashboard", "dashboard", d, strings.Join(problems, "; "))
}

func (h *Handlers) logsList(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	statusCode := 0
	if sc := q.Get("status"); sc != "" {
		fmt.Sscanf(sc, "%d", &statusCode)
	}

	logs, err := h.logs.GetRequestLogs(&store.RequestLogQuery{
		Limit:      100,
		Area:       q.Get("area"),
		Method:     q.Get("method"),
		PathPrefix: q.Get("path"),
		StatusCode: statusCode,
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	stats, err := h.logs.GetRequestLogStats()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	topEndpoints, err := h.logs.GetTopEndpoints(10)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	h.page(w, r, "logs-list", "Request Logs", "logs", map[string]any{
		"Logs":         logs,
		"Stats":        stats,
		"TopEndpoints": topEndpoints,
		"Areas":        []string{"dashboard", "streams", "resources", "secrets", "files", "workers", "editor", "catalog", "auth"},
		"Selected":     q.Get("area"),
		"Method":       q.Get("method"),
		"Path":         q.Get("path"),
	}, "")
}
