// ABOUTME: Tests for the console pages, login flow and request log views.
// ABOUTME: Runs the full router against an in-memory store used as the backend.

package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/auth"
	"github.com/2389/airtruct-console/internal/editor"
	"github.com/2389/airtruct-console/internal/metrics"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/2389/airtruct-console/internal/store"
	"github.com/go-chi/chi/v5"
)

var testRegistry = schema.MustBuiltin()

type testConsole struct {
	h      *Handlers
	store  *store.Store
	router chi.Router
}

func setupConsole(t *testing.T, mutate func(*Config)) *testConsole {
	t.Helper()
	s, err := store.New(":memory:", testRegistry)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := Config{
		Backend:  s,
		Registry: testRegistry,
		Sessions: editor.NewSessions(time.Hour),
		Logs:     s,
		Metrics:  metrics.New(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h := NewHandlers(cfg)
	r := chi.NewRouter()
	r.Use(auth.Middleware)
	h.RegisterRoutes(r)
	return &testConsole{h: h, store: s, router: r}
}

func (c *testConsole) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *testConsole) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest("GET", path, nil))
}

func (c *testConsole) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func TestPagesRender(t *testing.T) {
	c := setupConsole(t, nil)
	pages := []struct {
		path string
		want string
	}{
		{"/", "Dashboard"},
		{"/streams", "New stream"},
		{"/streams/new", `id="stream-form"`},
		{"/resources/caches", "Caches"},
		{"/resources/caches/new", "Choose a component"},
		{"/resources/component-configs/new", "Section"},
		{"/secrets", "Add secret"},
		{"/files", "New file"},
		{"/files/new", `name="content"`},
		{"/workers", "Active Streams"},
		{"/logs", "Request Logs"},
		{"/login", "Coordinator token"},
	}
	for _, p := range pages {
		t.Run(p.path, func(t *testing.T) {
			w := c.get(p.path)
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s status = %d, body: %s", p.path, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), p.want) {
				t.Errorf("GET %s body missing %q", p.path, p.want)
			}
		})
	}
}

func TestUnknownResourceKind(t *testing.T) {
	c := setupConsole(t, nil)
	if w := c.get("/resources/widgets"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	c := setupConsole(t, nil)
	w := c.get("/healthz")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "ok" {
		t.Errorf("healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestRequireLogin(t *testing.T) {
	c := setupConsole(t, func(cfg *Config) { cfg.RequireLogin = true })

	w := c.get("/streams")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != auth.LoginPath {
		t.Errorf("page without token = %d %q, want redirect to login", w.Code, w.Header().Get("Location"))
	}

	w = c.get("/api/catalog")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("api without token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest("GET", "/streams", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := c.do(req); w.Code != http.StatusOK {
		t.Errorf("page with token = %d, want 200", w.Code)
	}
}

func TestLoginSetsCookie(t *testing.T) {
	c := setupConsole(t, nil)

	w := c.postForm("/login", url.Values{"token": {""}})
	if !strings.Contains(w.Body.String(), "Token is required") {
		t.Error("expected blank token to be rejected")
	}

	w = c.postForm("/login", url.Values{"token": {"abc"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d", w.Code)
	}
	found := false
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.CookieName && ck.Value == "abc" {
			found = true
		}
	}
	if !found {
		t.Error("login did not store the token cookie")
	}

	w = c.get("/login?error=session_expired")
	if !strings.Contains(w.Body.String(), "Your session has expired") {
		t.Error("expected the session expired notice")
	}
}

// unauthorizedBackend fails every stream call the way an expired coordinator token does.
type unauthorizedBackend struct {
	api.Backend
}

func (unauthorizedBackend) ListStreams(ctx context.Context) ([]api.Stream, error) {
	return nil, api.ErrUnauthorized
}

func TestExpiredTokenRedirects(t *testing.T) {
	c := setupConsole(t, func(cfg *Config) { cfg.Backend = unauthorizedBackend{} })

	w := c.get("/streams")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != auth.LoginPath+"?error=session_expired" {
		t.Errorf("expired = %d %q", w.Code, w.Header().Get("Location"))
	}

	req := httptest.NewRequest("GET", "/streams", nil)
	req.Header.Set("HX-Request", "true")
	w = c.do(req)
	if w.Header().Get("HX-Redirect") != auth.LoginPath+"?error=session_expired" {
		t.Errorf("htmx expired HX-Redirect = %q", w.Header().Get("HX-Redirect"))
	}
}

func TestDashboardCounts(t *testing.T) {
	c := setupConsole(t, nil)
	ctx := context.Background()
	if err := c.store.CreateSecret(ctx, api.SecretRequest{Key: "API_KEY", Value: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.store.CreateResource(ctx, api.KindCaches, api.ResourceRequest{Label: "hot", Component: "memory"}); err != nil {
		t.Fatal(err)
	}
	if err := c.store.LogRequest(&store.RequestLog{Area: "streams", Method: "GET", Path: "/streams", StatusCode: 200, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	body := c.get("/").Body.String()
	for _, want := range []string{"Secrets", "Caches", "Console traffic", "/streams"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestLogsListFilters(t *testing.T) {
	c := setupConsole(t, nil)
	now := time.Now()
	logs := []store.RequestLog{
		{Area: "streams", Method: "GET", Path: "/streams", StatusCode: 200, Timestamp: now},
		{Area: "secrets", Method: "POST", Path: "/secrets", StatusCode: 422, Timestamp: now},
		{Area: "editor", Method: "POST", Path: "/admin/editor/x/ops", StatusCode: 200, Timestamp: now},
	}
	for i := range logs {
		if err := c.store.LogRequest(&logs[i]); err != nil {
			t.Fatal(err)
		}
	}

	body := c.get("/logs?area=secrets").Body.String()
	if !strings.Contains(body, "/secrets") {
		t.Error("expected secrets request in filtered list")
	}
	if strings.Contains(body, "/admin/editor/x/ops") {
		t.Error("filter by area leaked an editor request")
	}

	body = c.get("/logs?method=GET").Body.String()
	if strings.Contains(body, `<td class="px-4 py-2">POST</td>`) {
		t.Error("filter by method leaked a POST request")
	}
}

func TestLogsHiddenWithoutStore(t *testing.T) {
	c := setupConsole(t, func(cfg *Config) { cfg.Logs = nil })
	if w := c.get("/logs"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFlashSurvivesRedirect(t *testing.T) {
	c := setupConsole(t, nil)
	w := c.postForm("/secrets", url.Values{"key": {"TOKEN"}, "value": {"s3cret"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("create secret status = %d, body: %s", w.Code, w.Body.String())
	}
	req := httptest.NewRequest("GET", "/secrets", nil)
	for _, ck := range w.Result().Cookies() {
		req.AddCookie(ck)
	}
	body := c.do(req).Body.String()
	if !strings.Contains(body, "Saved secret TOKEN") {
		t.Error("flash message not shown after redirect")
	}
	if strings.Contains(body, "s3cret") {
		t.Error("secret value leaked into the page")
	}
}

func newHTMXRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("HX-Request", "true")
	return req
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
