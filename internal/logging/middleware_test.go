// ABOUTME: Tests for HTTP request logging middleware.
// ABOUTME: Verifies status capture, skipped paths, and area classification.

package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2389/airtruct-console/internal/store"
)

type chanSink chan *store.RequestLog

func (c chanSink) LogRequest(l *store.RequestLog) error {
	c <- l
	return nil
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		explicit bool
		code     int
	}{
		{"explicit status", true, http.StatusCreated},
		{"implicit status", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			wrapped := &responseWriter{ResponseWriter: rr, statusCode: 200}

			if tt.explicit {
				wrapped.WriteHeader(tt.code)
			}
			wrapped.Write([]byte("body"))

			if wrapped.statusCode != tt.code {
				t.Errorf("statusCode = %d, want %d", wrapped.statusCode, tt.code)
			}
			if rr.Code != tt.code {
				t.Errorf("recorded = %d, want %d", rr.Code, tt.code)
			}
		})
	}
}

func TestMiddleware_LogsRequest(t *testing.T) {
	sink := make(chanSink, 1)
	handler := Middleware(sink, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/streams/42", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	select {
	case got := <-sink:
		if got.Area != "streams" || got.Path != "/streams/42" || got.StatusCode != 404 {
			t.Errorf("entry = %+v", got)
		}
		if got.IPAddress != "203.0.113.9" || got.UserAgent != "test-agent" || got.Error != "Not Found" {
			t.Errorf("entry metadata = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("request was not logged")
	}
}

func TestMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	sink := make(chanSink, 2)
	handler := Middleware(sink, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/metrics"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}

	select {
	case got := <-sink:
		t.Errorf("skipped path logged: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMiddleware_NilSink(t *testing.T) {
	handler := Middleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/workers", nil))
	if rr.Body.String() != "ok" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestGetAreaFromPath(t *testing.T) {
	tests := map[string]string{
		"/":                        "dashboard",
		"/streams":                 "streams",
		"/streams/3/events":        "streams",
		"/resources/caches/new":    "resources",
		"/admin/editor/abc/ops":    "editor",
		"/api/editor/sessions":     "editor",
		"/api/catalog/input/kafka": "catalog",
		"/secrets":                 "secrets",
		"/login":                   "auth",
		"/somewhere/else":          "unknown",
	}
	for path, want := range tests {
		if got := GetAreaFromPath(path); got != want {
			t.Errorf("GetAreaFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
