// ABOUTME: Tests for the coordinator client against an httptest server.
// ABOUTME: Covers envelopes, token forwarding, status mapping, and the fetch-then-put status update.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389/airtruct-console/internal/auth"
	"github.com/2389/airtruct-console/internal/schema"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client(), nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ListStreams(t *testing.T) {
	var gotAuth, gotURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotURL = r.URL.RequestURI()
		writeJSON(w, 200, map[string]any{"data": []map[string]any{
			{"id": 3, "name": "orders", "status": "active", "input_component": "kafka",
				"processors": []map[string]any{{"label": "clean", "component": "mapping", "config": "root = this"}}},
		}})
	})

	ctx := auth.WithToken(context.Background(), "tok-1")
	streams, err := c.ListStreams(ctx)
	if err != nil {
		t.Fatalf("ListStreams() error = %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotURL != "/api/v0/streams?status=all" {
		t.Errorf("URL = %q", gotURL)
	}
	if len(streams) != 1 || streams[0].ID != 3 || streams[0].Processors[0].Component != "mapping" {
		t.Errorf("streams = %+v", streams)
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want none", h)
		}
		writeJSON(w, 200, map[string]any{"data": []any{}})
	})
	if _, err := c.ListWorkers(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"unauthorized", 401, `{"message":"token expired"}`, ErrUnauthorized, ""},
		{"not found", 404, `{"message":"stream not found"}`, ErrNotFound, "stream not found"},
		{"conflict", 409, `{"message":"label taken"}`, ErrConflict, "label taken"},
		{"server error", 500, `{"message":"database is locked"}`, nil, "database is locked"},
		{"plain text", 502, "bad gateway", nil, "bad gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.GetStream(context.Background(), 1)
			if err == nil {
				t.Fatal("GetStream() error = nil")
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}
			if tt.message == "" {
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %v is not an *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.message {
				t.Errorf("APIError = %+v", apiErr)
			}
		})
	}
}

func TestClient_NoRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 503, map[string]string{"message": "unavailable"})
	})
	if err := c.DeleteStream(context.Background(), 9); err == nil {
		t.Fatal("DeleteStream() error = nil")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d calls, want 1", n)
	}
}

func TestUpdateStreamStatus_FetchThenPut(t *testing.T) {
	buffer := int64(4)
	var put StreamRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, 200, map[string]any{"data": Stream{
				ID: 7, Name: "orders", Status: StatusActive, InputComponent: "kafka",
				InputConfig: "topics: [a]\n", OutputComponent: "sync_response", BufferID: &buffer,
				Processors: []Processor{{Label: "p", Component: "mapping", Config: "root = this"}},
			}})
		case http.MethodPut:
			if r.URL.Path != "/api/v0/streams/7" {
				t.Errorf("PUT path = %s", r.URL.Path)
			}
			_ = json.NewDecoder(r.Body).Decode(&put)
			writeJSON(w, 200, map[string]any{"data": Stream{ID: 7, Status: put.Status}})
		}
	})

	s, err := UpdateStreamStatus(context.Background(), c, 7, StatusPaused)
	if err != nil {
		t.Fatalf("UpdateStreamStatus() error = %v", err)
	}
	if s.Status != StatusPaused || put.Status != StatusPaused {
		t.Errorf("status = %q, put %q", s.Status, put.Status)
	}
	if put.InputConfig != "topics: [a]\n" || put.BufferID == nil || *put.BufferID != 4 || len(put.Processors) != 1 {
		t.Errorf("PUT lost fields: %+v", put)
	}
}

func TestClient_StreamEvents(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "20" || q.Get("offset") != "40" || q.Get("start_time") != "2026-03-01T10:00:00Z" || q.Has("end_time") {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeJSON(w, 200, map[string]any{
			"data": []map[string]any{{"id": 1, "flowId": "f1", "section": "input", "componentLabel": "in",
				"type": "PRODUCE", "content": "{}", "createdAt": start}},
			"total": 41,
		})
	})

	page, err := c.StreamEvents(context.Background(), 2, EventQuery{Limit: 20, Offset: 40, Start: start})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 41 || len(page.Data) != 1 || page.Data[0].FlowID != "f1" || page.Data[0].ComponentLabel != "in" {
		t.Errorf("page = %+v", page)
	}
}

func TestClient_FileUpdateCarriesID(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, 200, map[string]any{"data": File{ID: 5, Key: "a.txt", Size: 5}})
	})
	if _, err := c.UpdateFile(context.Background(), 5, FileRequest{Key: "a.txt", Content: []byte("hello")}); err != nil {
		t.Fatal(err)
	}
	if body["id"] != float64(5) || body["content"] != "aGVsbG8=" {
		t.Errorf("body = %v", body)
	}
}

func TestClient_SecretKeyEscaped(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.DeleteSecret(context.Background(), "db/password"); err != nil {
		t.Fatal(err)
	}
	if got != "/api/v0/secrets/db%2Fpassword" {
		t.Errorf("path = %q", got)
	}
}

func TestOptions_Sources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v0/caches":
			writeJSON(w, 200, map[string]any{"data": []Resource{{Label: "redis"}, {Label: ""}, {Label: "mem"}}})
		case "/api/v0/secrets":
			writeJSON(w, 200, map[string]any{"data": []Secret{{Key: "API_KEY"}}})
		default:
			writeJSON(w, 500, map[string]string{"message": "boom"})
		}
	})
	opts := Options{Backend: c}

	got, err := opts.Options(context.Background(), schema.SourceCaches)
	if err != nil || !reflect.DeepEqual(got, []string{"redis", "mem"}) {
		t.Errorf("caches = %v, %v", got, err)
	}
	got, err = opts.Options(context.Background(), schema.SourceSecrets)
	if err != nil || !reflect.DeepEqual(got, []string{"API_KEY"}) {
		t.Errorf("secrets = %v, %v", got, err)
	}
	if _, err := opts.Options(context.Background(), schema.SourceRateLimits); err == nil {
		t.Error("rate limits error = nil, want upstream failure")
	}
}

func TestKind(t *testing.T) {
	if !KindRateLimits.Valid() || Kind("widgets").Valid() {
		t.Error("Valid() mismatch")
	}
	if KindCaches.Section() != schema.SectionCache || KindComponentConfigs.Section() != "" {
		t.Error("Section() mismatch")
	}
}

func TestClient_ValidateAndTryAreBare(t *testing.T) {
	var tried TryRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v0/streams/validate":
			writeJSON(w, 200, ValidateResult{Valid: false, Error: "input: unknown field topic"})
		case "/api/v0/streams/try":
			_ = json.NewDecoder(r.Body).Decode(&tried)
			writeJSON(w, 200, TryResult{Outputs: []TryOutput{{Content: `{"ok":true}`}}})
		}
	})

	res, err := c.ValidateStream(context.Background(), StreamRequest{Name: "x"})
	if err != nil || res.Valid || res.Error != "input: unknown field topic" {
		t.Errorf("ValidateStream() = %+v, %v", res, err)
	}

	out, err := c.TryStream(context.Background(), TryRequest{
		Processors: []Processor{{Label: "m", Component: "mapping", Config: "root = this"}},
		Messages:   []TryMessage{{Content: "{}"}},
	})
	if err != nil || len(out.Outputs) != 1 || out.Outputs[0].Content != `{"ok":true}` {
		t.Errorf("TryStream() = %+v, %v", out, err)
	}
	if len(tried.Processors) != 1 || len(tried.Messages) != 1 {
		t.Errorf("try body = %+v", tried)
	}
}
