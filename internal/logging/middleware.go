// ABOUTME: HTTP request logging middleware.
// ABOUTME: Records method, path, status, and duration to the request log and to metrics.

package logging

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/2389/airtruct-console/internal/metrics"
	"github.com/2389/airtruct-console/internal/store"
)

// Sink stores request log entries.
type Sink interface {
	LogRequest(*store.RequestLog) error
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func skipped(path string) bool {
	return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/static/")
}

// Middleware logs console requests. Bodies are never captured since forms carry secrets.
func Middleware(sink Sink, m *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			m.RecordHTTP(r.Method, wrapped.statusCode)
			if sink == nil {
				return
			}

			ip := r.RemoteAddr
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
			}
			entry := &store.RequestLog{
				Timestamp:  start,
				Area:       GetAreaFromPath(r.URL.Path),
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: wrapped.statusCode,
				DurationMs: int(time.Since(start).Milliseconds()),
				IPAddress:  ip,
				UserAgent:  r.Header.Get("User-Agent"),
			}
			if wrapped.statusCode >= 400 {
				entry.Error = http.StatusText(wrapped.statusCode)
			}

			// Fire and forget
			go func() {
				if err := sink.LogRequest(entry); err != nil {
					log.Printf("failed to log request %s %s: %v", entry.Method, entry.Path, err)
				}
			}()
		})
	}
}
