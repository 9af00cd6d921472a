// ABOUTME: Tests for token middleware and session expiry handling.
// ABOUTME: Verifies header and cookie parsing and the login redirect.

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware_ExtractsToken(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		cookie     string
		wantToken  string
	}{
		{"bearer header", "Bearer abc123", "", "abc123"},
		{"no credentials", "", "", ""},
		{"empty bearer", "Bearer ", "", ""},
		{"cookie", "", "from-cookie", "from-cookie"},
		{"header wins over cookie", "Bearer from-header", "from-cookie", "from-header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = TokenFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.wantToken {
				t.Errorf("TokenFromContext() = %q, want %q", got, tt.wantToken)
			}
		})
	}
}

func TestExpired_Redirects(t *testing.T) {
	rr := httptest.NewRecorder()
	Expired(rr, httptest.NewRequest("GET", "/streams", nil))

	if rr.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login?error=session_expired" {
		t.Errorf("Location = %q", loc)
	}
	if c := rr.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("cookie not cleared: %+v", c)
	}
}

func TestExpired_HTMXRedirect(t *testing.T) {
	req := httptest.NewRequest("POST", "/admin/editor/x/ops", nil)
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	Expired(rr, req)

	if rr.Header().Get("HX-Redirect") != "/login?error=session_expired" {
		t.Errorf("HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
	}
}
