// ABOUTME: Session token handling for console requests.
// ABOUTME: Reads the coordinator Bearer token from the header or login cookie into the request context.

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const tokenContextKey contextKey = "token"

// CookieName is the cookie the login page stores the coordinator token in.
const CookieName = "airtruct_token"

// LoginPath is where expired sessions are sent.
const LoginPath = "/login"

// Middleware puts the caller's token, if any, into the request context.
// An Authorization header takes precedence over the login cookie.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r.Header.Get("Authorization"))
		if token == "" {
			if c, err := r.Cookie(CookieName); err == nil {
				token = strings.TrimSpace(c.Value)
			}
		}
		next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
	})
}

// WithToken returns a context carrying token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext returns the token for outgoing coordinator requests, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return strings.TrimSpace(token)
}

// SetCookie stores a token after login.
func SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the stored token.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Expired clears the token and redirects to the login page.
func Expired(w http.ResponseWriter, r *http.Request) {
	ClearCookie(w)
	target := LoginPath + "?error=session_expired"
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
