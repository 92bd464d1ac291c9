package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const authKey contextKey = "authenticated"

// BearerAuth rejects requests that do not carry token, either as an
// "Authorization: Bearer" header or as a token query parameter for WebSocket
// clients that cannot set headers. An empty token disables the check.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !matches(requestToken(r), token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="agentflow"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), authKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsAuthenticated reports whether BearerAuth accepted the request's token.
func IsAuthenticated(r *http.Request) bool {
	if v, ok := r.Context().Value(authKey).(bool); ok {
		return v
	}
	return false
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func matches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
