// Package http provides HTTP middleware for the MCP endpoint.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/txn2/mcp-kusto/pkg/auth"
)

// ExtractToken returns the credential carried by r: a Bearer token, else
// the X-API-Key header.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// AuthMiddleware authenticates every request with authn and stores the
// caller in the request context. A nil authn lets requests through as
// auth.Anonymous.
func AuthMiddleware(authn auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if authn == nil {
				next.ServeHTTP(w, r.WithContext(auth.WithUser(ctx, auth.Anonymous)))
				return
			}

			token := ExtractToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized: missing authentication token", http.StatusUnauthorized)
				return
			}

			ctx = auth.WithToken(ctx, token)
			user, err := authn.Authenticate(ctx)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidKey) {
					slog.Warn("authentication error", "error", err)
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(ctx, user)))
		})
	}
}
