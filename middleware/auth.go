package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/parleychat/parley/user"
)

// Authenticator resolves bearer tokens to users.
type Authenticator interface {
	Authenticate(token string) (user.User, bool)
}

type userContextKey struct{}

// WithUser returns ctx carrying u as the authenticated user.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFrom returns the authenticated user stored in ctx by Auth.
func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(user.User)
	return u, ok
}

// Auth guards HTTP routes with bearer tokens resolved through auth and
// stores the resulting user on the request context.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health check, login and WebSocket bypass auth (WebSocket
			// handles its own auth as the first RPC request)
			if r.URL.Path == "/health" || r.URL.Path == "/api/login" || r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			u, ok := auth.Authenticate(parts[1])
			if !ok {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
