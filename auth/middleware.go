package auth

import (
	"context"
	"net/http"
	"strings"

	"chatline/errors"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware validates the bearer token of every request before any
// handler runs and injects the authenticated user ID into the request
// context. Adapted per-request: nothing survives past the response.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "authorization token is missing", http.StatusUnauthorized)
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		userID, err := g.Authenticate(tokenStr)
		if err != nil {
			http.Error(w, "invalid or expired token", errors.MapToHTTPStatus(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom extracts the identity the middleware placed in the context.
func UserIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
