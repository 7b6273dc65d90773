package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves session tokens to user identities. How tokens
// are issued is outside the core; here a token simply binds a request (or
// a WebSocket connection) to one known user.
type AuthMiddleware struct {
	store store.Store
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(st store.Store) *AuthMiddleware {
	return &AuthMiddleware{store: st}
}

// RequireAuth rejects requests without a valid session token and stores
// the resolved user in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "missing session token")
			return
		}

		userID, err := m.store.UserIDForSession(r.Context(), token)
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}

		user, err := m.store.FindUser(r.Context(), userID)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the session token from the Authorization header,
// falling back to the "token" query parameter for WebSocket upgrades
// (browsers cannot set headers on a WebSocket handshake).
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
