package handlers

import (
	"context"
	"net/http"

	"pathpal-api/internal/models"
	"pathpal-api/internal/responses"
	"pathpal-api/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

// RequireRole gates a route on a valid session and, when role is non-empty,
// on the session's role matching it. The session snapshot is injected into
// the request context.
func RequireRole(store *session.Store, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				responses.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			sess := store.Get(cookie.Value)
			if sess == nil {
				responses.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			if role != "" && sess.UserType != role {
				responses.SendErrorResponse(w, http.StatusForbidden, "Admin access required")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth accepts any authenticated session regardless of role.
func RequireAuth(store *session.Store) func(http.Handler) http.Handler {
	return RequireRole(store, "")
}

// RequireAdmin accepts admin sessions only.
func RequireAdmin(store *session.Store) func(http.Handler) http.Handler {
	return RequireRole(store, models.RoleAdmin)
}

// SessionFromContext returns the session injected by RequireRole, or nil for
// requests that bypassed the gate.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey).(*session.Session)
	return sess
}

// ContextWithSession injects a session outside the middleware path, mainly
// for tests.
func ContextWithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}
