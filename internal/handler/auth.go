package handler

import (
	"context"
	"net/http"
	"strconv"
)

// Identity is supplied by the upstream gateway, which terminates
// authentication. These headers are trusted, never verified here.
const (
	userIDHeader    = "X-User-ID"
	adminRoleHeader = "X-Admin-Role"
)

type userIDKey struct{}

// UserID extracts the authenticated user id from the context. The boolean is
// false outside RequireUser-guarded routes.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// RequireUser rejects requests without a parseable forwarded user identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects requests the gateway has not marked as admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(adminRoleHeader) != "admin" {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mustUserID returns the user id for a RequireUser-guarded handler.
func mustUserID(r *http.Request) int64 {
	id, _ := UserID(r.Context())
	return id
}
