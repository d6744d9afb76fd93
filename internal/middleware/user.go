package middleware

import (
	"context"
	"net/http"
	"strings"
)

type userContextKey struct{}

// UserKey stores the caller's user id in the context.
var UserKey = userContextKey{}

// LocalUserID identifies the anonymous local user when no session is present.
const LocalUserID = "local"

// UserContext extracts the caller's user id. Session management is an
// external collaborator; the id arrives verified on the X-User-ID header and
// is treated as opaque, falling back to the local guest user.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			userID = LocalUserID
		}
		ctx := context.WithValue(r.Context(), UserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the user id stored in the request context.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserKey).(string); ok {
		return v
	}
	return ""
}
