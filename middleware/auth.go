package middleware

import (
	"context"
	"net/http"
	"strings"

	"social-server/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type contextKey string

const UserIDContextKey = contextKey("user_id")

// Authenticate resolves the bearer token of each request to a user id and
// stores it in the request context.
func Authenticate(verifier core.IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Authorization header is required"})
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Authorization header format must be Bearer {token}"})
				return
			}

			userID, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				logrus.WithError(err).Debug("Rejected bearer token")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the user set by Authenticate.
func UserIDFromContext(ctx context.Context) (core.UserID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(core.UserID)
	return userID, ok && userID != ""
}

// WithUserID returns a copy of ctx carrying userID, as Authenticate would.
func WithUserID(ctx context.Context, userID core.UserID) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}
