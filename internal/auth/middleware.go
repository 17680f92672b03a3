package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"campushub/internal/httpx"
)

type contextKey string

const userContextKey contextKey = "campushub_user"

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok
}

// Middleware verifies the bearer token and injects {id, role} into the
// request context. All verification failures answer the same generic 401;
// the distinct failure kind only goes to the log.
func Middleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				logger.Info("request rejected", "reason", err, "path", r.URL.Path)
				httpx.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := svc.ParseToken(token)
			if err != nil {
				logger.Info("request rejected", "reason", err, "path", r.URL.Path)
				httpx.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			user := &User{
				ID:   claims.UserID,
				Role: claims.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrTokenMissing
	}
	if !strings.HasPrefix(h, "Bearer ") {
		return "", ErrTokenMalformed
	}
	token := strings.TrimPrefix(h, "Bearer ")
	if token == "" {
		return "", ErrTokenMissing
	}
	return token, nil
}

// RequireRole wraps a handler with a role gate, admin passing any gate.
func RequireRole(next http.HandlerFunc, roles ...Role) http.HandlerFunc {
	gate := Gate{Roles: roles}
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		if err := Authorize(user, gate, ""); err != nil {
			WriteDenied(w, err)
			return
		}
		next(w, r)
	}
}

// WriteDenied maps an Authorize failure to its HTTP response.
func WriteDenied(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		httpx.Error(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, ErrInsufficientRole):
		httpx.Error(w, http.StatusForbidden, "insufficient role")
	case errors.Is(err, ErrNotOwner):
		httpx.Error(w, http.StatusForbidden, "not allowed")
	default:
		httpx.Error(w, http.StatusForbidden, "not allowed")
	}
}
