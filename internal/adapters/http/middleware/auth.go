package middleware

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const identityContextKey contextKey = "identity"

// Roles recognised by the academy.
const (
	RoleStudent = "student"
	RoleCoach   = "coach"
	RoleAdmin   = "admin"
)

// Headers set by the authenticating reverse proxy in front of the server.
const (
	HeaderUser  = "X-Auth-Request-User"
	HeaderEmail = "X-Auth-Request-Email"
	HeaderRole  = "X-Auth-Request-Role"
)

// Identity is the authenticated viewer of a request.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Auth returns middleware that reads the identity asserted by the upstream
// proxy and sets it in context. Unknown roles fall back to student.
// When fallback is non-nil it is used for requests without identity headers
// (development only). It does NOT block anonymous requests; use RequireRole.
func Auth(fallback *Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFromHeaders(r)
			if !ok && fallback != nil {
				id, ok = *fallback, true
			}
			if ok {
				r = r.WithContext(context.WithValue(r.Context(), identityContextKey, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFromHeaders(r *http.Request) (Identity, bool) {
	user := strings.TrimSpace(r.Header.Get(HeaderUser))
	if user == "" {
		return Identity{}, false
	}
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole)))
	switch role {
	case RoleStudent, RoleCoach, RoleAdmin:
	default:
		role = RoleStudent
	}
	return Identity{
		UserID: user,
		Email:  strings.TrimSpace(r.Header.Get(HeaderEmail)),
		Role:   role,
	}, true
}

// RequireRole returns middleware that blocks requests without one of the
// given roles: 401 when anonymous, 403 when the role is not allowed.
// With no roles, any authenticated identity passes.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetIdentityFromContext(r.Context()); !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if len(roles) > 0 && !IsRole(r.Context(), roles...) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentityFromContext extracts the identity from the request context.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// IsRole checks if the current identity has one of the given roles.
func IsRole(ctx context.Context, roles ...string) bool {
	id, ok := GetIdentityFromContext(ctx)
	if !ok {
		return false
	}
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin checks if the current identity is an admin.
func IsAdmin(ctx context.Context) bool {
	return IsRole(ctx, RoleAdmin)
}

// IsCoachOrAdmin checks if the current identity is a coach or admin.
func IsCoachOrAdmin(ctx context.Context) bool {
	return IsRole(ctx, RoleAdmin, RoleCoach)
}

// ContextWithIdentity returns a context with the given identity set.
// Intended for use in tests.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
