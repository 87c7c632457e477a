package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/tenant"
)

type contextKey string

const (
	tenantHandleKey contextKey = "tenantHandle"
	userKey         contextKey = "user"
)

// TenantHandleFromContext retrieves the tenant.Handle attached by
// TenantScope.
func TenantHandleFromContext(ctx context.Context) *tenant.Handle {
	h, _ := ctx.Value(tenantHandleKey).(*tenant.Handle)
	return h
}

// UserFromContext retrieves the actor identity attached by Identity.
// Every field is optional; a zero-value User means no identity headers
// were present.
func UserFromContext(ctx context.Context) model.User {
	u, _ := ctx.Value(userKey).(model.User)
	return u
}

// UserIDFromContext is a convenience accessor for the common case of
// needing only the actor's ID (e.g. for CreatedBy/audit fields).
func UserIDFromContext(ctx context.Context) string {
	return UserFromContext(ctx).ID
}

// WithUser returns a new context carrying the given user identity.
// Useful for tests that exercise handlers without going through
// Identity itself.
func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// WithUserID is a convenience wrapper around WithUser for tests and
// callers that only care about the actor's ID (e.g. RateLimit's key).
func WithUserID(ctx context.Context, id string) context.Context {
	return WithUser(ctx, model.User{ID: id})
}

// Identity extracts the caller's actor identity from the headers an
// upstream proxy attaches once it has already authenticated the
// request. x-user-id/x-user-name/x-user-image-id are optional and
// are never synthesized when absent — this middleware
// does not verify anything, only reads what the proxy already decided.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u model.User
		if id := r.Header.Get("x-user-id"); id != "" {
			u.ID = id
			if name := r.Header.Get("x-user-name"); name != "" {
				u.Name = &name
			}
			if imageID := r.Header.Get("x-user-image-id"); imageID != "" {
				u.ImageID = &imageID
			}
		}
		ctx := context.WithValue(r.Context(), userKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantScope resolves x-tenant-id against reg and attaches the
// resulting tenant.Handle to the request context. The header is
// required on every /box/* route. env is fixed at
// construction (the deployment's environment name, e.g. "production").
func TenantScope(reg *tenant.Registry, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get("x-tenant-id")
			if tenantID == "" {
				respondError(w, http.StatusBadRequest, "x-tenant-id header is required")
				return
			}

			handle, err := reg.Get(r.Context(), env, tenantID)
			if err != nil {
				respondError(w, http.StatusServiceUnavailable, "tenant unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), tenantHandleKey, handle)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
