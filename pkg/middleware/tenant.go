package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"agenda/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// Identity headers forwarded by the authenticating gateway.
const (
	TenantHeader      = "X-Tenant-ID"
	RoleHeader        = "X-User-Role"
	PermissionsHeader = "X-Permissions"

	RoleAdmin = "ADMIN"
)

const identityKey contextKey = "identity"

type Identity struct {
	TenantID    string
	Role        string
	Permissions map[string]struct{}
}

// Allows reports whether the caller may perform action on module.
func (id *Identity) Allows(module, action string) bool {
	if id == nil {
		return false
	}
	if strings.EqualFold(id.Role, RoleAdmin) {
		return true
	}
	_, ok := id.Permissions[module+":"+action]
	return ok
}

// Identify reads the identity headers into the request context. It never
// rejects; RequirePermission answers 401 on routes that need a tenant, which
// keeps the OAuth callback and the calendar webhook public.
func Identify(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(r.Header.Get(TenantHeader))
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity := &Identity{
				TenantID:    tenantID,
				Role:        strings.TrimSpace(r.Header.Get(RoleHeader)),
				Permissions: parsePermissions(r.Header.Get(PermissionsHeader)),
			}
			log.Debug("Request identity",
				"request_id", RequestID(r.Context()),
				"tenant_id", identity.TenantID,
				"role", identity.Role,
			)
			ctx := logger.WithAttrs(WithIdentity(r.Context(), identity), slog.String("tenant_id", tenantID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFrom(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey).(*Identity)
	return identity
}

func TenantID(ctx context.Context) string {
	if identity := IdentityFrom(ctx); identity != nil {
		return identity.TenantID
	}
	return ""
}

// RequirePermission wraps a route handler with the module:action gate.
func RequirePermission(module, action string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		identity := IdentityFrom(r.Context())
		if identity == nil || identity.TenantID == "" {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !identity.Allows(module, action) {
			writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		next(w, r, ps)
	}
}

func parsePermissions(header string) map[string]struct{} {
	permissions := make(map[string]struct{})
	for _, p := range strings.Split(header, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			permissions[p] = struct{}{}
		}
	}
	return permissions
}
