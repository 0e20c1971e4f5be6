// internal/middleware/tenant_middleware.go
package middleware

import (
	"net/http"

	"wifipay-service/internal/domain/identity"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/response"
	"wifipay-service/internal/tenancy"

	"github.com/gin-gonic/gin"
)

type TenantMiddleware struct {
	resolver *tenancy.Resolver
}

func NewTenantMiddleware(resolver *tenancy.Resolver) *TenantMiddleware {
	return &TenantMiddleware{resolver: resolver}
}

// Resolve binds the request to the tenant named by the :slug path segment:
// it loads the tenant, opens its isolated store and attaches the binding to
// the request context so that tenant-scoped repositories can reach it. Runs
// after Auth/OptionalAuth so the session (when any) is available for the
// cross-tenant guard.
func (m *TenantMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		if slug == "" {
			response.ValidationError(c, "missing tenant slug", nil)
			return
		}

		tc, revoked, err := m.resolver.Resolve(c.Request.Context(), slug, GetSession(c))
		if revoked {
			// The session was bound to a different tenant and has been
			// invalidated. The request continues only if it could have run
			// anonymously.
			clearAuth(c)
		}
		if err != nil {
			switch {
			case xerrors.Is(err, xerrors.ErrNotFound):
				response.NotFound(c, err.Error())
			case xerrors.Is(err, xerrors.ErrForbidden):
				response.Forbidden(c, xerrors.MessageOrDefault(err, "tenant unavailable"))
			default:
				response.Error(c, http.StatusInternalServerError, "failed to resolve tenant", err)
			}
			return
		}

		c.Set("tenant_ctx", tc)
		c.Request = c.Request.WithContext(tenancy.WithTenant(c.Request.Context(), tc))
		c.Next()
	}
}

// RequireTenantOwner gates management routes: only the owning identity or
// the platform operator may pass. Must run after Auth() and Resolve().
func (m *TenantMiddleware) RequireTenantOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := GetTenant(c)
		if !ok {
			response.Error(c, http.StatusInternalServerError, "tenant not resolved", nil)
			return
		}
		identityID, authed := GetIdentityID(c)
		if !authed {
			response.Unauthorized(c, "authentication required")
			return
		}
		if GetRole(c) == identity.RoleSuperAdmin || tc.Tenant.OwnerIdentityID == identityID {
			c.Next()
			return
		}
		response.Forbidden(c, "not the tenant owner")
	}
}

// clearAuth downgrades the request to anonymous after a session revocation.
func clearAuth(c *gin.Context) {
	for _, key := range []string{"identity_id", "jti", "role", "email", "session"} {
		c.Set(key, nil)
	}
}
