// internal/middleware/helpers.go
package middleware

import (
	"wifipay-service/internal/domain/identity"
	"wifipay-service/internal/pkg/session"
	"wifipay-service/internal/tenancy"

	"github.com/gin-gonic/gin"
)

// GetIdentityID gets the authenticated identity ID from context.
func GetIdentityID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("identity_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// GetRole gets the authenticated role from context, empty for anonymous.
func GetRole(c *gin.Context) string {
	v, exists := c.Get("role")
	if !exists {
		return ""
	}
	role, _ := v.(string)
	return role
}

// GetSession gets the live session from context, nil for anonymous.
func GetSession(c *gin.Context) *session.SessionData {
	v, exists := c.Get("session")
	if !exists {
		return nil
	}
	sess, _ := v.(*session.SessionData)
	return sess
}

// GetTenant gets the resolved tenant binding from context.
func GetTenant(c *gin.Context) (*tenancy.TenantContext, bool) {
	v, exists := c.Get("tenant_ctx")
	if !exists {
		return nil, false
	}
	tc, ok := v.(*tenancy.TenantContext)
	return tc, ok
}

// IsAuthenticated checks if the request carries a validated identity.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetIdentityID(c)
	return ok
}

// IsSuperAdmin checks if the authenticated identity is the platform operator.
func IsSuperAdmin(c *gin.Context) bool {
	return GetRole(c) == identity.RoleSuperAdmin
}
