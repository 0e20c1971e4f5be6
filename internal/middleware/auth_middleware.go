// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"wifipay-service/internal/pkg/response"
	"wifipay-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	authService *auth.AuthService
}

func NewAuthMiddleware(authService *auth.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth validates the JWT and its live session, rejecting the request when
// either is missing.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}
		if !m.authenticate(c, token) {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Next()
	}
}

// OptionalAuth authenticates when a token is present and lets anonymous
// requests through untouched. Voucher purchase routes use this: buyers are
// anonymous, but an owner browsing their own storefront stays logged in.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			m.authenticate(c, token)
		}
		c.Next()
	}
}

// RequireRole gates a route on the authenticated identity's role. Must run
// after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, required := range roles {
			if role == required {
				c.Next()
				return
			}
		}
		response.Error(c, http.StatusForbidden, "insufficient permissions", nil)
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context, token string) bool {
	claims, sess, err := m.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return false
	}
	c.Set("identity_id", claims.IdentityID)
	c.Set("jti", claims.ID)
	c.Set("role", claims.Role)
	c.Set("email", claims.Email)
	c.Set("session", sess)
	return true
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Websocket clients cannot set headers from the browser.
	return c.Query("token")
}
