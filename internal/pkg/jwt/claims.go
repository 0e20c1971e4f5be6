// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by platform access tokens.
type Claims struct {
	IdentityID int64  `json:"identity_id"`
	Role       string `json:"role"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IsSuperAdmin checks if the bearer is a platform super admin.
func (c *Claims) IsSuperAdmin() bool {
	return c.Role == "super_admin"
}
