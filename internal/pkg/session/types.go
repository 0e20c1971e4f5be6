// internal/pkg/session/types.go
package session

import "time"

// SessionData is the redis-backed record of one authenticated session.
// TenantSlug is the tenant the session is currently bound to; a session
// addressing a different tenant's routes is a security violation handled by
// the tenancy resolver.
type SessionData struct {
	JTI            string    `json:"jti"`
	IdentityID     int64     `json:"identity_id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	TenantSlug     string    `json:"tenant_slug,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	LoginAt        time.Time `json:"login_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
