// internal/domain/identity/entity.go
package identity

import "time"

const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantOwner = "tenant_owner"
)

// Identity is a platform login (tenant owner or super admin). End customers
// buying vouchers are anonymous and never have an identity.
type Identity struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
