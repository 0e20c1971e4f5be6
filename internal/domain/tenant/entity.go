// internal/domain/tenant/entity.go
package tenant

import (
	"database/sql"
	"time"
)

type TenantStatus string

const (
	TenantStatusPending   TenantStatus = "pending"
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusBanned    TenantStatus = "banned"
	TenantStatusCancelled TenantStatus = "cancelled"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// Tenant is an isolated operator account. DatabaseName points at the store
// holding the tenant's vouchers, packages and retail payment attempts.
type Tenant struct {
	ID              int64          `json:"id" db:"id"`
	Slug            string         `json:"slug" db:"slug"`
	Name            string         `json:"name" db:"name"`
	ContactEmail    string         `json:"contact_email" db:"contact_email"`
	Status          TenantStatus   `json:"status" db:"status"`
	PlanID          int64          `json:"plan_id" db:"plan_id"`
	DatabaseName    string         `json:"-" db:"database_name"`
	OwnerIdentityID int64          `json:"owner_identity_id" db:"owner_identity_id"`
	SuspendedReason sql.NullString `json:"suspended_reason,omitempty" db:"suspended_reason"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the tenant may serve tenant-scoped requests.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
