// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription ties a tenant to a plan for one billing period. Created
// suspended at payment initiation and flipped to active only by a
// successful reconciliation. At most one subscription is active per tenant,
// enforced by query discipline.
type Subscription struct {
	ID                 int64              `json:"id" db:"id"`
	Reference          string             `json:"reference" db:"reference"`
	TenantID           int64              `json:"tenant_id" db:"tenant_id"`
	PlanID             int64              `json:"plan_id" db:"plan_id"`
	Status             SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodStart time.Time          `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end" db:"current_period_end"`
	NextPaymentDate    sql.NullTime       `json:"next_payment_date,omitempty" db:"next_payment_date"`
	Amount             float64            `json:"amount" db:"amount"`
	Currency           string             `json:"currency" db:"currency"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}
