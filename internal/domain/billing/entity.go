// internal/domain/billing/entity.go
package billing

import (
	"database/sql"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// IsTerminal reports whether a status absorbs: no ledger row may ever move
// out of a terminal state.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment is the central ledger row for the subscription billing flow. One
// row per initiation; the reference is unique and immutable once assigned.
type Payment struct {
	ID               int64                  `json:"id" db:"id"`
	Reference        string                 `json:"reference" db:"reference"`
	TenantID         int64                  `json:"tenant_id" db:"tenant_id"`
	SubscriptionID   int64                  `json:"subscription_id" db:"subscription_id"`
	PlanID           int64                  `json:"plan_id" db:"plan_id"`
	Amount           float64                `json:"amount" db:"amount"`
	Currency         string                 `json:"currency" db:"currency"`
	Phone            string                 `json:"phone" db:"phone"`
	Status           PaymentStatus          `json:"status" db:"status"`
	GatewayReference sql.NullString         `json:"gateway_reference,omitempty" db:"gateway_reference"`
	FailureReason    sql.NullString         `json:"failure_reason,omitempty" db:"failure_reason"`
	Meta             map[string]interface{} `json:"meta,omitempty" db:"meta"`
	AttemptedAt      time.Time              `json:"attempted_at" db:"attempted_at"`
	CompletedAt      sql.NullTime           `json:"completed_at,omitempty" db:"completed_at"`
}
