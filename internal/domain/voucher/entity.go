// internal/domain/voucher/entity.go
package voucher

import (
	"database/sql"
	"time"

	"wifipay-service/internal/domain/billing"
)

type VoucherStatus string

const (
	VoucherStatusGenerated VoucherStatus = "generated"
	VoucherStatusAvailable VoucherStatus = "available"
	VoucherStatusSold      VoucherStatus = "sold"
	VoucherStatusActive    VoucherStatus = "active"
	VoucherStatusExpired   VoucherStatus = "expired"
	VoucherStatusExhausted VoucherStatus = "exhausted"
	VoucherStatusSuspended VoucherStatus = "suspended"
)

// WifiPackage is the sellable catalog entry a voucher belongs to.
type WifiPackage struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Price         float64   `json:"price" db:"price"`
	Currency      string    `json:"currency" db:"currency"`
	DurationHours int       `json:"duration_hours" db:"duration_hours"`
	DataCapMB     int       `json:"data_cap_mb" db:"data_cap_mb"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// WifiVoucher is one unit of the resource pool. Exactly one payment attempt
// may ever move it from available to sold; a sold voucher carries the
// reference of the paying attempt.
type WifiVoucher struct {
	ID               int64          `json:"id" db:"id"`
	PackageID        int64          `json:"package_id" db:"package_id"`
	Username         string         `json:"username" db:"username"`
	Password         string         `json:"password" db:"password"`
	Status           VoucherStatus  `json:"status" db:"status"`
	PaymentReference sql.NullString `json:"payment_reference,omitempty" db:"payment_reference"`
	GatewayReference sql.NullString `json:"gateway_reference,omitempty" db:"gateway_reference"`
	PurchasedAt      sql.NullTime   `json:"purchased_at,omitempty" db:"purchased_at"`
	PurchaseAmount   sql.NullFloat64 `json:"purchase_amount,omitempty" db:"purchase_amount"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// PaymentAttempt is the tenant-store ledger row for the retail voucher flow.
// Same semantics as the central billing.Payment ledger: one row per
// initiation, immutable reference, monotonic status. VoucherID is set only
// when the claim succeeds, making the attempt-voucher link a real relation
// rather than a meta-bag string.
type PaymentAttempt struct {
	ID               int64                  `json:"id" db:"id"`
	Reference        string                 `json:"reference" db:"reference"`
	PackageID        int64                  `json:"package_id" db:"package_id"`
	VoucherID        sql.NullInt64          `json:"voucher_id,omitempty" db:"voucher_id"`
	Amount           float64                `json:"amount" db:"amount"`
	Currency         string                 `json:"currency" db:"currency"`
	Phone            string                 `json:"phone" db:"phone"`
	Status           billing.PaymentStatus  `json:"status" db:"status"`
	GatewayReference sql.NullString         `json:"gateway_reference,omitempty" db:"gateway_reference"`
	FailureReason    sql.NullString         `json:"failure_reason,omitempty" db:"failure_reason"`
	Meta             map[string]interface{} `json:"meta,omitempty" db:"meta"`
	AttemptedAt      time.Time              `json:"attempted_at" db:"attempted_at"`
	CompletedAt      sql.NullTime           `json:"completed_at,omitempty" db:"completed_at"`
}
