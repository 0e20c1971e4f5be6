// internal/domain/plan/entity.go
package plan

import (
	"time"

	"github.com/lib/pq"
)

// Plan is immutable reference data. Usage ceilings use -1 for unlimited.
// The fulfillment pipeline only ever reads plans.
type Plan struct {
	ID             int64          `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	PriceXAF       float64        `json:"price_xaf" db:"price_xaf"`
	PriceUSD       float64        `json:"price_usd" db:"price_usd"`
	MaxTickets     int            `json:"max_tickets" db:"max_tickets"`
	MaxAgents      int            `json:"max_agents" db:"max_agents"`
	MaxStorageMB   int            `json:"max_storage_mb" db:"max_storage_mb"`
	MaxZones       int            `json:"max_zones" db:"max_zones"`
	CommissionRate float64        `json:"commission_rate" db:"commission_rate"`
	Features       pq.StringArray `json:"features" db:"features"`
	IsFree         bool           `json:"is_free" db:"is_free"`
	SortOrder      int            `json:"sort_order" db:"sort_order"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

const Unlimited = -1

// Allows reports whether a ceiling permits the given count.
func Allows(ceiling, count int) bool {
	return ceiling == Unlimited || count < ceiling
}
