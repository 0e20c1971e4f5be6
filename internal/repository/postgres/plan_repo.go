// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"fmt"

	"wifipay-service/internal/domain/plan"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `
	id, name, price_xaf, price_usd, max_tickets, max_agents, max_storage_mb,
	max_zones, commission_rate, features, is_free, sort_order, created_at
`

func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

// FindDefaultFree returns the lowest-tier free plan new tenants start on.
func (r *PlanRepository) FindDefaultFree(ctx context.Context) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE is_free = TRUE ORDER BY sort_order ASC LIMIT 1`
	return scanPlan(r.db.QueryRow(ctx, query))
}

func (r *PlanRepository) List(ctx context.Context) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY sort_order ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	return plans, rows.Err()
}

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	var features []string

	err := row.Scan(
		&p.ID, &p.Name, &p.PriceXAF, &p.PriceUSD, &p.MaxTickets, &p.MaxAgents,
		&p.MaxStorageMB, &p.MaxZones, &p.CommissionRate, pq.Array(&features),
		&p.IsFree, &p.SortOrder, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	p.Features = pq.StringArray(features)
	return &p, nil
}
