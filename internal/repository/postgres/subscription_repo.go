// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wifipay-service/internal/domain/subscription"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `
	id, reference, tenant_id, plan_id, status, current_period_start,
	current_period_end, next_payment_date, amount, currency, created_at, updated_at
`

// CreateWithTx inserts a subscription within a caller-owned transaction.
func (r *SubscriptionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (reference, tenant_id, plan_id, status,
			current_period_start, current_period_end, next_payment_date, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		sub.Reference, sub.TenantID, sub.PlanID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.NextPaymentDate,
		sub.Amount, sub.Currency,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

// FindActiveByTenant returns the tenant's current active subscription, if
// any. "At most one active" is query discipline: latest period wins.
func (r *SubscriptionRepository) FindActiveByTenant(ctx context.Context, tenantID int64) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1 AND status = 'active' AND current_period_end > NOW()
		ORDER BY current_period_end DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID))
}

// ActivateWithTx rolls a subscription to active with a fresh period window.
func (r *SubscriptionRepository) ActivateWithTx(ctx context.Context, tx pgx.Tx, subscriptionID int64, periodStart, periodEnd time.Time) error {
	query := `
		UPDATE subscriptions
		SET status = 'active',
			current_period_start = $2,
			current_period_end = $3,
			next_payment_date = $3,
			updated_at = NOW()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, subscriptionID, periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var nextPayment sql.NullTime

	err := row.Scan(
		&sub.ID, &sub.Reference, &sub.TenantID, &sub.PlanID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &nextPayment,
		&sub.Amount, &sub.Currency, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	sub.NextPaymentDate = nextPayment
	return &sub, nil
}
