// internal/repository/postgres/tenant_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"wifipay-service/internal/domain/subscription"
	"wifipay-service/internal/domain/tenant"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `
	id, slug, name, contact_email, status, plan_id, database_name,
	owner_identity_id, suspended_reason, created_at, updated_at
`

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, slug))
}

func (r *TenantRepository) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// CreateWithTrial inserts the tenant row and its initial trial subscription
// in one transaction. Either both become visible or neither does.
func (r *TenantRepository) CreateWithTrial(ctx context.Context, t *tenant.Tenant, sub *subscription.Subscription) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertTenant := `
		INSERT INTO tenants (slug, name, contact_email, status, plan_id, database_name, owner_identity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, insertTenant,
		t.Slug, t.Name, t.ContactEmail, t.Status, t.PlanID, t.DatabaseName, t.OwnerIdentityID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.Wrap(xerrors.ErrDuplicateEntry, "tenant slug or contact already in use")
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	sub.TenantID = t.ID
	insertSub := `
		INSERT INTO subscriptions (reference, tenant_id, plan_id, status,
			current_period_start, current_period_end, next_payment_date, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, insertSub,
		sub.Reference, sub.TenantID, sub.PlanID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.NextPaymentDate, sub.Amount, sub.Currency,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trial subscription: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateStatus transitions the tenant lifecycle state.
func (r *TenantRepository) UpdateStatus(ctx context.Context, slug string, status tenant.TenantStatus, reason string) error {
	query := `
		UPDATE tenants
		SET status = $2, suspended_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE slug = $1
	`
	tag, err := r.db.Exec(ctx, query, slug, status, reason)
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdatePlanWithTx repoints the tenant at a paid plan. Called inside the
// subscription activation transaction.
func (r *TenantRepository) UpdatePlanWithTx(ctx context.Context, tx pgx.Tx, tenantID, planID int64) error {
	query := `UPDATE tenants SET plan_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(ctx, query, tenantID, planID); err != nil {
		return fmt.Errorf("failed to update tenant plan: %w", err)
	}
	return nil
}

func (r *TenantRepository) scanOne(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.ContactEmail, &t.Status, &t.PlanID, &t.DatabaseName,
		&t.OwnerIdentityID, &t.SuspendedReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}
	return &t, nil
}
