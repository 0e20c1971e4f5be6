// internal/repository/postgres/payment_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wifipay-service/internal/domain/billing"
	"wifipay-service/internal/domain/subscription"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository is the central ledger for the subscription billing flow.
type PaymentRepository struct {
	db      *pgxpool.Pool
	subs    *SubscriptionRepository
	tenants *TenantRepository
}

func NewPaymentRepository(db *pgxpool.Pool, subs *SubscriptionRepository, tenants *TenantRepository) *PaymentRepository {
	return &PaymentRepository{db: db, subs: subs, tenants: tenants}
}

const paymentColumns = `
	id, reference, tenant_id, subscription_id, plan_id, amount, currency,
	phone, status, gateway_reference, failure_reason, meta, attempted_at, completed_at
`

// CreateWithSubscription inserts the suspended subscription and its pending
// ledger row in one transaction: payment initiation is all-or-nothing.
func (r *PaymentRepository) CreateWithSubscription(ctx context.Context, p *billing.Payment, sub *subscription.Subscription) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.subs.CreateWithTx(ctx, tx, sub); err != nil {
		return err
	}
	p.SubscriptionID = sub.ID

	var metaJSON []byte
	if p.Meta != nil {
		if metaJSON, err = json.Marshal(p.Meta); err != nil {
			return fmt.Errorf("failed to marshal meta: %w", err)
		}
	}

	query := `
		INSERT INTO payments (reference, tenant_id, subscription_id, plan_id,
			amount, currency, phone, status, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, attempted_at
	`
	err = tx.QueryRow(ctx, query,
		p.Reference, p.TenantID, p.SubscriptionID, p.PlanID,
		p.Amount, p.Currency, p.Phone, p.Status, metaJSON,
	).Scan(&p.ID, &p.AttemptedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*billing.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`
	return scanPayment(r.db.QueryRow(ctx, query, reference))
}

// MarkProcessing records the gateway reference once collection is underway.
// Only a pending row may move to processing.
func (r *PaymentRepository) MarkProcessing(ctx context.Context, reference, gatewayReference string) error {
	query := `
		UPDATE payments
		SET status = 'processing', gateway_reference = $2
		WHERE reference = $1 AND status = 'pending'
	`
	if _, err := r.db.Exec(ctx, query, reference, gatewayReference); err != nil {
		return fmt.Errorf("failed to mark payment processing: %w", err)
	}
	return nil
}

// MarkTerminal moves a non-terminal row into failed/cancelled with the
// gateway's reason. A row already terminal is left untouched.
func (r *PaymentRepository) MarkTerminal(ctx context.Context, reference string, status billing.PaymentStatus, reason string) error {
	query := `
		UPDATE payments
		SET status = $2, failure_reason = NULLIF($3, ''), completed_at = NOW()
		WHERE reference = $1 AND status IN ('pending', 'processing')
	`
	if _, err := r.db.Exec(ctx, query, reference, status, reason); err != nil {
		return fmt.Errorf("failed to mark payment %s: %w", status, err)
	}
	return nil
}

// CompleteActivation is the success path of the subscription reconciler:
// under the ledger row's lock it marks the payment success, rolls the
// subscription to active with a fresh period window and repoints the tenant
// at the paid plan. Idempotent: an already-terminal row is returned as-is.
func (r *PaymentRepository) CompleteActivation(ctx context.Context, reference string, periodStart, periodEnd time.Time) (*billing.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent Confirm calls for the same reference.
	p, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return p, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = 'success', completed_at = NOW() WHERE id = $1`, p.ID); err != nil {
		return nil, fmt.Errorf("failed to mark payment success: %w", err)
	}
	if err := r.subs.ActivateWithTx(ctx, tx, p.SubscriptionID, periodStart, periodEnd); err != nil {
		return nil, err
	}
	if err := r.tenants.UpdatePlanWithTx(ctx, tx, p.TenantID, p.PlanID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	p.Status = billing.PaymentStatusSuccess
	return p, nil
}

func scanPayment(row pgx.Row) (*billing.Payment, error) {
	var p billing.Payment
	var metaJSON []byte

	err := row.Scan(
		&p.ID, &p.Reference, &p.TenantID, &p.SubscriptionID, &p.PlanID,
		&p.Amount, &p.Currency, &p.Phone, &p.Status, &p.GatewayReference,
		&p.FailureReason, &metaJSON, &p.AttemptedAt, &p.CompletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	if len(metaJSON) > 0 {
		json.Unmarshal(metaJSON, &p.Meta)
	}

	return &p, nil
}
