// internal/repository/postgres/payment_attempt_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wifipay-service/internal/domain/billing"
	"wifipay-service/internal/domain/voucher"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/tenancy"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PaymentAttemptRepository is the tenant-store ledger for the retail voucher
// flow. The pool comes from the request's tenant binding.
type PaymentAttemptRepository struct {
	vouchers *VoucherRepository
}

func NewPaymentAttemptRepository(vouchers *VoucherRepository) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{vouchers: vouchers}
}

const attemptColumns = `
	id, reference, package_id, voucher_id, amount, currency, phone, status,
	gateway_reference, failure_reason, meta, attempted_at, completed_at
`

func (r *PaymentAttemptRepository) Create(ctx context.Context, a *voucher.PaymentAttempt) error {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return err
	}

	var metaJSON []byte
	if a.Meta != nil {
		if metaJSON, err = json.Marshal(a.Meta); err != nil {
			return fmt.Errorf("failed to marshal meta: %w", err)
		}
	}

	query := `
		INSERT INTO payment_attempts (reference, package_id, amount, currency, phone, status, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, attempted_at
	`
	err = pool.QueryRow(ctx, query,
		a.Reference, a.PackageID, a.Amount, a.Currency, a.Phone, a.Status, metaJSON,
	).Scan(&a.ID, &a.AttemptedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create payment attempt: %w", err)
	}

	return nil
}

func (r *PaymentAttemptRepository) FindByReference(ctx context.Context, reference string) (*voucher.PaymentAttempt, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE reference = $1`
	return scanAttempt(pool.QueryRow(ctx, query, reference))
}

// MarkProcessing records the gateway reference; only a pending row moves.
func (r *PaymentAttemptRepository) MarkProcessing(ctx context.Context, reference, gatewayReference string) error {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE payment_attempts
		SET status = 'processing', gateway_reference = $2
		WHERE reference = $1 AND status = 'pending'
	`
	if _, err := pool.Exec(ctx, query, reference, gatewayReference); err != nil {
		return fmt.Errorf("failed to mark attempt processing: %w", err)
	}
	return nil
}

// MarkTerminal moves a non-terminal row into failed/cancelled. Already
// terminal rows are untouched: transitions are monotonic.
func (r *PaymentAttemptRepository) MarkTerminal(ctx context.Context, reference string, status billing.PaymentStatus, reason string) error {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE payment_attempts
		SET status = $2, failure_reason = NULLIF($3, ''), completed_at = NOW()
		WHERE reference = $1 AND status IN ('pending', 'processing')
	`
	if _, err := pool.Exec(ctx, query, reference, status, reason); err != nil {
		return fmt.Errorf("failed to mark attempt %s: %w", status, err)
	}
	return nil
}

// CompleteWithClaim is the success path of the retail reconciler: under the
// attempt row's lock it claims one available voucher of the attempt's
// package and marks the ledger row success with a real voucher relation.
// Returns the voucher, or ErrResourceExhausted when the pool ran dry — in
// that case the attempt row is left untouched for the caller to fail it.
// Idempotent: a row already success returns its voucher without mutations.
func (r *PaymentAttemptRepository) CompleteWithClaim(ctx context.Context, reference string) (*voucher.WifiVoucher, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock: concurrent Confirm calls for one reference serialize here.
	a, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return nil, err
	}

	if a.Status.IsTerminal() {
		if a.Status == billing.PaymentStatusSuccess && a.VoucherID.Valid {
			return r.vouchers.FindByID(ctx, a.VoucherID.Int64)
		}
		return nil, xerrors.Wrap(xerrors.ErrConflict, "attempt already "+string(a.Status))
	}

	v, err := r.vouchers.ClaimWithTx(ctx, tx, a.PackageID, a.Reference, a.GatewayReference.String, a.Amount)
	if err != nil {
		// Rolling back releases the attempt lock without touching the row.
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payment_attempts
		SET status = 'success', voucher_id = $2, completed_at = NOW()
		WHERE id = $1
	`, a.ID, v.ID); err != nil {
		return nil, fmt.Errorf("failed to mark attempt success: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return v, nil
}

// ListPending returns attempts stuck outside a terminal state, oldest first,
// for operator reconciliation.
func (r *PaymentAttemptRepository) ListPending(ctx context.Context, limit int) ([]*voucher.PaymentAttempt, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE status IN ('pending', 'processing')
		ORDER BY attempted_at ASC
		LIMIT $1
	`
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*voucher.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (*voucher.PaymentAttempt, error) {
	var a voucher.PaymentAttempt
	var metaJSON []byte

	err := row.Scan(
		&a.ID, &a.Reference, &a.PackageID, &a.VoucherID, &a.Amount, &a.Currency,
		&a.Phone, &a.Status, &a.GatewayReference, &a.FailureReason, &metaJSON,
		&a.AttemptedAt, &a.CompletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
	}

	if len(metaJSON) > 0 {
		json.Unmarshal(metaJSON, &a.Meta)
	}

	return &a, nil
}
