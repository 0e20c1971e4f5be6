// internal/repository/postgres/voucher_repo.go
package postgres

import (
	"context"
	"fmt"

	"wifipay-service/internal/domain/voucher"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/tenancy"

	"github.com/jackc/pgx/v5"
)

// VoucherRepository handles the resource pool in the tenant store bound to
// the request context.
type VoucherRepository struct{}

func NewVoucherRepository() *VoucherRepository {
	return &VoucherRepository{}
}

const voucherColumns = `
	id, package_id, username, password, status, payment_reference,
	gateway_reference, purchased_at, purchase_amount, created_at
`

func (r *VoucherRepository) FindByID(ctx context.Context, id int64) (*voucher.WifiVoucher, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + voucherColumns + ` FROM wifi_vouchers WHERE id = $1`
	return scanVoucher(pool.QueryRow(ctx, query, id))
}

// FindByGatewayReference locates a sold voucher by the gateway reference of
// the payment that bought it. Fallback read path for buyers who lost the
// success response.
func (r *VoucherRepository) FindByGatewayReference(ctx context.Context, gatewayRef string) (*voucher.WifiVoucher, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + voucherColumns + ` FROM wifi_vouchers WHERE gateway_reference = $1`
	return scanVoucher(pool.QueryRow(ctx, query, gatewayRef))
}

// ClaimWithTx atomically allocates one available unit of a package to a
// payment attempt. The subselect with SKIP LOCKED makes concurrent claims
// line up on distinct units; when none remains, ErrResourceExhausted.
func (r *VoucherRepository) ClaimWithTx(ctx context.Context, tx pgx.Tx, packageID int64, paymentReference, gatewayReference string, amount float64) (*voucher.WifiVoucher, error) {
	query := `
		UPDATE wifi_vouchers
		SET status = 'sold',
			payment_reference = $2,
			gateway_reference = $3,
			purchased_at = NOW(),
			purchase_amount = $4
		WHERE id = (
			SELECT id FROM wifi_vouchers
			WHERE package_id = $1 AND status = 'available'
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + voucherColumns

	v, err := scanVoucher(tx.QueryRow(ctx, query, packageID, paymentReference, gatewayReference, amount))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrResourceExhausted
		}
		return nil, err
	}
	return v, nil
}

// CountAvailable reports remaining stock for a package.
func (r *VoucherRepository) CountAvailable(ctx context.Context, packageID int64) (int, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wifi_vouchers WHERE package_id = $1 AND status = 'available'`,
		packageID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vouchers: %w", err)
	}
	return count, nil
}

func scanVoucher(row pgx.Row) (*voucher.WifiVoucher, error) {
	var v voucher.WifiVoucher
	err := row.Scan(
		&v.ID, &v.PackageID, &v.Username, &v.Password, &v.Status,
		&v.PaymentReference, &v.GatewayReference, &v.PurchasedAt,
		&v.PurchaseAmount, &v.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan voucher: %w", err)
	}
	return &v, nil
}
