// internal/repository/postgres/package_repo.go
package postgres

import (
	"context"
	"fmt"

	"wifipay-service/internal/domain/voucher"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/tenancy"

	"github.com/jackc/pgx/v5"
)

// PackageRepository reads the sellable catalog out of the tenant store bound
// to the request context.
type PackageRepository struct{}

func NewPackageRepository() *PackageRepository {
	return &PackageRepository{}
}

const packageColumns = `
	id, name, price, currency, duration_hours, data_cap_mb, is_active, created_at
`

func (r *PackageRepository) FindByID(ctx context.Context, id int64) (*voucher.WifiPackage, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + packageColumns + ` FROM wifi_packages WHERE id = $1`
	return scanPackage(pool.QueryRow(ctx, query, id))
}

func (r *PackageRepository) ListActive(ctx context.Context) ([]*voucher.WifiPackage, error) {
	pool, err := tenancy.PoolFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + packageColumns + ` FROM wifi_packages WHERE is_active = TRUE ORDER BY price ASC`
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []*voucher.WifiPackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}

	return packages, rows.Err()
}

func scanPackage(row pgx.Row) (*voucher.WifiPackage, error) {
	var p voucher.WifiPackage
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Currency, &p.DurationHours,
		&p.DataCapMB, &p.IsActive, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan package: %w", err)
	}
	return &p, nil
}
