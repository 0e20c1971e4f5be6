// internal/tenancy/allocator.go
package tenancy

import (
	"context"
	"errors"
	"fmt"

	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgDuplicateDatabase is the postgres error code for CREATE DATABASE on an
// existing name.
const pgDuplicateDatabase = "42P04"

// PgAllocator allocates tenant stores as separate databases on one postgres
// server, using a maintenance connection for CREATE DATABASE.
type PgAllocator struct {
	admin *pgxpool.Pool
}

func NewPgAllocator(admin *pgxpool.Pool) *PgAllocator {
	return &PgAllocator{admin: admin}
}

func (a *PgAllocator) CreateDatabase(ctx context.Context, name string) error {
	// CREATE DATABASE cannot be parameterized; the identifier is sanitized
	// and the name itself is derived from a validated slug.
	sql := "CREATE DATABASE " + pgx.Identifier{name}.Sanitize()
	if _, err := a.admin.Exec(ctx, sql); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return xerrors.Wrap(xerrors.ErrStoreAllocation, "store name already in use: "+name)
		}
		return xerrors.Wrap(xerrors.ErrStoreAllocation, err.Error())
	}
	return nil
}

func (a *PgAllocator) ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, tenantSchema); err != nil {
		return fmt.Errorf("failed to apply tenant schema: %w", err)
	}
	return nil
}

func (a *PgAllocator) VerifySchema(ctx context.Context, pool *pgxpool.Pool) error {
	var regclass *string
	err := pool.QueryRow(ctx, "SELECT to_regclass($1)::text", "public."+verifyTable).Scan(&regclass)
	if err != nil {
		return fmt.Errorf("failed to verify tenant schema: %w", err)
	}
	if regclass == nil {
		return fmt.Errorf("tenant schema verification failed: table %s missing", verifyTable)
	}
	return nil
}

func (a *PgAllocator) SeedDefaults(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, seedPackages); err != nil {
		return fmt.Errorf("failed to seed default packages: %w", err)
	}
	return nil
}
