// internal/tenancy/context.go
package tenancy

import (
	"context"

	"wifipay-service/internal/domain/tenant"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const tenantContextKey contextKey = "tenant_context"

// TenantContext is the per-request view of one tenant: the central row and
// the connection pool of its isolated store. It is carried as a context
// value and never stored globally, so concurrent requests for different
// tenants on the same worker cannot see each other's store.
type TenantContext struct {
	Tenant *tenant.Tenant
	Pool   *pgxpool.Pool
}

// WithTenant returns a context carrying the tenant binding.
func WithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey, tc)
}

// FromContext extracts the tenant binding from the context.
func FromContext(ctx context.Context) (*TenantContext, bool) {
	tc, ok := ctx.Value(tenantContextKey).(*TenantContext)
	return tc, ok
}

// PoolFromContext returns the tenant store pool or an error when the request
// was not resolved to a tenant. Tenant-scoped repositories call this instead
// of holding a pool of their own.
func PoolFromContext(ctx context.Context) (*pgxpool.Pool, error) {
	tc, ok := FromContext(ctx)
	if !ok || tc.Pool == nil {
		return nil, xerrors.Wrap(xerrors.ErrInternal, "no tenant store bound to request")
	}
	return tc.Pool, nil
}
