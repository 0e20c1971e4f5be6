// internal/tenancy/resolver.go
package tenancy

import (
	"context"
	"fmt"

	"wifipay-service/internal/domain/tenant"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/session"

	"go.uber.org/zap"
)

// TenantFinder is the central-store lookup the resolver needs.
type TenantFinder interface {
	FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
}

// Resolver turns a request path slug into a TenantContext: it loads the
// tenant, checks its status, guards the session against cross-tenant reuse
// and opens the tenant's isolated store.
type Resolver struct {
	tenants  TenantFinder
	stores   StoreOpener
	sessions *session.Manager
	logger   *zap.Logger
}

func NewResolver(tenants TenantFinder, stores StoreOpener, sessions *session.Manager, logger *zap.Logger) *Resolver {
	return &Resolver{
		tenants:  tenants,
		stores:   stores,
		sessions: sessions,
		logger:   logger,
	}
}

// Resolve binds the request to the tenant owning slug. sess may be nil for
// anonymous callers. The returned bool reports whether an authenticated
// session was revoked because it was previously bound to a different
// tenant; when true the caller must treat the request as unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, slug string, sess *session.SessionData) (*TenantContext, bool, error) {
	t, err := r.tenants.FindBySlug(ctx, slug)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, false, xerrors.Wrap(xerrors.ErrNotFound, "unknown tenant "+slug)
		}
		return nil, false, err
	}

	if !t.IsActive() {
		// The message carries the status for display.
		return nil, false, xerrors.Wrap(xerrors.ErrForbidden,
			fmt.Sprintf("tenant account is %s", t.Status))
	}

	// Cross-tenant session reuse is a security violation: invalidate the
	// session and revoke its authentication before binding anew.
	revoked := false
	if sess != nil && sess.TenantSlug != "" && sess.TenantSlug != slug {
		r.logger.Warn("session addressed a different tenant, revoking",
			zap.Int64("identity_id", sess.IdentityID),
			zap.String("bound_slug", sess.TenantSlug),
			zap.String("requested_slug", slug))
		if err := r.sessions.Invalidate(ctx, sess.IdentityID, sess.JTI); err != nil {
			r.logger.Error("failed to invalidate session", zap.Error(err))
		}
		revoked = true
		sess = nil
	}

	pool, err := r.stores.Open(ctx, t.DatabaseName)
	if err != nil {
		return nil, revoked, xerrors.Wrap(xerrors.ErrInternal, err.Error())
	}

	if sess != nil && sess.TenantSlug == "" {
		if err := r.sessions.BindTenant(ctx, sess, slug); err != nil {
			r.logger.Warn("failed to bind session to tenant", zap.Error(err))
		}
	}

	return &TenantContext{Tenant: t, Pool: pool}, revoked, nil
}
