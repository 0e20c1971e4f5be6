// internal/tenancy/provisioner.go
package tenancy

import (
	"context"
	"regexp"
	"strings"
	"time"

	"wifipay-service/internal/domain/identity"
	"wifipay-service/internal/domain/plan"
	"wifipay-service/internal/domain/subscription"
	"wifipay-service/internal/domain/tenant"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// StoreAllocator performs the physical store lifecycle steps.
type StoreAllocator interface {
	CreateDatabase(ctx context.Context, name string) error
	ApplySchema(ctx context.Context, pool *pgxpool.Pool) error
	VerifySchema(ctx context.Context, pool *pgxpool.Pool) error
	SeedDefaults(ctx context.Context, pool *pgxpool.Pool) error
}

// PlanFinder resolves the default plan new tenants start on.
type PlanFinder interface {
	FindDefaultFree(ctx context.Context) (*plan.Plan, error)
}

// TenantCreator inserts the tenant and its trial subscription in a single
// central-store transaction.
type TenantCreator interface {
	CreateWithTrial(ctx context.Context, t *tenant.Tenant, sub *subscription.Subscription) error
}

// OwnerStore manages the owner identity a tenant is provisioned for.
type OwnerStore interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	Create(ctx context.Context, id *identity.Identity) error
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,30}[a-z0-9]$`)

const trialDays = 30

// Provisioner runs the one-time tenant creation workflow: allocate an
// isolated store, commit the tenant centrally, apply and verify the tenant
// schema, seed the default catalog.
type Provisioner struct {
	allocator StoreAllocator
	stores    StoreOpener
	plans     PlanFinder
	central   TenantCreator
	owners    OwnerStore
	logger    *zap.Logger
}

func NewProvisioner(
	allocator StoreAllocator,
	stores StoreOpener,
	plans PlanFinder,
	central TenantCreator,
	owners OwnerStore,
	logger *zap.Logger,
) *Provisioner {
	return &Provisioner{
		allocator: allocator,
		stores:    stores,
		plans:     plans,
		central:   central,
		owners:    owners,
		logger:    logger,
	}
}

// DatabaseNameFor derives the deterministic store name for a slug.
func DatabaseNameFor(slug string) string {
	return "wifipay_t_" + strings.ReplaceAll(slug, "-", "_")
}

// Provision creates a tenant end to end. A failure before the central commit
// leaves no visible tenant (the allocated store may be orphaned); a failure
// after it returns ErrProvisioningIncomplete with the tenant row already
// committed — terminal, surfaced to the operator, never retried silently.
func (p *Provisioner) Provision(ctx context.Context, req *tenant.ProvisionRequest) (*tenant.Tenant, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "invalid tenant slug "+req.Slug)
	}

	dbName := DatabaseNameFor(slug)
	if err := p.allocator.CreateDatabase(ctx, dbName); err != nil {
		return nil, err
	}

	defaultPlan, err := p.plans.FindDefaultFree(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "no default plan configured")
	}

	owner, err := p.resolveOwner(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := &tenant.Tenant{
		Slug:            slug,
		Name:            req.Name,
		ContactEmail:    req.ContactEmail,
		Status:          tenant.TenantStatusActive,
		PlanID:          defaultPlan.ID,
		DatabaseName:    dbName,
		OwnerIdentityID: owner.ID,
	}
	trial := &subscription.Subscription{
		Reference:          "TRIAL." + ulid.Make().String(),
		PlanID:             defaultPlan.ID,
		Status:             subscription.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, trialDays),
		Amount:             0,
		Currency:           "XAF",
	}

	if err := p.central.CreateWithTrial(ctx, t, trial); err != nil {
		// No tenant is visible; the store allocated above is orphaned.
		// Accepted cleanup gap.
		p.logger.Error("central tenant insert failed, store orphaned",
			zap.String("slug", slug), zap.String("database", dbName), zap.Error(err))
		return nil, err
	}

	pool, err := p.stores.Open(ctx, dbName)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrProvisioningIncomplete, err.Error())
	}
	if err := p.allocator.ApplySchema(ctx, pool); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrProvisioningIncomplete, err.Error())
	}
	if err := p.allocator.VerifySchema(ctx, pool); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrProvisioningIncomplete, err.Error())
	}
	if err := p.allocator.SeedDefaults(ctx, pool); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrProvisioningIncomplete, err.Error())
	}

	p.logger.Info("tenant provisioned",
		zap.String("slug", slug), zap.String("database", dbName), zap.Int64("tenant_id", t.ID))
	return t, nil
}

func (p *Provisioner) resolveOwner(ctx context.Context, req *tenant.ProvisionRequest) (*identity.Identity, error) {
	owner, err := p.owners.FindByEmail(ctx, req.OwnerEmail)
	if err == nil {
		return owner, nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.OwnerPass), bcrypt.DefaultCost)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to hash owner password")
	}
	owner = &identity.Identity{
		Email:        req.OwnerEmail,
		PasswordHash: string(hash),
		FullName:     req.OwnerName,
		Role:         identity.RoleTenantOwner,
	}
	if err := p.owners.Create(ctx, owner); err != nil {
		return nil, err
	}
	return owner, nil
}
