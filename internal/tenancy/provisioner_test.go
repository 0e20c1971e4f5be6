package tenancy

import (
	"context"
	"errors"
	"testing"

	"wifipay-service/internal/domain/identity"
	"wifipay-service/internal/domain/plan"
	"wifipay-service/internal/domain/subscription"
	"wifipay-service/internal/domain/tenant"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type fakeAllocator struct {
	created      []string
	failVerify   bool
	failSeed     bool
	duplicateDBs map[string]bool
}

func (f *fakeAllocator) CreateDatabase(_ context.Context, name string) error {
	if f.duplicateDBs[name] {
		return xerrors.Wrap(xerrors.ErrStoreAllocation, "store name already in use: "+name)
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeAllocator) ApplySchema(context.Context, *pgxpool.Pool) error { return nil }

func (f *fakeAllocator) VerifySchema(context.Context, *pgxpool.Pool) error {
	if f.failVerify {
		return errors.New("table wifi_vouchers missing")
	}
	return nil
}

func (f *fakeAllocator) SeedDefaults(context.Context, *pgxpool.Pool) error {
	if f.failSeed {
		return errors.New("seed failed")
	}
	return nil
}

type fakePlanFinder struct{}

func (fakePlanFinder) FindDefaultFree(context.Context) (*plan.Plan, error) {
	return &plan.Plan{ID: 1, Name: "Free", IsFree: true}, nil
}

type fakeCentral struct {
	tenants []*tenant.Tenant
	subs    []*subscription.Subscription
	fail    bool
}

func (f *fakeCentral) CreateWithTrial(_ context.Context, t *tenant.Tenant, sub *subscription.Subscription) error {
	if f.fail {
		return errors.New("central insert failed")
	}
	t.ID = int64(len(f.tenants) + 1)
	sub.TenantID = t.ID
	f.tenants = append(f.tenants, t)
	f.subs = append(f.subs, sub)
	return nil
}

type fakeOwners struct {
	byEmail map[string]*identity.Identity
}

func (f *fakeOwners) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	if id, ok := f.byEmail[email]; ok {
		return id, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeOwners) Create(_ context.Context, id *identity.Identity) error {
	id.ID = int64(len(f.byEmail) + 1)
	f.byEmail[id.Email] = id
	return nil
}

func provisionRequest() *tenant.ProvisionRequest {
	return &tenant.ProvisionRequest{
		Name:         "Cafe du Port",
		Slug:         "cafe-du-port",
		ContactEmail: "contact@cafeduport.cm",
		OwnerEmail:   "owner@cafeduport.cm",
		OwnerName:    "Owner",
		OwnerPass:    "s3cret-pass",
	}
}

func newProvisionerFixture(alloc *fakeAllocator, central *fakeCentral) *Provisioner {
	return NewProvisioner(
		alloc,
		&fakeOpener{},
		fakePlanFinder{},
		central,
		&fakeOwners{byEmail: map[string]*identity.Identity{}},
		zap.NewNop(),
	)
}

func TestProvisionHappyPath(t *testing.T) {
	alloc := &fakeAllocator{}
	central := &fakeCentral{}
	p := newProvisionerFixture(alloc, central)

	got, err := p.Provision(context.Background(), provisionRequest())
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if got.DatabaseName != "wifipay_t_cafe_du_port" {
		t.Errorf("unexpected store name %q", got.DatabaseName)
	}
	if got.Status != tenant.TenantStatusActive {
		t.Errorf("unexpected status %s", got.Status)
	}
	if len(central.subs) != 1 {
		t.Fatalf("expected one trial subscription, got %d", len(central.subs))
	}

	trial := central.subs[0]
	if trial.Status != subscription.SubscriptionStatusActive || trial.Amount != 0 {
		t.Errorf("unexpected trial subscription: %+v", trial)
	}
	wantDays := trial.CurrentPeriodEnd.Sub(trial.CurrentPeriodStart).Hours() / 24
	if wantDays < 29.9 || wantDays > 30.1 {
		t.Errorf("trial window is %.1f days, want 30", wantDays)
	}
}

func TestProvisionInvalidSlug(t *testing.T) {
	p := newProvisionerFixture(&fakeAllocator{}, &fakeCentral{})

	req := provisionRequest()
	req.Slug = "Bad Slug!"
	if _, err := p.Provision(context.Background(), req); !xerrors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProvisionStoreNameCollision(t *testing.T) {
	alloc := &fakeAllocator{duplicateDBs: map[string]bool{"wifipay_t_cafe_du_port": true}}
	central := &fakeCentral{}
	p := newProvisionerFixture(alloc, central)

	_, err := p.Provision(context.Background(), provisionRequest())
	if !xerrors.Is(err, xerrors.ErrStoreAllocation) {
		t.Fatalf("expected ErrStoreAllocation, got %v", err)
	}
	if len(central.tenants) != 0 {
		t.Error("no tenant may be committed after an allocation failure")
	}
}

func TestProvisionCentralFailureLeavesNoTenant(t *testing.T) {
	alloc := &fakeAllocator{}
	central := &fakeCentral{fail: true}
	p := newProvisionerFixture(alloc, central)

	if _, err := p.Provision(context.Background(), provisionRequest()); err == nil {
		t.Fatal("expected error")
	}
	// The store was allocated and is now orphaned: accepted gap.
	if len(alloc.created) != 1 {
		t.Errorf("expected the store to have been allocated, got %v", alloc.created)
	}
	if len(central.tenants) != 0 {
		t.Error("no tenant may be visible after a central failure")
	}
}

func TestProvisionVerificationFailure(t *testing.T) {
	// Scenario: schema-apply verification fails after the central commit.
	// The tenant row must remain and the error must be ProvisioningIncomplete.
	alloc := &fakeAllocator{failVerify: true}
	central := &fakeCentral{}
	p := newProvisionerFixture(alloc, central)

	_, err := p.Provision(context.Background(), provisionRequest())
	if !xerrors.Is(err, xerrors.ErrProvisioningIncomplete) {
		t.Fatalf("expected ErrProvisioningIncomplete, got %v", err)
	}
	if len(central.tenants) != 1 {
		t.Errorf("tenant row must still exist centrally, got %d rows", len(central.tenants))
	}
}

func TestProvisionSeedFailure(t *testing.T) {
	alloc := &fakeAllocator{failSeed: true}
	p := newProvisionerFixture(alloc, &fakeCentral{})

	if _, err := p.Provision(context.Background(), provisionRequest()); !xerrors.Is(err, xerrors.ErrProvisioningIncomplete) {
		t.Fatalf("expected ErrProvisioningIncomplete, got %v", err)
	}
}

func TestDatabaseNameFor(t *testing.T) {
	if got := DatabaseNameFor("cafe-du-port"); got != "wifipay_t_cafe_du_port" {
		t.Errorf("got %q", got)
	}
}
