package tenancy

import (
	"context"
	"testing"
	"time"

	"wifipay-service/internal/domain/tenant"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type fakeTenantFinder struct {
	tenants map[string]*tenant.Tenant
}

func (f *fakeTenantFinder) FindBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	t, ok := f.tenants[slug]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return t, nil
}

type fakeOpener struct {
	opened []string
}

func (f *fakeOpener) Open(_ context.Context, databaseName string) (*pgxpool.Pool, error) {
	f.opened = append(f.opened, databaseName)
	return &pgxpool.Pool{}, nil
}

func newResolverFixture(t *testing.T) (*Resolver, *session.Manager, *fakeOpener) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	sessions := session.NewManager(client)

	finder := &fakeTenantFinder{tenants: map[string]*tenant.Tenant{
		"cafe-du-port": {
			ID: 1, Slug: "cafe-du-port", Status: tenant.TenantStatusActive,
			DatabaseName: "wifipay_t_cafe_du_port", OwnerIdentityID: 42,
		},
		"hotel-flamingo": {
			ID: 2, Slug: "hotel-flamingo", Status: tenant.TenantStatusActive,
			DatabaseName: "wifipay_t_hotel_flamingo", OwnerIdentityID: 77,
		},
		"banned-bar": {
			ID: 3, Slug: "banned-bar", Status: tenant.TenantStatusBanned,
			DatabaseName: "wifipay_t_banned_bar", OwnerIdentityID: 42,
		},
	}}

	opener := &fakeOpener{}
	return NewResolver(finder, opener, sessions, zap.NewNop()), sessions, opener
}

func activeSession(t *testing.T, sessions *session.Manager) *session.SessionData {
	t.Helper()
	sess := &session.SessionData{
		JTI:        "01JTESTJTI",
		IdentityID: 42,
		Role:       "tenant_owner",
		LoginAt:    time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	if err := sessions.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sess
}

func TestResolveUnknownSlug(t *testing.T) {
	r, _, _ := newResolverFixture(t)

	_, _, err := r.Resolve(context.Background(), "nope", nil)
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveInactiveTenantForbidden(t *testing.T) {
	r, _, _ := newResolverFixture(t)

	_, _, err := r.Resolve(context.Background(), "banned-bar", nil)
	if !xerrors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// The message carries the status for display.
	if got := err.Error(); got != "tenant account is banned: forbidden" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestResolveOpensIsolatedStore(t *testing.T) {
	r, _, opener := newResolverFixture(t)

	tc, revoked, err := r.Resolve(context.Background(), "cafe-du-port", nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if revoked {
		t.Error("anonymous request must not revoke anything")
	}
	if tc.Tenant.Slug != "cafe-du-port" {
		t.Errorf("wrong tenant: %+v", tc.Tenant)
	}
	if len(opener.opened) != 1 || opener.opened[0] != "wifipay_t_cafe_du_port" {
		t.Errorf("expected the tenant's own store to be opened, got %v", opener.opened)
	}
}

func TestResolveBindsSessionOnFirstUse(t *testing.T) {
	r, sessions, _ := newResolverFixture(t)
	ctx := context.Background()
	sess := activeSession(t, sessions)

	if _, _, err := r.Resolve(ctx, "cafe-du-port", sess); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	stored, err := sessions.GetSession(ctx, sess.IdentityID, sess.JTI)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.TenantSlug != "cafe-du-port" {
		t.Errorf("session not bound, slug=%q", stored.TenantSlug)
	}
}

func TestResolveCrossTenantSessionRevoked(t *testing.T) {
	r, sessions, _ := newResolverFixture(t)
	ctx := context.Background()
	sess := activeSession(t, sessions)

	if _, _, err := r.Resolve(ctx, "cafe-du-port", sess); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}

	// Same session now addresses another tenant's slug: the session must be
	// invalidated before any tenant data is served.
	sess, err := sessions.GetSession(ctx, sess.IdentityID, sess.JTI)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	tc, revoked, err := r.Resolve(ctx, "hotel-flamingo", sess)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if !revoked {
		t.Error("expected the session to be revoked")
	}
	if tc.Tenant.Slug != "hotel-flamingo" {
		t.Errorf("wrong tenant resolved: %+v", tc.Tenant)
	}

	if _, err := sessions.GetSession(ctx, 42, "01JTESTJTI"); !xerrors.Is(err, xerrors.ErrSessionExpired) {
		t.Errorf("expected session gone, got %v", err)
	}
}

func TestTenantContextRoundTrip(t *testing.T) {
	tc := &TenantContext{Tenant: &tenant.Tenant{Slug: "cafe-du-port"}}
	ctx := WithTenant(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok || got.Tenant.Slug != "cafe-du-port" {
		t.Fatalf("FromContext = %+v, %v", got, ok)
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context must not carry a tenant")
	}
}
