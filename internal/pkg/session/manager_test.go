package session

import (
	"context"
	"testing"
	"time"

	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManager(client), mr
}

func testSession() *SessionData {
	now := time.Now()
	return &SessionData{
		JTI:        "01JTESTJTI",
		IdentityID: 42,
		Email:      "owner@example.com",
		Role:       "tenant_owner",
		LoginAt:    now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	sess := testSession()

	if err := m.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := m.GetSession(ctx, sess.IdentityID, sess.JTI)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Email != sess.Email || got.TenantSlug != "" {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := m.Invalidate(ctx, sess.IdentityID, sess.JTI); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if _, err := m.GetSession(ctx, sess.IdentityID, sess.JTI); !xerrors.Is(err, xerrors.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestBindTenant(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	sess := testSession()

	if err := m.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := m.BindTenant(ctx, sess, "cafe-du-port"); err != nil {
		t.Fatalf("BindTenant failed: %v", err)
	}

	got, err := m.GetSession(ctx, sess.IdentityID, sess.JTI)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.TenantSlug != "cafe-du-port" {
		t.Errorf("expected bound slug cafe-du-port, got %q", got.TenantSlug)
	}
}

func TestCreateExpiredSessionRejected(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	sess := testSession()
	sess.ExpiresAt = time.Now().Add(-time.Minute)

	if err := m.CreateSession(ctx, sess); err == nil {
		t.Fatal("expected error creating already-expired session")
	}
}

func TestExpiredKeyReportsSessionExpired(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)
	sess := testSession()

	if err := m.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := m.GetSession(ctx, sess.IdentityID, sess.JTI); !xerrors.Is(err, xerrors.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}
