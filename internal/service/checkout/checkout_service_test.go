package checkout

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"wifipay-service/internal/domain/billing"
	"wifipay-service/internal/domain/tenant"
	"wifipay-service/internal/domain/voucher"
	"wifipay-service/internal/gateway/campay"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/tenancy"

	"go.uber.org/zap"
)

// memStore is an in-memory double for the tenant store with the same
// claim/transition semantics as the postgres repositories.
type memStore struct {
	mu       sync.Mutex
	attempts map[string]*voucher.PaymentAttempt
	vouchers map[int64]*voucher.WifiVoucher
	packages map[int64]*voucher.WifiPackage
	claims   int
}

func newMemStore() *memStore {
	return &memStore{
		attempts: make(map[string]*voucher.PaymentAttempt),
		vouchers: make(map[int64]*voucher.WifiVoucher),
		packages: make(map[int64]*voucher.WifiPackage),
	}
}

func (m *memStore) addPackage(id int64, name string, price float64) {
	m.packages[id] = &voucher.WifiPackage{
		ID: id, Name: name, Price: price, Currency: "XAF", DurationHours: 1, IsActive: true,
	}
}

func (m *memStore) addVoucher(id, packageID int64) {
	m.vouchers[id] = &voucher.WifiVoucher{
		ID: id, PackageID: packageID,
		Username: fmt.Sprintf("user%d", id), Password: fmt.Sprintf("pass%d", id),
		Status: voucher.VoucherStatusAvailable,
	}
}

func (m *memStore) Create(_ context.Context, a *voucher.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attempts[a.Reference]; exists {
		return xerrors.ErrDuplicateEntry
	}
	a.ID = int64(len(m.attempts) + 1)
	a.AttemptedAt = time.Now()
	m.attempts[a.Reference] = a
	return nil
}

func (m *memStore) FindByReference(_ context.Context, ref string) (*voucher.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ref]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) MarkProcessing(_ context.Context, ref, gwRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ref]
	if !ok {
		return xerrors.ErrNotFound
	}
	if a.Status == billing.PaymentStatusPending {
		a.Status = billing.PaymentStatusProcessing
		a.GatewayReference = sql.NullString{String: gwRef, Valid: true}
	}
	return nil
}

func (m *memStore) MarkTerminal(_ context.Context, ref string, status billing.PaymentStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ref]
	if !ok {
		return xerrors.ErrNotFound
	}
	if a.Status.IsTerminal() {
		return nil
	}
	a.Status = status
	a.FailureReason = sql.NullString{String: reason, Valid: reason != ""}
	a.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (m *memStore) CompleteWithClaim(_ context.Context, ref string) (*voucher.WifiVoucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[ref]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	if a.Status.IsTerminal() {
		if a.Status == billing.PaymentStatusSuccess && a.VoucherID.Valid {
			cp := *m.vouchers[a.VoucherID.Int64]
			return &cp, nil
		}
		return nil, xerrors.Wrap(xerrors.ErrConflict, "attempt already "+string(a.Status))
	}

	var ids []int64
	for id, v := range m.vouchers {
		if v.PackageID == a.PackageID && v.Status == voucher.VoucherStatusAvailable {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, xerrors.ErrResourceExhausted
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	v := m.vouchers[ids[0]]
	v.Status = voucher.VoucherStatusSold
	v.PaymentReference = sql.NullString{String: a.Reference, Valid: true}
	v.GatewayReference = a.GatewayReference
	v.PurchasedAt = sql.NullTime{Time: time.Now(), Valid: true}
	v.PurchaseAmount = sql.NullFloat64{Float64: a.Amount, Valid: true}

	a.Status = billing.PaymentStatusSuccess
	a.VoucherID = sql.NullInt64{Int64: v.ID, Valid: true}
	a.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	m.claims++

	cp := *v
	return &cp, nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*voucher.WifiVoucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) FindByGatewayReference(_ context.Context, gwRef string) (*voucher.WifiVoucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vouchers {
		if v.GatewayReference.Valid && v.GatewayReference.String == gwRef {
			cp := *v
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (m *memStore) findPackage(_ context.Context, id int64) (*voucher.WifiPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// packageFinder adapts memStore to the PackageFinder interface.
type packageFinder struct{ m *memStore }

func (p packageFinder) FindByID(ctx context.Context, id int64) (*voucher.WifiPackage, error) {
	return p.m.findPackage(ctx, id)
}

// stubGateway scripts gateway answers per gateway reference.
type stubGateway struct {
	mu       sync.Mutex
	down     bool
	statuses map[string]campay.TransactionStatus
}

func newStubGateway() *stubGateway {
	return &stubGateway{statuses: make(map[string]campay.TransactionStatus)}
}

func (g *stubGateway) setStatus(gwRef string, status campay.Status, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[gwRef] = campay.TransactionStatus{Reference: gwRef, Status: status, Reason: reason}
}

func (g *stubGateway) Collect(_ context.Context, req campay.CollectRequest) (*campay.CollectResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return nil, xerrors.ErrGatewayUnavailable
	}
	return &campay.CollectResult{Reference: "gw-" + req.ExternalReference}, nil
}

func (g *stubGateway) CheckStatus(_ context.Context, ref string) (*campay.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.statuses[ref]
	if !ok {
		return nil, xerrors.ErrGatewayUnavailable
	}
	return &st, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PublishPaymentEvent(reference, status, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, reference+":"+status)
}

func tenantCtx() context.Context {
	return tenancy.WithTenant(context.Background(), &tenancy.TenantContext{
		Tenant: &tenant.Tenant{ID: 1, Slug: "demo", Status: tenant.TenantStatusActive},
	})
}

func newCheckoutFixture(store *memStore, gw *stubGateway) (*CheckoutService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	svc := NewCheckoutService(store, store, packageFinder{store}, gw, notifier, zap.NewNop())
	return svc, notifier
}

func initiate(t *testing.T, svc *CheckoutService) string {
	t.Helper()
	resp, err := svc.InitiatePurchase(tenantCtx(), &voucher.PurchaseRequest{PackageID: 1, Phone: "671234567"})
	if err != nil {
		t.Fatalf("InitiatePurchase failed: %v", err)
	}
	return resp.Reference
}

func TestInitiatePurchase(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	store.addVoucher(10, 1)
	gw := newStubGateway()
	svc, _ := newCheckoutFixture(store, gw)

	resp, err := svc.InitiatePurchase(tenantCtx(), &voucher.PurchaseRequest{PackageID: 1, Phone: "+237 671234567"})
	if err != nil {
		t.Fatalf("InitiatePurchase failed: %v", err)
	}
	if resp.Status != "pending" {
		t.Errorf("expected pending, got %s", resp.Status)
	}
	if resp.Carrier != "mtn" {
		t.Errorf("expected mtn carrier, got %s", resp.Carrier)
	}

	a, err := store.FindByReference(context.Background(), resp.Reference)
	if err != nil {
		t.Fatalf("attempt not recorded: %v", err)
	}
	if a.Status != billing.PaymentStatusProcessing {
		t.Errorf("expected processing after collect, got %s", a.Status)
	}
	// Lazy selection: only the package travels in meta, no voucher id.
	if _, found := a.Meta["voucher_id"]; found {
		t.Error("meta must not pre-pick a voucher")
	}
	if a.VoucherID.Valid {
		t.Error("no voucher may be allocated before payment confirmation")
	}
}

func TestInitiatePurchaseValidation(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	svc, _ := newCheckoutFixture(store, newStubGateway())

	t.Run("bad phone", func(t *testing.T) {
		_, err := svc.InitiatePurchase(tenantCtx(), &voucher.PurchaseRequest{PackageID: 1, Phone: "123"})
		if !xerrors.Is(err, xerrors.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unknown package", func(t *testing.T) {
		_, err := svc.InitiatePurchase(tenantCtx(), &voucher.PurchaseRequest{PackageID: 99, Phone: "671234567"})
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestInitiatePurchaseGatewayDown(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	gw := newStubGateway()
	gw.down = true
	svc, _ := newCheckoutFixture(store, gw)

	_, err := svc.InitiatePurchase(tenantCtx(), &voucher.PurchaseRequest{PackageID: 1, Phone: "671234567"})
	if !xerrors.Is(err, xerrors.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	// The attempt is recorded as failed, machine readable.
	var ref string
	for r := range store.attempts {
		ref = r
	}
	a := store.attempts[ref]
	if a.Status != billing.PaymentStatusFailed || a.FailureReason.String != "GatewayUnavailable" {
		t.Errorf("unexpected attempt state: %+v", a)
	}
}

func TestConfirmPending(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	store.addVoucher(10, 1)
	gw := newStubGateway()
	svc, _ := newCheckoutFixture(store, gw)

	ref := initiate(t, svc)
	gw.setStatus("gw-"+ref, campay.StatusPending, "")

	resp, err := svc.ConfirmPurchase(tenantCtx(), ref)
	if err != nil {
		t.Fatalf("ConfirmPurchase failed: %v", err)
	}
	if resp.Status != "processing" {
		t.Errorf("expected processing, got %s", resp.Status)
	}
	if store.claims != 0 {
		t.Error("no claim may happen while the gateway reports pending")
	}
}

func TestConfirmSuccessAllocatesOnce(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	store.addVoucher(10, 1)
	gw := newStubGateway()
	svc, notifier := newCheckoutFixture(store, gw)

	ref := initiate(t, svc)
	gw.setStatus("gw-"+ref, campay.StatusSuccessful, "")

	resp, err := svc.ConfirmPurchase(tenantCtx(), ref)
	if err != nil {
		t.Fatalf("ConfirmPurchase failed: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected success, got %s", resp.Status)
	}

	// Second confirm: identical output, zero additional mutations.
	resp2, err := svc.ConfirmPurchase(tenantCtx(), ref)
	if err != nil {
		t.Fatalf("second ConfirmPurchase failed: %v", err)
	}
	if resp2.Status != resp.Status {
		t.Errorf("idempotent confirm diverged: %s vs %s", resp.Status, resp2.Status)
	}
	if store.claims != 1 {
		t.Errorf("expected exactly one claim, got %d", store.claims)
	}
	if len(notifier.events) != 1 {
		t.Errorf("expected one event, got %v", notifier.events)
	}

	v := store.vouchers[10]
	if v.Status != voucher.VoucherStatusSold || v.PaymentReference.String != ref {
		t.Errorf("voucher not linked to the paying attempt: %+v", v)
	}
}

func TestConfirmGatewayFailure(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	store.addVoucher(10, 1)
	gw := newStubGateway()
	svc, _ := newCheckoutFixture(store, gw)

	ref := initiate(t, svc)
	gw.setStatus("gw-"+ref, campay.StatusFailed, "insufficient funds")

	resp, err := svc.ConfirmPurchase(tenantCtx(), ref)
	if err != nil {
		t.Fatalf("ConfirmPurchase failed: %v", err)
	}
	if resp.Status != "failed" || resp.FailureReason != "insufficient funds" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if store.vouchers[10].Status != voucher.VoucherStatusAvailable {
		t.Error("voucher must stay available after a failed payment")
	}
}

func TestLastUnitRace(t *testing.T) {
	// Package has one voucher. Two buyers initiate; both payments succeed at
	// the gateway. Exactly one confirm wins the claim, the other ends failed
	// with ResourceExhausted.
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	store.addVoucher(10, 1)
	gw := newStubGateway()
	svc, _ := newCheckoutFixture(store, gw)

	ref1 := initiate(t, svc)
	ref2 := initiate(t, svc)
	gw.setStatus("gw-"+ref1, campay.StatusSuccessful, "")
	gw.setStatus("gw-"+ref2, campay.StatusSuccessful, "")

	resp1, err := svc.ConfirmPurchase(tenantCtx(), ref1)
	if err != nil {
		t.Fatalf("Confirm ref1 failed: %v", err)
	}
	resp2, err := svc.ConfirmPurchase(tenantCtx(), ref2)
	if err != nil {
		t.Fatalf("Confirm ref2 failed: %v", err)
	}

	if resp1.Status != "success" {
		t.Errorf("ref1: expected success, got %s", resp1.Status)
	}
	if resp2.Status != "failed" || resp2.FailureReason != "ResourceExhausted" {
		t.Errorf("ref2: expected failed/ResourceExhausted, got %+v", resp2)
	}
	if store.claims != 1 {
		t.Errorf("expected exactly one claim, got %d", store.claims)
	}
}

func TestConcurrentConfirmsSingleReference(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	store.addVoucher(10, 1)
	gw := newStubGateway()
	svc, _ := newCheckoutFixture(store, gw)

	ref := initiate(t, svc)
	gw.setStatus("gw-"+ref, campay.StatusSuccessful, "")

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.ConfirmPurchase(tenantCtx(), ref)
			if err != nil {
				errs <- err
				return
			}
			if resp.Status != "success" {
				errs <- fmt.Errorf("unexpected status %s", resp.Status)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if store.claims != 1 {
		t.Errorf("expected exactly one claim under concurrency, got %d", store.claims)
	}
}

func TestRetrievePurchase(t *testing.T) {
	store := newMemStore()
	store.addPackage(1, "1H", 100)
	store.addVoucher(10, 1)
	gw := newStubGateway()
	svc, _ := newCheckoutFixture(store, gw)

	ref := initiate(t, svc)
	gw.setStatus("gw-"+ref, campay.StatusSuccessful, "")
	if _, err := svc.ConfirmPurchase(tenantCtx(), ref); err != nil {
		t.Fatalf("ConfirmPurchase failed: %v", err)
	}

	t.Run("by our reference", func(t *testing.T) {
		creds, err := svc.RetrievePurchase(tenantCtx(), ref)
		if err != nil {
			t.Fatalf("RetrievePurchase failed: %v", err)
		}
		if creds.Username != "user10" || creds.Password != "pass10" {
			t.Errorf("wrong credentials: %+v", creds)
		}
		if creds.PackageName != "1H" {
			t.Errorf("expected package name, got %+v", creds)
		}
	})

	t.Run("by gateway reference fallback", func(t *testing.T) {
		creds, err := svc.RetrievePurchase(tenantCtx(), "gw-"+ref)
		if err != nil {
			t.Fatalf("fallback retrieve failed: %v", err)
		}
		if creds.Username != "user10" {
			t.Errorf("wrong credentials: %+v", creds)
		}
	})

	t.Run("repeated reads are stable", func(t *testing.T) {
		first, err := svc.RetrievePurchase(tenantCtx(), ref)
		if err != nil {
			t.Fatal(err)
		}
		second, err := svc.RetrievePurchase(tenantCtx(), ref)
		if err != nil {
			t.Fatal(err)
		}
		if *first != *second {
			t.Errorf("reads diverged: %+v vs %+v", first, second)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		if _, err := svc.RetrievePurchase(tenantCtx(), "VCH.demo.NOPE"); !xerrors.Is(err, xerrors.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
