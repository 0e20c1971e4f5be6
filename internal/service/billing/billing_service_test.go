package billing

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"wifipay-service/internal/domain/billing"
	"wifipay-service/internal/domain/plan"
	"wifipay-service/internal/domain/subscription"
	"wifipay-service/internal/domain/tenant"
	"wifipay-service/internal/gateway/campay"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/tenancy"

	"go.uber.org/zap"
)

// memLedger mirrors the postgres ledger semantics in memory: monotonic
// status transitions and activation under a single critical section.
type memLedger struct {
	mu            sync.Mutex
	payments      map[string]*billing.Payment
	subscriptions map[int64]*subscription.Subscription
	tenantPlans   map[int64]int64
	nextSubID     int64
	activations   int
}

func newMemLedger() *memLedger {
	return &memLedger{
		payments:      make(map[string]*billing.Payment),
		subscriptions: make(map[int64]*subscription.Subscription),
		tenantPlans:   make(map[int64]int64),
	}
}

func (m *memLedger) CreateWithSubscription(_ context.Context, p *billing.Payment, sub *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.payments[p.Reference]; exists {
		return xerrors.ErrDuplicateEntry
	}
	m.nextSubID++
	sub.ID = m.nextSubID
	m.subscriptions[sub.ID] = sub
	p.SubscriptionID = sub.ID
	p.ID = int64(len(m.payments) + 1)
	p.AttemptedAt = time.Now()
	m.payments[p.Reference] = p
	return nil
}

func (m *memLedger) FindByReference(_ context.Context, ref string) (*billing.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[ref]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memLedger) MarkProcessing(_ context.Context, ref, gwRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[ref]
	if !ok {
		return xerrors.ErrNotFound
	}
	if p.Status == billing.PaymentStatusPending {
		p.Status = billing.PaymentStatusProcessing
		p.GatewayReference = sql.NullString{String: gwRef, Valid: true}
	}
	return nil
}

func (m *memLedger) MarkTerminal(_ context.Context, ref string, status billing.PaymentStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[ref]
	if !ok {
		return xerrors.ErrNotFound
	}
	if p.Status.IsTerminal() {
		return nil
	}
	p.Status = status
	p.FailureReason = sql.NullString{String: reason, Valid: reason != ""}
	p.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (m *memLedger) CompleteActivation(_ context.Context, ref string, periodStart, periodEnd time.Time) (*billing.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[ref]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	if p.Status.IsTerminal() {
		cp := *p
		return &cp, nil
	}
	p.Status = billing.PaymentStatusSuccess
	p.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}

	sub := m.subscriptions[p.SubscriptionID]
	sub.Status = subscription.SubscriptionStatusActive
	sub.CurrentPeriodStart = periodStart
	sub.CurrentPeriodEnd = periodEnd
	sub.NextPaymentDate = sql.NullTime{Time: periodEnd, Valid: true}

	m.tenantPlans[p.TenantID] = p.PlanID
	m.activations++

	cp := *p
	return &cp, nil
}

type memPlans struct{ plans map[int64]*plan.Plan }

func (m memPlans) FindByID(_ context.Context, id int64) (*plan.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m memPlans) List(_ context.Context) ([]*plan.Plan, error) {
	var out []*plan.Plan
	for _, p := range m.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

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

func tenantCtx() context.Context {
	return tenancy.WithTenant(context.Background(), &tenancy.TenantContext{
		Tenant: &tenant.Tenant{ID: 7, Slug: "demo", Status: tenant.TenantStatusActive, PlanID: 1},
	})
}

func newBillingFixture() (*BillingService, *memLedger, *stubGateway) {
	ledger := newMemLedger()
	plans := memPlans{plans: map[int64]*plan.Plan{
		1: {ID: 1, Name: "Free", IsFree: true},
		2: {ID: 2, Name: "Pro", PriceXAF: 15000},
	}}
	gw := newStubGateway()
	svc := NewBillingService(ledger, plans, gw, nil, zap.NewNop())
	return svc, ledger, gw
}

func TestInitiateSubscription(t *testing.T) {
	svc, ledger, _ := newBillingFixture()

	resp, err := svc.InitiateSubscription(tenantCtx(), &billing.SubscribeRequest{PlanID: 2, Phone: "695551234"})
	if err != nil {
		t.Fatalf("InitiateSubscription failed: %v", err)
	}
	if !strings.HasPrefix(resp.Reference, "SUB.") {
		t.Errorf("subscription references carry the SUB prefix, got %s", resp.Reference)
	}
	if resp.Carrier != "orange" {
		t.Errorf("expected orange carrier, got %s", resp.Carrier)
	}

	p := ledger.payments[resp.Reference]
	if p.Status != billing.PaymentStatusProcessing {
		t.Errorf("expected processing after collect, got %s", p.Status)
	}
	sub := ledger.subscriptions[p.SubscriptionID]
	if sub.Status != subscription.SubscriptionStatusSuspended {
		t.Errorf("new subscription must start suspended, got %s", sub.Status)
	}
	if got := ledger.tenantPlans[7]; got != 0 {
		t.Errorf("tenant plan must not change before confirmation, got %d", got)
	}
}

func TestInitiateSubscriptionRejectsFreePlan(t *testing.T) {
	svc, _, _ := newBillingFixture()
	_, err := svc.InitiateSubscription(tenantCtx(), &billing.SubscribeRequest{PlanID: 1, Phone: "695551234"})
	if !xerrors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestInitiateSubscriptionGatewayDown(t *testing.T) {
	svc, ledger, gw := newBillingFixture()
	gw.down = true

	_, err := svc.InitiateSubscription(tenantCtx(), &billing.SubscribeRequest{PlanID: 2, Phone: "695551234"})
	if !xerrors.Is(err, xerrors.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	for _, p := range ledger.payments {
		if p.Status != billing.PaymentStatusFailed || p.FailureReason.String != "GatewayUnavailable" {
			t.Errorf("unexpected ledger state: %+v", p)
		}
	}
}

func TestConfirmSubscriptionActivates(t *testing.T) {
	svc, ledger, gw := newBillingFixture()

	resp, err := svc.InitiateSubscription(tenantCtx(), &billing.SubscribeRequest{PlanID: 2, Phone: "695551234"})
	if err != nil {
		t.Fatal(err)
	}
	gw.setStatus("gw-"+resp.Reference, campay.StatusSuccessful, "")

	before := time.Now()
	confirm, err := svc.ConfirmSubscription(tenantCtx(), resp.Reference)
	if err != nil {
		t.Fatalf("ConfirmSubscription failed: %v", err)
	}
	if confirm.Status != "success" {
		t.Fatalf("expected success, got %s", confirm.Status)
	}

	p := ledger.payments[resp.Reference]
	sub := ledger.subscriptions[p.SubscriptionID]
	if sub.Status != subscription.SubscriptionStatusActive {
		t.Errorf("subscription not activated: %s", sub.Status)
	}
	wantEnd := before.AddDate(0, 1, 0)
	if sub.CurrentPeriodEnd.Before(wantEnd.Add(-time.Minute)) || sub.CurrentPeriodEnd.After(wantEnd.Add(time.Minute)) {
		t.Errorf("period end not one month out: %v", sub.CurrentPeriodEnd)
	}
	if ledger.tenantPlans[7] != 2 {
		t.Errorf("tenant not moved to the paid plan, got plan %d", ledger.tenantPlans[7])
	}

	// Second confirm is a read, not a second activation.
	again, err := svc.ConfirmSubscription(tenantCtx(), resp.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != "success" || ledger.activations != 1 {
		t.Errorf("confirm must be idempotent: status=%s activations=%d", again.Status, ledger.activations)
	}
}

func TestConfirmSubscriptionFailure(t *testing.T) {
	svc, ledger, gw := newBillingFixture()

	resp, err := svc.InitiateSubscription(tenantCtx(), &billing.SubscribeRequest{PlanID: 2, Phone: "695551234"})
	if err != nil {
		t.Fatal(err)
	}
	gw.setStatus("gw-"+resp.Reference, campay.StatusFailed, "payer declined")

	confirm, err := svc.ConfirmSubscription(tenantCtx(), resp.Reference)
	if err != nil {
		t.Fatalf("ConfirmSubscription failed: %v", err)
	}
	if confirm.Status != "failed" || confirm.FailureReason != "payer declined" {
		t.Errorf("unexpected response: %+v", confirm)
	}

	p := ledger.payments[resp.Reference]
	sub := ledger.subscriptions[p.SubscriptionID]
	if sub.Status != subscription.SubscriptionStatusSuspended {
		t.Errorf("failed payment must leave the subscription suspended, got %s", sub.Status)
	}
	if _, moved := ledger.tenantPlans[7]; moved {
		t.Error("tenant plan must not change on failure")
	}
}

func TestConfirmSubscriptionPending(t *testing.T) {
	svc, ledger, gw := newBillingFixture()

	resp, err := svc.InitiateSubscription(tenantCtx(), &billing.SubscribeRequest{PlanID: 2, Phone: "695551234"})
	if err != nil {
		t.Fatal(err)
	}
	gw.setStatus("gw-"+resp.Reference, campay.StatusPending, "")

	confirm, err := svc.ConfirmSubscription(tenantCtx(), resp.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if confirm.Status != "processing" {
		t.Errorf("expected processing, got %s", confirm.Status)
	}
	if ledger.activations != 0 {
		t.Error("no activation may happen while the gateway reports pending")
	}
}

func TestConfirmSubscriptionUnknownReference(t *testing.T) {
	svc, _, _ := newBillingFixture()
	if _, err := svc.ConfirmSubscription(tenantCtx(), "SUB.NOPE"); !xerrors.Is(err, xerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
