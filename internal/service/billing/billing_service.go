// internal/service/billing/billing_service.go
package billing

import (
	"context"
	"fmt"
	"time"

	"wifipay-service/internal/domain/billing"
	"wifipay-service/internal/domain/plan"
	"wifipay-service/internal/domain/subscription"
	"wifipay-service/internal/gateway/campay"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/phone"
	"wifipay-service/internal/tenancy"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// LedgerStore is the central payment ledger for subscription billing.
type LedgerStore interface {
	CreateWithSubscription(ctx context.Context, p *billing.Payment, sub *subscription.Subscription) error
	FindByReference(ctx context.Context, reference string) (*billing.Payment, error)
	MarkProcessing(ctx context.Context, reference, gatewayReference string) error
	MarkTerminal(ctx context.Context, reference string, status billing.PaymentStatus, reason string) error
	CompleteActivation(ctx context.Context, reference string, periodStart, periodEnd time.Time) (*billing.Payment, error)
}

// PlanFinder reads the subscription plan catalog.
type PlanFinder interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
	List(ctx context.Context) ([]*plan.Plan, error)
}

// Gateway is the mobile-money adapter surface.
type Gateway interface {
	Collect(ctx context.Context, req campay.CollectRequest) (*campay.CollectResult, error)
	CheckStatus(ctx context.Context, reference string) (*campay.TransactionStatus, error)
}

// Notifier pushes terminal transitions to subscribed clients. May be nil.
type Notifier interface {
	PublishPaymentEvent(reference, status, reason string)
}

const reasonGatewayUnavailable = "GatewayUnavailable"

// BillingService drives the tenant plan-upgrade flow against the central
// store: a suspended subscription plus a pending ledger row are written at
// initiation, and a successful reconciliation flips the subscription active
// for one month and repoints the tenant at the paid plan.
type BillingService struct {
	ledger   LedgerStore
	plans    PlanFinder
	gateway  Gateway
	notifier Notifier
	logger   *zap.Logger
}

func NewBillingService(ledger LedgerStore, plans PlanFinder, gateway Gateway, notifier Notifier, logger *zap.Logger) *BillingService {
	return &BillingService{
		ledger:   ledger,
		plans:    plans,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *BillingService) ListPlans(ctx context.Context) ([]*plan.Plan, error) {
	return s.plans.List(ctx)
}

// InitiateSubscription opens a billing cycle for the tenant bound to the
// request. The subscription starts suspended; only a confirmed payment
// activates it.
func (s *BillingService) InitiateSubscription(ctx context.Context, req *billing.SubscribeRequest) (*billing.SubscribeResponse, error) {
	tc, ok := tenancy.FromContext(ctx)
	if !ok {
		return nil, xerrors.Wrap(xerrors.ErrInternal, "no tenant bound to request")
	}

	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	p, err := s.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, xerrors.Wrap(err, "plan not found")
	}
	if p.IsFree {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "free plans are not purchasable")
	}

	reference := "SUB." + ulid.Make().String()
	now := time.Now()

	sub := &subscription.Subscription{
		Reference:          reference,
		TenantID:           tc.Tenant.ID,
		PlanID:             p.ID,
		Status:             subscription.SubscriptionStatusSuspended,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now,
		Amount:             p.PriceXAF,
		Currency:           "XAF",
	}
	payment := &billing.Payment{
		Reference: reference,
		TenantID:  tc.Tenant.ID,
		PlanID:    p.ID,
		Amount:    p.PriceXAF,
		Currency:  "XAF",
		Phone:     normalized,
		Status:    billing.PaymentStatusPending,
		Meta:      map[string]interface{}{"plan_id": p.ID},
	}
	if err := s.ledger.CreateWithSubscription(ctx, payment, sub); err != nil {
		return nil, err
	}

	result, err := s.gateway.Collect(ctx, campay.CollectRequest{
		Amount:            p.PriceXAF,
		Phone:             normalized,
		Description:       fmt.Sprintf("Subscription: %s", p.Name),
		ExternalReference: reference,
	})
	if err != nil {
		s.logger.Error("collect failed at subscription initiation",
			zap.String("reference", reference), zap.Error(err))
		if markErr := s.ledger.MarkTerminal(ctx, reference, billing.PaymentStatusFailed, reasonGatewayUnavailable); markErr != nil {
			s.logger.Error("failed to record gateway failure", zap.Error(markErr))
		}
		return nil, xerrors.ErrGatewayUnavailable
	}

	if err := s.ledger.MarkProcessing(ctx, reference, result.Reference); err != nil {
		return nil, err
	}

	return &billing.SubscribeResponse{
		Reference: reference,
		Status:    string(billing.PaymentStatusPending),
		Carrier:   string(phone.CarrierOf(normalized)),
	}, nil
}

// ConfirmSubscription drives one reconciliation step for a subscription
// payment. Idempotent across polling and the webhook: a terminal ledger row
// is returned untouched, and activation happens under the row's lock.
func (s *BillingService) ConfirmSubscription(ctx context.Context, reference string) (*billing.ConfirmResponse, error) {
	payment, err := s.ledger.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if payment.Status.IsTerminal() {
		return confirmResponse(payment), nil
	}

	if !payment.GatewayReference.Valid {
		return confirmResponse(payment), nil
	}

	gwStatus, err := s.gateway.CheckStatus(ctx, payment.GatewayReference.String)
	if err != nil {
		return nil, err
	}

	switch gwStatus.Status {
	case campay.StatusSuccessful:
		now := time.Now()
		activated, err := s.ledger.CompleteActivation(ctx, reference, now, now.AddDate(0, 1, 0))
		if err != nil {
			return nil, err
		}
		if activated.Status == billing.PaymentStatusSuccess {
			s.publish(reference, billing.PaymentStatusSuccess, "")
		}
		return confirmResponse(activated), nil

	case campay.StatusFailed:
		return s.terminate(ctx, payment, billing.PaymentStatusFailed, gwStatus.Reason)

	case campay.StatusCancelled:
		return s.terminate(ctx, payment, billing.PaymentStatusCancelled, gwStatus.Reason)

	default:
		return confirmResponse(payment), nil
	}
}

func (s *BillingService) terminate(ctx context.Context, payment *billing.Payment, status billing.PaymentStatus, reason string) (*billing.ConfirmResponse, error) {
	if err := s.ledger.MarkTerminal(ctx, payment.Reference, status, reason); err != nil {
		return nil, err
	}
	s.publish(payment.Reference, status, reason)
	return &billing.ConfirmResponse{
		Reference:     payment.Reference,
		Status:        string(status),
		FailureReason: reason,
	}, nil
}

// GetPayment reads one ledger row. Used by the status endpoint.
func (s *BillingService) GetPayment(ctx context.Context, reference string) (*billing.Payment, error) {
	return s.ledger.FindByReference(ctx, reference)
}

func (s *BillingService) publish(reference string, status billing.PaymentStatus, reason string) {
	if s.notifier != nil {
		s.notifier.PublishPaymentEvent(reference, string(status), reason)
	}
}

func confirmResponse(p *billing.Payment) *billing.ConfirmResponse {
	resp := &billing.ConfirmResponse{
		Reference: p.Reference,
		Status:    string(p.Status),
	}
	if p.FailureReason.Valid {
		resp.FailureReason = p.FailureReason.String
	}
	return resp
}
