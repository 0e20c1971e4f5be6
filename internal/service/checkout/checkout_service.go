// internal/service/checkout/checkout_service.go
package checkout

import (
	"context"
	"fmt"

	"wifipay-service/internal/domain/billing"
	"wifipay-service/internal/domain/voucher"
	"wifipay-service/internal/gateway/campay"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/phone"
	"wifipay-service/internal/tenancy"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// AttemptStore is the tenant-scoped retail ledger.
type AttemptStore interface {
	Create(ctx context.Context, a *voucher.PaymentAttempt) error
	FindByReference(ctx context.Context, reference string) (*voucher.PaymentAttempt, error)
	MarkProcessing(ctx context.Context, reference, gatewayReference string) error
	MarkTerminal(ctx context.Context, reference string, status billing.PaymentStatus, reason string) error
	CompleteWithClaim(ctx context.Context, reference string) (*voucher.WifiVoucher, error)
}

// VoucherFinder reads the resource pool.
type VoucherFinder interface {
	FindByID(ctx context.Context, id int64) (*voucher.WifiVoucher, error)
	FindByGatewayReference(ctx context.Context, gatewayRef string) (*voucher.WifiVoucher, error)
}

// PackageFinder reads the sellable catalog.
type PackageFinder interface {
	FindByID(ctx context.Context, id int64) (*voucher.WifiPackage, error)
}

// Gateway is the mobile-money adapter surface the reconciler drives.
type Gateway interface {
	Collect(ctx context.Context, req campay.CollectRequest) (*campay.CollectResult, error)
	CheckStatus(ctx context.Context, reference string) (*campay.TransactionStatus, error)
}

// Notifier pushes terminal transitions to subscribed clients. May be nil.
type Notifier interface {
	PublishPaymentEvent(reference, status, reason string)
}

const reasonResourceExhausted = "ResourceExhausted"
const reasonGatewayUnavailable = "GatewayUnavailable"

// CheckoutService drives the retail voucher fulfillment state machine:
// pending -> processing -> {success | failed | cancelled}. Confirmation is
// poll-driven by the buyer's browser (and the gateway webhook); nothing here
// retries on its own.
type CheckoutService struct {
	attempts AttemptStore
	vouchers VoucherFinder
	packages PackageFinder
	gateway  Gateway
	notifier Notifier
	logger   *zap.Logger
}

func NewCheckoutService(
	attempts AttemptStore,
	vouchers VoucherFinder,
	packages PackageFinder,
	gateway Gateway,
	notifier Notifier,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		attempts: attempts,
		vouchers: vouchers,
		packages: packages,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

// InitiatePurchase opens a pending ledger row for one package and asks the
// gateway to collect. The voucher itself is not chosen here: allocation is
// deferred to the confirm step so that stock is only consumed by payments
// that actually succeed.
func (s *CheckoutService) InitiatePurchase(ctx context.Context, req *voucher.PurchaseRequest) (*voucher.PurchaseResponse, error) {
	tc, ok := tenancy.FromContext(ctx)
	if !ok {
		return nil, xerrors.Wrap(xerrors.ErrInternal, "no tenant bound to request")
	}

	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packages.FindByID(ctx, req.PackageID)
	if err != nil {
		return nil, xerrors.Wrap(err, "package not found")
	}
	if !pkg.IsActive {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "package is not on sale")
	}

	reference := fmt.Sprintf("VCH.%s.%s", tc.Tenant.Slug, ulid.Make().String())

	attempt := &voucher.PaymentAttempt{
		Reference: reference,
		PackageID: pkg.ID,
		Amount:    pkg.Price,
		Currency:  pkg.Currency,
		Phone:     normalized,
		Status:    billing.PaymentStatusPending,
		Meta:      map[string]interface{}{"package_id": pkg.ID},
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	result, err := s.gateway.Collect(ctx, campay.CollectRequest{
		Amount:            pkg.Price,
		Phone:             normalized,
		Description:       fmt.Sprintf("WiFi voucher: %s", pkg.Name),
		ExternalReference: reference,
	})
	if err != nil {
		// Fail closed: no gateway means no payment. The row records why.
		s.logger.Error("collect failed at initiation",
			zap.String("reference", reference), zap.Error(err))
		if markErr := s.attempts.MarkTerminal(ctx, reference, billing.PaymentStatusFailed, reasonGatewayUnavailable); markErr != nil {
			s.logger.Error("failed to record gateway failure", zap.Error(markErr))
		}
		return nil, xerrors.ErrGatewayUnavailable
	}

	if err := s.attempts.MarkProcessing(ctx, reference, result.Reference); err != nil {
		return nil, err
	}

	return &voucher.PurchaseResponse{
		Reference: reference,
		Status:    string(billing.PaymentStatusPending),
		Carrier:   string(phone.CarrierOf(normalized)),
	}, nil
}

// ConfirmPurchase drives one reconciliation step for a reference. Safe to
// call any number of times, from polling and from the webhook: a row already
// terminal is returned without side effects, and the claim underneath is a
// single conditional write.
func (s *CheckoutService) ConfirmPurchase(ctx context.Context, reference string) (*voucher.PurchaseStatusResponse, error) {
	attempt, err := s.attempts.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	// Idempotence guard.
	if attempt.Status.IsTerminal() {
		return statusResponse(attempt), nil
	}

	if !attempt.GatewayReference.Valid {
		// Collection never started; nothing to reconcile yet.
		return statusResponse(attempt), nil
	}

	gwStatus, err := s.gateway.CheckStatus(ctx, attempt.GatewayReference.String)
	if err != nil {
		return nil, err
	}

	switch gwStatus.Status {
	case campay.StatusSuccessful:
		return s.fulfill(ctx, attempt)

	case campay.StatusFailed:
		return s.terminate(ctx, attempt, billing.PaymentStatusFailed, gwStatus.Reason)

	case campay.StatusCancelled:
		return s.terminate(ctx, attempt, billing.PaymentStatusCancelled, gwStatus.Reason)

	default:
		// Still pending at the gateway: no state change, poll again later.
		return statusResponse(attempt), nil
	}
}

// fulfill performs the exactly-once allocation. The payment succeeded, so
// either we claim a unit or — when the pool ran dry under a concurrent
// buyer — the row fails with ResourceExhausted and the caller owes the
// buyer a refund or manual reconciliation.
func (s *CheckoutService) fulfill(ctx context.Context, attempt *voucher.PaymentAttempt) (*voucher.PurchaseStatusResponse, error) {
	_, err := s.attempts.CompleteWithClaim(ctx, attempt.Reference)
	switch {
	case err == nil:
		s.publish(attempt.Reference, billing.PaymentStatusSuccess, "")
		return &voucher.PurchaseStatusResponse{
			Reference: attempt.Reference,
			Status:    string(billing.PaymentStatusSuccess),
		}, nil

	case xerrors.Is(err, xerrors.ErrResourceExhausted):
		s.logger.Warn("paid attempt lost the claim race",
			zap.String("reference", attempt.Reference), zap.Int64("package_id", attempt.PackageID))
		if markErr := s.attempts.MarkTerminal(ctx, attempt.Reference, billing.PaymentStatusFailed, reasonResourceExhausted); markErr != nil {
			return nil, markErr
		}
		s.publish(attempt.Reference, billing.PaymentStatusFailed, reasonResourceExhausted)
		return &voucher.PurchaseStatusResponse{
			Reference:     attempt.Reference,
			Status:        string(billing.PaymentStatusFailed),
			FailureReason: reasonResourceExhausted,
		}, nil

	case xerrors.Is(err, xerrors.ErrConflict):
		// A concurrent confirm reached the terminal state first.
		current, findErr := s.attempts.FindByReference(ctx, attempt.Reference)
		if findErr != nil {
			return nil, findErr
		}
		return statusResponse(current), nil

	default:
		return nil, err
	}
}

func (s *CheckoutService) terminate(ctx context.Context, attempt *voucher.PaymentAttempt, status billing.PaymentStatus, reason string) (*voucher.PurchaseStatusResponse, error) {
	if err := s.attempts.MarkTerminal(ctx, attempt.Reference, status, reason); err != nil {
		return nil, err
	}
	s.publish(attempt.Reference, status, reason)
	return &voucher.PurchaseStatusResponse{
		Reference:     attempt.Reference,
		Status:        string(status),
		FailureReason: reason,
	}, nil
}

// RetrievePurchase returns the credentials bought under a reference. Reads
// are idempotent. The reference may be ours or — for buyers who lost the
// success response and only hold what the gateway told them — the gateway's,
// in which case the voucher is located by its recorded gateway reference.
func (s *CheckoutService) RetrievePurchase(ctx context.Context, reference string) (*voucher.Credentials, error) {
	attempt, err := s.attempts.FindByReference(ctx, reference)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return s.retrieveByGatewayReference(ctx, reference)
		}
		return nil, err
	}

	if attempt.Status == billing.PaymentStatusSuccess && attempt.VoucherID.Valid {
		v, err := s.vouchers.FindByID(ctx, attempt.VoucherID.Int64)
		if err != nil {
			return nil, err
		}
		return s.credentials(ctx, v)
	}

	if attempt.GatewayReference.Valid {
		// Ledger row lags the voucher linkage; the voucher itself records
		// which payment bought it.
		return s.retrieveByGatewayReference(ctx, attempt.GatewayReference.String)
	}

	return nil, xerrors.Wrap(xerrors.ErrNotFound, "no voucher allocated for "+reference)
}

func (s *CheckoutService) retrieveByGatewayReference(ctx context.Context, gatewayRef string) (*voucher.Credentials, error) {
	v, err := s.vouchers.FindByGatewayReference(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}
	return s.credentials(ctx, v)
}

func (s *CheckoutService) credentials(ctx context.Context, v *voucher.WifiVoucher) (*voucher.Credentials, error) {
	creds := &voucher.Credentials{
		Username: v.Username,
		Password: v.Password,
	}
	if pkg, err := s.packages.FindByID(ctx, v.PackageID); err == nil {
		creds.PackageName = pkg.Name
		creds.DurationHours = pkg.DurationHours
	}
	return creds, nil
}

func (s *CheckoutService) publish(reference string, status billing.PaymentStatus, reason string) {
	if s.notifier != nil {
		s.notifier.PublishPaymentEvent(reference, string(status), reason)
	}
}

func statusResponse(a *voucher.PaymentAttempt) *voucher.PurchaseStatusResponse {
	resp := &voucher.PurchaseStatusResponse{
		Reference: a.Reference,
		Status:    string(a.Status),
	}
	if a.FailureReason.Valid {
		resp.FailureReason = a.FailureReason.String
	}
	return resp
}
