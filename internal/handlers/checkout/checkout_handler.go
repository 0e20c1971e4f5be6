// internal/handlers/checkout/checkout_handler.go
package checkout

import (
	"context"
	"net/http"
	"strconv"

	"wifipay-service/internal/domain/voucher"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/response"
	checkoutUsecase "wifipay-service/internal/service/checkout"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PackageLister reads the tenant's catalog for the public storefront.
type PackageLister interface {
	ListActive(ctx context.Context) ([]*voucher.WifiPackage, error)
}

// StockCounter reports remaining claimable units per package.
type StockCounter interface {
	CountAvailable(ctx context.Context, packageID int64) (int, error)
}

// AttemptLister surfaces non-terminal ledger rows for reconciliation.
type AttemptLister interface {
	ListPending(ctx context.Context, limit int) ([]*voucher.PaymentAttempt, error)
}

type CheckoutHandler struct {
	checkout *checkoutUsecase.CheckoutService
	packages PackageLister
	stock    StockCounter
	attempts AttemptLister
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout *checkoutUsecase.CheckoutService, packages PackageLister, stock StockCounter, attempts AttemptLister, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		packages: packages,
		stock:    stock,
		attempts: attempts,
		logger:   logger,
	}
}

// ListPackages returns the tenant's sellable catalog with remaining stock.
// Public.
func (h *CheckoutHandler) ListPackages(c *gin.Context) {
	pkgs, err := h.packages.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load packages", err)
		return
	}

	items := make([]voucher.CatalogItem, 0, len(pkgs))
	for _, pkg := range pkgs {
		available, err := h.stock.CountAvailable(c.Request.Context(), pkg.ID)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "failed to load packages", err)
			return
		}
		items = append(items, voucher.CatalogItem{WifiPackage: pkg, Available: available})
	}
	response.Success(c, http.StatusOK, "packages", items)
}

// Purchase opens a voucher payment and asks the buyer's phone to approve
// the collection. Public: buyers are anonymous.
func (h *CheckoutHandler) Purchase(c *gin.Context) {
	var req voucher.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	resp, err := h.checkout.InitiatePurchase(c.Request.Context(), &req)
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrInvalidInput):
			response.ValidationError(c, xerrors.MessageOrDefault(err, "invalid request"), err)
		case xerrors.Is(err, xerrors.ErrNotFound):
			response.NotFound(c, "package not found")
		case xerrors.Is(err, xerrors.ErrGatewayUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "payment gateway unavailable", err)
		default:
			h.logger.Error("purchase initiation failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "purchase failed", err)
		}
		return
	}

	response.Success(c, http.StatusAccepted, "payment initiated", resp)
}

// Confirm drives one reconciliation step for the buyer's polling loop.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	resp, err := h.checkout.ConfirmPurchase(c.Request.Context(), c.Param("reference"))
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrNotFound):
			response.NotFound(c, "unknown payment reference")
		case xerrors.Is(err, xerrors.ErrGatewayUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "payment gateway unavailable", err)
		default:
			h.logger.Error("purchase confirmation failed",
				zap.String("reference", c.Param("reference")), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "confirmation failed", err)
		}
		return
	}
	response.Success(c, http.StatusOK, "payment status", resp)
}

// PendingPayments lists attempts stuck outside a terminal state, oldest
// first, for the owner to reconcile against gateway statements. Attempts
// abandoned mid-approval stay pending; nothing fails them automatically.
func (h *CheckoutHandler) PendingPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	attempts, err := h.attempts.ListPending(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list pending payments", err)
		return
	}
	response.Success(c, http.StatusOK, "pending payments", attempts)
}

// Voucher returns the credentials bought under a reference. The reference
// may also be the gateway's, for buyers who lost the original response.
func (h *CheckoutHandler) Voucher(c *gin.Context) {
	creds, err := h.checkout.RetrievePurchase(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no voucher for this reference")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load voucher", err)
		return
	}
	response.Success(c, http.StatusOK, "voucher", creds)
}
