// internal/handlers/billing/billing_handler.go
package billing

import (
	"net/http"

	"wifipay-service/internal/domain/billing"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/response"
	billingUsecase "wifipay-service/internal/service/billing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BillingHandler struct {
	billing *billingUsecase.BillingService
	logger  *zap.Logger
}

func NewBillingHandler(billing *billingUsecase.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, logger: logger}
}

// ListPlans returns the subscription catalog. Public.
func (h *BillingHandler) ListPlans(c *gin.Context) {
	plans, err := h.billing.ListPlans(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load plans", err)
		return
	}
	response.Success(c, http.StatusOK, "plans", plans)
}

// Subscribe opens a plan-upgrade payment for the tenant. Owner only.
func (h *BillingHandler) Subscribe(c *gin.Context) {
	var req billing.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	resp, err := h.billing.InitiateSubscription(c.Request.Context(), &req)
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrInvalidInput):
			response.ValidationError(c, xerrors.MessageOrDefault(err, "invalid request"), err)
		case xerrors.Is(err, xerrors.ErrNotFound):
			response.NotFound(c, "plan not found")
		case xerrors.Is(err, xerrors.ErrGatewayUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "payment gateway unavailable", err)
		default:
			h.logger.Error("subscription initiation failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "subscription failed", err)
		}
		return
	}

	response.Success(c, http.StatusAccepted, "payment initiated", resp)
}

// Confirm drives one reconciliation step for a subscription payment.
func (h *BillingHandler) Confirm(c *gin.Context) {
	resp, err := h.billing.ConfirmSubscription(c.Request.Context(), c.Param("reference"))
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrNotFound):
			response.NotFound(c, "unknown payment reference")
		case xerrors.Is(err, xerrors.ErrGatewayUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "payment gateway unavailable", err)
		default:
			h.logger.Error("subscription confirmation failed",
				zap.String("reference", c.Param("reference")), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "confirmation failed", err)
		}
		return
	}
	response.Success(c, http.StatusOK, "payment status", resp)
}
