// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"net/http"
	"strings"

	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/response"
	billingUsecase "wifipay-service/internal/service/billing"
	checkoutUsecase "wifipay-service/internal/service/checkout"
	"wifipay-service/internal/tenancy"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// notification is what the gateway posts on transaction settlement. Only
// the external reference matters: confirmation always re-reads the status
// from the gateway rather than trusting the webhook body.
type notification struct {
	ExternalReference string `json:"external_reference" form:"external_reference"`
	Status            string `json:"status" form:"status"`
}

// WebhookHandler receives gateway settlement callbacks and routes them to
// the same confirmation path the buyer's polling loop uses. The webhook is
// an accelerator, not a second source of truth: a lost callback only means
// the next poll settles the payment instead.
type WebhookHandler struct {
	checkout *checkoutUsecase.CheckoutService
	billing  *billingUsecase.BillingService
	resolver *tenancy.Resolver
	logger   *zap.Logger
}

func NewWebhookHandler(
	checkout *checkoutUsecase.CheckoutService,
	billing *billingUsecase.BillingService,
	resolver *tenancy.Resolver,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		checkout: checkout,
		billing:  billing,
		resolver: resolver,
		logger:   logger,
	}
}

// Campay handles the gateway callback. Retail references embed the tenant
// slug (VCH.<slug>.<id>) so the tenant store can be resolved without any
// session; subscription references (SUB.<id>) live in the central store.
func (h *WebhookHandler) Campay(c *gin.Context) {
	var n notification
	if err := c.ShouldBind(&n); err != nil || n.ExternalReference == "" {
		response.Error(c, http.StatusBadRequest, "missing external_reference", err)
		return
	}

	ref := n.ExternalReference
	h.logger.Info("gateway callback",
		zap.String("reference", ref), zap.String("reported_status", n.Status))

	switch {
	case strings.HasPrefix(ref, "VCH."):
		h.confirmVoucher(c, ref)
	case strings.HasPrefix(ref, "SUB."):
		h.confirmSubscription(c, ref)
	default:
		response.NotFound(c, "unknown reference format")
	}
}

func (h *WebhookHandler) confirmVoucher(c *gin.Context, ref string) {
	parts := strings.SplitN(ref, ".", 3)
	if len(parts) != 3 {
		response.NotFound(c, "unknown reference format")
		return
	}

	tc, _, err := h.resolver.Resolve(c.Request.Context(), parts[1], nil)
	if err != nil {
		h.logger.Warn("callback for unresolvable tenant",
			zap.String("reference", ref), zap.Error(err))
		response.NotFound(c, "unknown tenant")
		return
	}
	ctx := tenancy.WithTenant(c.Request.Context(), tc)

	resp, err := h.checkout.ConfirmPurchase(ctx, ref)
	if err != nil {
		h.respondError(c, ref, err)
		return
	}
	response.Success(c, http.StatusOK, "processed", resp)
}

func (h *WebhookHandler) confirmSubscription(c *gin.Context, ref string) {
	resp, err := h.billing.ConfirmSubscription(c.Request.Context(), ref)
	if err != nil {
		h.respondError(c, ref, err)
		return
	}
	response.Success(c, http.StatusOK, "processed", resp)
}

func (h *WebhookHandler) respondError(c *gin.Context, ref string, err error) {
	if xerrors.Is(err, xerrors.ErrNotFound) {
		response.NotFound(c, "unknown payment reference")
		return
	}
	h.logger.Error("callback processing failed",
		zap.String("reference", ref), zap.Error(err))
	// Non-2xx asks the gateway to retry later.
	response.Error(c, http.StatusInternalServerError, "processing failed", err)
}
