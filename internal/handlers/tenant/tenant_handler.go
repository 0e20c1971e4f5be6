// internal/handlers/tenant/tenant_handler.go
package tenant

import (
	"context"
	"net/http"

	"wifipay-service/internal/domain/tenant"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/response"
	"wifipay-service/internal/tenancy"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TenantStore is the central-store surface the handler needs beyond
// provisioning.
type TenantStore interface {
	FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	UpdateStatus(ctx context.Context, slug string, status tenant.TenantStatus, reason string) error
}

type TenantHandler struct {
	provisioner *tenancy.Provisioner
	tenants     TenantStore
	logger      *zap.Logger
}

func NewTenantHandler(provisioner *tenancy.Provisioner, tenants TenantStore, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{
		provisioner: provisioner,
		tenants:     tenants,
		logger:      logger,
	}
}

// Provision creates a tenant with its isolated store, trial subscription
// and owner login. Super admin only.
func (h *TenantHandler) Provision(c *gin.Context) {
	var req tenant.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	t, err := h.provisioner.Provision(c.Request.Context(), &req)
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrInvalidInput):
			response.ValidationError(c, xerrors.MessageOrDefault(err, "invalid request"), err)
		case xerrors.Is(err, xerrors.ErrStoreAllocation), xerrors.Is(err, xerrors.ErrDuplicateEntry):
			response.Conflict(c, "tenant already exists", err)
		case xerrors.Is(err, xerrors.ErrProvisioningIncomplete):
			h.logger.Error("provisioning left incomplete",
				zap.String("slug", req.Slug), zap.Error(err))
			response.Error(c, http.StatusInternalServerError,
				"tenant created but store setup incomplete", err)
		default:
			h.logger.Error("provisioning failed",
				zap.String("slug", req.Slug), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "provisioning failed", err)
		}
		return
	}

	response.Success(c, http.StatusCreated, "tenant provisioned", t)
}

// Get returns one tenant's public record. Super admin only; tenant owners
// see their storefront through the tenant-scoped routes instead.
func (h *TenantHandler) Get(c *gin.Context) {
	t, err := h.tenants.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "tenant not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load tenant", err)
		return
	}
	response.Success(c, http.StatusOK, "tenant", t)
}

// UpdateStatus suspends, bans or reactivates a tenant. Super admin only.
// Status changes take effect on the next request: the resolver re-checks
// status every time.
func (h *TenantHandler) UpdateStatus(c *gin.Context) {
	var req tenant.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	status := tenant.TenantStatus(req.Status)
	switch status {
	case tenant.TenantStatusActive, tenant.TenantStatusTrial, tenant.TenantStatusSuspended,
		tenant.TenantStatusBanned, tenant.TenantStatusCancelled:
	default:
		response.ValidationError(c, "unknown status "+req.Status, nil)
		return
	}

	slug := c.Param("slug")
	if err := h.tenants.UpdateStatus(c.Request.Context(), slug, status, req.Reason); err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "tenant not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to update status", err)
		return
	}

	h.logger.Info("tenant status updated",
		zap.String("slug", slug), zap.String("status", req.Status))
	response.Success(c, http.StatusOK, "status updated", nil)
}
