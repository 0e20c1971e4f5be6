// internal/app/router.go
package app

import (
	"wifipay-service/internal/domain/identity"
	authHandler "wifipay-service/internal/handlers/auth"
	billingHandler "wifipay-service/internal/handlers/billing"
	checkoutHandler "wifipay-service/internal/handlers/checkout"
	tenantHandler "wifipay-service/internal/handlers/tenant"
	webhookHandler "wifipay-service/internal/handlers/webhook"
	wsHandler "wifipay-service/internal/handlers/ws"
	"wifipay-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler      *authHandler.AuthHandler
	TenantHandler    *tenantHandler.TenantHandler
	CheckoutHandler  *checkoutHandler.CheckoutHandler
	BillingHandler   *billingHandler.BillingHandler
	WebhookHandler   *webhookHandler.WebhookHandler
	WSHandler        *wsHandler.WSHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws/payments", h.WSHandler.Payments)

	// ==================== Gateway Callback ====================
	api.POST("/webhook/campay", h.WebhookHandler.Campay)

	// ==================== Auth ====================
	auth := api.Group("/auth")
	{
		auth.POST("/login", h.AuthHandler.Login)
		auth.POST("/logout", h.AuthMiddleware.Auth(), h.AuthHandler.Logout)
	}

	// ==================== Platform Admin ====================
	admin := api.Group("/tenants")
	admin.Use(h.AuthMiddleware.Auth(), h.AuthMiddleware.RequireRole(identity.RoleSuperAdmin))
	{
		admin.POST("", h.TenantHandler.Provision)
		admin.GET("/:slug", h.TenantHandler.Get)
		admin.PUT("/:slug/status", h.TenantHandler.UpdateStatus)
	}

	// ==================== Subscription Plans ====================
	api.GET("/plans", h.BillingHandler.ListPlans)

	// ==================== Tenant Storefront (public) ====================
	// Buyers are anonymous; OptionalAuth keeps an owner logged in while
	// browsing their own storefront.
	store := api.Group("/t/:slug")
	store.Use(h.AuthMiddleware.OptionalAuth(), h.TenantMiddleware.Resolve())
	{
		store.GET("/packages", h.CheckoutHandler.ListPackages)
		store.POST("/purchases", h.CheckoutHandler.Purchase)
		store.GET("/purchases/:reference", h.CheckoutHandler.Confirm)
		store.GET("/purchases/:reference/voucher", h.CheckoutHandler.Voucher)
	}

	// ==================== Tenant Management (owner) ====================
	manage := api.Group("/t/:slug")
	manage.Use(h.AuthMiddleware.Auth(), h.TenantMiddleware.Resolve(), h.TenantMiddleware.RequireTenantOwner())
	{
		manage.POST("/subscribe", h.BillingHandler.Subscribe)
		manage.GET("/subscribe/:reference", h.BillingHandler.Confirm)
		manage.GET("/payments/pending", h.CheckoutHandler.PendingPayments)
	}
}
