// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"wifipay-service/internal/config"
	"wifipay-service/internal/db"
	"wifipay-service/internal/gateway/campay"
	authHandler "wifipay-service/internal/handlers/auth"
	billingHandler "wifipay-service/internal/handlers/billing"
	checkoutHandler "wifipay-service/internal/handlers/checkout"
	tenantHandler "wifipay-service/internal/handlers/tenant"
	webhookHandler "wifipay-service/internal/handlers/webhook"
	wsHandler "wifipay-service/internal/handlers/ws"
	"wifipay-service/internal/middleware"
	"wifipay-service/internal/pkg/jwt"
	"wifipay-service/internal/pkg/session"
	"wifipay-service/internal/repository/postgres"
	authUsecase "wifipay-service/internal/service/auth"
	billingUsecase "wifipay-service/internal/service/billing"
	checkoutUsecase "wifipay-service/internal/service/checkout"
	"wifipay-service/internal/tenancy"
	"wifipay-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- Central PostgreSQL -----
	centralPool, err := db.ConnectPostgres(ctx, s.cfg.CentralDBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to central store: %w", err)
	}
	if err := db.MigrateCentral(ctx, centralPool); err != nil {
		return err
	}

	// Admin connection for tenant store allocation.
	adminPool, err := db.ConnectPostgres(ctx, s.cfg.AdminDBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to admin store: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- JWT & Sessions -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}
	sessionManager := session.NewManager(redisClient)

	// ----- Gateway -----
	gateway := campay.NewClient(s.cfg.Campay, redisClient, logger)

	// ----- Central repositories -----
	identityRepo := postgres.NewIdentityRepository(centralPool)
	tenantRepo := postgres.NewTenantRepository(centralPool)
	planRepo := postgres.NewPlanRepository(centralPool)
	subscriptionRepo := postgres.NewSubscriptionRepository(centralPool)
	paymentRepo := postgres.NewPaymentRepository(centralPool, subscriptionRepo, tenantRepo)

	// ----- Tenant-scoped repositories (stateless, pool from context) -----
	packageRepo := postgres.NewPackageRepository()
	voucherRepo := postgres.NewVoucherRepository()
	attemptRepo := postgres.NewPaymentAttemptRepository(voucherRepo)

	// ----- Tenancy -----
	registry := tenancy.NewRegistry(s.cfg.TenantDSNTemplate, logger)
	resolver := tenancy.NewResolver(tenantRepo, registry, sessionManager, logger)
	allocator := tenancy.NewPgAllocator(adminPool)
	provisioner := tenancy.NewProvisioner(allocator, registry, planRepo, tenantRepo, identityRepo, logger)

	// ----- WebSocket hub -----
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// ----- Services -----
	authService := authUsecase.NewAuthService(identityRepo, jwtManager, sessionManager, logger)
	checkoutService := checkoutUsecase.NewCheckoutService(attemptRepo, voucherRepo, packageRepo, gateway, hub, logger)
	billingService := billingUsecase.NewBillingService(paymentRepo, planRepo, gateway, hub, logger)

	// ----- Super admin bootstrap -----
	if err := authService.EnsureSuperAdminExists(ctx, s.cfg.SuperAdminEmail, s.cfg.SuperAdminPass); err != nil {
		logger.Error("failed to bootstrap super admin", zap.Error(err))
	}

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService, logger)
	tenantHandlerInst := tenantHandler.NewTenantHandler(provisioner, tenantRepo, logger)
	checkoutHandlerInst := checkoutHandler.NewCheckoutHandler(checkoutService, packageRepo, voucherRepo, attemptRepo, logger)
	billingHandlerInst := billingHandler.NewBillingHandler(billingService, logger)
	webhookHandlerInst := webhookHandler.NewWebhookHandler(checkoutService, billingService, resolver, logger)
	wsHandlerInst := wsHandler.NewWSHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)
	tenantMiddleware := middleware.NewTenantMiddleware(resolver)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:      authHandlerInst,
		TenantHandler:    tenantHandlerInst,
		CheckoutHandler:  checkoutHandlerInst,
		BillingHandler:   billingHandlerInst,
		WebhookHandler:   webhookHandlerInst,
		WSHandler:        wsHandlerInst,
		AuthMiddleware:   authMiddleware,
		TenantMiddleware: tenantMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
