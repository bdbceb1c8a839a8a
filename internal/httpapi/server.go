package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/internal/stripeconnect"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	logger    *zap.Logger
	store     *gormstore.Store
	occupancy *occupancy.Service
	stripe    *stripeconnect.Service
	cfg       Config
}

// Dependencies carries everything the HTTP API serves.
type Dependencies struct {
	Logger    *zap.Logger
	Store     *gormstore.Store
	Occupancy *occupancy.Service
	Stripe    *stripeconnect.Service
}

// Run boots the HTTP API using the supplied configuration and blocks until
// the context is canceled or the server fails.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if deps.Store == nil || deps.Occupancy == nil || deps.Stripe == nil {
		return fmt.Errorf("config: store, occupancy, and stripe dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		logger:    logger,
		store:     deps.Store,
		occupancy: deps.Occupancy,
		stripe:    deps.Stripe,
		cfg:       cfg,
	}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storage api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", headerAPIKey},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Stripe calls this; signature verification replaces auth.
	router.POST("/webhooks/stripe", handler.handleStripeWebhook)

	// Unauthenticated storefront surface for renters.
	public := router.Group("/public")
	public.GET("/facilities/:facilityId/units", handler.handlePublicListUnits)
	public.POST("/rental/checkout", handler.handlePublicCheckout)

	api := router.Group("/api/v1")
	api.Use(handler.apiKeyMiddleware())
	api.POST("/login", handler.handleLogin)
	api.POST("/logout", handler.handleLogout)

	authed := api.Group("")
	authed.Use(handler.sessionMiddleware())

	system := authed.Group("")
	system.Use(requireRoles(gormstore.RoleSystemAdmin, gormstore.RoleSystemUser))
	system.POST("/companies", handler.handleCreateCompany)
	system.GET("/companies", handler.handleListCompanies)
	system.DELETE("/companies/:companyId", handler.handleDeleteCompany)
	system.POST("/jobs/sweep-delinquency", handler.handleSweepDelinquency)
	system.POST("/jobs/accrue-monthly", handler.handleAccrueMonthly)
	system.GET("/tenants/export.csv", handler.handleExportTenants)

	scoped := authed.Group("")
	scoped.Use(requireRoles(gormstore.RoleSystemAdmin, gormstore.RoleSystemUser, gormstore.RoleCompanyAdmin))
	scoped.GET("/companies/:companyId", handler.handleGetCompany)
	scoped.PATCH("/companies/:companyId", handler.handleUpdateCompany)
	scoped.POST("/companies/:companyId/onboarding-link", handler.handleOnboardingLink)
	scoped.POST("/companies/:companyId/sync-requirements", handler.handleSyncRequirements)

	scoped.POST("/facilities", handler.handleCreateFacility)
	scoped.GET("/facilities", handler.handleListFacilities)
	scoped.GET("/facilities/:facilityId", handler.handleGetFacility)
	scoped.PATCH("/facilities/:facilityId", handler.handleUpdateFacility)
	scoped.DELETE("/facilities/:facilityId", handler.handleDeleteFacility)
	scoped.POST("/facilities/:facilityId/units", handler.handleCreateUnit)
	scoped.GET("/facilities/:facilityId/units", handler.handleListUnits)

	scoped.GET("/units/:unitId", handler.handleGetUnit)
	scoped.PATCH("/units/:unitId", handler.handleUpdateUnit)
	scoped.DELETE("/units/:unitId", handler.handleDeleteUnit)
	scoped.POST("/units/:unitId/notes", handler.handleCreateUnitNote)
	scoped.GET("/units/:unitId/notes", handler.handleListUnitNotes)

	scoped.POST("/tenants", handler.handleRentUnits)
	scoped.GET("/tenants", handler.handleListTenants)
	scoped.GET("/tenants/:tenantId", handler.handleGetTenant)
	scoped.PATCH("/tenants/:tenantId", handler.handleUpdateTenant)
	scoped.DELETE("/tenants/:tenantId", handler.handleDeleteTenant)
	scoped.POST("/tenants/:tenantId/units", handler.handleAddUnit)
	scoped.POST("/tenants/:tenantId/move-out", handler.handleMoveOut)
	scoped.POST("/tenants/:tenantId/notes", handler.handleCreateTenantNote)
	scoped.GET("/tenants/:tenantId/notes", handler.handleListTenantNotes)
	scoped.POST("/tenants/:tenantId/payments", handler.handleCollectPayment)
	scoped.GET("/tenants/:tenantId/payments", handler.handleListPayments)

	scoped.POST("/rental/checkout", handler.handleOperatorCheckout)

	scoped.GET("/events", handler.handleListEvents)
	scoped.GET("/rentals", handler.handleListRentals)

	return router
}
