// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"cellhub/internal/core/numerator"
	"cellhub/internal/domain/audit"
	"cellhub/internal/domain/catalogs/product"
	"cellhub/internal/domain/catalogs/warehouse"
	"cellhub/internal/domain/devices"
	"cellhub/internal/domain/ledger/credit"
	"cellhub/internal/domain/ledger/stock"
	"cellhub/internal/domain/sales"
	"cellhub/internal/domain/serviceorder"
	"cellhub/internal/domain/tradein"
	"cellhub/internal/infrastructure/http/v1/handlers"
	"cellhub/internal/infrastructure/http/v1/middleware"
	"cellhub/internal/infrastructure/storage/postgres"
	"cellhub/internal/infrastructure/storage/postgres/catalog_repo"
	"cellhub/internal/infrastructure/storage/postgres/document_repo"
	"cellhub/internal/infrastructure/storage/postgres/ledger_repo"
	"cellhub/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// TxManager coordinates transactions for repositories and services
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// Numerator for document number generation
	Numerator numerator.Generator

	// Auditor records entity change trails
	Auditor audit.Recorder
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Repositories share the transaction manager so any of them can join
	// a transaction started by a service.
	warehouseRepo := catalog_repo.NewWarehouseRepo(cfg.TxManager)
	productRepo := catalog_repo.NewProductRepo(cfg.TxManager)
	deviceRepo := catalog_repo.NewDeviceRepo(cfg.TxManager)
	stockRepo := ledger_repo.NewStockRepo(cfg.TxManager)
	creditRepo := ledger_repo.NewCreditRepo(cfg.TxManager)
	orderRepo := document_repo.NewServiceOrderRepo(cfg.TxManager)
	evaluationRepo := document_repo.NewEvaluationRepo(cfg.TxManager)
	saleRepo := document_repo.NewSaleRepo(cfg.TxManager)

	warehouseService := warehouse.NewService(warehouseRepo, cfg.Numerator, cfg.TxManager)
	productService := product.NewService(productRepo, cfg.Numerator, cfg.TxManager)
	deviceService := devices.NewService(deviceRepo, cfg.TxManager)
	stockService := stock.NewService(
		stockRepo, warehouseRepo, productRepo, deviceRepo,
		cfg.Numerator, cfg.Auditor, cfg.TxManager,
	)
	creditService := credit.NewService(creditRepo, cfg.Auditor, cfg.TxManager)
	orderService := serviceorder.NewService(
		orderRepo, deviceRepo, stockService,
		cfg.Numerator, cfg.Auditor, cfg.TxManager,
	)
	tradeinService := tradein.NewService(
		evaluationRepo, deviceRepo, orderService, creditService,
		cfg.Numerator, cfg.Auditor, cfg.TxManager,
	)
	salesService := sales.NewService(
		saleRepo, deviceRepo, productRepo, stockService, creditService, orderService,
		cfg.Numerator, cfg.Auditor, cfg.TxManager,
	)

	base := handlers.NewBaseHandler()

	// API v1
	apiV1 := router.Group("/api/v1")
	{
		catalogs := apiV1.Group("/catalog")
		handlers.NewWarehouseHandler(base, warehouseService).RegisterRoutes(catalogs.Group("/warehouses"))
		handlers.NewProductHandler(base, productService).RegisterRoutes(catalogs.Group("/products"))

		handlers.NewDeviceHandler(base, deviceService).RegisterRoutes(apiV1.Group("/devices"))
		handlers.NewStockHandler(base, stockService).RegisterRoutes(apiV1.Group("/stock"))
		handlers.NewCreditHandler(base, creditService).RegisterRoutes(apiV1.Group("/credits"))
		handlers.NewTradeInHandler(base, tradeinService).RegisterRoutes(apiV1.Group("/evaluations"))
		handlers.NewServiceOrderHandler(base, orderService).RegisterRoutes(apiV1.Group("/service-orders"))
		handlers.NewSalesHandler(base, salesService).RegisterRoutes(apiV1.Group("/sales"))
	}

	return router
}
