package router

import (
	"time"

	"github.com/printertechn/filaops-sub000/internal/config"
	"github.com/printertechn/filaops-sub000/internal/handler"
	"github.com/printertechn/filaops-sub000/internal/infra"
	"github.com/printertechn/filaops-sub000/internal/middleware"
	"github.com/printertechn/filaops-sub000/internal/repository"
	"github.com/printertechn/filaops-sub000/internal/service"
	"github.com/printertechn/filaops-sub000/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine plus the
// worker handlers the caller passes to StartWorkerPool.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, mailCB *infra.CircuitBreaker) (*gin.Engine, *worker.WorkerHandlers) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	mailer := infra.NewMailer(cfg)

	// ── Repositories ─────────────────────────────────────────────────────────
	itemRepo := repository.NewItemRepository(db)
	bomRepo := repository.NewBomRepository(db)
	demandRepo := repository.NewDemandRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	plannedRepo := repository.NewPlannedOrderRepository(db)
	prodRepo := repository.NewProductionOrderRepository(db)
	journalRepo := repository.NewJournalRepository(db)
	runRepo := repository.NewMRPRunRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	journalSvc := service.NewJournalService(journalRepo, db)
	ledgerSvc := service.NewLedgerService(ledgerRepo, itemRepo, journalSvc)
	resolver := service.NewBomResolver(bomRepo, itemRepo)
	nettingSvc := service.NewNettingService(ledgerRepo, plannedRepo, itemRepo, cfg.Planning)
	plannerSvc := service.NewPlannerService(plannedRepo, prodRepo, bomRepo, demandRepo, ledgerRepo, cfg.Planning)
	mrpSvc := service.NewMRPService(runRepo, demandRepo, itemRepo, plannedRepo, resolver, nettingSvc, plannerSvc, dispatcher, cfg.Planning)
	itemSvc := service.NewItemService(itemRepo)
	bomSvc := service.NewBomService(bomRepo, itemRepo, resolver)
	productionSvc := service.NewProductionService(prodRepo, bomRepo, demandRepo, resolver, ledgerSvc)

	// ── Handlers ─────────────────────────────────────────────────────────────
	itemsH := handler.NewItemsHandler(itemSvc)
	bomsH := handler.NewBomsHandler(bomSvc, resolver)
	inventoryH := handler.NewInventoryHandler(ledgerSvc)
	productionH := handler.NewProductionHandler(productionSvc)
	planningH := handler.NewPlanningHandler(mrpSvc, dispatcher)
	plannedH := handler.NewPlannedOrdersHandler(plannerSvc)
	journalH := handler.NewJournalHandler(journalSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, mailCB))

	// Protected routes — tokens are issued by the upstream API layer
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: planner, operator, quality, admin — declared per-endpoint
		anyRole := middleware.RequireRole(middleware.RolePlanner, middleware.RoleOperator, middleware.RoleQuality, middleware.RoleAdmin)

		// Items — everyone reads (catalog lookups), planner/admin write
		v1.GET("/items", anyRole, itemsH.List)
		v1.GET("/items/low-stock", anyRole, itemsH.LowStock)
		v1.GET("/items/:id", anyRole, itemsH.Get)
		items := v1.Group("/items", middleware.RequireRole(middleware.RolePlanner, middleware.RoleAdmin))
		{
			items.POST("", itemsH.Create)
			items.PUT("/:id", itemsH.Update)
			items.DELETE("/:id", itemsH.Deactivate)
		}

		// BOMs — reads open to all, writes planner/admin
		v1.GET("/items/:id/bom", anyRole, bomsH.GetActive)
		v1.GET("/items/:id/bom/versions", anyRole, bomsH.ListVersions)
		v1.GET("/items/:id/bom/explode", anyRole, bomsH.Explode)
		boms := v1.Group("/items/:id/bom", middleware.RequireRole(middleware.RolePlanner, middleware.RoleAdmin))
		{
			boms.POST("", bomsH.CreateVersion)
			boms.POST("/versions/:version/activate", bomsH.Activate)
		}

		// Inventory — operators run the floor; reads open to all
		v1.GET("/inventory/positions", anyRole, inventoryH.Positions)
		v1.GET("/inventory/positions/:item_id", anyRole, inventoryH.Position)
		v1.GET("/inventory/positions/:item_id/transactions", anyRole, inventoryH.Transactions)
		v1.GET("/inventory/scrap-reasons", anyRole, inventoryH.ScrapReasons)
		inv := v1.Group("/inventory", middleware.RequireRole(middleware.RoleOperator, middleware.RoleAdmin))
		{
			inv.POST("/receipts", inventoryH.Receive)
			inv.POST("/scrap", inventoryH.Scrap)
			inv.POST("/reservations", inventoryH.Reserve)
			inv.DELETE("/reservations/:id", inventoryH.Release)
			inv.POST("/reservations/:id/consume", inventoryH.Consume)
		}
		// Replay is a diagnostic, admin only
		v1.POST("/inventory/positions/:item_id/replay", middleware.RequireRole(middleware.RoleAdmin), inventoryH.Replay)

		// Production — operators drive the lifecycle, quality records QC
		v1.GET("/production-orders", anyRole, productionH.List)
		v1.GET("/production-orders/:id", anyRole, productionH.Get)
		v1.GET("/production-orders/:id/reprints", anyRole, productionH.ReprintHistory)
		prod := v1.Group("/production-orders", middleware.RequireRole(middleware.RoleOperator, middleware.RoleAdmin))
		{
			prod.POST("", productionH.Create)
			prod.POST("/:id/start", productionH.Start)
			prod.POST("/:id/print-complete", productionH.CompletePrint)
			prod.POST("/:id/submit-qc", productionH.SubmitQc)
			prod.POST("/:id/cancel", productionH.Cancel)
		}
		v1.POST("/production-orders/:id/qc", middleware.RequireRole(middleware.RoleQuality, middleware.RoleAdmin), productionH.RecordQc)

		// Planning — planner territory
		plan := v1.Group("/planning", middleware.RequireRole(middleware.RolePlanner, middleware.RoleAdmin))
		{
			plan.POST("/demand", planningH.CreateDemand)
			plan.POST("/demand/:id/close", planningH.CloseDemand)
			plan.POST("/mrp/run", middleware.PlanningRateLimiter(), planningH.RunMRP)
			plan.GET("/requirements", planningH.MaterialRequirements)
			plan.GET("/runs", planningH.ListRuns)
			plan.GET("/runs/:id", planningH.GetRun)
			plan.GET("/runs/:id/orders", planningH.RunOrders)
		}

		planned := v1.Group("/planned-orders", middleware.RequireRole(middleware.RolePlanner, middleware.RoleAdmin))
		{
			planned.GET("", plannedH.List)
			planned.GET("/:id", plannedH.Get)
			planned.POST("/:id/firm", plannedH.Firm)
			planned.POST("/:id/release", plannedH.Release)
			planned.POST("/:id/cancel", plannedH.Cancel)
		}

		// Journal — financial trail, planner/admin read, admin reverses
		v1.GET("/journal", middleware.RequireRole(middleware.RolePlanner, middleware.RoleAdmin), journalH.List)
		v1.GET("/journal/:id", middleware.RequireRole(middleware.RolePlanner, middleware.RoleAdmin), journalH.Get)
		v1.POST("/journal/:id/reverse", middleware.RequireRole(middleware.RoleAdmin), journalH.Reverse)
	}

	// ── Worker handlers ──────────────────────────────────────────────────────
	alertWorker := worker.NewAlertWorker(mailer, mailCB, cfg.AlertEmailTo)
	planningWorker := worker.NewPlanningWorker(mrpSvc)
	handlers := &worker.WorkerHandlers{
		Planning: planningWorker,
		Alert:    alertWorker,
	}

	return r, handlers
}
