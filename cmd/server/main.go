package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	httpAdapter "github.com/harborline/tablepos/internal/adapters/http"
	"github.com/harborline/tablepos/internal/adapters/postgres"
	redisRepo "github.com/harborline/tablepos/internal/adapters/redis"
	"github.com/harborline/tablepos/internal/config"
	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/events"
	"github.com/harborline/tablepos/internal/middleware"
	"github.com/harborline/tablepos/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	if cfg.RedisPassword != "" {
		redisOpts.Password = cfg.RedisPassword
	}

	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("✓ Redis connection established")

	// Connect to PostgreSQL
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("✓ PostgreSQL connection established")

	// Initialize repositories
	postgresRepo, err := postgres.NewRepository(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to initialize postgres repository: %v", err)
	}
	sessionRepo := redisRepo.NewRepository(rdb)

	// Event bus for the floor SSE view
	eventBus := events.NewEventBus()

	// Services share one set of per-ticket locks
	tableService := service.NewTableService(
		postgresRepo.TableRepository(),
		postgresRepo.TicketRepository(),
		eventBus,
	)
	locks := service.NewTicketLocks()
	ticketService := service.NewTicketService(
		postgresRepo.TicketRepository(),
		postgresRepo.LineRepository(),
		postgresRepo.ProductRepository(),
		tableService,
		eventBus,
		locks,
	)
	authService := service.NewAuthService(
		postgresRepo.OperatorRepository(),
		sessionRepo,
		cfg.JWTSecret,
		time.Duration(cfg.SessionTTLHour)*time.Hour,
	)
	settlementService := service.NewSettlementService(
		postgresRepo.TicketRepository(),
		ticketService,
		authService,
		eventBus,
		locks,
	)
	reportService := service.NewReportService(
		postgresRepo.ReportRepository(),
		cfg.VenueName,
		cfg.ReportTimezone,
	)

	handler := httpAdapter.NewHandler(
		ticketService,
		settlementService,
		tableService,
		authService,
		reportService,
		postgresRepo.ProductRepository(),
		eventBus,
	)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      fmt.Sprintf("%s POS API", cfg.VenueName),
		ServerHeader: "Fiber",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", handler.Health)

	// Auth
	app.Post("/api/auth/login-pin", handler.LoginPIN)

	api := app.Group("/api", middleware.AuthMiddleware(authService))

	api.Post("/auth/logout", handler.Logout)
	api.Get("/events", handler.SSEEvents)
	api.Get("/menu", handler.GetMenu)

	// Floor
	api.Get("/tables", handler.GetTables)
	api.Get("/tables/reconcile", middleware.RequireRoles(core.OperatorRoleManager, core.OperatorRoleAdmin), handler.ReconcileTables)
	api.Get("/tables/:id/ticket", handler.GetTableTicket)
	api.Post("/tables", middleware.RequireRoles(core.OperatorRoleManager, core.OperatorRoleAdmin), handler.CreateTable)
	api.Patch("/tables/:id", middleware.RequireRoles(core.OperatorRoleManager, core.OperatorRoleAdmin), handler.UpdateTable)
	api.Delete("/tables/:id", middleware.RequireRoles(core.OperatorRoleManager, core.OperatorRoleAdmin), handler.DeactivateTable)

	// Tickets and lines
	api.Post("/tickets", handler.CreateTicket)
	api.Get("/tickets/counter", handler.GetCounterTickets)
	api.Get("/tickets/:id", handler.GetTicket)
	api.Post("/tickets/:id/lines", handler.AddLine)
	api.Post("/tickets/:id/request-bill", handler.RequestBill)
	api.Post("/tickets/:id/cancel", handler.CancelTicket)
	api.Post("/tickets/:id/abandon", handler.AbandonTicket)
	api.Patch("/lines/:id/quantity", handler.UpdateLineQuantity)
	api.Patch("/lines/:id/price", handler.UpdateLinePrice)
	api.Patch("/lines/:id/note", handler.UpdateLineNote)
	api.Post("/lines/:id/cancel", handler.CancelLine)
	api.Post("/lines/:id/comp", handler.CompLine)

	// Settlement
	api.Post("/tickets/:id/discount", handler.ApplyDiscount)
	api.Post("/tickets/:id/pay/cash", handler.PayCash)
	api.Post("/tickets/:id/pay/card", handler.PayCard)
	api.Post("/tickets/:id/pay/split", handler.PaySplit)
	api.Post("/tickets/:id/settlement", handler.OpenSettlementSession)
	api.Get("/settlement/:sessionId", handler.GetSettlementSession)
	api.Post("/settlement/:sessionId/select", handler.SelectSettlementUnit)
	api.Post("/settlement/:sessionId/pay", handler.PaySettlementSelection)
	api.Delete("/settlement/:sessionId", handler.AbandonSettlementSession)

	// Reports
	api.Get("/reports/overview", handler.ReportOverview)
	api.Get("/reports/trend", handler.ReportTrend)
	api.Get("/reports/top-products", handler.ReportTopProducts)
	api.Get("/reports/tickets", middleware.RequireRoles(core.OperatorRoleManager, core.OperatorRoleAdmin), handler.ReportPaidTickets)
	api.Get("/reports/daily.pdf", middleware.RequireRoles(core.OperatorRoleManager, core.OperatorRoleAdmin), handler.ReportDailyPDF)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.AppPort)
	log.Printf("🚀 Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
