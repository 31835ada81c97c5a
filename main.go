package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripwise-backend/config"
	"tripwise-backend/handlers"
	"tripwise-backend/metrics"
	"tripwise-backend/middleware"
	"tripwise-backend/models"
	"tripwise-backend/services"
	"tripwise-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: config.NewGormLogger(),
	})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector()
	registry.MustRegister(collector)

	clk := clock.WallClock

	// --- Notification delivery ---
	whatsapp := workers.NewWhatsAppClient(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIKey, cfg.WhatsAppAPIKeyHeader, cfg.WhatsAppTimeout, cfg.WhatsAppRatePerSecond)
	if err := whatsapp.Ready(); err != nil {
		log.Printf("⚠️  %v: dispatch passes will fail until WHATSAPP_API_URL and WHATSAPP_API_KEY are set", err)
	}
	dispatcher := workers.NewDispatcher(db, whatsapp, clk, collector, cfg.DispatchBatchSize, cfg.DispatchConcurrency, cfg.CountryCode)

	// --- Attendance ---
	members := services.NewMembershipService(db, cfg.CountryCode)
	settings := services.NewSettingsService(db)
	badges := services.NewBadgeService(db, clk, services.DBGalleryCounter{DB: db}, collector)
	progress := services.NewProgressService(db, collector)
	checkIn := services.NewCheckInService(db, clk, members, settings, badges, progress, collector, services.CheckInConfig{
		QRSecret:   []byte(cfg.QRTokenSecret),
		QRTTL:      cfg.QRTokenTTL,
		CardPrefix: cfg.CardTokenPrefix,
		Location:   cfg.Location(),
		Locale:     cfg.Locale,
	})
	queue := services.NewNotificationQueue(db, dispatcher, collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := workers.StartDispatchScheduler(ctx, dispatcher, cfg.DispatchInterval, cfg.DispatchStaleAfter)
	if err != nil {
		log.Fatal("failed to start dispatch scheduler: ", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "tripwise-backend",
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} ${latency} ${method} ${path} user=${reqHeader:X-User-ID}\n",
	}))

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayServiceToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-User-Role, X-User-Roles, X-User-Name, X-User-Phone",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// ✅ Secured routes: /s/ needs user context, /s/admin/ an admin role
	secured := app.Group("/s", middleware.UserContextMiddleware())
	admin := secured.Group("/admin", middleware.RequireAdmin())
	handlers.SetupCheckInRoutes(secured, admin, checkIn)
	handlers.SetupBadgeRoutes(secured, admin, badges, members)
	handlers.SetupNotificationRoutes(admin, queue, dispatcher)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", cfg.Origins())

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
