package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pathfinder/internal/config"
	"pathfinder/internal/database"
	"pathfinder/internal/handlers"
	"pathfinder/internal/health"
	"pathfinder/internal/jobs"
	"pathfinder/internal/logging"
	"pathfinder/internal/middleware"
	"pathfinder/internal/models"
	"pathfinder/internal/preflight"
	"pathfinder/internal/services"
	"pathfinder/internal/sessioncache"
	"pathfinder/internal/tags"
	"pathfinder/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Pathfinder Server...")

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s)", cfg.Port, cfg.Environment)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Run preflight checks
	checker := preflight.NewChecker(db, cfg)
	if preflight.HasFailures(checker.RunAll()) {
		log.Println("\n❌ Pre-flight checks failed. Please fix the issues above before starting the server.")
		os.Exit(1)
	}
	log.Println("✅ All pre-flight checks passed")

	// Redis is optional: without it revocations stay in-process and jobs run unlocked
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (using local revocation list)", err)
		} else {
			log.Println("✅ Redis connected successfully")
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - using local revocation list")
	}

	jwtAuth, err := auth.NewLocalJWTAuth(cfg.JWTSecret, cfg.SessionExpiry)
	if err != nil {
		log.Fatalf("❌ Failed to initialize session tokens: %v", err)
	}

	// Tags
	tagStore := tags.NewSQLStore(db)
	tagStore.OnCreate(func(created int) {
		services.GetMetrics().RecordTagsCreated(created)
	})
	resolver := tags.NewResolver(tagStore)

	// Services
	userService := services.NewUserService(db, jwtAuth)
	sessionService := services.NewSessionService(jwtAuth, userService, services.NewRevocationList(redisService), cfg.SessionCookieName)
	opportunityService := services.NewOpportunityService(db, resolver)
	bookmarkService := services.NewBookmarkService(db, opportunityService)
	toolkitService := services.NewToolkitService(db)
	paymentService := services.NewPaymentService(
		cfg.DodoAPIKey, cfg.DodoWebhookSecret, cfg.DodoEnvironment, cfg.BaseURL,
		db, userService, toolkitService,
	)
	onboardingService := services.NewOnboardingService(db, resolver, opportunityService)
	exportService := services.NewExportService(opportunityService)

	sessionCache := sessioncache.New(sessionService.Lookup,
		sessioncache.WithTTL(cfg.SessionCacheTTL),
		sessioncache.WithCapacity(cfg.SessionCacheCapacity),
	)
	log.Printf("✅ Session cache initialized (TTL: %s, capacity: %d)", cfg.SessionCacheTTL, cfg.SessionCacheCapacity)

	services.InitMetrics(sessionCache)
	log.Println("✅ Prometheus metrics initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Feed content with hot-reload; subscribers hear about every reload
	connManager := services.NewConnectionManager()
	feedService := services.NewFeedService(cfg.ContentDir)
	feedService.OnReload(func(count int) {
		connManager.Broadcast(models.FeedEvent{Type: "feed_reloaded", Count: count, At: time.Now().UTC()})
	})
	if err := feedService.Reload(); err != nil {
		log.Printf("⚠️  Failed to load feed: %v", err)
	}
	go func() {
		if err := feedService.Watch(ctx); err != nil {
			log.Printf("⚠️  Feed hot-reload disabled: %v", err)
		}
	}()

	// Background jobs
	scheduler, err := jobs.NewJobScheduler(redisService)
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := scheduler.Register(jobs.OpportunityExpiryJobName, cfg.OpportunityExpiryCron,
		jobs.NewOpportunityExpiry(opportunityService)); err != nil {
		log.Fatalf("❌ Failed to register %s job: %v", jobs.OpportunityExpiryJobName, err)
	}
	if err := scheduler.Register(jobs.PurchaseCleanupJobName, cfg.PurchaseCleanupCron,
		jobs.NewPurchaseCleanup(toolkitService, cfg.PendingPurchaseMaxAge)); err != nil {
		log.Fatalf("❌ Failed to register %s job: %v", jobs.PurchaseCleanupJobName, err)
	}
	scheduler.Start()

	// Dependency health
	healthService := health.NewService(3, 5*time.Second)
	healthService.Register(&health.DatabaseHealthCheck{DB: db}, true)
	healthService.Register(&health.RedisHealthCheck{Redis: redisService}, false)
	healthService.CheckAll(ctx)

	app := fiber.New(fiber.Config{
		AppName:        "Pathfinder v1.0",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		BodyLimit:      8 * 1024 * 1024, // spreadsheet imports
		ReadBufferSize: 16384,           // 16KB for request headers (Brave/privacy browsers send extra headers)
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("pathfinder")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins
	allowCredentials := cfg.AllowedOrigins != "*"
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	rateLimitConfig := middleware.NewRateLimitConfig(cfg)
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Auth=%d/min, Login=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AuthenticatedMax,
		rateLimitConfig.LoginPerMinute,
	)
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	setupRoutes(app, cfg, rateLimitConfig, &routeDeps{
		auth:       handlers.NewAuthHandler(userService, sessionService, sessionCache, cfg.SessionCookieSecure),
		opp:        handlers.NewOpportunityHandler(opportunityService),
		bookmark:   handlers.NewBookmarkHandler(bookmarkService),
		toolkit:    handlers.NewToolkitHandler(toolkitService, paymentService),
		onboarding: handlers.NewOnboardingHandler(onboardingService),
		feed:       handlers.NewFeedHandler(feedService),
		webhook:    handlers.NewWebhookHandler(paymentService),
		feedSocket: handlers.NewFeedSocketHandler(connManager),
		health:     handlers.NewHealthHandler(healthService),
		admin: handlers.NewAdminHandler(tagStore, resolver, exportService, userService,
			opportunityService, feedService, sessionCache, scheduler, healthService),
		sessionCache: sessionCache,
		sessions:     sessionService,
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")

		cancel()

		if err := scheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		if err := redisService.Close(); err != nil {
			log.Printf("⚠️ Error closing Redis: %v", err)
		}
	}()

	log.Printf("✅ Server listening on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("👋 Server stopped")
}
