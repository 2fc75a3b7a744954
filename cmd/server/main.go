package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"councildigest/internal/config"
	"councildigest/internal/council"
	"councildigest/internal/extractor"
	"councildigest/internal/handlers"
	"councildigest/internal/jobs"
	"councildigest/internal/logging"
	"councildigest/internal/middleware"
	"councildigest/internal/scraper"
	"councildigest/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Council Digest Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, DataDir: %s, LiveScrape: %v)",
		cfg.Port, cfg.DataDir, cfg.AllowLiveScrape)

	// Initialize SQLite cache store
	st, err := store.New(filepath.Join(cfg.DataDir, "councildigest.db"))
	if err != nil {
		log.Fatalf("❌ Failed to open cache store: %v", err)
	}
	defer st.Close()
	log.Println("✅ Cache store initialized")

	// Initialize services
	extractorClient := extractor.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.ExtractionTimeout)
	log.Printf("✅ Extraction client initialized (model: %s)", cfg.LLMModel)

	scraperService := scraper.NewService(cfg.CouncilAgendaURL, cfg.ScraperOutputDir, cfg.ChromePath, cfg.ScrapeTimeout)

	digestService := council.NewDigestService(st, extractorClient, scraperService, cfg.ScraperOutputDir, cfg.AllowLiveScrape)
	log.Println("✅ Digest service initialized")

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	if cfg.RefreshScheduleEnabled {
		jobScheduler.Register("nightly_refresh", jobs.NewNightlyRefreshJob(digestService))
		if err := jobScheduler.Start(); err != nil {
			log.Printf("⚠️ Failed to start job scheduler: %v", err)
		}
		log.Println("🕐 Background jobs: nightly index refresh (daily 3 AM UTC)")
	} else {
		log.Println("⚠️ REFRESH_SCHEDULE_ENABLED not set; background refresh disabled")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Council Digest v1.0",
		ReadTimeout:  300 * time.Second, // first open of a meeting runs extraction and can take a while
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  300 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // report submissions are tiny
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("councildigest")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Public=%d/min, Heavy=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.PublicReadMax,
		rateLimitConfig.HeavyOpMax,
	)

	// Fiber's CORS middleware does not allow AllowCredentials with
	// wildcard origins. With the default "*" the frontend is served from
	// the same origin, so credentials aren't needed.
	allowCredentials := cfg.AllowedOrigins != "*"

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	// Global API rate limiter - first line of DDoS defense
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))
	log.Println("🛡️  [RATE-LIMIT] Global API rate limiter enabled")

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	meetingHandler := handlers.NewMeetingHandler(digestService)
	reportHandler := handlers.NewReportHandler(digestService)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")

	publicRead := middleware.PublicReadRateLimiter(rateLimitConfig)
	api.Get("/meetings", publicRead, meetingHandler.List)
	api.Get("/meetings/:code", publicRead, meetingHandler.Get)
	api.Get("/stats", publicRead, meetingHandler.Stats)
	api.Get("/debug/meeting-codes", publicRead, meetingHandler.DebugCodes)

	api.Post("/reports", reportHandler.Submit)
	api.Get("/reports/summary", publicRead, reportHandler.Summary)

	heavyOp := middleware.HeavyOpRateLimiter(rateLimitConfig)
	api.Post("/refresh", heavyOp, meetingHandler.Refresh)
	api.Post("/prewarm", heavyOp, meetingHandler.Prewarm)

	// Serve the static frontend
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./static"
	}
	if _, err := os.Stat(staticDir); err == nil {
		app.Static("/", staticDir, fiber.Static{
			Compress:      true,
			CacheDuration: 1 * time.Hour,
		})
		// SPA fallback: serve index.html for frontend routes only.
		app.Get("/*", func(c *fiber.Ctx) error {
			path := c.Path()
			if strings.HasPrefix(path, "/api/") ||
				path == "/health" ||
				path == "/metrics" {
				return c.Next()
			}
			return c.SendFile(filepath.Join(staticDir, "index.html"))
		})
		log.Printf("🌐 Frontend serving from %s", staticDir)
	} else {
		log.Printf("⚠️  Static directory %s not found; API only", staticDir)
	}

	// Start server
	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📋 Meetings: http://localhost:%s/api/meetings", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop background jobs
		jobScheduler.Stop()

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
