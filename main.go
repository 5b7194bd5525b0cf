package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pricetracker/internal/api"
	"pricetracker/internal/cache"
	"pricetracker/internal/config"
	"pricetracker/internal/database"
	"pricetracker/internal/reconcile"
	"pricetracker/internal/services/mailer"
	"pricetracker/internal/services/scraper"
	"pricetracker/internal/store"
	"pricetracker/internal/sweep"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	if cfg.FirecrawlAPIKey == "" {
		log.Println("Warning: FIRECRAWL_API_KEY not set; extraction calls will be rejected by the backend")
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Construct clients and stores once; everything downstream gets them
	// injected.
	registry := store.NewRegistry(db)
	history := store.NewHistoryStore(db)
	scrapeClient := scraper.NewClient(cfg.FirecrawlAPIURL, cfg.FirecrawlAPIKey)
	mailClient := mailer.New(cfg.ResendAPIURL, cfg.ResendAPIKey, cfg.EmailFrom)
	engine := reconcile.NewEngine(history, cfg.DropThreshold)
	hub := sweep.NewHub()
	sweeper := sweep.NewController(registry, history, engine, scrapeClient, mailClient, hub, cfg.SweepProductTimeout, nil)

	productCache, err := cache.New(cfg.RedisAddr)
	if err != nil {
		log.Printf("Warning: redis unavailable, product cache disabled: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Serve static files from the build directory
	r.Static("/static", "./web/build/static")
	r.StaticFile("/favicon.ico", "./web/build/favicon.ico")
	r.GET("/", func(c *gin.Context) {
		c.File("./web/build/index.html")
	})
	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// Sweep progress feed
	r.GET("/ws", api.SweepFeedHandler(hub))
	// SPA fallback for client-side routing
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/ws" || strings.HasPrefix(c.Request.URL.Path, "/static/") {
			c.Status(http.StatusNotFound)
			return
		}
		c.File("./web/build/index.html")
	})

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, api.Deps{
		Registry:  registry,
		History:   history,
		Extractor: scrapeClient,
		Alerts:    mailClient,
		Sweeper:   sweeper,
		Cache:     productCache,
		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server ListenAndServe: %v", err)
		}
	}()

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server Shutdown: %v", err)
	}

	productCache.Close()
	log.Println("graceful shutdown complete")
}
