package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricetracker/internal/config"
	"pricetracker/internal/database"
	"pricetracker/internal/reconcile"
	"pricetracker/internal/services/mailer"
	"pricetracker/internal/services/scraper"
	"pricetracker/internal/store"
	"pricetracker/internal/sweep"

	"github.com/joho/godotenv"
)

var (
	interval  = flag.Int("interval", 3600, "sweep interval in seconds")
	once      = flag.Bool("once", false, "run a single sweep and exit")
	dbURL     = flag.String("db", "", "database connection string (overrides DATABASE_URL)")
	logFile   = flag.String("log", "", "log file path (default stdout)")
	threshold = flag.Float64("threshold", 0, "price drop alert threshold (overrides PRICE_DROP_THRESHOLD)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var logWriter *os.File
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		logWriter = f
	} else {
		logWriter = os.Stdout
	}
	logger := log.New(logWriter, "[PriceCheck] ", log.LstdFlags)

	cfg := config.Load()
	if *dbURL != "" {
		cfg.DatabaseURL = *dbURL
	}
	if *threshold > 0 {
		cfg.DropThreshold = *threshold
	}

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database initialization failed: %v", err)
	}

	registry := store.NewRegistry(db)
	history := store.NewHistoryStore(db)
	engine := reconcile.NewEngine(history, cfg.DropThreshold)
	scrapeClient := scraper.NewClient(cfg.FirecrawlAPIURL, cfg.FirecrawlAPIKey)
	mailClient := mailer.New(cfg.ResendAPIURL, cfg.ResendAPIKey, cfg.EmailFrom)

	controller := sweep.NewController(registry, history, engine, scrapeClient, mailClient, nil, cfg.SweepProductTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("price check started (interval=%ds threshold=%.2f once=%v)", *interval, cfg.DropThreshold, *once)

	runSweep(ctx, controller, logger)
	if *once {
		return
	}

	ticker := time.NewTicker(time.Duration(*interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runSweep(ctx, controller, logger)
		case <-ctx.Done():
			logger.Println("price check stopped")
			return
		}
	}
}

func runSweep(ctx context.Context, controller *sweep.Controller, logger *log.Logger) {
	report, err := controller.Run(ctx)
	if err != nil {
		logger.Printf("sweep failed: %v", err)
		return
	}

	errors := 0
	for _, result := range report.Results {
		if result.Status != "success" {
			errors++
			logger.Printf("  %s: %s", result.URL, result.Message)
		}
	}
	logger.Printf("%s: %d products processed, %d errors", report.Message, report.Processed, errors)
}
