package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string
	JWTSecret   string

	// Extraction backend (Firecrawl-compatible scrape API)
	FirecrawlAPIURL string
	FirecrawlAPIKey string

	// Email delivery (Resend-compatible API)
	ResendAPIURL string
	ResendAPIKey string
	EmailFrom    string

	// Price drop alerting
	DropThreshold float64

	// Per-product budget inside a sweep
	SweepProductTimeout time.Duration

	// Optional product summary cache
	RedisAddr string
}

func Load() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "root:pricetracker@tcp(127.0.0.1:3306)/pricetracker?charset=utf8mb4&parseTime=True&loc=Local"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key"),

		FirecrawlAPIURL: getEnv("FIRECRAWL_API_URL", "https://api.firecrawl.dev"),
		FirecrawlAPIKey: getEnv("FIRECRAWL_API_KEY", ""),

		ResendAPIURL: getEnv("RESEND_API_URL", "https://api.resend.com"),
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "onboarding@resend.dev"),

		DropThreshold: getEnvFloat("PRICE_DROP_THRESHOLD", 0.05),

		SweepProductTimeout: time.Duration(getEnvInt("SWEEP_PRODUCT_TIMEOUT", 30)) * time.Second,

		RedisAddr: getEnv("REDIS_ADDR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
