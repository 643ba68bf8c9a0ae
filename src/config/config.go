package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Security settings
	JWTSecret     string
	CSRFAuthKey   []byte
	SessionExpiry time.Duration

	// Trading settings
	StartingCash string

	// Quote lookup settings
	QuoteAPIBaseURL string
	QuoteCacheTTL   time.Duration
	QuoteRateLimit  float64
	QuoteTimeout    time.Duration
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from a subdir)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	// --- Security & Tokens (Secrets) ---
	jwtSecret := getRequiredEnv("JWT_SECRET")
	csrfAuthKeyStr := getRequiredEnv("CSRF_AUTH_KEY")

	sessionExpiry := getEnvAsDuration("SESSION_EXPIRY", 24*time.Hour)

	// --- Quote lookup ---
	quoteCacheTTL := getEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute)
	quoteTimeout := getEnvAsDuration("QUOTE_TIMEOUT", 10*time.Second)
	quoteRateLimitStr := getEnv("QUOTE_RATE_LIMIT", "5")
	quoteRateLimit, err := strconv.ParseFloat(quoteRateLimitStr, 64)
	if err != nil || quoteRateLimit <= 0 {
		log.Printf("WARNING: Invalid QUOTE_RATE_LIMIT '%s'. Using default 5 req/s.", quoteRateLimitStr)
		quoteRateLimit = 5
	}

	// --- Populate the Global Config Struct ---
	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./papertrade.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Security
		JWTSecret:     jwtSecret,
		CSRFAuthKey:   []byte(csrfAuthKeyStr),
		SessionExpiry: sessionExpiry,

		// Trading
		StartingCash: getEnv("STARTING_CASH", "10000"),

		// Quotes
		QuoteAPIBaseURL: getEnv("QUOTE_API_BASE_URL", "https://query1.finance.yahoo.com"),
		QuoteCacheTTL:   quoteCacheTTL,
		QuoteRateLimit:  quoteRateLimit,
		QuoteTimeout:    quoteTimeout,
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
