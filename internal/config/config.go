package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// JWT
	JWTSecret string

	// Market data
	MarketDataBaseURL string

	// Trading rules
	FeeRate       float64 // fee as a fraction of notional value, fee-simulating accounts only
	LookbackYears int     // oldest order date accepted by the validator

	// Batch jobs
	TickSchedule   string // cron spec for the simulator round check
	RollupSchedule string // cron spec for the group rollup pass
	RollupPageSize int    // groups processed per rollup pass
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://query1.finance.yahoo.com"),

		FeeRate:       getEnvFloat("FEE_RATE", 0.0025),
		LookbackYears: getEnvInt("LOOKBACK_YEARS", 5),

		TickSchedule:   getEnv("TICK_SCHEDULE", "@every 1m"),
		RollupSchedule: getEnv("ROLLUP_SCHEDULE", "@every 15m"),
		RollupPageSize: getEnvInt("ROLLUP_PAGE_SIZE", 25),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvFloat retrieves a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %g\n", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
