package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradereport/internal/adapters/logger" // Import the logger package for LogLevel
	"tradereport/internal/reconcile"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Reporting Parameters
	Symbol       string
	LookbackDays int    // How far back the execution feed is fetched
	ReportDir    string // Directory the CSV reports are written into

	// Reconciliation Parameters
	MatchWindow      time.Duration           // Max entry-to-exit gap for pairing
	BracketPolicy    reconcile.BracketPolicy // Role of bracket legs (closing/opening)
	BalanceTolerance int                     // Buy/sell count tolerance of the fallback classifier

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Reporting Parameters
	cfg.Symbol = getEnv("SYMBOL", "ETHUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}

	cfg.LookbackDays, err = getEnvAsIntRequired("LOOKBACK_DAYS", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOKBACK_DAYS: %v", err))
	} else if cfg.LookbackDays <= 0 {
		errs = append(errs, "LOOKBACK_DAYS must be positive")
	}

	cfg.ReportDir = getEnv("REPORT_DIR", "./reports")
	if cfg.ReportDir == "" {
		errs = append(errs, "REPORT_DIR must be set")
	}

	// Reconciliation Parameters
	matchWindowHours, err := getEnvAsIntRequired("MATCH_WINDOW_HOURS", 24)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MATCH_WINDOW_HOURS: %v", err))
	} else if matchWindowHours <= 0 {
		errs = append(errs, "MATCH_WINDOW_HOURS must be positive")
	}
	cfg.MatchWindow = time.Duration(matchWindowHours) * time.Hour

	cfg.BracketPolicy = reconcile.ParseBracketPolicy(getEnv("BRACKET_POLICY", "closing"))

	cfg.BalanceTolerance, err = getEnvAsIntRequired("BALANCE_TOLERANCE", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BALANCE_TOLERANCE: %v", err))
	} else if cfg.BalanceTolerance < 0 {
		errs = append(errs, "BALANCE_TOLERANCE cannot be negative")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trade_reports.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
