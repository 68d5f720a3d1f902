package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gridbot/internal/adapters/logger"
)

// SpacingMode selects how the distance between grid levels is derived.
type SpacingMode string

const (
	// SpacingProportional scales each level by a proportion of the reference
	// price with a per-level incrementing multiplier.
	SpacingProportional SpacingMode = "proportional"
	// SpacingTick spaces levels by whole multiples of the exchange tick size.
	SpacingTick SpacingMode = "tick"
	// SpacingVolatility spaces levels by multiples of a recent ATR.
	SpacingVolatility SpacingMode = "volatility"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	Symbols          []string // One engine per symbol, fully independent
	Leverage         int
	Quantity         float64 // Quantity per grid level
	NotionalPerLevel float64 // If > 0, quantity is derived as notional/price
	GridLevels       int     // Levels per side (2N orders total)

	// Spacing
	SpacingMode       SpacingMode
	SpacingProportion float64 // Used by proportional mode
	VolatilityPeriod  int     // ATR period for volatility mode

	// Exits
	TakeProfitPercent     float64 // Percent of margin to capture (e.g., 0.5)
	StopLossPercent       float64 // Accepted but inert unless EnableStopLoss
	EnableStopLoss        bool    // Off by default: stop-loss is a documented no-op
	RepriceToleranceSteps float64 // TP drift tolerance, in price steps

	// Scheduling
	ReconcileInterval time.Duration
	PositionInterval  time.Duration
	ReportInterval    time.Duration
	RequestTimeout    time.Duration

	// Database
	DBPath string

	// Observability
	LogLevel    logger.LogLevel
	MetricsAddr string // Empty disables the metrics server
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

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

	// Trading Parameters
	symbolsStr := getEnv("SYMBOLS", "BTCUSDT")
	for _, s := range strings.Split(symbolsStr, ",") {
		s = strings.TrimSpace(strings.ToUpper(s))
		if s != "" {
			cfg.Symbols = append(cfg.Symbols, s)
		}
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}

	cfg.Leverage, err = getEnvAsIntStrict("LEVERAGE", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LEVERAGE: %v", err))
	} else if cfg.Leverage <= 0 {
		errs = append(errs, "LEVERAGE must be positive")
	}

	cfg.Quantity, err = getEnvAsFloatStrict("QUANTITY", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUANTITY: %v", err))
	}

	cfg.NotionalPerLevel, err = getEnvAsFloatStrict("NOTIONAL_PER_LEVEL", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid NOTIONAL_PER_LEVEL: %v", err))
	}
	if cfg.Quantity <= 0 && cfg.NotionalPerLevel <= 0 {
		errs = append(errs, "either QUANTITY or NOTIONAL_PER_LEVEL must be positive")
	}

	cfg.GridLevels, err = getEnvAsIntStrict("GRID_LEVELS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid GRID_LEVELS: %v", err))
	} else if cfg.GridLevels <= 0 {
		errs = append(errs, "GRID_LEVELS must be positive")
	}

	// Spacing
	cfg.SpacingMode = SpacingMode(strings.ToLower(getEnv("SPACING_MODE", string(SpacingTick))))
	switch cfg.SpacingMode {
	case SpacingProportional, SpacingTick, SpacingVolatility:
	default:
		errs = append(errs, fmt.Sprintf("invalid SPACING_MODE %q (want proportional, tick or volatility)", cfg.SpacingMode))
	}

	cfg.SpacingProportion, err = getEnvAsFloatStrict("SPACING_PROPORTION", 0.04)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SPACING_PROPORTION: %v", err))
	} else if cfg.SpacingMode == SpacingProportional && cfg.SpacingProportion <= 0 {
		errs = append(errs, "SPACING_PROPORTION must be positive in proportional mode")
	}

	cfg.VolatilityPeriod = getEnvAsInt("VOLATILITY_PERIOD", 14)
	if cfg.SpacingMode == SpacingVolatility && cfg.VolatilityPeriod <= 0 {
		errs = append(errs, "VOLATILITY_PERIOD must be positive in volatility mode")
	}

	// Exits
	cfg.TakeProfitPercent, err = getEnvAsFloatStrict("TAKE_PROFIT_PERCENT", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PERCENT: %v", err))
	} else if cfg.TakeProfitPercent <= 0 {
		errs = append(errs, "TAKE_PROFIT_PERCENT must be positive")
	}

	cfg.StopLossPercent, err = getEnvAsFloatStrict("STOP_LOSS_PERCENT", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PERCENT: %v", err))
	}
	cfg.EnableStopLoss = getEnvAsBool("ENABLE_STOP_LOSS", false)
	if cfg.EnableStopLoss && cfg.StopLossPercent <= 0 {
		errs = append(errs, "STOP_LOSS_PERCENT must be positive when ENABLE_STOP_LOSS is set")
	}

	cfg.RepriceToleranceSteps = getEnvAsFloat("REPRICE_TOLERANCE_STEPS", 1.0)
	if cfg.RepriceToleranceSteps < 0 {
		errs = append(errs, "REPRICE_TOLERANCE_STEPS cannot be negative")
	}

	// Scheduling
	cfg.ReconcileInterval = getEnvAsMillis("RECONCILE_INTERVAL_MS", 500)
	cfg.PositionInterval = getEnvAsMillis("POSITION_INTERVAL_MS", 1000)
	cfg.ReportInterval = getEnvAsMillis("REPORT_INTERVAL_MS", 5000)
	cfg.RequestTimeout = getEnvAsMillis("REQUEST_TIMEOUT_MS", 10000)
	if cfg.ReconcileInterval <= 0 || cfg.PositionInterval <= 0 || cfg.ReportInterval <= 0 {
		errs = append(errs, "loop intervals must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_MS must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/gridbot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Observability
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

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

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsIntStrict returns the default when the variable is unset but,
// unlike getEnvAsInt, rejects malformed values instead of masking them.
func getEnvAsIntStrict(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloatStrict returns the default when the variable is unset but
// rejects malformed values instead of masking them.
func getEnvAsFloatStrict(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
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

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}
