package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"haBacktest/internal/adapters/logger" // Import the logger package for LogLevel
	"haBacktest/internal/ports"
)

// Supported market-data providers.
const (
	ProviderYahoo   = "yahoo"
	ProviderBinance = "binance"
	ProviderCSV     = "csv"
)

// Supported throttle modes.
const (
	RateLimitTokenBucket = "token_bucket"
	RateLimitFixedDelay  = "fixed_delay"
)

// Config holds all application configuration.
type Config struct {
	// Indicators
	LongEMAPeriod       int     // e.g., 89
	ShortEMAPeriod      int     // e.g., 21
	LongEMASource       string  // "ha_close" or "close"
	DojiBodyRatio       float64 // Max body / range, e.g., 0.10
	DojiUpperShadow     float64 // Min upper shadow / range, e.g., 0.30
	DojiLowerShadow     float64 // Min lower shadow / range, e.g., 0.30
	MinBreakoutStrength float64 // Percent, e.g., 1.0

	// Trade management
	StopLossPct        float64 // e.g., 0.02 for 2% below entry
	StopLossUseMAFloor bool

	// Data window
	LookbackMonths      int // Months fetched before the earliest signal
	ForwardMonths       int // Months fetched after the latest signal
	ScanYears           int // History used by the scanner
	LocateToleranceDays int // Max distance between a signal date and its bar; 0 disables

	// Batch
	ChunkSize       int
	Workers         int
	RequestInterval time.Duration
	RateLimitMode   string

	// Market data
	DataProvider      string
	YahooBaseURL      string
	YahooSymbolSuffix string
	CSVDataDir        string
	BinanceAPIKey     string
	BinanceSecretKey  string
	BinanceQuoteAsset string // Appended to bare symbols, e.g. "USDT"

	// Cache (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Storage & reports
	DBPath       string
	OutputDir    string
	UniverseFile string

	// Scheduling
	ScanSchedule string // Cron expression; empty runs once

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // "text" or "json"
}

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	return &Config{
		LongEMAPeriod:       89,
		ShortEMAPeriod:      21,
		LongEMASource:       "ha_close",
		DojiBodyRatio:       0.10,
		DojiUpperShadow:     0.30,
		DojiLowerShadow:     0.30,
		MinBreakoutStrength: 1.0,
		StopLossPct:         0.02,
		StopLossUseMAFloor:  true,
		LookbackMonths:      3,
		ForwardMonths:       36,
		ScanYears:           15,
		LocateToleranceDays: 45,
		ChunkSize:           50,
		Workers:             4,
		RequestInterval:     100 * time.Millisecond,
		RateLimitMode:       RateLimitTokenBucket,
		DataProvider:        ProviderYahoo,
		YahooBaseURL:        "https://query1.finance.yahoo.com",
		YahooSymbolSuffix:   ".NS",
		BinanceQuoteAsset:   "USDT",
		CSVDataDir:          "./data/bars",
		CacheTTL:            24 * time.Hour,
		DBPath:              "./data/backtest.db",
		OutputDir:           "./output",
		UniverseFile:        "./universe.yaml",
		LogLevel:            logger.LevelInfo,
		LogFormat:           "text",
	}
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	def := Default()
	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Indicators
	cfg.LongEMAPeriod, err = getEnvAsIntRequired("LONG_EMA_PERIOD", def.LongEMAPeriod)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LONG_EMA_PERIOD: %v", err))
	}
	cfg.ShortEMAPeriod, err = getEnvAsIntRequired("SHORT_EMA_PERIOD", def.ShortEMAPeriod)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SHORT_EMA_PERIOD: %v", err))
	}
	cfg.LongEMASource = strings.ToLower(getEnv("LONG_EMA_SOURCE", def.LongEMASource))

	cfg.DojiBodyRatio, err = getEnvAsFloatRequired("DOJI_BODY_RATIO", def.DojiBodyRatio)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DOJI_BODY_RATIO: %v", err))
	}
	cfg.DojiUpperShadow, err = getEnvAsFloatRequired("DOJI_UPPER_SHADOW_RATIO", def.DojiUpperShadow)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DOJI_UPPER_SHADOW_RATIO: %v", err))
	}
	cfg.DojiLowerShadow, err = getEnvAsFloatRequired("DOJI_LOWER_SHADOW_RATIO", def.DojiLowerShadow)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DOJI_LOWER_SHADOW_RATIO: %v", err))
	}
	cfg.MinBreakoutStrength, err = getEnvAsFloatRequired("MIN_BREAKOUT_STRENGTH", def.MinBreakoutStrength)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_BREAKOUT_STRENGTH: %v", err))
	}

	// Trade management
	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", def.StopLossPct)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	}
	cfg.StopLossUseMAFloor = getEnvAsBool("STOP_LOSS_USE_MA_FLOOR", def.StopLossUseMAFloor)

	// Data window
	cfg.LookbackMonths = getEnvAsInt("LOOKBACK_MONTHS", def.LookbackMonths)
	cfg.ForwardMonths = getEnvAsInt("FORWARD_MONTHS", def.ForwardMonths)
	cfg.ScanYears = getEnvAsInt("SCAN_YEARS", def.ScanYears)
	cfg.LocateToleranceDays = getEnvAsInt("LOCATE_TOLERANCE_DAYS", def.LocateToleranceDays)

	// Batch
	cfg.ChunkSize, err = getEnvAsIntRequired("CHUNK_SIZE", def.ChunkSize)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CHUNK_SIZE: %v", err))
	}
	cfg.Workers, err = getEnvAsIntRequired("WORKERS", def.Workers)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid WORKERS: %v", err))
	}
	intervalMs := getEnvAsInt("REQUEST_INTERVAL_MS", int(def.RequestInterval/time.Millisecond))
	cfg.RequestInterval = time.Duration(intervalMs) * time.Millisecond
	cfg.RateLimitMode = strings.ToLower(getEnv("RATE_LIMIT_MODE", def.RateLimitMode))

	// Market data
	cfg.DataProvider = strings.ToLower(getEnv("DATA_PROVIDER", def.DataProvider))
	cfg.YahooBaseURL = getEnv("YAHOO_BASE_URL", def.YahooBaseURL)
	cfg.YahooSymbolSuffix = os.Getenv("YAHOO_SYMBOL_SUFFIX")
	if _, set := os.LookupEnv("YAHOO_SYMBOL_SUFFIX"); !set {
		cfg.YahooSymbolSuffix = def.YahooSymbolSuffix
	}
	cfg.CSVDataDir = getEnv("CSV_DATA_DIR", def.CSVDataDir)
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceQuoteAsset = strings.ToUpper(getEnv("BINANCE_QUOTE_ASSET", def.BinanceQuoteAsset))

	// Cache
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)
	cfg.CacheTTL = time.Duration(getEnvAsInt("CACHE_TTL_HOURS", int(def.CacheTTL/time.Hour))) * time.Hour

	// Storage & reports
	cfg.DBPath = getEnv("DB_PATH", def.DBPath)
	cfg.OutputDir = getEnv("OUTPUT_DIR", def.OutputDir)
	cfg.UniverseFile = getEnv("UNIVERSE_FILE", def.UniverseFile)

	// Scheduling
	cfg.ScanSchedule = getEnv("SCAN_SCHEDULE", "")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", def.LogFormat))

	errs = append(errs, cfg.validationErrors()...)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}

	return cfg, nil
}

// Validate checks the semantic constraints of a configuration.
func (c *Config) Validate() error {
	if errs := c.validationErrors(); len(errs) > 0 {
		return fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validationErrors() []string {
	var errs []string

	if c.LongEMAPeriod <= 0 || c.ShortEMAPeriod <= 0 {
		errs = append(errs, "EMA periods must be positive")
	}
	if c.LongEMASource != "ha_close" && c.LongEMASource != "close" {
		errs = append(errs, fmt.Sprintf("LONG_EMA_SOURCE must be 'ha_close' or 'close', got '%s'", c.LongEMASource))
	}
	for name, v := range map[string]float64{
		"DOJI_BODY_RATIO":         c.DojiBodyRatio,
		"DOJI_UPPER_SHADOW_RATIO": c.DojiUpperShadow,
		"DOJI_LOWER_SHADOW_RATIO": c.DojiLowerShadow,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0.0 and 1.0", name))
		}
	}
	if c.MinBreakoutStrength < 0 {
		errs = append(errs, "MIN_BREAKOUT_STRENGTH cannot be negative")
	}
	if c.StopLossPct < 0 || c.StopLossPct >= 1.0 {
		errs = append(errs, "STOP_LOSS_PCT must be between 0.0 (inclusive) and 1.0 (exclusive)")
	}
	if c.LookbackMonths < 0 || c.ForwardMonths <= 0 {
		errs = append(errs, "LOOKBACK_MONTHS cannot be negative and FORWARD_MONTHS must be positive")
	}
	if c.ScanYears <= 0 {
		errs = append(errs, "SCAN_YEARS must be positive")
	}
	if c.LocateToleranceDays < 0 {
		errs = append(errs, "LOCATE_TOLERANCE_DAYS cannot be negative")
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, "CHUNK_SIZE must be positive")
	}
	if c.Workers <= 0 {
		errs = append(errs, "WORKERS must be positive")
	}
	if c.RequestInterval < 0 {
		errs = append(errs, "REQUEST_INTERVAL_MS cannot be negative")
	}
	if c.RateLimitMode != RateLimitTokenBucket && c.RateLimitMode != RateLimitFixedDelay {
		errs = append(errs, fmt.Sprintf("RATE_LIMIT_MODE must be '%s' or '%s'", RateLimitTokenBucket, RateLimitFixedDelay))
	}
	switch c.DataProvider {
	case ProviderYahoo, ProviderBinance:
	case ProviderCSV:
		if c.CSVDataDir == "" {
			errs = append(errs, "CSV_DATA_DIR must be set for the csv provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown DATA_PROVIDER '%s'", c.DataProvider))
	}
	if c.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	if c.OutputDir == "" {
		errs = append(errs, "OUTPUT_DIR must be set")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be 'text' or 'json'")
	}

	// Map iteration order is random; keep messages stable.
	sort.Strings(errs)
	return errs
}

// LocateTolerance returns the signal-to-bar distance bound as a duration.
func (c *Config) LocateTolerance() time.Duration {
	return time.Duration(c.LocateToleranceDays) * 24 * time.Hour
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

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
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
