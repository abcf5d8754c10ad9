package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoDipBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// TierSetting configures one dip severity bucket. Index order is tier order.
type TierSetting struct {
	ThresholdPct    float64 // Negative percentage drop
	LookbackMinutes int
	OrderSizeUSD    float64
}

// SupportLevel is a configured static price level with a size bonus multiplier.
type SupportLevel struct {
	Price float64
	Bonus float64
}

// Config holds all application configuration. It is resolved once at startup
// and immutable afterwards.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Universe
	Symbols    []string
	QuoteAsset string

	// Dip Tiers (four, increasing severity)
	Tiers [4]TierSetting

	// Flash-Crash Parameters
	FlashCrashTriggerPct    float64
	FlashRecoveryPct        float64
	MinTimeBetweenBuys      time.Duration
	FlashMinTimeBetweenBuys time.Duration
	MaxRapidBuys            int

	// Exit Parameters
	TrailingActivationPct float64
	TrailPct              float64
	TakeProfitByTier      map[int]float64
	DefaultTakeProfitPct  float64
	StopLossPct           float64
	MaxHold               time.Duration
	TimeExitMinProfitPct  float64

	// Capital Constraints
	MaxPositionUSD   float64
	MaxTotalDeployed float64
	LowVolReserve    float64
	HighVolReserve   float64

	// Allocation
	SymbolWeights  map[string]float64
	SupportLevels  map[string][]SupportLevel
	SupportBandPct float64

	// Loop Timing
	CheckInterval  time.Duration
	SymbolDelay    time.Duration
	PriceRetention time.Duration

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
// Any missing tier field or invalid weight is fatal: undefined thresholds
// would silently disable detection for a symbol.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
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

	// Trading universe
	cfg.Symbols = splitList(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT"))
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}
	cfg.QuoteAsset = getEnv("QUOTE_ASSET", "USDT")

	// Dip tiers. Defaults give a 4-tier ladder of increasing severity.
	tierDefaults := [4]TierSetting{
		{ThresholdPct: -3, LookbackMinutes: 10, OrderSizeUSD: 100},
		{ThresholdPct: -5, LookbackMinutes: 30, OrderSizeUSD: 200},
		{ThresholdPct: -8, LookbackMinutes: 120, OrderSizeUSD: 400},
		{ThresholdPct: -12, LookbackMinutes: 360, OrderSizeUSD: 800},
	}
	for i := range cfg.Tiers {
		tier := i + 1
		var err error
		cfg.Tiers[i].ThresholdPct, err = getEnvAsFloatRequired(fmt.Sprintf("TIER%d_THRESHOLD_PCT", tier), tierDefaults[i].ThresholdPct)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TIER%d_THRESHOLD_PCT: %v", tier, err))
		} else if cfg.Tiers[i].ThresholdPct >= 0 {
			errs = append(errs, fmt.Sprintf("TIER%d_THRESHOLD_PCT must be negative", tier))
		}
		cfg.Tiers[i].LookbackMinutes, err = getEnvAsIntRequired(fmt.Sprintf("TIER%d_LOOKBACK_MINUTES", tier), tierDefaults[i].LookbackMinutes)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TIER%d_LOOKBACK_MINUTES: %v", tier, err))
		} else if cfg.Tiers[i].LookbackMinutes <= 0 {
			errs = append(errs, fmt.Sprintf("TIER%d_LOOKBACK_MINUTES must be positive", tier))
		}
		cfg.Tiers[i].OrderSizeUSD, err = getEnvAsFloatRequired(fmt.Sprintf("TIER%d_ORDER_USD", tier), tierDefaults[i].OrderSizeUSD)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TIER%d_ORDER_USD: %v", tier, err))
		} else if cfg.Tiers[i].OrderSizeUSD <= 0 {
			errs = append(errs, fmt.Sprintf("TIER%d_ORDER_USD must be positive", tier))
		}
	}
	// Tiers must strictly increase in severity.
	for i := 1; i < len(cfg.Tiers); i++ {
		if cfg.Tiers[i].ThresholdPct >= cfg.Tiers[i-1].ThresholdPct {
			errs = append(errs, fmt.Sprintf("TIER%d_THRESHOLD_PCT must be more severe than TIER%d_THRESHOLD_PCT", i+1, i))
		}
	}

	// Flash-crash parameters
	var err error
	cfg.FlashCrashTriggerPct, err = getEnvAsFloatRequired("FLASH_CRASH_TRIGGER_PCT", -15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FLASH_CRASH_TRIGGER_PCT: %v", err))
	} else if cfg.FlashCrashTriggerPct >= cfg.Tiers[3].ThresholdPct {
		errs = append(errs, "FLASH_CRASH_TRIGGER_PCT must be more severe than the tier 4 threshold")
	}
	cfg.FlashRecoveryPct, err = getEnvAsFloatRequired("FLASH_RECOVERY_PCT", -2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FLASH_RECOVERY_PCT: %v", err))
	}
	minBuyMs, err := getEnvAsIntRequired("MIN_TIME_BETWEEN_BUYS_MS", 3600000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_TIME_BETWEEN_BUYS_MS: %v", err))
	}
	cfg.MinTimeBetweenBuys = time.Duration(minBuyMs) * time.Millisecond
	flashBuyMs, err := getEnvAsIntRequired("FLASH_MIN_TIME_BETWEEN_BUYS_MS", 300000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FLASH_MIN_TIME_BETWEEN_BUYS_MS: %v", err))
	}
	cfg.FlashMinTimeBetweenBuys = time.Duration(flashBuyMs) * time.Millisecond
	if cfg.MinTimeBetweenBuys <= 0 || cfg.FlashMinTimeBetweenBuys <= 0 {
		errs = append(errs, "buy interval settings must be positive")
	}
	if cfg.FlashMinTimeBetweenBuys > cfg.MinTimeBetweenBuys {
		errs = append(errs, "FLASH_MIN_TIME_BETWEEN_BUYS_MS must not exceed MIN_TIME_BETWEEN_BUYS_MS")
	}
	cfg.MaxRapidBuys, err = getEnvAsIntRequired("MAX_RAPID_BUYS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RAPID_BUYS: %v", err))
	}
	if cfg.MaxRapidBuys <= 0 {
		errs = append(errs, "MAX_RAPID_BUYS must be positive")
	}

	// Exit parameters
	cfg.TrailingActivationPct, err = getEnvAsFloatRequired("TRAILING_ACTIVATION_PCT", 3)
	if err != nil || cfg.TrailingActivationPct <= 0 {
		errs = append(errs, "TRAILING_ACTIVATION_PCT must be a positive number")
	}
	cfg.TrailPct, err = getEnvAsFloatRequired("TRAIL_PCT", 1.5)
	if err != nil || cfg.TrailPct <= 0 {
		errs = append(errs, "TRAIL_PCT must be a positive number")
	}
	cfg.TakeProfitByTier = make(map[int]float64, 4)
	tpDefaults := map[int]float64{1: 3, 2: 5, 3: 8, 4: 12}
	for tier := 1; tier <= 4; tier++ {
		tp, err := getEnvAsFloatRequired(fmt.Sprintf("TAKE_PROFIT_TIER%d_PCT", tier), tpDefaults[tier])
		if err != nil || tp <= 0 {
			errs = append(errs, fmt.Sprintf("TAKE_PROFIT_TIER%d_PCT must be a positive number", tier))
			continue
		}
		cfg.TakeProfitByTier[tier] = tp
	}
	cfg.DefaultTakeProfitPct, err = getEnvAsFloatRequired("TAKE_PROFIT_DEFAULT_PCT", 5)
	if err != nil || cfg.DefaultTakeProfitPct <= 0 {
		errs = append(errs, "TAKE_PROFIT_DEFAULT_PCT must be a positive number")
	}
	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", -20)
	if err != nil || cfg.StopLossPct >= 0 {
		errs = append(errs, "STOP_LOSS_PCT must be a negative number")
	}
	maxHoldHours, err := getEnvAsFloatRequired("MAX_HOLD_HOURS", 72)
	if err != nil || maxHoldHours <= 0 {
		errs = append(errs, "MAX_HOLD_HOURS must be a positive number")
	}
	cfg.MaxHold = time.Duration(maxHoldHours * float64(time.Hour))
	cfg.TimeExitMinProfitPct, err = getEnvAsFloatRequired("TIME_EXIT_MIN_PROFIT_PCT", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIME_EXIT_MIN_PROFIT_PCT: %v", err))
	}

	// Capital constraints
	cfg.MaxPositionUSD, err = getEnvAsFloatRequired("MAX_POSITION_USD", 1500)
	if err != nil || cfg.MaxPositionUSD <= 0 {
		errs = append(errs, "MAX_POSITION_USD must be a positive number")
	}
	cfg.MaxTotalDeployed, err = getEnvAsFloatRequired("MAX_TOTAL_DEPLOYED_USD", 5000)
	if err != nil || cfg.MaxTotalDeployed <= 0 {
		errs = append(errs, "MAX_TOTAL_DEPLOYED_USD must be a positive number")
	}
	cfg.LowVolReserve, err = getEnvAsFloatRequired("RESERVE_LOW_VOL_USD", 200)
	if err != nil || cfg.LowVolReserve < 0 {
		errs = append(errs, "RESERVE_LOW_VOL_USD cannot be negative")
	}
	cfg.HighVolReserve, err = getEnvAsFloatRequired("RESERVE_HIGH_VOL_USD", 500)
	if err != nil || cfg.HighVolReserve < 0 {
		errs = append(errs, "RESERVE_HIGH_VOL_USD cannot be negative")
	}

	// Allocation
	cfg.SymbolWeights, err = parseWeights(getEnv("SYMBOL_WEIGHTS", ""), cfg.Symbols)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SYMBOL_WEIGHTS: %v", err))
	}
	cfg.SupportLevels = make(map[string][]SupportLevel)
	for _, symbol := range cfg.Symbols {
		raw := getEnv("SUPPORT_LEVELS_"+symbol, "")
		if raw == "" {
			continue
		}
		levels, err := parseSupportLevels(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid SUPPORT_LEVELS_%s: %v", symbol, err))
			continue
		}
		cfg.SupportLevels[symbol] = levels
	}
	cfg.SupportBandPct = getEnvAsFloat("SUPPORT_BAND_PCT", 2.0)
	if cfg.SupportBandPct <= 0 {
		errs = append(errs, "SUPPORT_BAND_PCT must be positive")
	}

	// Loop timing
	checkMs, err := getEnvAsIntRequired("CHECK_INTERVAL_MS", 60000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CHECK_INTERVAL_MS: %v", err))
	}
	cfg.CheckInterval = time.Duration(checkMs) * time.Millisecond
	delayMs, err := getEnvAsIntRequired("SYMBOL_DELAY_MS", 2000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SYMBOL_DELAY_MS: %v", err))
	}
	cfg.SymbolDelay = time.Duration(delayMs) * time.Millisecond
	if cfg.CheckInterval <= 0 || cfg.SymbolDelay < 0 {
		errs = append(errs, "loop timing settings must be positive")
	}
	retentionHours := getEnvAsFloat("PRICE_RETENTION_HOURS", 12)
	if retentionHours <= 0 {
		errs = append(errs, "PRICE_RETENTION_HOURS must be positive")
	}
	cfg.PriceRetention = time.Duration(retentionHours * float64(time.Hour))

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/dip_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Parsing Helpers ---

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseWeights parses "SYM:weight,..." pairs. When raw is empty, symbols get
// equal weights. Every configured symbol must end up with a positive weight.
func parseWeights(raw string, symbols []string) (map[string]float64, error) {
	weights := make(map[string]float64, len(symbols))
	if raw == "" {
		if len(symbols) == 0 {
			return weights, nil
		}
		equal := 1.0 / float64(len(symbols))
		for _, symbol := range symbols {
			weights[symbol] = equal
		}
		return weights, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected SYMBOL:weight, got '%s'", pair)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight '%s' for %s: %w", parts[1], parts[0], err)
		}
		if weight <= 0 {
			return nil, fmt.Errorf("weight for %s must be positive", parts[0])
		}
		weights[strings.TrimSpace(parts[0])] = weight
	}
	for _, symbol := range symbols {
		if _, ok := weights[symbol]; !ok {
			return nil, fmt.Errorf("no weight configured for symbol %s", symbol)
		}
	}
	return weights, nil
}

// parseSupportLevels parses "price:bonus,..." pairs in configured order.
func parseSupportLevels(raw string) ([]SupportLevel, error) {
	var levels []SupportLevel
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected price:bonus, got '%s'", pair)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("invalid level price '%s'", parts[0])
		}
		bonus, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || bonus <= 0 {
			return nil, fmt.Errorf("invalid level bonus '%s'", parts[1])
		}
		levels = append(levels, SupportLevel{Price: price, Bonus: bonus})
	}
	return levels, nil
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
