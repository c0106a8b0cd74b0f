package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"optionScalpBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Alpaca API
	APIKey    string
	SecretKey string

	// Endpoints
	StreamURL   string // Options quote stream (msgpack over websocket)
	DataBaseURL string // Market-data REST base URL

	// Order webhooks
	CallWebhookURL string
	PutWebhookURL  string

	// Trading Parameters
	Symbol         string // Underlying symbol (e.g., "SPY")
	SessionStart   string // Session open, exchange-local clock ("09:30")
	SessionEnd     string // Session close for history fetch ("15:59")
	MarketTimezone string // IANA name of the exchange timezone
	BarFeed        string // Bar feed source (e.g., "iex")

	// Signal Parameters
	Lookback             int // Vote rows considered by the combiner
	CombineRule          string
	CombineThreshold     int // Minimum absolute vote sum for the majority rule
	EMAShortPeriod       int
	EMALongPeriod        int
	HullPeriod           int
	SupertrendATRPeriod  int
	SupertrendMultiplier float64
	MACDFastPeriod       int
	MACDSlowPeriod       int
	MACDSignalPeriod     int
	RSIPeriod            int
	RSILongLevel         float64
	RSIShortLevel        float64

	// Exit Tier Parameters
	TP1Pct      float64 // Take-profit level 1 (e.g., 0.20 for +20%)
	TP1Size     float64 // Fraction of the position closed at TP1
	TP2Pct      float64 // Take-profit level 2
	TP2Size     float64 // Fraction of the position closed at TP2
	TrailingPct float64 // Trailing stop distance from the high-water mark
	HardStopPct float64 // Hard stop below entry, active until TP1 fires
	MaxHold     time.Duration

	// Journal
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Alpaca API
	cfg.APIKey = getEnv("ALPACA_KEY", "")
	cfg.SecretKey = getEnv("ALPACA_SECRET", "")
	if cfg.APIKey == "" {
		errs = append(errs, "ALPACA_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "ALPACA_SECRET must be set")
	}

	// Endpoints
	cfg.StreamURL = getEnv("OPTIONS_STREAM_URL", "wss://stream.data.alpaca.markets/v1beta1/indicative")
	cfg.DataBaseURL = getEnv("DATA_BASE_URL", "https://data.alpaca.markets")

	// Order webhooks (optional; entries are logged but not delivered when unset)
	cfg.CallWebhookURL = getEnv("CALL_WEBHOOK", "")
	cfg.PutWebhookURL = getEnv("PUT_WEBHOOK", "")

	// Trading Parameters
	cfg.Symbol = getEnv("SYMBOL", "SPY")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.SessionStart = getEnv("SESSION_START", "09:30")
	cfg.SessionEnd = getEnv("SESSION_END", "15:59")
	cfg.MarketTimezone = getEnv("MARKET_TIMEZONE", "America/New_York")
	cfg.BarFeed = getEnv("BAR_FEED", "iex")
	if _, locErr := time.LoadLocation(cfg.MarketTimezone); locErr != nil {
		errs = append(errs, fmt.Sprintf("invalid MARKET_TIMEZONE: %v", locErr))
	}

	// Signal Parameters (using defaults if not set)
	cfg.Lookback = getEnvAsInt("INDICATOR_LOOKBACK", 3)
	cfg.CombineRule = strings.ToLower(getEnv("COMBINE_RULE", "majority"))
	cfg.CombineThreshold = getEnvAsInt("COMBINE_THRESHOLD", 8)
	cfg.EMAShortPeriod = getEnvAsInt("EMA_SHORT_PERIOD", 5)
	cfg.EMALongPeriod = getEnvAsInt("EMA_LONG_PERIOD", 14)
	cfg.HullPeriod = getEnvAsInt("HMA_PERIOD", 9)
	cfg.SupertrendATRPeriod = getEnvAsInt("SUPERTREND_ATR_PERIOD", 2)
	cfg.SupertrendMultiplier = getEnvAsFloat("SUPERTREND_MULTIPLIER", 2.2)
	cfg.MACDFastPeriod = getEnvAsInt("MACD_FAST_LENGTH", 12)
	cfg.MACDSlowPeriod = getEnvAsInt("MACD_SLOW_LENGTH", 26)
	cfg.MACDSignalPeriod = getEnvAsInt("MACD_SIGNAL_LENGTH", 9)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	cfg.RSILongLevel = getEnvAsFloat("RSI_LONG", 40)
	cfg.RSIShortLevel = getEnvAsFloat("RSI_SHORT", 60)

	if cfg.Lookback <= 0 {
		errs = append(errs, "INDICATOR_LOOKBACK must be positive")
	}
	if cfg.CombineRule != "majority" && cfg.CombineRule != "unanimous" {
		errs = append(errs, fmt.Sprintf("unknown COMBINE_RULE %q (want majority or unanimous)", cfg.CombineRule))
	}
	if cfg.EMAShortPeriod <= 0 || cfg.EMALongPeriod <= 0 || cfg.HullPeriod <= 0 ||
		cfg.SupertrendATRPeriod <= 0 || cfg.MACDFastPeriod <= 0 || cfg.MACDSlowPeriod <= 0 ||
		cfg.MACDSignalPeriod <= 0 || cfg.RSIPeriod <= 0 {
		errs = append(errs, "indicator periods must be positive")
	}
	if cfg.EMAShortPeriod >= cfg.EMALongPeriod {
		errs = append(errs, "EMA_SHORT_PERIOD must be less than EMA_LONG_PERIOD")
	}
	if cfg.MACDFastPeriod >= cfg.MACDSlowPeriod {
		errs = append(errs, "MACD_FAST_LENGTH must be less than MACD_SLOW_LENGTH")
	}
	if cfg.RSIShortLevel <= cfg.RSILongLevel || cfg.RSIShortLevel > 100 || cfg.RSILongLevel < 0 {
		errs = append(errs, "invalid RSI thresholds (RSI_SHORT must be > RSI_LONG, between 0-100)")
	}

	// Exit Tier Parameters
	cfg.TP1Pct, err = getEnvAsFloatRequired("TP1_PCT", 0.20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TP1_PCT: %v", err))
	}
	cfg.TP1Size, err = getEnvAsFloatRequired("TP1_POSITION_SIZE", 0.50)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TP1_POSITION_SIZE: %v", err))
	}
	cfg.TP2Pct, err = getEnvAsFloatRequired("TP2_PCT", 0.40)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TP2_PCT: %v", err))
	}
	cfg.TP2Size, err = getEnvAsFloatRequired("TP2_POSITION_SIZE", 0.25)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TP2_POSITION_SIZE: %v", err))
	}
	cfg.TrailingPct, err = getEnvAsFloatRequired("TRAILING_SL", 0.10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_SL: %v", err))
	}
	cfg.HardStopPct, err = getEnvAsFloatRequired("HARD_SL", 0.20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HARD_SL: %v", err))
	}
	timeLimitSeconds := getEnvAsInt("TIME_LIMIT", 420)
	if timeLimitSeconds <= 0 {
		errs = append(errs, "TIME_LIMIT must be positive")
	}
	cfg.MaxHold = time.Duration(timeLimitSeconds) * time.Second

	if cfg.TP1Pct <= 0 || cfg.TP2Pct <= 0 || cfg.TrailingPct <= 0 || cfg.HardStopPct <= 0 {
		errs = append(errs, "exit percentages (TP1_PCT, TP2_PCT, TRAILING_SL, HARD_SL) must be positive")
	}
	if cfg.TP1Pct >= cfg.TP2Pct {
		errs = append(errs, "TP1_PCT must be less than TP2_PCT")
	}
	if cfg.TP1Size < 0 || cfg.TP2Size < 0 || cfg.TP1Size+cfg.TP2Size > 1 {
		errs = append(errs, "TP1_POSITION_SIZE + TP2_POSITION_SIZE must not exceed 1.0")
	}

	// Journal
	cfg.DBPath = getEnv("DB_PATH", "./data/option_scalp_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 2)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// SessionWindow returns today's history-fetch window in the exchange timezone.
func (c *Config) SessionWindow(now time.Time) (start, end time.Time, err error) {
	loc, err := time.LoadLocation(c.MarketTimezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("loading market timezone: %w", err)
	}
	local := now.In(loc)
	start, err = clockOn(local, c.SessionStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid SESSION_START: %w", err)
	}
	end, err = clockOn(local, c.SessionEnd, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid SESSION_END: %w", err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("session start %q is not before end %q", c.SessionStart, c.SessionEnd)
	}
	return start, end, nil
}

func clockOn(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
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
