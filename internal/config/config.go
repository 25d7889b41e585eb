package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string
	LogFile     string

	NSE    NSEConfig
	Ingest IngestConfig
	API    APIConfig
	Stream StreamConfig
	Poller PollerConfig
}

// NSEConfig holds the upstream option-chain source configuration
type NSEConfig struct {
	BaseURL         string
	OptionChainPath string
	RequestTimeout  time.Duration
	RequestGap      time.Duration // minimum spacing between upstream requests
	UserAgent       string
}

// IngestConfig holds the ingestion cycle configuration
type IngestConfig struct {
	PollInterval  time.Duration
	Symbols       []string
	WatchlistFile string
	HistoryCap    int
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Port         int
	RateLimitRPS int
}

// StreamConfig holds the WebSocket alert stream configuration
type StreamConfig struct {
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	SendBuffer    int
	AlertCooldown time.Duration
}

// PollerConfig holds the external trigger loop configuration
type PollerConfig struct {
	APIBaseURL     string
	Interval       time.Duration
	RequestTimeout time.Duration
}

// defaultSymbols is the tracked F&O universe used when neither SYMBOLS nor
// a watchlist file is provided.
var defaultSymbols = []string{"RELIANCE", "HDFC", "ICICIBANK", "INFY", "TCS", "NIFTY", "BANKNIFTY"}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory or parent directories
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		NSE: NSEConfig{
			BaseURL:         getEnv("NSE_BASE_URL", "https://www.nseindia.com"),
			OptionChainPath: getEnv("NSE_OPTION_CHAIN_PATH", "/api/option-chain-equities"),
			RequestTimeout:  getEnvAsDuration("NSE_REQUEST_TIMEOUT", 10*time.Second),
			RequestGap:      getEnvAsDuration("NSE_REQUEST_GAP", 250*time.Millisecond),
			UserAgent:       getEnv("NSE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"),
		},
		Ingest: IngestConfig{
			PollInterval:  getEnvAsDuration("POLL_INTERVAL", 300*time.Second),
			Symbols:       getEnvAsStringSlice("SYMBOLS", defaultSymbols),
			WatchlistFile: getEnv("WATCHLIST_FILE", ""),
			HistoryCap:    getEnvAsInt("HISTORY_CAP", 50),
		},
		API: APIConfig{
			Port:         getEnvAsInt("API_PORT", 8080),
			RateLimitRPS: getEnvAsInt("API_RATE_LIMIT_RPS", 100),
		},
		Stream: StreamConfig{
			WriteTimeout:  getEnvAsDuration("STREAM_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:  getEnvAsDuration("STREAM_PING_INTERVAL", 30*time.Second),
			SendBuffer:    getEnvAsInt("STREAM_SEND_BUFFER", 256),
			AlertCooldown: getEnvAsDuration("ALERT_COOLDOWN", 5*time.Minute),
		},
		Poller: PollerConfig{
			APIBaseURL:     getEnv("POLLER_API_BASE_URL", "http://localhost:8080"),
			Interval:       getEnvAsDuration("POLLER_INTERVAL", 300*time.Second),
			RequestTimeout: getEnvAsDuration("POLLER_REQUEST_TIMEOUT", 30*time.Second),
		},
	}

	// A watchlist file replaces the env symbol list when configured
	if cfg.Ingest.WatchlistFile != "" {
		symbols, err := loadWatchlist(cfg.Ingest.WatchlistFile)
		if err != nil {
			return nil, fmt.Errorf("loading watchlist: %w", err)
		}
		cfg.Ingest.Symbols = symbols
	}
	cfg.Ingest.Symbols = normalizeSymbols(cfg.Ingest.Symbols)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NSE.BaseURL == "" {
		return fmt.Errorf("NSE_BASE_URL is required")
	}
	if c.NSE.RequestTimeout <= 0 {
		return fmt.Errorf("NSE_REQUEST_TIMEOUT must be positive")
	}
	if c.Ingest.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if len(c.Ingest.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS must contain at least one symbol")
	}
	if c.Ingest.HistoryCap <= 0 {
		return fmt.Errorf("HISTORY_CAP must be positive")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("API_PORT must be a valid port number")
	}
	return nil
}

// normalizeSymbols uppercases and de-duplicates the tracked symbol list,
// preserving order of first appearance.
func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Split by comma and trim spaces
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
