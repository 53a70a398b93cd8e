package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the chaincore daemon
type Config struct {
	// Redis configuration
	RedisURL string

	// RPC configuration
	RPCEndpoints []string

	// Market data configuration
	MarketAPIBaseURL string
	PriceAPIBaseURL  string

	// Worker configuration
	MinWorkers int
	MaxWorkers int

	// Reconciliation configuration
	SyncInterval  time.Duration
	ScoreTimeout  time.Duration
	MinDepositLam int64

	// Logging configuration
	LogLevel string

	// Metrics configuration
	MetricsPort string
}

// Load reads configuration from environment variables and validates it
func Load() (Config, error) {
	cfg := Config{
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		MarketAPIBaseURL: getEnv("MARKET_API_BASE_URL", "https://api.dexscreener.com"),
		PriceAPIBaseURL:  getEnv("PRICE_API_BASE_URL", "https://api.coingecko.com"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsPort:      getEnv("METRICS_PORT", "9100"),
	}

	// Parse RPC endpoints
	rpcEndpointsStr := getEnv("RPC_ENDPOINTS", "")
	if rpcEndpointsStr == "" {
		return cfg, fmt.Errorf("RPC_ENDPOINTS environment variable is required")
	}
	cfg.RPCEndpoints = strings.Split(rpcEndpointsStr, ",")
	for i, endpoint := range cfg.RPCEndpoints {
		cfg.RPCEndpoints[i] = strings.TrimSpace(endpoint)
	}

	// Parse worker configuration
	var err error
	cfg.MinWorkers, err = parseIntEnv("MIN_WORKERS", 2)
	if err != nil {
		return cfg, fmt.Errorf("invalid MIN_WORKERS: %w", err)
	}

	cfg.MaxWorkers, err = parseIntEnv("MAX_WORKERS", 20)
	if err != nil {
		return cfg, fmt.Errorf("invalid MAX_WORKERS: %w", err)
	}

	cfg.SyncInterval, err = parseDurationEnv("SYNC_INTERVAL", 5*time.Minute)
	if err != nil {
		return cfg, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}

	cfg.ScoreTimeout, err = parseDurationEnv("SCORE_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, fmt.Errorf("invalid SCORE_TIMEOUT: %w", err)
	}

	minDeposit, err := parseIntEnv("MIN_DEPOSIT_LAMPORTS", 1000)
	if err != nil {
		return cfg, fmt.Errorf("invalid MIN_DEPOSIT_LAMPORTS: %w", err)
	}
	cfg.MinDepositLam = int64(minDeposit)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is valid
func (c Config) validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}

	if c.MinWorkers < 1 {
		return fmt.Errorf("MIN_WORKERS must be at least 1")
	}

	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("MAX_WORKERS must be greater than or equal to MIN_WORKERS")
	}

	if c.MinDepositLam < 0 {
		return fmt.Errorf("MIN_DEPOSIT_LAMPORTS must not be negative")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default value
func parseIntEnv(key string, defaultValue int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(str)
}

// parseDurationEnv parses a duration environment variable with a default value
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(str)
}
