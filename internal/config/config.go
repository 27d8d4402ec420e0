// Package config provides configuration loading and validation from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
//
// The grant/poll fields are deliberate policy knobs: every call site takes
// them from here instead of re-deriving its own constants.
type Config struct {
	LogLevel          string // debug, info, warn, error
	ListenAddr        string // API listener address (e.g., ":8080")
	MetricsListenAddr string // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string // SQLite database path

	EncryptionKey []byte // 32-byte key for encrypting bypass secrets at rest

	CDNAPIURL    string // Optional: base URL for the CDN API (empty = use default)
	CDNAPIKey    string // Required: CDN API key
	AccessZoneID string // Required: zone that pay-to-access allow rules are deployed to

	ChainRPCURL      string   // Required: blockchain JSON-RPC endpoint
	PaymentRecipient string   // Required: address payments must be sent to
	PaymentMinWei    *big.Int // Minimum accepted payment in wei

	RedisAddr     string // Replay-ledger redis address
	RedisPassword string
	RedisDB       int

	GrantTTL      time.Duration // How long an access grant stays active
	SweepInterval time.Duration // How often expired grants are swept

	WaitPollStart  time.Duration // Initial poll interval for WaitForActive
	WaitPollFactor float64       // Backoff multiplier between polls
	WaitPollCap    time.Duration // Maximum poll interval
	WaitCeiling    time.Duration // Overall WaitForActive timeout
	MinRemaining   time.Duration // Remaining TTL below which a grant is not "active enough"

	RateLimitRPS   float64 // Per-IP request rate on the public access endpoint
	RateLimitBurst int
}

// Load parses configuration from environment variables.
// All optional fields have defaults; required fields are checked by Validate.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:          envOr("LOG_LEVEL", "info"),
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		MetricsListenAddr: envOr("METRICS_LISTEN_ADDR", "localhost:9090"),
		DatabasePath:      envOr("DATABASE_PATH", "/data/botgate.db"),
		CDNAPIURL:         os.Getenv("CDN_API_URL"),
		CDNAPIKey:         os.Getenv("CDN_API_KEY"),
		AccessZoneID:      os.Getenv("CDN_ACCESS_ZONE_ID"),
		ChainRPCURL:       os.Getenv("CHAIN_RPC_URL"),
		PaymentRecipient:  os.Getenv("PAYMENT_RECIPIENT"),
		RedisAddr:         envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if cfg.GrantTTL, err = durationEnv("GRANT_TTL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.WaitPollStart, err = durationEnv("WAIT_POLL_START", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.WaitPollFactor, err = floatEnv("WAIT_POLL_FACTOR", 2.0); err != nil {
		return nil, err
	}
	if cfg.WaitPollCap, err = durationEnv("WAIT_POLL_CAP", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WaitCeiling, err = durationEnv("WAIT_CEILING", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MinRemaining, err = durationEnv("MIN_REMAINING", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = floatEnv("RATE_LIMIT_RPS", 2.0); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 5); err != nil {
		return nil, err
	}

	minWei := envOr("PAYMENT_MIN_AMOUNT_WEI", "1000000000000000") // 0.001 ETH
	amount, ok := new(big.Int).SetString(minWei, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("PAYMENT_MIN_AMOUNT_WEI is not a valid non-negative integer: %q", minWei)
	}
	cfg.PaymentMinWei = amount

	if keyHex := os.Getenv("ENCRYPTION_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
		}
		cfg.EncryptionKey = key
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.CDNAPIKey == "" {
		return fmt.Errorf("CDN_API_KEY environment variable is required")
	}
	if c.AccessZoneID == "" {
		return fmt.Errorf("CDN_ACCESS_ZONE_ID environment variable is required")
	}
	if c.ChainRPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL environment variable is required")
	}
	if c.PaymentRecipient == "" {
		return fmt.Errorf("PAYMENT_RECIPIENT environment variable is required")
	}
	if len(c.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(c.EncryptionKey))
	}
	if c.GrantTTL <= 0 {
		return fmt.Errorf("GRANT_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.WaitPollFactor < 1.0 {
		return fmt.Errorf("WAIT_POLL_FACTOR must be >= 1.0")
	}
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %w", name, err)
	}
	return d, nil
}

func intEnv(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %w", name, err)
	}
	return n, nil
}

func floatEnv(name string, fallback float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid number: %w", name, err)
	}
	return f, nil
}
