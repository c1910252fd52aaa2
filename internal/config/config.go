package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
)

type Config struct {
	// RPC settings
	RPCUrl       string
	PollInterval time.Duration

	// Tip jar program settings
	TipJarProgramID string
	TipJarOwner     string

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout time.Duration

	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool

	// AI settings
	OpenRouterAPIKey string
	AIModel          string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:       getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		PollInterval: getDurationEnv("POLL_INTERVAL", 30*time.Second),

		// Tip jar
		TipJarProgramID: getEnv("TIPJAR_PROGRAM_ID", ""),
		TipJarOwner:     getEnv("TIPJAR_OWNER", ""),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// AI
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", "openai/gpt-4.1-mini"),
	}
}

// Validate checks settings that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("SOLANA_RPC_URL must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.TipJarProgramID != "" {
		if err := validateBase58Key(c.TipJarProgramID); err != nil {
			return fmt.Errorf("TIPJAR_PROGRAM_ID: %w", err)
		}
	}
	if c.TipJarOwner != "" {
		if err := validateBase58Key(c.TipJarOwner); err != nil {
			return fmt.Errorf("TIPJAR_OWNER: %w", err)
		}
	}
	return nil
}

func validateBase58Key(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid base58: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("expected 32-byte key, got %d bytes", len(raw))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
