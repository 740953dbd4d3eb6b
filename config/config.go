// Package config loads process configuration from the environment (and an
// optional .env file) and zone tunables from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port   int
	DBPath string

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	// ServiceabilityURL is the base URL of the serviceability service.
	// Empty means every carrier serves every pincode.
	ServiceabilityURL     string
	ServiceabilityTimeout time.Duration
	RankParallel          int

	ZoneConfigPath string
	DefaultGST     decimal.Decimal
	LogLevel       string
}

// Load reads .env files (missing files are ignored) and then the
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := Config{
		DBPath:            getEnv("RATE_DB_PATH", "rates.db"),
		RedisAddr:         getEnv("RATE_REDIS_ADDR", ""),
		RedisPassword:     getEnv("RATE_REDIS_PASSWORD", ""),
		ServiceabilityURL: getEnv("RATE_SERVICEABILITY_URL", ""),
		ZoneConfigPath:    getEnv("RATE_ZONE_CONFIG", ""),
		LogLevel:          getEnv("RATE_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(getEnv("RATE_HTTP_PORT", "8080")); err != nil {
		return Config{}, fmt.Errorf("RATE_HTTP_PORT: %w", err)
	}
	if cfg.RankParallel, err = strconv.Atoi(getEnv("RATE_RANK_PARALLEL", "8")); err != nil {
		return Config{}, fmt.Errorf("RATE_RANK_PARALLEL: %w", err)
	}
	if cfg.ServiceabilityTimeout, err = time.ParseDuration(getEnv("RATE_SERVICEABILITY_TIMEOUT", "2s")); err != nil {
		return Config{}, fmt.Errorf("RATE_SERVICEABILITY_TIMEOUT: %w", err)
	}
	if cfg.CacheTTL, err = time.ParseDuration(getEnv("RATE_CACHE_TTL", "10m")); err != nil {
		return Config{}, fmt.Errorf("RATE_CACHE_TTL: %w", err)
	}
	if cfg.DefaultGST, err = decimal.NewFromString(getEnv("RATE_DEFAULT_GST", "18")); err != nil {
		return Config{}, fmt.Errorf("RATE_DEFAULT_GST: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
