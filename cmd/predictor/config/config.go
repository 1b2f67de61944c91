// Package config provides configuration parsing for the predictor service.
//
// Command-line flags take precedence over environment variables, which take
// precedence over defaults.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all predictor configuration.
type Config struct {
	Listen    string
	ModelsDir string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	RequestTimeout time.Duration
	StaleAfter     time.Duration
	MaxBodyBytes   int64

	LogLevel  string
	LogFormat string
}

// ParseFlags parses command-line flags with environment-variable fallbacks.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.ModelsDir, "models-dir", getEnv("MODELS_DIR", "models"), "Directory holding trained model and scaler artifacts")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Report storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 30*time.Minute), "Redis report TTL")

	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", time.Minute), "Per-request prediction timeout")
	flag.DurationVar(&cfg.StaleAfter, "stale-after", getEnvDuration("STALE_AFTER", time.Hour), "Age after which served reports are flagged stale")
	flag.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", int64(getEnvInt("MAX_BODY_BYTES", 50<<20)), "Maximum accepted dataset upload size")

	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")

	flag.Parse()
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
