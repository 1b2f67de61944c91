// Package config provides configuration parsing for the trainer.
//
// Command-line flags take precedence over environment variables, which take
// precedence over defaults.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds all trainer configuration.
type Config struct {
	Data      string
	ModelsDir string

	HiddenSize   int
	Dropout      float64
	LearningRate float64
	Epochs       int
	BatchSize    int
	Patience     int
	Seed         int64

	LogLevel  string
	LogFormat string
}

// ParseFlags parses command-line flags with environment-variable fallbacks.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Data, "data", getEnv("DATA", ""), "Path to training CSV with columns date, job_role, postings_count (required)")
	flag.StringVar(&cfg.ModelsDir, "models-dir", getEnv("MODELS_DIR", "models"), "Directory where model and scaler artifacts are written")

	flag.IntVar(&cfg.HiddenSize, "hidden", getEnvInt("HIDDEN_SIZE", 50), "Units per recurrent layer")
	flag.Float64Var(&cfg.Dropout, "dropout", getEnvFloat("DROPOUT", 0.2), "Dropout probability between layers")
	flag.Float64Var(&cfg.LearningRate, "learning-rate", getEnvFloat("LEARNING_RATE", 0.001), "Adam learning rate")
	flag.IntVar(&cfg.Epochs, "epochs", getEnvInt("EPOCHS", 50), "Maximum training epochs")
	flag.IntVar(&cfg.BatchSize, "batch-size", getEnvInt("BATCH_SIZE", 16), "Training batch size")
	flag.IntVar(&cfg.Patience, "patience", getEnvInt("PATIENCE", 5), "Early-stopping patience in epochs")
	flag.Int64Var(&cfg.Seed, "seed", int64(getEnvInt("SEED", 42)), "Random seed for weight init and dropout")

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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
