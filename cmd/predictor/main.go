// Command predictor serves job demand predictions over HTTP.
//
// The predictor accepts tabular job-posting datasets, forecasts demand for
// the top roles using per-role sequence models with statistical fallbacks,
// and returns predictions together with skill-gap and saturation analyses.
// The latest report per dataset is stored (in memory or Redis) and served
// without recomputation.
//
// The service exposes:
//   - POST /predict?dataset=<name> - Run predictions over a CSV request body
//   - GET /predictions/current?dataset=<name> - Latest stored report
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	predictor -listen=:8080 -models-dir=models -storage=memory
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :8080)
//	MODELS_DIR      - Trained artifact directory (default: models)
//	STORAGE         - Report storage: memory or redis (default: memory)
//	REDIS_ADDR      - Redis server address
//	REDIS_PASSWORD  - Redis password
//	REDIS_DB        - Redis database number
//	REDIS_TTL       - Redis report TTL (default: 30m)
//	REQUEST_TIMEOUT - Per-request prediction timeout (default: 1m)
//	STALE_AFTER     - Report staleness threshold (default: 1h)
//	LOG_LEVEL       - debug, info, warn, error (default: info)
//	LOG_FORMAT      - text or json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hirelens/hirelens/cmd/predictor/config"
	"github.com/hirelens/hirelens/cmd/predictor/logger"
	"github.com/hirelens/hirelens/cmd/predictor/metrics"
	"github.com/hirelens/hirelens/cmd/predictor/router"
	"github.com/hirelens/hirelens/pkg/artifacts"
	"github.com/hirelens/hirelens/pkg/forecast"
	"github.com/hirelens/hirelens/pkg/httpx"
	"github.com/hirelens/hirelens/pkg/predictor"
	"github.com/hirelens/hirelens/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	log.Info("starting hirelens predictor",
		"version", version,
		"listen", cfg.Listen,
		"models_dir", cfg.ModelsDir,
		"storage", cfg.Storage,
	)

	store, cleanup, err := newStore(cfg)
	if err != nil {
		log.Error("failed to initialize report storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	artifactStore := artifacts.NewStore(cfg.ModelsDir, log)
	policy := forecast.NewPolicy(artifactStore, log)
	engine := predictor.New(policy, log)

	handler := router.SetupRoutes(router.Options{
		Predictor:      engine,
		Store:          store,
		Metrics:        metrics.New(),
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		StaleAfter:     cfg.StaleAfter,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	server := httpx.NewServer(cfg.Listen, handler, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := server.Stop(10 * time.Second); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// newStore builds the configured report store and its cleanup function.
func newStore(cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.Storage {
	case "redis":
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		ms := storage.NewMemoryStore()
		return ms, func() {}, nil
	}
}
