// Command trainer runs the offline training pipeline.
//
// For each role in the input dataset with enough monthly history, the trainer
// fits a value scaler and a sequence model and writes the pair to the
// artifact directory consumed by the predictor.
//
// Usage:
//
//	trainer -data data/job_postings.csv -models-dir models
//
// Environment variables:
//
//	DATA          - Training CSV path (required)
//	MODELS_DIR    - Artifact output directory (default: models)
//	HIDDEN_SIZE   - Units per recurrent layer (default: 50)
//	DROPOUT       - Dropout probability (default: 0.2)
//	LEARNING_RATE - Adam learning rate (default: 0.001)
//	EPOCHS        - Maximum epochs (default: 50)
//	BATCH_SIZE    - Batch size (default: 16)
//	PATIENCE      - Early-stopping patience (default: 5)
//	SEED          - Random seed (default: 42)
//	LOG_LEVEL     - debug, info, warn, error (default: info)
//	LOG_FORMAT    - text or json (default: text)
//
// The trainer expects exclusive write access to the artifact directory; run
// it while the predictor is stopped.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hirelens/hirelens/cmd/trainer/config"
	"github.com/hirelens/hirelens/cmd/trainer/logger"
	"github.com/hirelens/hirelens/pkg/artifacts"
	"github.com/hirelens/hirelens/pkg/dataset"
	"github.com/hirelens/hirelens/pkg/models"
	"github.com/hirelens/hirelens/pkg/training"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	log.Info("starting hirelens trainer", "version", version, "data", cfg.Data, "models_dir", cfg.ModelsDir)

	if cfg.Data == "" {
		log.Error("missing required -data flag")
		os.Exit(1)
	}

	ds, err := dataset.ReadCSVFile(cfg.Data)
	if err != nil {
		log.Error("failed to read training data", "error", err)
		os.Exit(1)
	}

	store := artifacts.NewStore(cfg.ModelsDir, log)
	pipeline := training.NewPipeline(store, models.LSTMConfig{
		HiddenSize:   cfg.HiddenSize,
		Dropout:      cfg.Dropout,
		LearningRate: cfg.LearningRate,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		Patience:     cfg.Patience,
		Seed:         cfg.Seed,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trained, err := pipeline.Run(ctx, ds)
	if err != nil {
		log.Error("training run failed", "error", err)
		os.Exit(1)
	}

	if len(trained) == 0 {
		log.Warn("training complete, no models created")
		return
	}
	log.Info("training complete", "trained", len(trained), "roles", strings.Join(trained, ", "))
}
