// Package router configures the predictor's HTTP endpoints.
//
// Routes configured:
//   - POST /predict?dataset=<name> - Run predictions over a CSV request body
//   - GET /predictions/current?dataset=<name> - Retrieve the latest stored report
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Reports older than the stale threshold are served with an X-Hirelens-Stale
// header so callers can decide whether to re-run predictions.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hirelens/hirelens/cmd/predictor/metrics"
	"github.com/hirelens/hirelens/pkg/dataset"
	"github.com/hirelens/hirelens/pkg/forecast"
	"github.com/hirelens/hirelens/pkg/httpx"
	"github.com/hirelens/hirelens/pkg/predictor"
	"github.com/hirelens/hirelens/pkg/storage"
)

var datasetNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// Options carries the router's collaborators and tunables.
type Options struct {
	Predictor      *predictor.Predictor
	Store          storage.Store
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	RequestTimeout time.Duration
	StaleAfter     time.Duration
	MaxBodyBytes   int64
}

// SetupRoutes configures the predictor's HTTP endpoints.
func SetupRoutes(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 50 << 20
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", httpx.HealthHandler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/predict", handlePredict(opts))
	mux.HandleFunc("/predictions/current", handleGetReport(opts))

	var handler http.Handler = mux
	handler = httpx.LoggingMiddleware(opts.Logger)(handler)
	handler = httpx.RecoveryMiddleware(opts.Logger)(handler)
	return handler
}

// handlePredict runs the orchestrator over an uploaded CSV dataset and stores
// the resulting report.
func handlePredict(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		name := r.URL.Query().Get("dataset")
		if name == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "dataset parameter required")
			return
		}
		if !datasetNameRegex.MatchString(name) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid dataset name format")
			return
		}

		ds, err := dataset.ReadCSV(http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes))
		if err != nil {
			opts.Metrics.RecordError("dataset", "parse_failed")
			httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid dataset: %v", err))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), opts.RequestTimeout)
		defer cancel()

		start := time.Now()
		report, err := opts.Predictor.Predict(ctx, name, ds)
		opts.Metrics.RecordPredict(time.Since(start).Seconds())
		if err != nil {
			opts.Metrics.RecordError("predictor", "predict_failed")
			opts.Logger.Error("prediction failed", "dataset", name, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "prediction failed")
			return
		}

		opts.Metrics.SetDatasetRows(ds.Len())
		for _, p := range report.Predictions {
			opts.Metrics.RecordTier(tierFor(p.Confidence))
		}

		if err := opts.Store.Put(ctx, *report); err != nil {
			// serving the freshly computed report still succeeds
			opts.Metrics.RecordError("storage", "put_failed")
			opts.Logger.Error("failed to store report", "dataset", name, "error", err)
		}

		if err := httpx.WriteJSON(w, http.StatusOK, report); err != nil {
			opts.Logger.Error("failed to write report", "dataset", name, "error", err)
		}
	}
}

// handleGetReport serves the latest stored report for a dataset.
func handleGetReport(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		name := r.URL.Query().Get("dataset")
		if name == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "dataset parameter required")
			return
		}
		if !datasetNameRegex.MatchString(name) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid dataset name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		report, found, err := opts.Store.GetLatest(ctx, name)
		if err != nil {
			opts.Metrics.RecordError("storage", "get_failed")
			opts.Logger.Error("failed to get report", "dataset", name, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no report found for dataset %q", name))
			return
		}

		if time.Since(report.GeneratedAt) > opts.StaleAfter {
			w.Header().Set("X-Hirelens-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, report); err != nil {
			opts.Logger.Error("failed to write report", "dataset", name, "error", err)
		}
	}
}

// tierFor maps a record's fixed confidence back to its estimation tier.
func tierFor(confidence float64) string {
	switch confidence {
	case forecast.ConfidenceModel:
		return "lstm"
	case forecast.ConfidenceMovingAverage:
		return "moving_average"
	case forecast.ConfidenceHeuristic:
		return "frequency"
	default:
		return "unknown"
	}
}
