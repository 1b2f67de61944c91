// Package training implements the offline batch pipeline that produces the
// per-role artifact pairs the forecast policy consumes.
//
// The pipeline is expected to run as a single invocation with exclusive write
// access to the artifact directory; concurrent training of the same role is
// undefined and must be serialized by the caller.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hirelens/hirelens/pkg/artifacts"
	"github.com/hirelens/hirelens/pkg/dataset"
	"github.com/hirelens/hirelens/pkg/forecast"
	"github.com/hirelens/hirelens/pkg/models"
	"github.com/hirelens/hirelens/pkg/series"
)

// Mandatory training dataset columns. Prediction tolerates looser schemas;
// training does not.
const (
	ColumnDate     = "date"
	ColumnRole     = "job_role"
	ColumnPostings = "postings_count"
)

// Pipeline trains and persists one sequence model and scaler per role.
type Pipeline struct {
	store  *artifacts.Store
	cfg    models.LSTMConfig
	logger *slog.Logger
}

// NewPipeline creates a training pipeline writing artifacts through store.
func NewPipeline(store *artifacts.Store, cfg models.LSTMConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, cfg: cfg, logger: logger}
}

// Windows builds sliding next-step training examples: each window holds size
// consecutive values and its target is the immediately following value. A
// series of length n yields n-size examples; n <= size yields none.
func Windows(values []float64, size int) ([][]float64, []float64) {
	if len(values) <= size {
		return nil, nil
	}
	windows := make([][]float64, 0, len(values)-size)
	targets := make([]float64, 0, len(values)-size)
	for i := size; i < len(values); i++ {
		windows = append(windows, append([]float64(nil), values[i-size:i]...))
		targets = append(targets, values[i])
	}
	return windows, targets
}

// Run trains a model for every role in the dataset with enough history and
// returns the names of the roles successfully trained.
//
// A dataset missing any mandatory column is a precondition failure: reported
// as an error with no partial training attempted. Roles whose monthly series
// is not strictly longer than the window are skipped with a warning, since no
// training example can be formed.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset) ([]string, error) {
	var missing []string
	for _, col := range []string{ColumnDate, ColumnRole, ColumnPostings} {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("training: dataset missing required columns: %v", missing)
	}

	roles := distinctRoles(ds)
	p.logger.Info("starting training run", "roles", len(roles), "rows", ds.Len())

	var trained []string
	for _, role := range roles {
		select {
		case <-ctx.Done():
			return trained, ctx.Err()
		default:
		}

		if err := p.trainRole(ctx, ds, role); err != nil {
			if ctx.Err() != nil {
				return trained, err
			}
			var skip errSkipped
			if !errors.As(err, &skip) {
				p.logger.Error("training failed for role", "role", role, "error", err)
			}
			continue
		}
		trained = append(trained, role)
	}

	if len(trained) == 0 {
		p.logger.Warn("no roles were trained, check data availability")
	}
	return trained, nil
}

// errSkipped marks an expected data-quality skip: trainRole has already
// warned, so Run moves on without an error log.
type errSkipped struct{ reason string }

func (e errSkipped) Error() string { return e.reason }

// trainRole builds the role's series, fits the scaler and model, and persists
// the pair.
func (p *Pipeline) trainRole(ctx context.Context, ds *dataset.Dataset, role string) error {
	rows := make([]dataset.Row, 0)
	for _, row := range ds.Rows {
		if r, ok := dataset.String(row[ColumnRole]); ok && r == role {
			rows = append(rows, row)
		}
	}

	roleSeries := series.BuildMonthly(role, rows, ColumnDate, ColumnPostings)
	if roleSeries.Len() <= forecast.WindowSize {
		p.logger.Warn("skipping role with insufficient history",
			"role", role,
			"months", roleSeries.Len(),
			"required", forecast.WindowSize+1,
		)
		return errSkipped{reason: "insufficient history"}
	}

	values := roleSeries.Values()
	scaler := &models.MinMaxScaler{}
	scaler.Fit(values)
	scaled := scaler.Transform(values)

	windows, targets := Windows(scaled, forecast.WindowSize)
	if len(windows) == 0 {
		p.logger.Warn("no training sequences for role", "role", role)
		return errSkipped{reason: "no training sequences"}
	}

	model := models.NewLSTM(p.cfg)
	if err := model.Train(ctx, windows, targets); err != nil {
		return fmt.Errorf("train model: %w", err)
	}

	if err := p.store.Save(role, model, scaler); err != nil {
		return fmt.Errorf("persist artifacts: %w", err)
	}

	p.logger.Info("trained role", "role", role, "months", roleSeries.Len(), "examples", len(windows))
	return nil
}

// distinctRoles returns the dataset's roles in first-seen order.
func distinctRoles(ds *dataset.Dataset) []string {
	seen := make(map[string]bool)
	var roles []string
	for _, row := range ds.Rows {
		role, ok := dataset.String(row[ColumnRole])
		if !ok || role == "" || seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}
	return roles
}
