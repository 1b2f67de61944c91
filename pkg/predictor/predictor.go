// Package predictor implements the top-level prediction orchestrator.
//
// One Predict call selects the top roles by posting volume, builds a monthly
// series per role, consults the forecast policy for each, and assembles the
// result set together with two independent secondary analyses (skill
// frequency breakdown and per-role saturation scores) and summary statistics.
//
// The call never fails due to model problems: data-quality issues route
// individual roles or the whole call onto lower-confidence fallback tiers,
// and a panic anywhere in the series path is recovered at this boundary and
// downgrades the entire call to the frequency heuristic.
package predictor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hirelens/hirelens/pkg/dataset"
	"github.com/hirelens/hirelens/pkg/forecast"
	"github.com/hirelens/hirelens/pkg/series"
)

// TopRoles caps how many roles one call forecasts, ranked by raw observation
// count with ties broken by encounter order.
const TopRoles = 10

// highDemandThreshold marks roles called out in the summary.
const highDemandThreshold = 1000

// roleColumns is the ordered preference list for the role-identifying column
// on the series path.
var roleColumns = []string{"job_title", "job_role", "role"}

// fallbackRoleColumns is the preference list used by the frequency tier.
var fallbackRoleColumns = []string{"job_title", "role"}

// defaultRoleCounts seeds the frequency tier when no role column exists at
// all.
var defaultRoleCounts = []roleCount{
	{role: "Data Scientist", count: 150},
	{role: "Software Engineer", count: 200},
}

// Prediction is one role's demand forecast.
type Prediction struct {
	Role          string  `json:"role"`
	CurrentDemand int     `json:"current_demand"`
	Demand        int     `json:"demand"`
	GrowthRate    float64 `json:"growth_rate"`
	Confidence    float64 `json:"confidence"`
}

// Summary aggregates one report's predictions.
type Summary struct {
	TotalPredictions int      `json:"total_predictions"`
	AvgDemand        float64  `json:"avg_demand"`
	HighDemandRoles  []string `json:"high_demand_roles"`
}

// Report is the full result of one prediction call. It is immutable once
// returned.
type Report struct {
	ID               string            `json:"id"`
	Dataset          string            `json:"dataset"`
	GeneratedAt      time.Time         `json:"generated_at"`
	Predictions      []Prediction      `json:"predictions"`
	SkillGapScores   SkillGapAnalysis  `json:"skill_gap_scores"`
	SaturationScores []SaturationScore `json:"saturation_scores"`
	Summary          Summary           `json:"summary"`
}

// Predictor orchestrates forecasting over a dataset. It holds no per-call
// state and is safe for concurrent use.
type Predictor struct {
	policy *forecast.Policy
	logger *slog.Logger
}

// New creates a Predictor using the given forecast policy.
func New(policy *forecast.Policy, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{policy: policy, logger: logger}
}

// Predict runs the full analysis over a dataset and returns a fresh report.
// name identifies the dataset in the report and downstream storage.
func (p *Predictor) Predict(ctx context.Context, name string, ds *dataset.Dataset) (*Report, error) {
	if ds == nil {
		return nil, errors.New("predictor: dataset is required")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	predictions := p.demandPredictions(ds)
	skillGaps := p.analyzeSkillGaps(ds)
	saturation := p.saturationScores(ds)

	return &Report{
		ID:               uuid.NewString(),
		Dataset:          name,
		GeneratedAt:      time.Now().UTC(),
		Predictions:      predictions,
		SkillGapScores:   skillGaps,
		SaturationScores: saturation,
		Summary:          summarize(predictions),
	}, nil
}

// demandPredictions runs the series-based path with a panic boundary: an
// unexpected failure downgrades the whole call to the heuristic tier instead
// of propagating.
func (p *Predictor) demandPredictions(ds *dataset.Dataset) (predictions []Prediction) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("demand prediction failed, downgrading to heuristic tier", "panic", r)
			predictions = p.heuristicPredictions(ds)
		}
	}()
	return p.seriesPredictions(ds)
}

// seriesPredictions forecasts the top roles from their monthly series,
// delegating wholesale to the heuristic tier when no series can be built.
func (p *Predictor) seriesPredictions(ds *dataset.Dataset) []Prediction {
	roleCol, ok := ds.FirstColumn(roleColumns...)
	if !ok {
		p.logger.Warn("role column missing, using frequency-based predictions")
		return p.heuristicPredictions(ds)
	}
	if !ds.HasColumn("date") {
		p.logger.Warn("date column missing, using frequency-based predictions")
		return p.heuristicPredictions(ds)
	}

	valid := make([]dataset.Row, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		if _, ok := series.ParseDate(row["date"]); ok {
			valid = append(valid, row)
		}
	}
	if len(valid) == 0 {
		p.logger.Warn("all date rows invalid, using frequency-based predictions")
		return p.heuristicPredictions(ds)
	}

	top := topRoleCounts(valid, roleCol, TopRoles)
	if len(top) == 0 {
		p.logger.Warn("no roles available after filtering, using frequency-based predictions")
		return p.heuristicPredictions(ds)
	}

	countCol := ""
	if ds.HasColumn("postings_count") {
		countCol = "postings_count"
	}

	predictions := make([]Prediction, 0, len(top))
	for _, rc := range top {
		rows := rowsForRole(valid, roleCol, rc.role)
		roleSeries := series.BuildMonthly(rc.role, rows, "date", countCol)

		current := int(roleSeries.Last())
		est := p.policy.Forecast(rc.role, roleSeries.Values())
		predictions = append(predictions, newPrediction(rc.role, current, est))
	}
	return predictions
}

// heuristicPredictions builds frequency-tier records when the dataset cannot
// support any time series. The fixed default pairs apply only when no role
// column exists at all; a present column with no usable values yields an
// empty prediction set.
func (p *Predictor) heuristicPredictions(ds *dataset.Dataset) []Prediction {
	counts := defaultRoleCounts
	if col, ok := ds.FirstColumn(fallbackRoleColumns...); ok {
		counts = topRoleCounts(ds.Rows, col, TopRoles)
	}

	predictions := make([]Prediction, 0, len(counts))
	for _, rc := range counts {
		est := forecast.Heuristic(float64(rc.count))
		predictions = append(predictions, newPrediction(rc.role, rc.count, est))
	}
	return predictions
}

// newPrediction applies the post-processing invariants: demand rounds the
// clamped forecast while growth uses the unrounded value, and growth is
// exactly 0 whenever current demand is 0.
func newPrediction(role string, current int, est forecast.Estimate) Prediction {
	growth := 0.0
	if current > 0 {
		growth = (est.Value - float64(current)) / float64(current) * 100
	}
	return Prediction{
		Role:          role,
		CurrentDemand: current,
		Demand:        int(math.Round(est.Value)),
		GrowthRate:    round2(growth),
		Confidence:    round2(est.Confidence),
	}
}

// summarize builds the report summary: total count, average demand, and the
// first five roles forecast above the high-demand threshold.
func summarize(predictions []Prediction) Summary {
	s := Summary{
		TotalPredictions: len(predictions),
		HighDemandRoles:  []string{},
	}
	if len(predictions) == 0 {
		return s
	}

	total := 0
	for _, pr := range predictions {
		total += pr.Demand
		if pr.Demand > highDemandThreshold && len(s.HighDemandRoles) < 5 {
			s.HighDemandRoles = append(s.HighDemandRoles, pr.Role)
		}
	}
	s.AvgDemand = float64(total) / float64(len(predictions))
	return s
}

// roleCount pairs a role with its raw observation count.
type roleCount struct {
	role  string
	count int
}

// countRoles tallies observations per role in encounter order.
func countRoles(rows []dataset.Row, col string) []roleCount {
	index := make(map[string]int)
	var counts []roleCount
	for _, row := range rows {
		role, ok := dataset.String(row[col])
		if !ok || role == "" {
			continue
		}
		if i, seen := index[role]; seen {
			counts[i].count++
			continue
		}
		index[role] = len(counts)
		counts = append(counts, roleCount{role: role, count: 1})
	}
	return counts
}

// topRoleCounts returns the n most frequent roles in rows.
func topRoleCounts(rows []dataset.Row, col string, n int) []roleCount {
	return rankRoleCounts(countRoles(rows, col), n)
}

// rankRoleCounts orders counts by frequency and truncates to n. The sort is
// stable, so ties keep the order the counting step encountered them in.
func rankRoleCounts(counts []roleCount, n int) []roleCount {
	ranked := append([]roleCount{}, counts...)
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].count > ranked[b].count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// rowsForRole filters rows to one role.
func rowsForRole(rows []dataset.Row, col, role string) []dataset.Row {
	out := make([]dataset.Row, 0)
	for _, row := range rows {
		if r, ok := dataset.String(row[col]); ok && r == role {
			out = append(out, row)
		}
	}
	return out
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
