package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/hirelens/hirelens/pkg/artifacts"
	"github.com/hirelens/hirelens/pkg/dataset"
	"github.com/hirelens/hirelens/pkg/forecast"
)

// newTestPredictor wires a predictor over an empty artifact directory, so the
// series path lands on the moving-average tier.
func newTestPredictor(t *testing.T) *Predictor {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	policy := forecast.NewPolicy(artifacts.NewStore(t.TempDir(), log), log)
	return New(policy, log)
}

// monthlyDataset builds one row per role per month from 2023-01 with the given
// constant postings count.
func monthlyDataset(months int, roles map[string]int) *dataset.Dataset {
	ds := &dataset.Dataset{Columns: []string{"date", "job_title", "postings_count"}}
	for role, count := range roles {
		for i := 0; i < months; i++ {
			ds.Rows = append(ds.Rows, dataset.Row{
				"date":           fmt.Sprintf("%04d-%02d-15", 2023+i/12, 1+i%12),
				"job_title":      role,
				"postings_count": fmt.Sprintf("%d", count),
			})
		}
	}
	return ds
}

func TestPredict_NilDataset(t *testing.T) {
	p := newTestPredictor(t)
	if _, err := p.Predict(context.Background(), "jobs", nil); err == nil {
		t.Error("Predict(nil) error = nil, want error")
	}
}

func TestPredict_CancelledContext(t *testing.T) {
	p := newTestPredictor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, "jobs", monthlyDataset(14, map[string]int{"Analyst": 10}))
	if err != context.Canceled {
		t.Errorf("Predict() error = %v, want context.Canceled", err)
	}
}

func TestPredict_SeriesPath(t *testing.T) {
	p := newTestPredictor(t)
	ds := monthlyDataset(14, map[string]int{"Data Scientist": 50})

	report, err := p.Predict(context.Background(), "jobs", ds)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if report.ID == "" {
		t.Error("report ID is empty")
	}
	if report.Dataset != "jobs" {
		t.Errorf("Dataset = %q, want %q", report.Dataset, "jobs")
	}
	if report.GeneratedAt.IsZero() {
		t.Error("GeneratedAt is zero")
	}

	if len(report.Predictions) != 1 {
		t.Fatalf("len(Predictions) = %d, want 1", len(report.Predictions))
	}
	pr := report.Predictions[0]
	if pr.Role != "Data Scientist" {
		t.Errorf("Role = %q, want Data Scientist", pr.Role)
	}
	// 14 months of constant 50: a full window exists but no artifact, so the
	// moving-average tier answers with the constant itself.
	if pr.CurrentDemand != 50 {
		t.Errorf("CurrentDemand = %d, want 50", pr.CurrentDemand)
	}
	if pr.Demand != 50 {
		t.Errorf("Demand = %d, want 50", pr.Demand)
	}
	if pr.Confidence != forecast.ConfidenceMovingAverage {
		t.Errorf("Confidence = %v, want %v", pr.Confidence, forecast.ConfidenceMovingAverage)
	}
	if pr.GrowthRate != 0 {
		t.Errorf("GrowthRate = %v, want 0 for a flat series", pr.GrowthRate)
	}
}

func TestPredict_MissingRoleColumn(t *testing.T) {
	p := newTestPredictor(t)
	ds := &dataset.Dataset{
		Columns: []string{"date", "location"},
		Rows: []dataset.Row{
			{"date": "2024-01-01", "location": "Berlin"},
		},
	}

	report, err := p.Predict(context.Background(), "jobs", ds)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	// No role column at all: fixed default counts at heuristic confidence.
	if len(report.Predictions) != 2 {
		t.Fatalf("len(Predictions) = %d, want 2 defaults", len(report.Predictions))
	}
	for _, pr := range report.Predictions {
		if pr.Confidence != forecast.ConfidenceHeuristic {
			t.Errorf("%s Confidence = %v, want %v", pr.Role, pr.Confidence, forecast.ConfidenceHeuristic)
		}
	}

	byRole := map[string]Prediction{}
	for _, pr := range report.Predictions {
		byRole[pr.Role] = pr
	}
	ds150, ok := byRole["Data Scientist"]
	if !ok {
		t.Fatal("missing default Data Scientist prediction")
	}
	if ds150.CurrentDemand != 150 || ds150.Demand != 158 {
		t.Errorf("Data Scientist = current %d demand %d, want 150 and 158 (150*1.05 rounded)",
			ds150.CurrentDemand, ds150.Demand)
	}
}

func TestPredict_BlankRoleColumn(t *testing.T) {
	p := newTestPredictor(t)
	ds := &dataset.Dataset{
		Columns: []string{"job_title", "location"},
		Rows: []dataset.Row{
			{"job_title": "", "location": "Berlin"},
			{"job_title": "", "location": "Munich"},
		},
	}

	report, err := p.Predict(context.Background(), "jobs", ds)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	// A role column that yields no usable values produces no predictions;
	// the fixed defaults apply only when the column is absent entirely.
	if len(report.Predictions) != 0 {
		t.Errorf("len(Predictions) = %d, want 0", len(report.Predictions))
	}
	if report.Summary.TotalPredictions != 0 {
		t.Errorf("TotalPredictions = %d, want 0", report.Summary.TotalPredictions)
	}
}

func TestPredict_SeriesPathPanicDowngrades(t *testing.T) {
	// A nil policy makes the series path blow up on the first forecast; the
	// whole call must still succeed on the heuristic tier.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
	p := New(nil, log)
	ds := monthlyDataset(14, map[string]int{"Data Scientist": 50})

	report, err := p.Predict(context.Background(), "jobs", ds)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(report.Predictions) == 0 {
		t.Fatal("no predictions after downgrade")
	}
	for _, pr := range report.Predictions {
		if pr.Confidence != forecast.ConfidenceHeuristic {
			t.Errorf("%s Confidence = %v, want %v", pr.Role, pr.Confidence, forecast.ConfidenceHeuristic)
		}
	}
}

func TestPredict_MissingDateColumn(t *testing.T) {
	p := newTestPredictor(t)
	ds := &dataset.Dataset{
		Columns: []string{"job_title"},
		Rows: []dataset.Row{
			{"job_title": "Engineer"},
			{"job_title": "Engineer"},
			{"job_title": "Analyst"},
		},
	}

	report, err := p.Predict(context.Background(), "jobs", ds)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if len(report.Predictions) != 2 {
		t.Fatalf("len(Predictions) = %d, want 2", len(report.Predictions))
	}
	// Ranked by frequency: Engineer (2 rows) first.
	if report.Predictions[0].Role != "Engineer" {
		t.Errorf("Predictions[0].Role = %q, want Engineer", report.Predictions[0].Role)
	}
	if report.Predictions[0].CurrentDemand != 2 {
		t.Errorf("CurrentDemand = %d, want 2", report.Predictions[0].CurrentDemand)
	}
	for _, pr := range report.Predictions {
		if pr.Confidence != forecast.ConfidenceHeuristic {
			t.Errorf("%s Confidence = %v, want %v", pr.Role, pr.Confidence, forecast.ConfidenceHeuristic)
		}
	}
}

func TestPredict_AllDatesInvalid(t *testing.T) {
	p := newTestPredictor(t)
	ds := &dataset.Dataset{
		Columns: []string{"date", "job_title"},
		Rows: []dataset.Row{
			{"date": "soon", "job_title": "Engineer"},
			{"date": "later", "job_title": "Engineer"},
		},
	}

	report, err := p.Predict(context.Background(), "jobs", ds)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if len(report.Predictions) != 1 {
		t.Fatalf("len(Predictions) = %d, want 1", len(report.Predictions))
	}
	pr := report.Predictions[0]
	if pr.Confidence != forecast.ConfidenceHeuristic {
		t.Errorf("Confidence = %v, want %v", pr.Confidence, forecast.ConfidenceHeuristic)
	}
	if pr.CurrentDemand != 2 || pr.Demand != 2 {
		t.Errorf("prediction = current %d demand %d, want 2 and 2 (2*1.05 rounds to 2)",
			pr.CurrentDemand, pr.Demand)
	}
}

func TestPredict_TopRolesCap(t *testing.T) {
	p := newTestPredictor(t)

	roles := map[string]int{}
	for i := 0; i < TopRoles+5; i++ {
		roles[fmt.Sprintf("Role %02d", i)] = 10 + i
	}
	ds := monthlyDataset(14, roles)

	report, err := p.Predict(context.Background(), "jobs", ds)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(report.Predictions) != TopRoles {
		t.Errorf("len(Predictions) = %d, want %d", len(report.Predictions), TopRoles)
	}
}

func TestNewPrediction(t *testing.T) {
	tests := []struct {
		name           string
		current        int
		est            forecast.Estimate
		wantDemand     int
		wantGrowth     float64
		wantConfidence float64
	}{
		{
			name:           "positive growth",
			current:        100,
			est:            forecast.Estimate{Value: 110, Confidence: 0.65},
			wantDemand:     110,
			wantGrowth:     10,
			wantConfidence: 0.65,
		},
		{
			name:           "demand rounds half up",
			current:        100,
			est:            forecast.Estimate{Value: 104.5, Confidence: 0.92},
			wantDemand:     105,
			wantGrowth:     4.5,
			wantConfidence: 0.92,
		},
		{
			name:           "zero current forces zero growth",
			current:        0,
			est:            forecast.Estimate{Value: 50, Confidence: 0.65},
			wantDemand:     50,
			wantGrowth:     0,
			wantConfidence: 0.65,
		},
		{
			name:           "negative growth",
			current:        200,
			est:            forecast.Estimate{Value: 150, Confidence: 0.65},
			wantDemand:     150,
			wantGrowth:     -25,
			wantConfidence: 0.65,
		},
		{
			name:           "growth rounds to two decimals",
			current:        3,
			est:            forecast.Estimate{Value: 4, Confidence: 0.5},
			wantDemand:     4,
			wantGrowth:     33.33,
			wantConfidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := newPrediction("x", tt.current, tt.est)
			if pr.Demand != tt.wantDemand {
				t.Errorf("Demand = %d, want %d", pr.Demand, tt.wantDemand)
			}
			if math.Abs(pr.GrowthRate-tt.wantGrowth) > 1e-9 {
				t.Errorf("GrowthRate = %v, want %v", pr.GrowthRate, tt.wantGrowth)
			}
			if pr.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", pr.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name           string
		predictions    []Prediction
		wantTotal      int
		wantAvg        float64
		wantHighDemand []string
	}{
		{
			name:           "empty",
			predictions:    nil,
			wantTotal:      0,
			wantAvg:        0,
			wantHighDemand: []string{},
		},
		{
			name: "average and high-demand cutoff",
			predictions: []Prediction{
				{Role: "A", Demand: 1500},
				{Role: "B", Demand: 500},
				{Role: "C", Demand: 1000}, // exactly at threshold is not high demand
			},
			wantTotal:      3,
			wantAvg:        1000,
			wantHighDemand: []string{"A"},
		},
		{
			name: "high demand capped at five",
			predictions: []Prediction{
				{Role: "A", Demand: 2000},
				{Role: "B", Demand: 2000},
				{Role: "C", Demand: 2000},
				{Role: "D", Demand: 2000},
				{Role: "E", Demand: 2000},
				{Role: "F", Demand: 2000},
			},
			wantTotal:      6,
			wantAvg:        2000,
			wantHighDemand: []string{"A", "B", "C", "D", "E"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := summarize(tt.predictions)
			if s.TotalPredictions != tt.wantTotal {
				t.Errorf("TotalPredictions = %d, want %d", s.TotalPredictions, tt.wantTotal)
			}
			if s.AvgDemand != tt.wantAvg {
				t.Errorf("AvgDemand = %v, want %v", s.AvgDemand, tt.wantAvg)
			}
			if len(s.HighDemandRoles) != len(tt.wantHighDemand) {
				t.Fatalf("HighDemandRoles = %v, want %v", s.HighDemandRoles, tt.wantHighDemand)
			}
			for i, r := range tt.wantHighDemand {
				if s.HighDemandRoles[i] != r {
					t.Errorf("HighDemandRoles[%d] = %q, want %q", i, s.HighDemandRoles[i], r)
				}
			}
		})
	}
}

func TestRankRoleCounts(t *testing.T) {
	counts := []roleCount{
		{role: "A", count: 5},
		{role: "B", count: 9},
		{role: "C", count: 5},
		{role: "D", count: 1},
	}

	ranked := rankRoleCounts(counts, 3)
	if len(ranked) != 3 {
		t.Fatalf("len = %d, want 3", len(ranked))
	}
	// B first, then A before C (stable tie on count 5).
	want := []string{"B", "A", "C"}
	for i, r := range want {
		if ranked[i].role != r {
			t.Errorf("ranked[%d] = %q, want %q", i, ranked[i].role, r)
		}
	}

	// The input order must be untouched.
	if counts[0].role != "A" {
		t.Errorf("input mutated: counts[0] = %q, want A", counts[0].role)
	}
}

func TestCountRoles_SkipsBlanksAndKeepsOrder(t *testing.T) {
	rows := []dataset.Row{
		{"job_title": "Engineer"},
		{"job_title": ""},
		{"job_title": "Analyst"},
		{"job_title": "Engineer"},
		{"job_title": nil},
	}

	counts := countRoles(rows, "job_title")
	if len(counts) != 2 {
		t.Fatalf("len = %d, want 2", len(counts))
	}
	if counts[0].role != "Engineer" || counts[0].count != 2 {
		t.Errorf("counts[0] = %+v, want Engineer x2", counts[0])
	}
	if counts[1].role != "Analyst" || counts[1].count != 1 {
		t.Errorf("counts[1] = %+v, want Analyst x1", counts[1])
	}
}
