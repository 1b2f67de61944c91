// Package forecast implements the tiered estimation policy for per-role
// demand series.
//
// Estimation strategies form an ordered chain. Each strategy either produces
// an estimate or declares itself inapplicable, and the policy walks the chain
// until one answers, so new tiers can be inserted without branching logic in
// the orchestrator. The shipped chain is:
//
//  1. sequence model (trained LSTM artifact), confidence 0.92
//  2. moving average over the trailing window, confidence 0.65
//
// The frequency-heuristic tier (confidence 0.5) is exposed from this package
// as well but is invoked by the orchestrator directly: it operates on raw
// role frequency counts when no series can be built at all, so it has no
// series to hand to the chain.
//
// Confidence values are fixed, tier-determined constants indicating which
// method produced a forecast. They are not statistically derived intervals.
package forecast

import (
	"log/slog"
	"math"

	"github.com/hirelens/hirelens/pkg/artifacts"
)

// WindowSize is the fixed lookback length in months. It gates the sequence
// tier (which needs at least one full window of history) and bounds the
// moving-average window.
const WindowSize = 12

// Tier confidence constants. These are configuration values preserved from
// the system's calibration, not computed metrics.
const (
	ConfidenceModel         = 0.92
	ConfidenceMovingAverage = 0.65
	ConfidenceHeuristic     = 0.5
)

// HeuristicGrowthFactor is the flat growth assumption applied by the
// frequency tier.
const HeuristicGrowthFactor = 1.05

// Estimate is a single-role forecast with the confidence of the tier that
// produced it.
type Estimate struct {
	Value      float64
	Confidence float64
	Method     string
}

// Strategy is one estimation tier. Estimate returns false when the strategy
// cannot serve the given series, handing off to the next tier.
type Strategy interface {
	Name() string
	Estimate(role string, values []float64) (Estimate, bool)
}

// Policy walks an ordered strategy chain and post-processes the winning
// estimate.
type Policy struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewPolicy builds the standard chain: sequence model backed by the artifact
// store, then moving average.
func NewPolicy(store *artifacts.Store, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		strategies: []Strategy{
			&SequenceStrategy{Store: store, Logger: logger},
			&MovingAverageStrategy{},
		},
		logger: logger,
	}
}

// NewPolicyWithStrategies builds a policy from an explicit chain, in order.
func NewPolicyWithStrategies(logger *slog.Logger, strategies ...Strategy) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{strategies: strategies, logger: logger}
}

// Forecast returns the first applicable strategy's estimate for a role
// series, clamped to be non-negative. The moving-average tier always applies,
// so a zero-value estimate is returned only from an empty chain.
func (p *Policy) Forecast(role string, values []float64) Estimate {
	for _, s := range p.strategies {
		est, ok := s.Estimate(role, values)
		if !ok {
			continue
		}
		if est.Value < 0 || math.IsNaN(est.Value) {
			est.Value = 0
		}
		return est
	}

	p.logger.Warn("no forecast strategy applied", "role", role)
	return Estimate{Confidence: ConfidenceMovingAverage, Method: "none"}
}

// SequenceStrategy runs the trained sequence model for roles with at least a
// full window of history and an available artifact pair.
type SequenceStrategy struct {
	Store  *artifacts.Store
	Logger *slog.Logger
}

// Name returns the tier identifier.
func (s *SequenceStrategy) Name() string { return "lstm" }

// Estimate scales the series, feeds the most recent window through the
// model, and inverts the scaling. Any artifact or inference problem makes
// the tier inapplicable rather than failing the forecast.
func (s *SequenceStrategy) Estimate(role string, values []float64) (Estimate, bool) {
	if len(values) < WindowSize {
		return Estimate{}, false
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	model, scaler, ok := s.Store.Load(role)
	if !ok {
		logger.Warn("sequence model unavailable, falling back to moving average", "role", role)
		return Estimate{}, false
	}

	scaled := scaler.Transform(values)
	window := scaled[len(scaled)-WindowSize:]

	predicted, err := model.PredictNext(window)
	if err != nil {
		logger.Error("sequence model inference failed, falling back to moving average",
			"role", role, "error", err)
		return Estimate{}, false
	}

	return Estimate{
		Value:      scaler.InverseOne(predicted),
		Confidence: ConfidenceModel,
		Method:     s.Name(),
	}, true
}

// MovingAverageStrategy estimates the next month as the mean of the last
// min(WindowSize, len) observed values. It is the chain's terminal tier and
// always applies; an empty series estimates 0.
type MovingAverageStrategy struct{}

// Name returns the tier identifier.
func (s *MovingAverageStrategy) Name() string { return "moving_average" }

// Estimate computes the trailing-window mean.
func (s *MovingAverageStrategy) Estimate(role string, values []float64) (Estimate, bool) {
	est := Estimate{Confidence: ConfidenceMovingAverage, Method: s.Name()}
	if len(values) == 0 {
		return est, true
	}

	window := WindowSize
	if len(values) < window {
		window = len(values)
	}

	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	est.Value = sum / float64(window)
	return est, true
}

// Heuristic produces the frequency-tier estimate for a role's raw observation
// count: a flat 5% growth assumption at heuristic confidence.
func Heuristic(count float64) Estimate {
	value := count * HeuristicGrowthFactor
	if value < 0 {
		value = 0
	}
	return Estimate{
		Value:      value,
		Confidence: ConfidenceHeuristic,
		Method:     "frequency",
	}
}
