// Package scoring computes desirability scores for (provider, model) pairs
// and tracks observed performance history.
package scoring

import (
	"math"

	"contentforge/internal/model"
)

// Weights for the four scoring components. Must sum to 1.
type Weights struct {
	History  float64
	Accuracy float64
	Speed    float64
	Cost     float64
}

// DefaultWeights favors observed history over static provider claims.
func DefaultWeights() Weights {
	return Weights{History: 0.40, Accuracy: 0.30, Speed: 0.15, Cost: 0.15}
}

// Strategy selects a weight preset. Component calculations never change,
// only the weighting.
type Strategy string

const (
	StrategyDefault      Strategy = "default"
	StrategySpeedFirst   Strategy = "speed_first"
	StrategyCostFirst    Strategy = "cost_first"
	StrategyQualityFirst Strategy = "quality_first"
)

// WeightsFor returns the preset for a strategy. Unknown strategies get the
// default preset.
func WeightsFor(s Strategy) Weights {
	switch s {
	case StrategySpeedFirst:
		return Weights{History: 0.20, Accuracy: 0.15, Speed: 0.60, Cost: 0.05}
	case StrategyCostFirst:
		return Weights{History: 0.20, Accuracy: 0.15, Speed: 0.05, Cost: 0.60}
	case StrategyQualityFirst:
		return Weights{History: 0.30, Accuracy: 0.50, Speed: 0.10, Cost: 0.10}
	default:
		return DefaultWeights()
	}
}

// Requirements are the task-level normalization ceilings.
type Requirements struct {
	TaskType        string
	MaxCostUSD      float64 // acceptable cost per request
	MaxLatencyMs    int64   // acceptable latency per request
	MinObservations int     // observations required before history overrides claims
}

// minObservations returns the trust threshold, at least one.
func (r Requirements) minObservations() int64 {
	if r.MinObservations <= 0 {
		return 1
	}
	return int64(r.MinObservations)
}

// History is an immutable snapshot of observed performance for one
// (provider, model, task_type) tuple. A zero-observation snapshot yields a
// neutral history component.
type History struct {
	TotalRequests      int64
	SuccessfulRequests int64
	AvgLatencyMs       float64
	AvgCostUSD         float64
}

// referenceSpeed is the throughput treated as a perfect speed component when
// no latency history exists.
const referenceSpeed = 150.0

// Score computes the 0-1000 desirability of a model for a task. Pure: equal
// inputs always produce equal output.
func Score(desc model.ModelDescriptor, req Requirements, hist History, w Weights) int {
	score := 1000 * (w.History*historyComponent(req, hist) +
		w.Accuracy*accuracyComponent(desc) +
		w.Speed*speedComponent(desc, req, hist) +
		w.Cost*CostComponent(desc, req, hist))

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 1000 {
		return 1000
	}
	return rounded
}

func historyComponent(req Requirements, hist History) float64 {
	if hist.TotalRequests < req.minObservations() {
		// Unproven models are neither penalized nor favored.
		return 0.5
	}
	return clamp01(float64(hist.SuccessfulRequests) / float64(hist.TotalRequests))
}

func accuracyComponent(desc model.ModelDescriptor) float64 {
	return clamp01(desc.Accuracy)
}

func speedComponent(desc model.ModelDescriptor, req Requirements, hist History) float64 {
	if hist.TotalRequests >= req.minObservations() && hist.AvgLatencyMs > 0 && req.MaxLatencyMs > 0 {
		return 1 - math.Min(hist.AvgLatencyMs/float64(req.MaxLatencyMs), 1)
	}
	return clamp01(desc.SpeedTokensSec / referenceSpeed)
}

// CostComponent is exported for tie-breaking: among equally scored
// candidates the cheaper one wins.
func CostComponent(desc model.ModelDescriptor, req Requirements, hist History) float64 {
	if req.MaxCostUSD <= 0 {
		return 1
	}
	cost := desc.CostPer1KTokens // expected cost for a ~1K-token request
	if hist.TotalRequests >= req.minObservations() && hist.AvgCostUSD > 0 {
		cost = hist.AvgCostUSD
	}
	return 1 - math.Min(cost/req.MaxCostUSD, 1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
