package scoring

import (
	"testing"

	"contentforge/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReqs = Requirements{TaskType: "blog_post", MaxCostUSD: 0.50, MaxLatencyMs: 30000}

func testDescriptor() model.ModelDescriptor {
	return model.ModelDescriptor{
		Name:            "test-model",
		ContextWindow:   8192,
		CostPer1KTokens: 0.002,
		Accuracy:        0.85,
		SpeedTokensSec:  90,
	}
}

func TestScoreDeterministic(t *testing.T) {
	desc := testDescriptor()
	hist := History{TotalRequests: 10, SuccessfulRequests: 9, AvgLatencyMs: 1200, AvgCostUSD: 0.003}
	w := DefaultWeights()

	first := Score(desc, testReqs, hist, w)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Score(desc, testReqs, hist, w))
	}
}

func TestScoreRange(t *testing.T) {
	cases := []struct {
		name string
		desc model.ModelDescriptor
		hist History
	}{
		{"all zeros", model.ModelDescriptor{}, History{}},
		{"perfect", model.ModelDescriptor{Accuracy: 1, SpeedTokensSec: 1000, CostPer1KTokens: 0},
			History{TotalRequests: 100, SuccessfulRequests: 100, AvgLatencyMs: 1}},
		{"out of range accuracy", model.ModelDescriptor{Accuracy: 3.5, SpeedTokensSec: -5}, History{}},
		{"expensive and slow", model.ModelDescriptor{Accuracy: 0.1, CostPer1KTokens: 99},
			History{TotalRequests: 50, SuccessfulRequests: 0, AvgLatencyMs: 120000, AvgCostUSD: 12}},
	}
	for _, tc := range cases {
		score := Score(tc.desc, testReqs, tc.hist, DefaultWeights())
		assert.GreaterOrEqual(t, score, 0, tc.name)
		assert.LessOrEqual(t, score, 1000, tc.name)
	}
}

func TestScoreNeutralHistoryForUnprovenModel(t *testing.T) {
	desc := testDescriptor()
	// Only the history component differs between these two calls.
	w := Weights{History: 1, Accuracy: 0, Speed: 0, Cost: 0}

	unproven := Score(desc, testReqs, History{}, w)
	assert.Equal(t, 500, unproven, "zero observations must score a neutral 0.5 history")

	allFailing := Score(desc, testReqs, History{TotalRequests: 10, SuccessfulRequests: 0, AvgLatencyMs: 500}, w)
	allPassing := Score(desc, testReqs, History{TotalRequests: 10, SuccessfulRequests: 10, AvgLatencyMs: 500}, w)
	assert.Less(t, allFailing, unproven)
	assert.Greater(t, allPassing, unproven)
}

func TestScoreMinObservationsGatesHistory(t *testing.T) {
	desc := testDescriptor()
	w := Weights{History: 1, Accuracy: 0, Speed: 0, Cost: 0}

	gated := testReqs
	gated.MinObservations = 5

	// Two observations, all failing: below the threshold the history
	// component stays neutral.
	thin := History{TotalRequests: 2, SuccessfulRequests: 0, AvgLatencyMs: 500}
	assert.Equal(t, 500, Score(desc, gated, thin, w))

	// At the threshold the observed failure rate takes over.
	proven := History{TotalRequests: 5, SuccessfulRequests: 0, AvgLatencyMs: 500}
	assert.Equal(t, 0, Score(desc, gated, proven, w))

	// Unset threshold trusts any observation, preserving prior behavior.
	assert.Equal(t, 0, Score(desc, testReqs, thin, w))
}

func TestScoreHistoryLatencyOverridesClaimedSpeed(t *testing.T) {
	desc := testDescriptor()
	w := Weights{History: 0, Accuracy: 0, Speed: 1, Cost: 0}

	claimed := Score(desc, testReqs, History{}, w)

	slowObserved := History{TotalRequests: 5, SuccessfulRequests: 5, AvgLatencyMs: 29000}
	observed := Score(desc, testReqs, slowObserved, w)
	assert.Less(t, observed, claimed, "observed slowness must beat optimistic claims")
}

func TestScoreCheaperModelWinsOnCost(t *testing.T) {
	cheap := testDescriptor()
	cheap.CostPer1KTokens = 0.0001
	pricey := testDescriptor()
	pricey.CostPer1KTokens = 0.40

	w := Weights{History: 0, Accuracy: 0, Speed: 0, Cost: 1}
	assert.Greater(t, Score(cheap, testReqs, History{}, w), Score(pricey, testReqs, History{}, w))
}

func TestWeightsFor(t *testing.T) {
	presets := []Strategy{StrategyDefault, StrategySpeedFirst, StrategyCostFirst, StrategyQualityFirst, Strategy("bogus")}
	for _, s := range presets {
		w := WeightsFor(s)
		sum := w.History + w.Accuracy + w.Speed + w.Cost
		assert.InDelta(t, 1.0, sum, 1e-9, "weights for %s must sum to 1", s)
	}

	assert.Equal(t, DefaultWeights(), WeightsFor(Strategy("bogus")))
	assert.Equal(t, 0.60, WeightsFor(StrategySpeedFirst).Speed)
	assert.Equal(t, 0.60, WeightsFor(StrategyCostFirst).Cost)
}

func TestCostComponent(t *testing.T) {
	desc := testDescriptor()

	// No ceiling means cost never penalizes.
	assert.Equal(t, 1.0, CostComponent(desc, Requirements{}, History{}))

	// Observed average cost replaces the static estimate.
	static := CostComponent(desc, testReqs, History{})
	observed := CostComponent(desc, testReqs, History{TotalRequests: 3, AvgCostUSD: 0.45})
	assert.Less(t, observed, static)
}

func TestTrackerObserveAndSnapshot(t *testing.T) {
	tracker := NewTracker()
	key := Key{Provider: model.ProviderLocal, Model: "llama3.1:8b", TaskType: "blog_post"}

	assert.Equal(t, History{}, tracker.Snapshot(key))

	tracker.Observe(key, true, 1000, 0.01)
	tracker.Observe(key, false, 3000, 0)
	tracker.Observe(key, true, 2000, 0.02)

	hist := tracker.Snapshot(key)
	assert.Equal(t, int64(3), hist.TotalRequests)
	assert.Equal(t, int64(2), hist.SuccessfulRequests)
	assert.InDelta(t, 2000, hist.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.01, hist.AvgCostUSD, 1e-9)
}

func TestTrackerKeysAreIndependent(t *testing.T) {
	tracker := NewTracker()
	a := Key{Provider: model.ProviderLocal, Model: "m", TaskType: "blog_post"}
	b := Key{Provider: model.ProviderLocal, Model: "m", TaskType: "product_desc"}

	tracker.Observe(a, true, 100, 0)
	assert.Equal(t, int64(1), tracker.Snapshot(a).TotalRequests)
	assert.Equal(t, int64(0), tracker.Snapshot(b).TotalRequests)
}

func TestTrackerLoadAndAll(t *testing.T) {
	tracker := NewTracker()
	tracker.Load([]Record{
		{Provider: model.ProviderGemini, Model: "gemini-1.5-flash", TaskType: "blog_post",
			TotalRequests: 40, SuccessfulRequests: 38, AvgLatencyMs: 900, AvgCostUSD: 0.004},
	})

	hist := tracker.Snapshot(Key{Provider: model.ProviderGemini, Model: "gemini-1.5-flash", TaskType: "blog_post"})
	assert.Equal(t, int64(40), hist.TotalRequests)

	// Observations continue from the loaded aggregate.
	tracker.Observe(Key{Provider: model.ProviderGemini, Model: "gemini-1.5-flash", TaskType: "blog_post"}, true, 900, 0.004)
	all := tracker.All()
	require.Len(t, all, 1)
	assert.Equal(t, int64(41), all[0].TotalRequests)
}

func TestTrackerConcurrentObserve(t *testing.T) {
	tracker := NewTracker()
	key := Key{Provider: model.ProviderOpenAI, Model: "gpt-4o-mini", TaskType: "blog_post"}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				tracker.Observe(key, true, 100, 0.001)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Equal(t, int64(800), tracker.Snapshot(key).TotalRequests)
}
