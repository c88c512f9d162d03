package fallback

import (
	"context"
	"testing"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"
	"contentforge/pkg/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	ptype     model.ProviderType
	models    []model.ModelDescriptor
	available bool

	generateErr   error
	generateCalls int
	probeCalls    int
}

func (f *fakeAdapter) Type() model.ProviderType { return f.ptype }

func (f *fakeAdapter) IsAvailable(ctx context.Context) bool {
	f.probeCalls++
	return f.available
}

func (f *fakeAdapter) ListModels(ctx context.Context) []model.ModelDescriptor {
	return f.models
}

func (f *fakeAdapter) Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error) {
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &model.ModelResponse{
		Text:       "generated content",
		Provider:   f.ptype,
		ModelName:  f.models[0].Name,
		TokensUsed: 100,
		CostUSD:    f.models[0].CostPer1KTokens / 10,
		LatencyMs:  50,
	}, nil
}

func cheapAdapter() *fakeAdapter {
	return &fakeAdapter{
		ptype:     model.ProviderLocal,
		available: true,
		models: []model.ModelDescriptor{
			{Name: "llama3.1:8b", CostPer1KTokens: 0, Accuracy: 0.70, SpeedTokensSec: 40},
		},
	}
}

func paidAdapter() *fakeAdapter {
	return &fakeAdapter{
		ptype:     model.ProviderOpenAI,
		available: true,
		models: []model.ModelDescriptor{
			{Name: "gpt-4o-mini", CostPer1KTokens: 0.45, Accuracy: 0.82, SpeedTokensSec: 100},
		},
	}
}

func newTestOrchestrator(adapters ...provider.Adapter) (*Orchestrator, *AvailabilityCache, *scoring.Tracker) {
	cache := NewAvailabilityCache(time.Minute)
	tracker := scoring.NewTracker()
	orch := NewOrchestrator(adapters, cache, tracker, config.ScoringConfig{
		Strategy:     "default",
		MaxCostUSD:   0.50,
		MaxLatencyMs: 30000,
	})
	return orch, cache, tracker
}

func blogRequest() *model.GenerationRequest {
	return &model.GenerationRequest{Prompt: "write something", TaskType: "blog_post"}
}

func TestGenerateCheapestCandidateWins(t *testing.T) {
	cheap := cheapAdapter()
	paid := paidAdapter()
	orch, _, tracker := newTestOrchestrator(cheap, paid)

	resp, err := orch.Generate(context.Background(), blogRequest())
	require.NoError(t, err)
	assert.Equal(t, model.ProviderLocal, resp.Provider)

	// First success wins: the paid provider is never touched.
	assert.Equal(t, 0, paid.generateCalls)
	assert.Equal(t, 0, paid.probeCalls)

	hist := tracker.Snapshot(scoring.Key{Provider: model.ProviderLocal, Model: "llama3.1:8b", TaskType: "blog_post"})
	assert.Equal(t, int64(1), hist.TotalRequests)
	assert.Equal(t, int64(1), hist.SuccessfulRequests)
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	cheap := cheapAdapter()
	cheap.generateErr = provider.NewUnavailable(model.ProviderLocal, "connection refused", nil)
	paid := paidAdapter()
	orch, cache, _ := newTestOrchestrator(cheap, paid)

	resp, err := orch.Generate(context.Background(), blogRequest())
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, resp.Provider)
	assert.Equal(t, 1, cheap.generateCalls)

	// The failing provider is now cached as down.
	status, ok := cache.Get(model.ProviderLocal)
	require.True(t, ok)
	assert.False(t, status.Available)
}

func TestGenerateExhaustedCollectsAttempts(t *testing.T) {
	cheap := cheapAdapter()
	cheap.generateErr = provider.NewTimeout(model.ProviderLocal, "deadline exceeded", nil)
	paid := paidAdapter()
	paid.generateErr = provider.NewUnavailable(model.ProviderOpenAI, "http 503", nil)
	orch, _, tracker := newTestOrchestrator(cheap, paid)

	_, err := orch.Generate(context.Background(), blogRequest())
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, model.ProviderLocal, exhausted.Attempts[0].Provider)
	assert.Equal(t, provider.KindTimeout, exhausted.Attempts[0].Kind)
	assert.Equal(t, model.ProviderOpenAI, exhausted.Attempts[1].Provider)
	assert.Equal(t, provider.KindUnavailable, exhausted.Attempts[1].Kind)

	// Failed attempts still feed the history.
	hist := tracker.Snapshot(scoring.Key{Provider: model.ProviderLocal, Model: "llama3.1:8b", TaskType: "blog_post"})
	assert.Equal(t, int64(1), hist.TotalRequests)
	assert.Equal(t, int64(0), hist.SuccessfulRequests)
}

func TestGenerateRejectionAbortsChain(t *testing.T) {
	cheap := cheapAdapter()
	cheap.generateErr = provider.NewRejected(model.ProviderLocal, "prompt blocked", nil)
	paid := paidAdapter()
	orch, _, _ := newTestOrchestrator(cheap, paid)

	_, err := orch.Generate(context.Background(), blogRequest())
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.KindRejected, perr.Kind)

	// Retrying a rejected request elsewhere would fail identically.
	assert.Equal(t, 0, paid.generateCalls)
}

func TestGenerateSkipsCachedDownProvider(t *testing.T) {
	cheap := cheapAdapter()
	paid := paidAdapter()
	orch, cache, _ := newTestOrchestrator(cheap, paid)

	cache.Set(model.ProviderLocal, false)

	resp, err := orch.Generate(context.Background(), blogRequest())
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, resp.Provider)

	// Known-down providers get no network traffic at all.
	assert.Equal(t, 0, cheap.probeCalls)
	assert.Equal(t, 0, cheap.generateCalls)
}

func TestGenerateProbesOnCacheMiss(t *testing.T) {
	cheap := cheapAdapter()
	cheap.available = false
	paid := paidAdapter()
	orch, cache, _ := newTestOrchestrator(cheap, paid)

	resp, err := orch.Generate(context.Background(), blogRequest())
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, resp.Provider)

	assert.Equal(t, 1, cheap.probeCalls)
	assert.Equal(t, 0, cheap.generateCalls)

	status, ok := cache.Get(model.ProviderLocal)
	require.True(t, ok)
	assert.False(t, status.Available)
}

func TestGeneratePreferredProviderTriedFirst(t *testing.T) {
	cheap := cheapAdapter()
	paid := paidAdapter()
	orch, _, _ := newTestOrchestrator(cheap, paid)

	req := blogRequest()
	req.PreferredProvider = model.ProviderOpenAI

	resp, err := orch.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, resp.Provider)
	assert.Equal(t, 0, cheap.generateCalls)
}

func TestGeneratePreferredProviderCachedDownKeepsNormalOrder(t *testing.T) {
	cheap := cheapAdapter()
	paid := paidAdapter()
	orch, cache, _ := newTestOrchestrator(cheap, paid)

	cache.Set(model.ProviderOpenAI, false)

	req := blogRequest()
	req.PreferredProvider = model.ProviderOpenAI

	resp, err := orch.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderLocal, resp.Provider)
	assert.Equal(t, 0, paid.generateCalls)
}

func TestGenerateRequestedModelFiltersCandidates(t *testing.T) {
	cheap := cheapAdapter()
	paid := paidAdapter()
	orch, _, _ := newTestOrchestrator(cheap, paid)

	req := blogRequest()
	req.Model = "gpt-4o-mini"

	resp, err := orch.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, resp.Provider)
	assert.Equal(t, "gpt-4o-mini", resp.ModelName)
	assert.Equal(t, 0, cheap.generateCalls)
}

func TestGenerateUnknownModelExhaustsImmediately(t *testing.T) {
	orch, _, _ := newTestOrchestrator(cheapAdapter(), paidAdapter())

	req := blogRequest()
	req.Model = "no-such-model"

	_, err := orch.Generate(context.Background(), req)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Empty(t, exhausted.Attempts)
}

func TestStatusProbesAndCaches(t *testing.T) {
	cheap := cheapAdapter()
	paid := paidAdapter()
	paid.available = false
	orch, _, _ := newTestOrchestrator(cheap, paid)

	statuses := orch.Status(context.Background())
	require.Len(t, statuses, 2)

	byProvider := map[model.ProviderType]bool{}
	for _, s := range statuses {
		byProvider[s.Provider] = s.Available
	}
	assert.True(t, byProvider[model.ProviderLocal])
	assert.False(t, byProvider[model.ProviderOpenAI])

	// Second call is served from cache.
	orch.Status(context.Background())
	assert.Equal(t, 1, cheap.probeCalls)
	assert.Equal(t, 1, paid.probeCalls)
}
