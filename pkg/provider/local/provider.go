// Package local implements the provider adapter for an Ollama-compatible
// local inference engine. Local generation is free, so it sits first in the
// default fallback order.
package local

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"
)

// Provider adapts a local Ollama-compatible server.
type Provider struct {
	baseURL      string
	defaultModel string
	client       *http.Client
	probeTimeout time.Duration
}

// New creates the local inference adapter.
func New(cfg config.LocalProviderConfig, probeTimeout, genTimeout time.Duration) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "llama3.1:8b"
	}
	return &Provider{
		baseURL:      baseURL,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: genTimeout},
		probeTimeout: probeTimeout,
	}
}

// Type returns the provider identity.
func (p *Provider) Type() model.ProviderType { return model.ProviderLocal }

// IsAvailable probes the local engine's model catalog endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	return provider.Probe(probeCtx, &http.Client{Timeout: p.probeTimeout}, p.baseURL+"/api/tags", nil)
}

// ListModels returns the catalog served by the local engine.
func (p *Provider) ListModels(ctx context.Context) []model.ModelDescriptor {
	return []model.ModelDescriptor{
		{Name: p.defaultModel, ContextWindow: 8192, CostPer1KTokens: 0, Accuracy: 0.65, SpeedTokensSec: 45},
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	EvalCount       int    `json:"eval_count"`
	PromptEvalCount int    `json:"prompt_eval_count"`
}

// Generate performs a non-streaming completion against the local engine.
func (p *Provider) Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error) {
	desc, ok := provider.DefaultModel(p.ListModels(ctx), req.Model)
	if !ok {
		return nil, provider.NewRejected(p.Type(), fmt.Sprintf("unknown model: %s", req.Model), nil)
	}

	options := map[string]interface{}{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	start := time.Now()
	var resp generateResponse
	err := provider.PostJSON(ctx, p.client, p.Type(), p.baseURL+"/api/generate", nil, &generateRequest{
		Model:   desc.Name,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: options,
	}, &resp)
	if err != nil {
		return nil, err
	}

	tokens := resp.EvalCount + resp.PromptEvalCount
	return &model.ModelResponse{
		Text:       resp.Response,
		Provider:   p.Type(),
		ModelName:  desc.Name,
		TokensUsed: tokens,
		CostUSD:    0,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
