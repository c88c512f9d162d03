// Package freehosted implements the provider adapter for a free hosted
// OpenAI-compatible inference endpoint.
package freehosted

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"
)

// Provider adapts a free OpenAI-compatible hosted endpoint.
type Provider struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	probeTimeout time.Duration
}

// New creates the free hosted adapter. The API key, when required by the
// host, comes from the environment variable named in config.
func New(cfg config.HTTPProviderConfig, probeTimeout, genTimeout time.Duration) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "mistralai/mistral-7b-instruct:free"
	}
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &Provider{
		baseURL:      baseURL,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: genTimeout},
		probeTimeout: probeTimeout,
	}
}

// Type returns the provider identity.
func (p *Provider) Type() model.ProviderType { return model.ProviderFreeHosted }

// IsAvailable probes the hosted model catalog.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	return provider.Probe(probeCtx, &http.Client{Timeout: p.probeTimeout}, p.baseURL+"/models", p.headers())
}

// ListModels returns the free model catalog.
func (p *Provider) ListModels(ctx context.Context) []model.ModelDescriptor {
	return []model.ModelDescriptor{
		{Name: p.defaultModel, ContextWindow: 32768, CostPer1KTokens: 0, Accuracy: 0.70, SpeedTokensSec: 30},
	}
}

func (p *Provider) headers() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// Generate performs an OpenAI-compatible chat completion.
func (p *Provider) Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error) {
	desc, ok := provider.DefaultModel(p.ListModels(ctx), req.Model)
	if !ok {
		return nil, provider.NewRejected(p.Type(), fmt.Sprintf("unknown model: %s", req.Model), nil)
	}

	start := time.Now()
	var resp chatCompletionResponse
	err := provider.PostJSON(ctx, p.client, p.Type(), p.baseURL+"/chat/completions", p.headers(), newChatCompletionRequest(desc.Name, req), &resp)
	if err != nil {
		return nil, err
	}

	text, tokens, err := resp.extract(p.Type())
	if err != nil {
		return nil, err
	}

	return &model.ModelResponse{
		Text:       text,
		Provider:   p.Type(),
		ModelName:  desc.Name,
		TokensUsed: tokens,
		CostUSD:    0,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
