// Package openai implements the paid-cloud provider adapter for the OpenAI
// chat completions API.
package openai

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

// Provider adapts the OpenAI API.
type Provider struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	probeTimeout time.Duration
}

// New creates the OpenAI adapter. A missing API key makes the provider
// report unavailable rather than failing startup.
func New(cfg config.HTTPProviderConfig, probeTimeout, genTimeout time.Duration) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
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
func (p *Provider) Type() model.ProviderType { return model.ProviderOpenAI }

// IsAvailable probes the models endpoint. Unauthenticated (no key) is
// reported as unavailable without a network call.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	return provider.Probe(probeCtx, &http.Client{Timeout: p.probeTimeout}, p.baseURL+"/models", p.headers())
}

// ListModels returns the supported OpenAI catalog.
func (p *Provider) ListModels(ctx context.Context) []model.ModelDescriptor {
	return []model.ModelDescriptor{
		{Name: "gpt-4o-mini", ContextWindow: 128000, CostPer1KTokens: 0.0005, Accuracy: 0.82, SpeedTokensSec: 90},
		{Name: "gpt-4o", ContextWindow: 128000, CostPer1KTokens: 0.0075, Accuracy: 0.92, SpeedTokensSec: 60},
	}
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate performs a chat completion.
func (p *Provider) Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error) {
	if p.apiKey == "" {
		return nil, provider.NewUnavailable(p.Type(), "api key not configured", nil)
	}

	desc, ok := provider.DefaultModel(p.ListModels(ctx), pickModel(req.Model, p.defaultModel))
	if !ok {
		return nil, provider.NewRejected(p.Type(), fmt.Sprintf("unknown model: %s", req.Model), nil)
	}

	start := time.Now()
	var resp chatCompletionResponse
	err := provider.PostJSON(ctx, p.client, p.Type(), p.baseURL+"/chat/completions", p.headers(), &chatCompletionRequest{
		Model:       desc.Name,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, provider.NewUnavailable(p.Type(), "empty completion response", nil)
	}

	tokens := resp.Usage.TotalTokens
	return &model.ModelResponse{
		Text:       resp.Choices[0].Message.Content,
		Provider:   p.Type(),
		ModelName:  desc.Name,
		TokensUsed: tokens,
		CostUSD:    provider.EstimateCost(desc, tokens),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func pickModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
