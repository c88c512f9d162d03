// Package anthropic implements the paid-cloud provider adapter for the
// Anthropic messages API.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"
)

const apiVersion = "2023-06-01"

// Provider adapts the Anthropic API.
type Provider struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	probeTimeout time.Duration
}

// New creates the Anthropic adapter. A missing API key makes the provider
// report unavailable rather than failing startup.
func New(cfg config.HTTPProviderConfig, probeTimeout, genTimeout time.Duration) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-3-5-haiku-latest"
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
func (p *Provider) Type() model.ProviderType { return model.ProviderAnthropic }

// IsAvailable probes the models endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	return provider.Probe(probeCtx, &http.Client{Timeout: p.probeTimeout}, p.baseURL+"/models", p.headers())
}

// ListModels returns the supported Anthropic catalog.
func (p *Provider) ListModels(ctx context.Context) []model.ModelDescriptor {
	return []model.ModelDescriptor{
		{Name: "claude-3-5-haiku-latest", ContextWindow: 200000, CostPer1KTokens: 0.0024, Accuracy: 0.85, SpeedTokensSec: 80},
		{Name: "claude-3-5-sonnet-latest", ContextWindow: 200000, CostPer1KTokens: 0.009, Accuracy: 0.94, SpeedTokensSec: 55},
	}
}

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": apiVersion,
	}
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	Messages    []wireMessage `json:"messages"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate performs a messages API call.
func (p *Provider) Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error) {
	if p.apiKey == "" {
		return nil, provider.NewUnavailable(p.Type(), "api key not configured", nil)
	}

	name := req.Model
	if name == "" {
		name = p.defaultModel
	}
	desc, ok := provider.DefaultModel(p.ListModels(ctx), name)
	if !ok {
		return nil, provider.NewRejected(p.Type(), fmt.Sprintf("unknown model: %s", req.Model), nil)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096 // messages API requires max_tokens
	}

	start := time.Now()
	var resp messagesResponse
	err := provider.PostJSON(ctx, p.client, p.Type(), p.baseURL+"/messages", p.headers(), &messagesRequest{
		Model:       desc.Name,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    []wireMessage{{Role: "user", Content: req.Prompt}},
	}, &resp)
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, provider.NewUnavailable(p.Type(), "no text blocks in response", nil)
	}

	tokens := resp.Usage.InputTokens + resp.Usage.OutputTokens
	return &model.ModelResponse{
		Text:       strings.Join(parts, ""),
		Provider:   p.Type(),
		ModelName:  desc.Name,
		TokensUsed: tokens,
		CostUSD:    provider.EstimateCost(desc, tokens),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
