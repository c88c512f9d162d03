// Package gemini implements the paid-cloud provider adapter for Google
// Gemini via the official generative-ai-go SDK.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Provider adapts Google Gemini. The SDK client is created lazily on first
// use so a missing key only makes the provider unavailable.
type Provider struct {
	apiKey       string
	defaultModel string
	probeTimeout time.Duration
	genTimeout   time.Duration

	mu     sync.Mutex // guards client; Generate runs from many workers
	client *genai.Client
}

// New creates the Gemini adapter.
func New(cfg config.HTTPProviderConfig, probeTimeout, genTimeout time.Duration) *Provider {
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "gemini-1.5-flash"
	}
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &Provider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		probeTimeout: probeTimeout,
		genTimeout:   genTimeout,
	}
}

// Type returns the provider identity.
func (p *Provider) Type() model.ProviderType { return model.ProviderGemini }

// IsAvailable probes the REST model catalog; the SDK has no lightweight ping.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	url := "https://generativelanguage.googleapis.com/v1beta/models?pageSize=1&key=" + p.apiKey
	return provider.Probe(probeCtx, &http.Client{Timeout: p.probeTimeout}, url, nil)
}

// ListModels returns the supported Gemini catalog.
func (p *Provider) ListModels(ctx context.Context) []model.ModelDescriptor {
	return []model.ModelDescriptor{
		{Name: "gemini-1.5-flash", ContextWindow: 1000000, CostPer1KTokens: 0.0003, Accuracy: 0.80, SpeedTokensSec: 120},
		{Name: "gemini-1.5-pro", ContextWindow: 2000000, CostPer1KTokens: 0.0035, Accuracy: 0.90, SpeedTokensSec: 65},
	}
}

// ensureClient returns the shared SDK client, creating it on first use. A
// creation failure is not sticky; the next call retries.
func (p *Provider) ensureClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, provider.NewUnavailable(p.Type(), "failed to create client", err)
	}
	p.client = client
	return client, nil
}

// Generate performs a generation call through the SDK.
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

	client, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, p.genTimeout)
	defer cancel()

	gm := client.GenerativeModel(desc.Name)
	if req.Temperature > 0 {
		gm.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	start := time.Now()
	resp, err := gm.GenerateContent(genCtx, genai.Text(req.Prompt))
	if err != nil {
		return nil, provider.Classify(p.Type(), "generate content failed", err)
	}

	text, err := extractText(p.Type(), resp)
	if err != nil {
		return nil, err
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &model.ModelResponse{
		Text:       text,
		Provider:   p.Type(),
		ModelName:  desc.Name,
		TokensUsed: tokens,
		CostUSD:    provider.EstimateCost(desc, tokens),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Close releases the SDK client.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func extractText(pt model.ProviderType, resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", provider.NewUnavailable(pt, "no candidates in response", nil)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", provider.NewUnavailable(pt, "no content in response", nil)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", provider.NewUnavailable(pt, "no text parts in response", nil)
	}
	return strings.Join(parts, ""), nil
}
