package model

import "time"

// ProviderType identifies a configured model provider backend.
type ProviderType string

const (
	ProviderLocal      ProviderType = "local"       // Local inference engine (Ollama-compatible)
	ProviderFreeHosted ProviderType = "free_hosted" // Free hosted OpenAI-compatible endpoint
	ProviderGemini     ProviderType = "gemini"      // Google Gemini (paid cloud)
	ProviderOpenAI     ProviderType = "openai"      // OpenAI (paid cloud)
	ProviderAnthropic  ProviderType = "anthropic"   // Anthropic (paid cloud)
)

// AllProviderTypes in the default cheapest-first attempt order.
var AllProviderTypes = []ProviderType{
	ProviderLocal,
	ProviderFreeHosted,
	ProviderGemini,
	ProviderOpenAI,
	ProviderAnthropic,
}

// ModelDescriptor describes one model a provider can serve. The static
// accuracy/speed/cost figures feed the scorer when no history exists.
type ModelDescriptor struct {
	Name            string  `json:"name"`
	ContextWindow   int     `json:"context_window"`
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"` // USD, blended in/out
	Accuracy        float64 `json:"accuracy"`           // Provider-claimed quality, [0,1]
	SpeedTokensSec  float64 `json:"speed_tokens_sec"`   // Claimed throughput
}

// GenerationRequest is a single generation call routed through the fallback chain.
type GenerationRequest struct {
	Prompt            string       `json:"prompt"`
	TaskType          string       `json:"task_type"`
	Model             string       `json:"model,omitempty"` // Empty = provider picks its default
	MaxTokens         int          `json:"max_tokens,omitempty"`
	Temperature       float64      `json:"temperature,omitempty"`
	PreferredProvider ProviderType `json:"preferred_provider,omitempty"`
}

// ModelResponse is the normalized result of a successful generation call.
// Immutable once constructed.
type ModelResponse struct {
	Text       string       `json:"text"`
	Provider   ProviderType `json:"provider"`
	ModelName  string       `json:"model_name"`
	TokensUsed int          `json:"tokens_used"`
	CostUSD    float64      `json:"cost_usd"`
	LatencyMs  int64        `json:"latency_ms"`
}

// ProviderStatus is the cached health state of one provider.
// A status older than its TTL must be treated as unknown, not available.
type ProviderStatus struct {
	Provider    ProviderType `json:"provider"`
	Available   bool         `json:"available"`
	LastChecked time.Time    `json:"last_checked"`
}
