// Package factory builds the configured provider adapter set.
package factory

import (
	"fmt"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"
	"contentforge/pkg/provider/anthropic"
	"contentforge/pkg/provider/freehosted"
	"contentforge/pkg/provider/gemini"
	"contentforge/pkg/provider/local"
	"contentforge/pkg/provider/openai"
)

// Build constructs adapters in the configured attempt order (cheapest first
// by default). Unknown names in the order list are an error. A paid provider
// without credentials is still built; it reports unavailable at probe time.
func Build(cfg *config.ProvidersConfig) ([]provider.Adapter, error) {
	probeTimeout := time.Duration(cfg.AvailabilityTimeout) * time.Second
	genTimeout := time.Duration(cfg.GenerationTimeout) * time.Second

	adapters := make([]provider.Adapter, 0, len(cfg.Order))
	for _, name := range cfg.Order {
		switch model.ProviderType(name) {
		case model.ProviderLocal:
			adapters = append(adapters, local.New(cfg.Local, probeTimeout, genTimeout))
		case model.ProviderFreeHosted:
			adapters = append(adapters, freehosted.New(cfg.FreeHosted, probeTimeout, genTimeout))
		case model.ProviderGemini:
			adapters = append(adapters, gemini.New(cfg.Gemini, probeTimeout, genTimeout))
		case model.ProviderOpenAI:
			adapters = append(adapters, openai.New(cfg.OpenAI, probeTimeout, genTimeout))
		case model.ProviderAnthropic:
			adapters = append(adapters, anthropic.New(cfg.Anthropic, probeTimeout, genTimeout))
		default:
			return nil, fmt.Errorf("unsupported provider type: %s", name)
		}
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return adapters, nil
}
