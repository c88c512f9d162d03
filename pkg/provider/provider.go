package provider

import (
	"context"

	"contentforge/internal/model"
)

// Adapter is the uniform interface over one external model provider.
// Implementations live in the per-provider subpackages; new providers are
// added by adding a new implementation, never by branching on type strings.
type Adapter interface {
	// Type returns the provider identity.
	Type() model.ProviderType

	// IsAvailable is a cheap liveness probe. It must return within the
	// configured probe timeout and never fail: network errors map to false.
	IsAvailable(ctx context.Context) bool

	// ListModels returns the static catalog of models this provider serves.
	ListModels(ctx context.Context) []model.ModelDescriptor

	// Generate performs a generation call. Failures are typed *provider.Error
	// values so the fallback chain can decide whether to move on or abort.
	Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error)
}

// DefaultModel returns the first catalog entry matching name, or the first
// entry when name is empty. ok is false when the catalog has no match.
func DefaultModel(catalog []model.ModelDescriptor, name string) (model.ModelDescriptor, bool) {
	if len(catalog) == 0 {
		return model.ModelDescriptor{}, false
	}
	if name == "" {
		return catalog[0], true
	}
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return model.ModelDescriptor{}, false
}

// EstimateCost computes the USD cost of a call from the model's blended
// per-1K-token rate.
func EstimateCost(d model.ModelDescriptor, tokens int) float64 {
	return float64(tokens) / 1000.0 * d.CostPer1KTokens
}
