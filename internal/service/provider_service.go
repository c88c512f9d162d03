package service

import (
	"context"

	"contentforge/internal/model"
	"contentforge/pkg/fallback"
	"contentforge/pkg/scoring"
)

// ProviderStatusReport is the /v1/providers/status payload: availability for
// every configured provider plus the observed performance aggregates.
type ProviderStatusReport struct {
	Providers []model.ProviderStatus `json:"providers"`
	Metrics   []scoring.Record       `json:"metrics"`
}

// ProviderService exposes provider health and performance.
type ProviderService struct {
	orchestrator *fallback.Orchestrator
	tracker      *scoring.Tracker
}

// NewProviderService creates a new provider service
func NewProviderService(orchestrator *fallback.Orchestrator, tracker *scoring.Tracker) *ProviderService {
	return &ProviderService{
		orchestrator: orchestrator,
		tracker:      tracker,
	}
}

// Status reports availability and performance for all providers. Providers
// without a fresh cache entry are probed inline.
func (s *ProviderService) Status(ctx context.Context) *ProviderStatusReport {
	return &ProviderStatusReport{
		Providers: s.orchestrator.Status(ctx),
		Metrics:   s.tracker.All(),
	}
}
