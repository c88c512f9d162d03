package fallback

import (
	"context"
	"errors"
	"sort"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/logger"
	"contentforge/pkg/metrics"
	"contentforge/pkg/provider"
	"contentforge/pkg/scoring"
)

// Orchestrator tries providers in score order until one succeeds. Providers
// cached as unavailable are skipped without a network call; a rejection
// aborts the chain because retrying a rejected request elsewhere would
// produce the same outcome.
type Orchestrator struct {
	adapters []provider.Adapter
	order    map[model.ProviderType]int
	cache    *AvailabilityCache
	tracker  *scoring.Tracker
	weights  scoring.Weights
	maxCost  float64
	maxLatMs int64
	minObs   int
}

// NewOrchestrator wires the adapter chain. Adapter slice order is the
// configured attempt order and breaks score ties.
func NewOrchestrator(adapters []provider.Adapter, cache *AvailabilityCache, tracker *scoring.Tracker, cfg config.ScoringConfig) *Orchestrator {
	order := make(map[model.ProviderType]int, len(adapters))
	for i, a := range adapters {
		order[a.Type()] = i
	}
	return &Orchestrator{
		adapters: adapters,
		order:    order,
		cache:    cache,
		tracker:  tracker,
		weights:  scoring.WeightsFor(scoring.Strategy(cfg.Strategy)),
		maxCost:  cfg.MaxCostUSD,
		maxLatMs: cfg.MaxLatencyMs,
		minObs:   cfg.MinObservations,
	}
}

type candidate struct {
	adapter  provider.Adapter
	desc     model.ModelDescriptor
	score    int
	costComp float64
	orderIdx int
}

// Generate routes one request through the fallback chain. On success the
// winning provider's metrics and availability are updated; on total failure
// an ExhaustedError carries the attempt trail.
func (o *Orchestrator) Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error) {
	candidates := o.rank(ctx, req)
	if len(candidates) == 0 {
		return nil, &ExhaustedError{}
	}
	if req.PreferredProvider != "" {
		candidates = o.promotePreferred(candidates, model.ProviderType(req.PreferredProvider))
	}

	var attempts []AttemptFailure
	for _, cand := range candidates {
		ptype := cand.adapter.Type()

		if status, ok := o.cache.Get(ptype); ok && !status.Available {
			attempts = append(attempts, AttemptFailure{
				Provider: ptype,
				Kind:     provider.KindUnavailable,
				Message:  "cached as unavailable",
			})
			continue
		} else if !ok {
			available := cand.adapter.IsAvailable(ctx)
			o.cache.Set(ptype, available)
			metrics.ProviderProbeTotal.WithLabelValues(string(ptype), probeResult(available)).Inc()
			if !available {
				attempts = append(attempts, AttemptFailure{
					Provider: ptype,
					Kind:     provider.KindUnavailable,
					Message:  "availability probe failed",
				})
				continue
			}
		}

		resp, err := cand.adapter.Generate(ctx, req)
		key := scoring.Key{Provider: ptype, Model: cand.desc.Name, TaskType: req.TaskType}
		if err != nil {
			attempts = append(attempts, o.recordFailure(ctx, key, cand, err))
			var perr *provider.Error
			if errors.As(err, &perr) && perr.Kind == provider.KindRejected {
				// A rejection is about the request, not the provider.
				return nil, err
			}
			continue
		}

		o.tracker.Observe(key, true, resp.LatencyMs, resp.CostUSD)
		o.cache.Set(ptype, true)
		metrics.GenerationAttemptsTotal.WithLabelValues(string(ptype), resp.ModelName, "success").Inc()
		metrics.GenerationLatencySeconds.WithLabelValues(string(ptype), resp.ModelName).
			Observe(float64(resp.LatencyMs) / 1000)
		logger.InfoCtx(ctx, "generation succeeded, provider: %s, model: %s, tokens: %d, latency_ms: %d",
			ptype, resp.ModelName, resp.TokensUsed, resp.LatencyMs)
		return resp, nil
	}

	metrics.FallbackExhaustedTotal.WithLabelValues(req.TaskType).Inc()
	logger.WarnCtx(ctx, "all providers exhausted, task_type: %s, attempts: %d", req.TaskType, len(attempts))
	return nil, &ExhaustedError{Attempts: attempts}
}

func (o *Orchestrator) recordFailure(ctx context.Context, key scoring.Key, cand candidate, err error) AttemptFailure {
	ptype := cand.adapter.Type()
	kind := provider.KindUnavailable
	msg := err.Error()

	var perr *provider.Error
	if errors.As(err, &perr) {
		kind = perr.Kind
		msg = perr.Message
	}

	// Latency of the failed call is unknown here; adapters report it only on
	// success. Record the configured ceiling so failures drag the average.
	o.tracker.Observe(key, false, o.maxLatMs, 0)
	metrics.GenerationAttemptsTotal.WithLabelValues(string(ptype), cand.desc.Name, string(kind)).Inc()
	if kind == provider.KindUnavailable || kind == provider.KindTimeout {
		o.cache.Set(ptype, false)
	}
	logger.WarnCtx(ctx, "generation attempt failed, provider: %s, model: %s, kind: %s, error: %s",
		ptype, cand.desc.Name, kind, msg)
	return AttemptFailure{Provider: ptype, Model: cand.desc.Name, Kind: kind, Message: msg}
}

// rank picks each adapter's best model for the request and sorts candidates
// by score. Ties go to the cheaper candidate, then to configured order.
func (o *Orchestrator) rank(ctx context.Context, req *model.GenerationRequest) []candidate {
	reqs := scoring.Requirements{
		TaskType:        req.TaskType,
		MaxCostUSD:      o.maxCost,
		MaxLatencyMs:    o.maxLatMs,
		MinObservations: o.minObs,
	}

	candidates := make([]candidate, 0, len(o.adapters))
	for i, adapter := range o.adapters {
		best, ok := o.bestModel(ctx, adapter, req, reqs)
		if !ok {
			continue
		}
		best.orderIdx = i
		candidates = append(candidates, best)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].costComp != candidates[j].costComp {
			return candidates[i].costComp > candidates[j].costComp
		}
		return candidates[i].orderIdx < candidates[j].orderIdx
	})
	return candidates
}

func (o *Orchestrator) bestModel(ctx context.Context, adapter provider.Adapter, req *model.GenerationRequest, reqs scoring.Requirements) (candidate, bool) {
	var best candidate
	found := false
	for _, desc := range adapter.ListModels(ctx) {
		if req.Model != "" && desc.Name != req.Model {
			continue
		}
		hist := o.tracker.Snapshot(scoring.Key{Provider: adapter.Type(), Model: desc.Name, TaskType: req.TaskType})
		cand := candidate{
			adapter:  adapter,
			desc:     desc,
			score:    scoring.Score(desc, reqs, hist, o.weights),
			costComp: scoring.CostComponent(desc, reqs, hist),
		}
		if !found || cand.score > best.score {
			best = cand
			found = true
		}
	}
	return best, found
}

// promotePreferred moves the preferred provider's candidate to the front.
// A provider cached as down keeps its normal position so the chain does not
// start with a known failure.
func (o *Orchestrator) promotePreferred(candidates []candidate, preferred model.ProviderType) []candidate {
	if status, ok := o.cache.Get(preferred); ok && !status.Available {
		return candidates
	}
	for i, cand := range candidates {
		if cand.adapter.Type() == preferred {
			promoted := append([]candidate{cand}, candidates[:i]...)
			return append(promoted, candidates[i+1:]...)
		}
	}
	return candidates
}

// Status reports availability for every configured provider, probing those
// with no fresh cache entry.
func (o *Orchestrator) Status(ctx context.Context) []model.ProviderStatus {
	statuses := make([]model.ProviderStatus, 0, len(o.adapters))
	for _, adapter := range o.adapters {
		ptype := adapter.Type()
		status, ok := o.cache.Get(ptype)
		if !ok {
			available := adapter.IsAvailable(ctx)
			o.cache.Set(ptype, available)
			metrics.ProviderProbeTotal.WithLabelValues(string(ptype), probeResult(available)).Inc()
			status = model.ProviderStatus{Provider: ptype, Available: available, LastChecked: time.Now()}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func probeResult(available bool) string {
	if available {
		return "up"
	}
	return "down"
}
