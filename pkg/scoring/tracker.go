package scoring

import (
	"sync"
	"time"

	"contentforge/internal/model"
)

// Key identifies one performance-history tuple.
type Key struct {
	Provider model.ProviderType
	Model    string
	TaskType string
}

// Record is one tuple's aggregate, as exposed to the status endpoint and the
// persistence layer.
type Record struct {
	Provider           model.ProviderType `json:"provider"`
	Model              string             `json:"model"`
	TaskType           string             `json:"task_type"`
	TotalRequests      int64              `json:"total_requests"`
	SuccessfulRequests int64              `json:"successful_requests"`
	AvgLatencyMs       float64            `json:"avg_latency_ms"`
	AvgCostUSD         float64            `json:"avg_cost_usd"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type entry struct {
	mu  sync.Mutex
	rec Record
}

// Tracker owns all performance metrics. The outer lock only guards the map;
// per-entry locks keep updates for unrelated providers from contending.
type Tracker struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[Key]*entry)}
}

func (t *Tracker) entryFor(key Key) *entry {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[key]; ok {
		return e
	}
	e = &entry{rec: Record{Provider: key.Provider, Model: key.Model, TaskType: key.TaskType}}
	t.entries[key] = e
	return e
}

// Observe records the outcome of one generation attempt.
func (t *Tracker) Observe(key Key, success bool, latencyMs int64, costUSD float64) {
	e := t.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rec.TotalRequests++
	if success {
		e.rec.SuccessfulRequests++
	}
	n := float64(e.rec.TotalRequests)
	e.rec.AvgLatencyMs += (float64(latencyMs) - e.rec.AvgLatencyMs) / n
	e.rec.AvgCostUSD += (costUSD - e.rec.AvgCostUSD) / n
	e.rec.UpdatedAt = time.Now()
}

// Snapshot returns an immutable history view for scoring.
func (t *Tracker) Snapshot(key Key) History {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		return History{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return History{
		TotalRequests:      e.rec.TotalRequests,
		SuccessfulRequests: e.rec.SuccessfulRequests,
		AvgLatencyMs:       e.rec.AvgLatencyMs,
		AvgCostUSD:         e.rec.AvgCostUSD,
	}
}

// All returns a copy of every aggregate, for dashboards and persistence.
func (t *Tracker) All() []Record {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		records = append(records, e.rec)
		e.mu.Unlock()
	}
	return records
}

// Load seeds the tracker from persisted aggregates at startup. Existing
// in-memory entries for the same key are replaced.
func (t *Tracker) Load(records []Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range records {
		key := Key{Provider: rec.Provider, Model: rec.Model, TaskType: rec.TaskType}
		t.entries[key] = &entry{rec: rec}
	}
}
