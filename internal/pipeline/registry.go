package pipeline

import (
	"context"
	"sync"
)

// Registry tracks the cancel function of every pipeline run currently
// executing, so an operator cancel can interrupt the worker mid-flight.
type Registry struct {
	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]context.CancelFunc)}
}

// Register binds a cancel function to a task ID for the duration of its run.
func (r *Registry) Register(taskID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[taskID] = cancel
}

// Unregister removes the binding when the run finishes.
func (r *Registry) Unregister(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, taskID)
}

// Cancel interrupts a running pipeline. Returns false when the task is not
// currently executing on this instance.
func (r *Registry) Cancel(taskID string) bool {
	r.mu.Lock()
	cancel, ok := r.runs[taskID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
