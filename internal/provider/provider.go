// Package provider defines the adapter contract for third-party LLM
// providers and the registry the dispatcher selects them from. The
// registry is built once at process start and injected; nothing in the
// codebase looks providers up through ambient global state.
package provider

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single provider call. One slow provider must
// never hold up the rest of the batch.
const DefaultTimeout = 25 * time.Second

// Adapter knows one provider's endpoint, auth shape, request body shape,
// and response extraction path. Complete issues exactly one network call;
// retries are not this layer's job.
type Adapter interface {
	ID() string

	// Configured reports whether the adapter has a usable credential.
	// Unconfigured adapters are short-circuited by the dispatcher and
	// never reach the network.
	Configured() bool

	// Complete sends the prompt and returns the extracted response text.
	// A missing extraction path is a *domain.ShapeError, distinct from
	// transport failures.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Entry couples an adapter with its per-call timeout.
type Entry struct {
	Adapter Adapter
	Timeout time.Duration
}

// Registry holds the configured adapters keyed by provider ID, preserving
// registration order for stable iteration.
type Registry struct {
	order   []string
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register adds an adapter. A zero timeout falls back to DefaultTimeout.
// Re-registering an ID replaces the previous entry.
func (r *Registry) Register(a Adapter, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if _, ok := r.entries[a.ID()]; !ok {
		r.order = append(r.order, a.ID())
	}
	r.entries[a.ID()] = Entry{Adapter: a, Timeout: timeout}
}

func (r *Registry) Get(id string) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Registry) Len() int {
	return len(r.entries)
}
