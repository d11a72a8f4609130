// Package usage records per-provider run outcomes for operational audit.
// Records are about what happened to a request, not a store of the
// comparison results themselves.
package usage

import (
	"context"
	"sync"
	"time"
)

type Record struct {
	RunID     string
	OrderID   string
	Provider  string
	Success   bool
	ErrorKind string
	Score     float64
	LatencyMs int64
	Timestamp time.Time
}

type Tracker interface {
	Record(ctx context.Context, record Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	FailureCount(ctx context.Context, provider string, since time.Time) (int, error)
}

type InMemoryTracker struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{
		records: make([]Record, 0),
	}
}

func (t *InMemoryTracker) Record(ctx context.Context, record Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, record)
	return nil
}

func (t *InMemoryTracker) Recent(ctx context.Context, limit int) ([]Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.records) {
		limit = len(t.records)
	}

	result := make([]Record, limit)
	copy(result, t.records[len(t.records)-limit:])
	return result, nil
}

func (t *InMemoryTracker) FailureCount(ctx context.Context, provider string, since time.Time) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, r := range t.records {
		if r.Provider == provider && !r.Success && r.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

func (t *InMemoryTracker) All() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Record, len(t.records))
	copy(result, t.records)
	return result
}
