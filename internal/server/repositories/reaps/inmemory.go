package reaps

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository keeps the queue in process memory. It is meant for
// tests and single-instance development runs.
type InMemoryRepository struct {
	mu    sync.Mutex
	queue map[string]time.Time
}

// NewInMemoryRepository returns an empty queue.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{queue: make(map[string]time.Time)}
}

func (r *InMemoryRepository) Schedule(ctx context.Context, storageKey string, dueAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue[storageKey] = dueAt
	return nil
}

func (r *InMemoryRepository) TakeDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []string
	for k, at := range r.queue {
		if !at.After(now) {
			due = append(due, k)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return r.queue[due[i]].Before(r.queue[due[j]])
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, k := range due {
		delete(r.queue, k)
	}
	return due, nil
}

// Pending returns a copy of the queue.
func (r *InMemoryRepository) Pending() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time, len(r.queue))
	for k, v := range r.queue {
		out[k] = v
	}
	return out
}
