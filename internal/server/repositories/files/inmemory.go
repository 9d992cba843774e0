package files

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/common"
	"github.com/dmitrijs2005/gophdrop/internal/server/models"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/reaps"
)

// InMemoryRepository is a mutex-guarded map. Reaps go to the paired
// in-memory queue under the same lock so consume and enqueue stay atomic.
type InMemoryRepository struct {
	mu    sync.Mutex
	items map[string]models.FileRecord
	reaps *reaps.InMemoryRepository
}

// NewInMemoryRepository returns an empty repository that queues reaps on q.
func NewInMemoryRepository(q *reaps.InMemoryRepository) *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]models.FileRecord), reaps: q}
}

func (r *InMemoryRepository) Create(ctx context.Context, rec *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[rec.FileID]; ok {
		return common.ErrAlreadyExists
	}
	r.items[rec.FileID] = *rec
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (r *InMemoryRepository) MarkAvailable(ctx context.Context, id string, size int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok || rec.Status != models.StatusPendingUpload {
		return false, nil
	}
	rec.Status = models.StatusAvailable
	rec.Size = size
	r.items[id] = rec
	return true, nil
}

func (r *InMemoryRepository) ReserveAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok || rec.Status != models.StatusAvailable || rec.Expired(now) || rec.Attempts >= maxAttempts {
		return 0, common.ErrorNotFound
	}
	rec.Attempts++
	r.items[id] = rec
	return rec.Attempts, nil
}

func (r *InMemoryRepository) Consume(ctx context.Context, id string, now, reapAt time.Time) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok || rec.Status != models.StatusAvailable || rec.Expired(now) {
		return nil, common.ErrorNotFound
	}
	delete(r.items, id)
	if err := r.reaps.Schedule(ctx, rec.StorageKey, reapAt); err != nil {
		return nil, err
	}
	rec.Status = models.StatusConsumed
	return &rec, nil
}

func (r *InMemoryRepository) Destroy(ctx context.Context, id string, reapAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return r.reaps.Schedule(ctx, rec.StorageKey, reapAt)
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *InMemoryRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []models.FileRecord
	for _, rec := range r.items {
		if rec.Expired(now) {
			expired = append(expired, rec)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	result := make([]*models.FileRecord, 0, len(expired))
	for i := range expired {
		delete(r.items, expired[i].FileID)
		expired[i].Status = models.StatusExpired
		result = append(result, &expired[i])
	}
	return result, nil
}
