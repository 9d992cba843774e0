package files

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/common"
	"github.com/dmitrijs2005/gophdrop/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingQueue reports the storage keys waiting for deletion, so the contract
// can check consume and destroy enqueue the blob.
type pendingQueue func(t *testing.T) map[string]time.Time

type repoFactory func(t *testing.T) (Repository, pendingQueue)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(id string, status models.Status) *models.FileRecord {
	return &models.FileRecord{
		FileID:     id,
		StorageKey: "uploads/2026/03/01/" + id,
		Filename:   "notes.txt",
		Status:     status,
		CreatedAt:  base,
		ExpiresAt:  base.Add(24 * time.Hour),
	}
}

func runRepositoryContract(t *testing.T, newRepo repoFactory) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		r, _ := newRepo(t)
		rec := sampleRecord("f1", models.StatusPendingUpload)
		rec.PasswordHash = "argon2id$x$y"
		require.NoError(t, r.Create(ctx, rec))

		got, err := r.GetByID(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, rec.StorageKey, got.StorageKey)
		assert.Equal(t, "notes.txt", got.Filename)
		assert.Equal(t, "argon2id$x$y", got.PasswordHash)
		assert.Equal(t, models.StatusPendingUpload, got.Status)
		assert.True(t, got.ExpiresAt.Equal(rec.ExpiresAt))
		assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	})

	t.Run("duplicate id", func(t *testing.T) {
		r, _ := newRepo(t)
		require.NoError(t, r.Create(ctx, sampleRecord("dup", models.StatusPendingUpload)))
		err := r.Create(ctx, sampleRecord("dup", models.StatusPendingUpload))
		assert.ErrorIs(t, err, common.ErrAlreadyExists)
	})

	t.Run("get missing", func(t *testing.T) {
		r, _ := newRepo(t)
		_, err := r.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("mark available only from pending", func(t *testing.T) {
		r, _ := newRepo(t)
		require.NoError(t, r.Create(ctx, sampleRecord("m1", models.StatusPendingUpload)))

		ok, err := r.MarkAvailable(ctx, "m1", 42)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.MarkAvailable(ctx, "m1", 43)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := r.GetByID(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusAvailable, got.Status)
		assert.Equal(t, int64(42), got.Size)

		ok, err = r.MarkAvailable(ctx, "missing", 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("reserve attempt is bounded", func(t *testing.T) {
		r, _ := newRepo(t)
		require.NoError(t, r.Create(ctx, sampleRecord("a1", models.StatusAvailable)))

		for want := 1; want <= 3; want++ {
			n, err := r.ReserveAttempt(ctx, "a1", 3, base)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		_, err := r.ReserveAttempt(ctx, "a1", 3, base)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		got, err := r.GetByID(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Attempts)
	})

	t.Run("reserve attempt rejects pending and expired", func(t *testing.T) {
		r, _ := newRepo(t)
		require.NoError(t, r.Create(ctx, sampleRecord("p1", models.StatusPendingUpload)))
		require.NoError(t, r.Create(ctx, sampleRecord("e1", models.StatusAvailable)))

		_, err := r.ReserveAttempt(ctx, "p1", 5, base)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		_, err = r.ReserveAttempt(ctx, "e1", 5, base.Add(24*time.Hour))
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("consume once and enqueue blob", func(t *testing.T) {
		r, pending := newRepo(t)
		rec := sampleRecord("c1", models.StatusAvailable)
		require.NoError(t, r.Create(ctx, rec))

		reapAt := base.Add(3 * time.Minute)
		got, err := r.Consume(ctx, "c1", base, reapAt)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConsumed, got.Status)
		assert.Equal(t, rec.StorageKey, got.StorageKey)
		assert.Equal(t, "notes.txt", got.Filename)

		_, err = r.Consume(ctx, "c1", base, reapAt)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		_, err = r.GetByID(ctx, "c1")
		assert.ErrorIs(t, err, common.ErrorNotFound)

		q := pending(t)
		require.Contains(t, q, rec.StorageKey)
		assert.True(t, q[rec.StorageKey].Equal(reapAt))
	})

	t.Run("consume refuses pending and expired", func(t *testing.T) {
		r, pending := newRepo(t)
		require.NoError(t, r.Create(ctx, sampleRecord("p2", models.StatusPendingUpload)))
		require.NoError(t, r.Create(ctx, sampleRecord("e2", models.StatusAvailable)))

		_, err := r.Consume(ctx, "p2", base, base)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		_, err = r.Consume(ctx, "e2", base.Add(24*time.Hour), base)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		_, err = r.GetByID(ctx, "e2")
		require.NoError(t, err)
		assert.Empty(t, pending(t))
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		r, _ := newRepo(t)
		require.NoError(t, r.Create(ctx, sampleRecord("race", models.StatusAvailable)))

		const n = 16
		var wins, losses atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := r.Consume(ctx, "race", base, base)
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, common.ErrorNotFound):
					losses.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(n-1), losses.Load())
	})

	t.Run("destroy any state", func(t *testing.T) {
		r, pending := newRepo(t)
		rec := sampleRecord("d1", models.StatusPendingUpload)
		require.NoError(t, r.Create(ctx, rec))

		require.NoError(t, r.Destroy(ctx, "d1", base))
		_, err := r.GetByID(ctx, "d1")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		assert.Contains(t, pending(t), rec.StorageKey)

		assert.ErrorIs(t, r.Destroy(ctx, "d1", base), common.ErrorNotFound)
	})

	t.Run("delete leaves queue alone", func(t *testing.T) {
		r, pending := newRepo(t)
		require.NoError(t, r.Create(ctx, sampleRecord("x1", models.StatusPendingUpload)))

		require.NoError(t, r.Delete(ctx, "x1"))
		assert.ErrorIs(t, r.Delete(ctx, "x1"), common.ErrorNotFound)
		assert.Empty(t, pending(t))
	})

	t.Run("delete expired", func(t *testing.T) {
		r, _ := newRepo(t)
		old := sampleRecord("old", models.StatusAvailable)
		old.ExpiresAt = base.Add(time.Hour)
		older := sampleRecord("older", models.StatusPendingUpload)
		older.ExpiresAt = base.Add(30 * time.Minute)
		fresh := sampleRecord("fresh", models.StatusAvailable)
		fresh.ExpiresAt = base.Add(48 * time.Hour)
		for _, rec := range []*models.FileRecord{old, older, fresh} {
			require.NoError(t, r.Create(ctx, rec))
		}

		got, err := r.DeleteExpired(ctx, base.Add(time.Hour), 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "older", got[0].FileID)
		assert.Equal(t, older.StorageKey, got[0].StorageKey)

		got, err = r.DeleteExpired(ctx, base.Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "old", got[0].FileID)

		got, err = r.DeleteExpired(ctx, base.Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = r.GetByID(ctx, "fresh")
		assert.NoError(t, err)
	})
}
