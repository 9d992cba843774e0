package reaps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runQueueContract exercises behaviour every Repository must share.
func runQueueContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nothing due", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.Schedule(ctx, "uploads/a", base.Add(time.Minute)))

		keys, err := r.TakeDue(ctx, base, 10)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("due keys are taken once, oldest first", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.Schedule(ctx, "uploads/late", base.Add(2*time.Second)))
		require.NoError(t, r.Schedule(ctx, "uploads/early", base.Add(time.Second)))
		require.NoError(t, r.Schedule(ctx, "uploads/future", base.Add(time.Hour)))

		keys, err := r.TakeDue(ctx, base.Add(time.Minute), 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"uploads/early", "uploads/late"}, keys)

		keys, err = r.TakeDue(ctx, base.Add(time.Minute), 10)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("limit", func(t *testing.T) {
		r := newRepo(t)
		for _, k := range []string{"k1", "k2", "k3"} {
			require.NoError(t, r.Schedule(ctx, k, base))
		}
		keys, err := r.TakeDue(ctx, base, 2)
		require.NoError(t, err)
		assert.Len(t, keys, 2)

		keys, err = r.TakeDue(ctx, base, 2)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("reschedule replaces due time", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.Schedule(ctx, "uploads/x", base.Add(time.Hour)))
		require.NoError(t, r.Schedule(ctx, "uploads/x", base))

		keys, err := r.TakeDue(ctx, base, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"uploads/x"}, keys)
	})
}

func TestInMemoryRepository_Contract(t *testing.T) {
	runQueueContract(t, func(t *testing.T) Repository { return NewInMemoryRepository() })
}

func TestInMemoryRepository_Pending(t *testing.T) {
	r := NewInMemoryRepository()
	at := time.Unix(100, 0)
	require.NoError(t, r.Schedule(context.Background(), "k", at))

	p := r.Pending()
	assert.Equal(t, map[string]time.Time{"k": at}, p)

	p["other"] = at
	assert.Len(t, r.Pending(), 1, "Pending must return a copy")
}
