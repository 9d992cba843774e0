package reaps

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client), mr
}

func TestRedisRepository_Contract(t *testing.T) {
	runQueueContract(t, func(t *testing.T) Repository {
		r, _ := newRedisRepo(t)
		return r
	})
}

func TestRedisRepository_ScheduleStoresScore(t *testing.T) {
	r, mr := newRedisRepo(t)
	due := time.UnixMilli(1_700_000_000_123)

	require.NoError(t, r.Schedule(context.Background(), "uploads/k", due))

	score, err := mr.ZScore(RedisQueueKey, "uploads/k")
	require.NoError(t, err)
	assert.Equal(t, float64(due.UnixMilli()), score)
}

func TestRedisRepository_Errors(t *testing.T) {
	r, mr := newRedisRepo(t)
	mr.Close()

	err := r.Schedule(context.Background(), "k", time.Now())
	assert.ErrorContains(t, err, "redis error")

	_, err = r.TakeDue(context.Background(), time.Now(), 1)
	assert.ErrorContains(t, err, "failed to take due reaps")
}
