package reaps

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueueKey is the sorted set holding queued storage keys scored by due
// time in unix milliseconds. The files repository writes to it from its own
// scripts, so the name is shared.
const RedisQueueKey = "{gophdrop}:reaps"

// RedisRepository implements the queue as a Redis sorted set.
type RedisRepository struct {
	client redis.UniversalClient
}

// NewRedisRepository wraps an existing client; the caller owns its lifetime.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Schedule(ctx context.Context, storageKey string, dueAt time.Time) error {
	err := r.client.ZAdd(ctx, RedisQueueKey, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: storageKey,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) TakeDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	res, err := r.client.Eval(ctx, takeDueScript, []string{RedisQueueKey}, now.UnixMilli(), limit).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to take due reaps: %w", err)
	}
	items, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected reply %T", res)
	}
	keys := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys, nil
}

const takeDueScript = `
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, k in ipairs(due) do
  redis.call("ZREM", KEYS[1], k)
end
return due
`
