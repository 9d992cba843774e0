package files

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/common"
	"github.com/dmitrijs2005/gophdrop/internal/server/models"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/reaps"
	"github.com/redis/go-redis/v9"
)

// Key layout. The shared {gophdrop} hash tag keeps every key in one cluster
// slot so multi-key scripts stay legal.
const (
	redisFilePrefix = "{gophdrop}:file:"
	RedisExpiryKey  = "{gophdrop}:files:expiry"
)

func redisFileKey(id string) string { return redisFilePrefix + id }

// RedisRepository keeps each record in a hash and indexes expiry in a sorted
// set scored by unix milliseconds. Conditional transitions run as Lua scripts
// so they execute atomically on the server.
type RedisRepository struct {
	client redis.UniversalClient
}

// NewRedisRepository wraps an existing client; the caller owns its lifetime.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Create(ctx context.Context, rec *models.FileRecord) error {
	res, err := r.client.Eval(ctx, createScript,
		[]string{redisFileKey(rec.FileID), RedisExpiryKey},
		rec.FileID, rec.StorageKey, rec.Filename, rec.PasswordHash,
		rec.Size, rec.Attempts, string(rec.Status),
		rec.CreatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if res == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	fields, err := r.client.HGetAll(ctx, redisFileKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}
	return recordFromHash(id, fields)
}

func (r *RedisRepository) MarkAvailable(ctx context.Context, id string, size int64) (bool, error) {
	res, err := r.client.Eval(ctx, markAvailableScript, []string{redisFileKey(id)}, size).Int()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return res == 1, nil
}

func (r *RedisRepository) ReserveAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (int, error) {
	res, err := r.client.Eval(ctx, reserveAttemptScript, []string{redisFileKey(id)},
		now.UnixMilli(), maxAttempts).Int()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	if res < 0 {
		return 0, common.ErrorNotFound
	}
	return res, nil
}

func (r *RedisRepository) Consume(ctx context.Context, id string, now, reapAt time.Time) (*models.FileRecord, error) {
	res, err := r.client.Eval(ctx, consumeScript,
		[]string{redisFileKey(id), RedisExpiryKey, reaps.RedisQueueKey},
		id, now.UnixMilli(), reapAt.UnixMilli(),
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	fields, err := flatToMap(res)
	if err != nil {
		return nil, err
	}
	rec, err := recordFromHash(id, fields)
	if err != nil {
		return nil, err
	}
	rec.Status = models.StatusConsumed
	return rec, nil
}

func (r *RedisRepository) Destroy(ctx context.Context, id string, reapAt time.Time) error {
	res, err := r.client.Eval(ctx, destroyScript,
		[]string{redisFileKey(id), RedisExpiryKey, reaps.RedisQueueKey},
		id, reapAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if res == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, redisFileKey(id))
		p.ZRem(ctx, RedisExpiryKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if del.Val() == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *RedisRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]*models.FileRecord, error) {
	res, err := r.client.Eval(ctx, deleteExpiredScript,
		[]string{RedisExpiryKey}, redisFilePrefix, now.UnixMilli(), limit,
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	items, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected reply %T", res)
	}
	var result []*models.FileRecord
	for _, it := range items {
		row, ok := it.([]interface{})
		if !ok || len(row) == 0 {
			continue
		}
		id, _ := row[0].(string)
		fields, err := flatToMap(row[1:])
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		rec, err := recordFromHash(id, fields)
		if err != nil {
			return nil, err
		}
		rec.Status = models.StatusExpired
		result = append(result, rec)
	}
	return result, nil
}

func flatToMap(v interface{}) (map[string]string, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected reply %T", v)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("odd hash reply length %d", len(items))
	}
	m := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, _ := items[i].(string)
		val, _ := items[i+1].(string)
		m[k] = val
	}
	return m, nil
}

func recordFromHash(id string, h map[string]string) (*models.FileRecord, error) {
	size, err := strconv.ParseInt(h["size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad size for %s: %w", id, err)
	}
	attempts, err := strconv.Atoi(h["attempts"])
	if err != nil {
		return nil, fmt.Errorf("bad attempts for %s: %w", id, err)
	}
	created, err := strconv.ParseInt(h["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", id, err)
	}
	expires, err := strconv.ParseInt(h["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad expires_at for %s: %w", id, err)
	}
	return &models.FileRecord{
		FileID:       id,
		StorageKey:   h["storage_key"],
		Filename:     h["filename"],
		PasswordHash: h["password_hash"],
		Size:         size,
		Attempts:     attempts,
		Status:       models.Status(h["status"]),
		CreatedAt:    time.UnixMilli(created).UTC(),
		ExpiresAt:    time.UnixMilli(expires).UTC(),
	}, nil
}

// KEYS: file hash, expiry zset
// ARGV: id, storage_key, filename, password_hash, size, attempts, status, created_at, expires_at
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "storage_key", ARGV[2], "filename", ARGV[3], "password_hash", ARGV[4],
  "size", ARGV[5], "attempts", ARGV[6], "status", ARGV[7],
  "created_at", ARGV[8], "expires_at", ARGV[9])
redis.call("ZADD", KEYS[2], ARGV[9], ARGV[1])
return 1
`

const markAvailableScript = `
if redis.call("HGET", KEYS[1], "status") ~= "pending_upload" then
  return 0
end
redis.call("HSET", KEYS[1], "status", "available", "size", ARGV[1])
return 1
`

// Returns the new attempt count, or -1 when the record is not eligible.
const reserveAttemptScript = `
local f = redis.call("HMGET", KEYS[1], "status", "expires_at", "attempts")
if f[1] ~= "available" then return -1 end
if tonumber(f[2]) <= tonumber(ARGV[1]) then return -1 end
if tonumber(f[3]) >= tonumber(ARGV[2]) then return -1 end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`

// KEYS: file hash, expiry zset, reap zset
// ARGV: id, now ms, reap_at ms
const consumeScript = `
local f = redis.call("HMGET", KEYS[1], "status", "expires_at", "storage_key")
if f[1] ~= "available" then return false end
if tonumber(f[2]) <= tonumber(ARGV[2]) then return false end
local rec = redis.call("HGETALL", KEYS[1])
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], f[3])
return rec
`

const destroyScript = `
local key = redis.call("HGET", KEYS[1], "storage_key")
if not key then return 0 end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[2], key)
return 1
`

// KEYS: expiry zset
// ARGV: file key prefix, now ms, limit
// Returns a list of {id, field, value, ...} rows.
const deleteExpiredScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[2], "LIMIT", 0, tonumber(ARGV[3]))
local out = {}
for _, id in ipairs(ids) do
  local k = ARGV[1] .. id
  local row = redis.call("HGETALL", k)
  table.insert(row, 1, id)
  table.insert(out, row)
  redis.call("DEL", k)
  redis.call("ZREM", KEYS[1], id)
end
return out
`
