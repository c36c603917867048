package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps hit counters and block markers in Redis so every server
// instance sees the same totals.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func blockKey(key string) string {
	return key + ":blocked"
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, limit int, blockDuration time.Duration) (Record, error) {
	// Already serving a block sentence: don't even count the hit.
	if ttl, err := s.client.TTL(ctx, blockKey(key)).Result(); err == nil && ttl > 0 {
		return Record{IsBlocked: true, TimeToBlockExpire: ttl}, nil
	}

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Record{}, err
	}

	hits := incr.Val()
	rec := Record{
		TotalHits:    hits,
		TimeToExpire: ttlCmd.Val(),
	}

	if hits > int64(limit) {
		rec.IsBlocked = true
		rec.TimeToBlockExpire = blockDuration
		if err := s.client.Set(ctx, blockKey(key), 1, blockDuration).Err(); err != nil {
			return Record{}, err
		}
	}
	return rec, nil
}
