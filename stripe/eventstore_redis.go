package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisEventPrefix = "stripe:event:"

// RedisEventStore shares processed webhook event ids between replicas. Keys
// expire after the store TTL.
type RedisEventStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventStore connects to the Redis server at url (redis://...) and
// checks the connection.
func NewRedisEventStore(ctx context.Context, url string, ttl time.Duration) (*RedisEventStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}
	if ttl == 0 {
		ttl = defaultEventTTL
	}
	return &RedisEventStore{client: client, ttl: ttl}, nil
}

// EventExists checks if an event has already been processed
func (r *RedisEventStore) EventExists(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisEventPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed marks an event as processed. Marking twice keeps the first
// timestamp.
func (r *RedisEventStore) MarkProcessed(ctx context.Context, eventID string) error {
	return r.client.SetNX(ctx, redisEventPrefix+eventID, time.Now().Unix(), r.ttl).Err()
}

// Close closes the Redis connection pool.
func (r *RedisEventStore) Close() error {
	return r.client.Close()
}
