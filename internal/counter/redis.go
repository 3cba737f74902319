package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abev/portfolio-contact/internal/pkg/logger"
)

// Lua script for an atomic increment with expiry set on first write.
// INCR + EXPIREAT as one unit avoids the counter-without-TTL window that a
// two-command pipeline would leave on a crash between the calls.
const incrementLuaScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("EXPIREAT", KEYS[1], ARGV[1])
end
return count
`

// RedisStore keeps rate counters in Redis. Redis executes each script as a
// single unit, so the Store contract holds without a retry loop.
type RedisStore struct {
	redis *redis.Client

	incrementScript *redis.Script
}

// NewRedisStore creates a counter store by connecting to Redis.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("counter store connected", "backend", "redis")

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store around an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		redis:           client,
		incrementScript: redis.NewScript(incrementLuaScript),
	}
}

// IncrementAndGet implements Store.
func (s *RedisStore) IncrementAndGet(ctx context.Context, scope, key string, expiresAt time.Time) (int, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)

	count, err := s.incrementScript.Run(ctx, s.redis,
		[]string{redisKey},
		expiresAt.Unix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: incrementing %s: %v", ErrUnavailable, redisKey, err)
	}

	return count, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}
