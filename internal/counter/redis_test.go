package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreWithClient(client), mr
}

func TestRedisStore_IncrementSequence(t *testing.T) {
	store, _ := setupRedisStore(t)
	expiry := time.Now().Add(2 * time.Hour)

	for want := 1; want <= 4; want++ {
		count, err := store.IncrementAndGet(context.Background(), ScopeHour, "1.2.3.4|2026083014", expiry)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
}

func TestRedisStore_SetsExpiryOnFirstWrite(t *testing.T) {
	store, mr := setupRedisStore(t)
	expiry := time.Now().Add(2 * time.Hour)

	_, err := store.IncrementAndGet(context.Background(), ScopeHour, "k", expiry)
	require.NoError(t, err)

	ttl := mr.TTL("ratelimit:hour:k")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 2*time.Hour+time.Minute)
}

func TestRedisStore_DistinctScopesIndependent(t *testing.T) {
	store, _ := setupRedisStore(t)
	expiry := time.Now().Add(time.Hour)

	count, err := store.IncrementAndGet(context.Background(), ScopeHour, "k", expiry)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementAndGet(context.Background(), ScopeDay, "k", expiry)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisStore_ConcurrentIncrementsLoseNoUpdates(t *testing.T) {
	store, _ := setupRedisStore(t)
	expiry := time.Now().Add(time.Hour)

	const callers = 20
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementAndGet(context.Background(), ScopeHour, "shared", expiry)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.IncrementAndGet(context.Background(), ScopeHour, "shared", expiry)
	require.NoError(t, err)
	assert.Equal(t, callers+1, count)
}

func TestRedisStore_DownstreamFailureIsUnavailable(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.IncrementAndGet(context.Background(), ScopeHour, "k", time.Now().Add(time.Hour))
	assert.True(t, errors.Is(err, ErrUnavailable))
}
