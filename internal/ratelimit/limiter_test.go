package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abev/portfolio-contact/internal/counter"
)

// fakeStore counts increments in memory and records the expiries it was
// handed.
type fakeStore struct {
	counts   map[string]int
	expiries map[string]time.Time
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		counts:   make(map[string]int),
		expiries: make(map[string]time.Time),
	}
}

func (f *fakeStore) IncrementAndGet(ctx context.Context, scope, key string, expiresAt time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	k := scope + "/" + key
	f.counts[k]++
	f.expiries[k] = expiresAt
	return f.counts[k], nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)
}

func newTestLimiter(store counter.Store, perHour, perDay int) *CounterLimiter {
	l := NewCounterLimiter(store, perHour, perDay)
	l.now = fixedNow
	return l
}

func TestCounterLimiter_AllowsUpToHourLimit(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(store, 3, 10)

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be admitted", i+1)
	}

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed, "4th call in the hour should be denied")
}

func TestCounterLimiter_DayLimitDeniesAcrossHours(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(store, 100, 2)

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCounterLimiter_IncrementsBothWindowsOnDenial(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(store, 1, 10)

	for i := 0; i < 5; i++ {
		l.Allow(context.Background(), "1.2.3.4")
	}

	// Even the denied calls accrued against both windows.
	assert.Equal(t, 5, store.counts["hour/1.2.3.4|2026083014"])
	assert.Equal(t, 5, store.counts["day/1.2.3.4|20260830"])
}

func TestCounterLimiter_BucketKeysStableWithinWindow(t *testing.T) {
	store := newFakeStore()
	l := NewCounterLimiter(store, 10, 10)

	base := fixedNow()
	l.now = func() time.Time { return base }
	_, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	// One second later lands in the same buckets.
	l.now = func() time.Time { return base.Add(time.Second) }
	_, err = l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	assert.Len(t, store.counts, 2)
	assert.Equal(t, 2, store.counts["hour/1.2.3.4|2026083014"])
	assert.Equal(t, 2, store.counts["day/1.2.3.4|20260830"])
}

func TestCounterLimiter_ExpiriesAreShortMultiplesOfWindow(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(store, 10, 10)

	_, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, fixedNow().Add(2*time.Hour), store.expiries["hour/1.2.3.4|2026083014"])
	assert.Equal(t, fixedNow().Add(48*time.Hour), store.expiries["day/1.2.3.4|20260830"])
}

func TestCounterLimiter_DistinctClientsDoNotContend(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(store, 1, 1)

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow(context.Background(), "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCounterLimiter_StoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.err = counter.ErrUnavailable
	l := newTestLimiter(store, 3, 10)

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	assert.False(t, allowed)
	assert.True(t, errors.Is(err, counter.ErrUnavailable))
}
