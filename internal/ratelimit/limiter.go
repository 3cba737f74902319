// Package ratelimit decides admission for a client identity against
// persistent hour and day windows.
package ratelimit

import (
	"context"
	"time"

	"github.com/abev/portfolio-contact/internal/counter"
)

// Limiter decides whether a client may submit.
type Limiter interface {
	// Allow reports whether the client identified by identity is within
	// its hour and day limits. Both window counters are incremented on
	// every call, so the decision is exactly "was this the Nth request or
	// earlier". A returned error means the store could not complete an
	// increment; the caller must not treat it as either allow or deny.
	Allow(ctx context.Context, identity string) (bool, error)
}

// Expiries are a short multiple of the window so stale counters that escape
// the reaper never throttle a later bucket.
const (
	hourExpiry = 2 * time.Hour
	dayExpiry  = 48 * time.Hour
)

// CounterLimiter implements Limiter on top of a counter.Store.
type CounterLimiter struct {
	store   counter.Store
	perHour int
	perDay  int
	now     func() time.Time
}

// NewCounterLimiter creates a limiter with the given per-window limits.
func NewCounterLimiter(store counter.Store, perHour, perDay int) *CounterLimiter {
	return &CounterLimiter{
		store:   store,
		perHour: perHour,
		perDay:  perDay,
		now:     time.Now,
	}
}

// Allow implements Limiter. The hour counter is incremented first, then the
// day counter, unconditionally: a client hammering the endpoint accrues
// count against both windows even while one of them is already exceeded.
func (l *CounterLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	now := l.now().UTC()

	hourCount, err := l.store.IncrementAndGet(ctx, counter.ScopeHour, hourKey(identity, now), now.Add(hourExpiry))
	if err != nil {
		return false, err
	}

	dayCount, err := l.store.IncrementAndGet(ctx, counter.ScopeDay, dayKey(identity, now), now.Add(dayExpiry))
	if err != nil {
		return false, err
	}

	return hourCount <= l.perHour && dayCount <= l.perDay, nil
}

func hourKey(identity string, now time.Time) string {
	return identity + "|" + now.Format("2006010215")
}

func dayKey(identity string, now time.Time) string {
	return identity + "|" + now.Format("20060102")
}
