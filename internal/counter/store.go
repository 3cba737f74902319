// Package counter provides a durable keyed counter with expiry, used by the
// rate limiter. Increments are atomic per (scope, key): concurrent callers
// never lose an update.
package counter

import (
	"context"
	"errors"
	"time"
)

// Scopes for rate windows.
const (
	ScopeHour = "hour"
	ScopeDay  = "day"
)

// ErrUnavailable is returned when the backing store could not complete an
// increment, including when optimistic-concurrency retries are exhausted.
// Callers must treat it as an infrastructure failure, never as an admission
// decision.
var ErrUnavailable = errors.New("counter store unavailable")

// Store is a keyed counter with storage-level expiry.
type Store interface {
	// IncrementAndGet atomically increments the counter at (scope, key) by
	// one, refreshing its expiry, and returns the resulting count. The
	// count reflects exactly one increment per call.
	IncrementAndGet(ctx context.Context, scope, key string, expiresAt time.Time) (int, error)
}
