package counter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore keeps rate counters in a Postgres table. The upsert runs as
// one statement, so the Store contract holds without a retry loop. Expired
// rows are advisory; ReapExpired only keeps the table small.
type PostgresStore struct {
	db *sql.DB
}

const createCountersTable = `
CREATE TABLE IF NOT EXISTS rate_counters (
	scope      TEXT NOT NULL,
	bucket_key TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (scope, bucket_key)
)`

const upsertCounter = `
INSERT INTO rate_counters (scope, bucket_key, count, expires_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (scope, bucket_key)
DO UPDATE SET count = rate_counters.count + 1, expires_at = EXCLUDED.expires_at
RETURNING count`

// NewPostgresStore connects to Postgres and ensures the counters table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB creates a store around an existing database handle.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCountersTable); err != nil {
		return fmt.Errorf("creating rate_counters table: %w", err)
	}
	return nil
}

// IncrementAndGet implements Store.
func (s *PostgresStore) IncrementAndGet(ctx context.Context, scope, key string, expiresAt time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, upsertCounter, scope, key, expiresAt).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: incrementing %s/%s: %v", ErrUnavailable, scope, key, err)
	}
	return count, nil
}

// ReapExpired deletes counters whose expiry has passed and returns the number
// of rows removed.
func (s *PostgresStore) ReapExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_counters WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("reaping expired counters: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
