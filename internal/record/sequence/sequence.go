// Package sequence issues monotonically increasing identifiers per named
// counter. Every backend performs a single atomic increment-and-fetch.
package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Memory is a process-local allocator for tests and single-instance runs.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

func (m *Memory) Next(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.counters[name], nil
}

// Postgres increments a row in the counters table with one upsert, so
// concurrent callers serialize on the row lock.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const nextQuery = `
	INSERT INTO counters (name, value) VALUES ($1, 1)
	ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
	RETURNING value
`

func (p *Postgres) Next(ctx context.Context, name string) (int64, error) {
	var v int64
	if err := p.db.QueryRowContext(ctx, nextQuery, name).Scan(&v); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return v, nil
}

// Redis uses INCR on seq:<name>. Durability follows the server's persistence
// settings.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Key returns the Redis key backing counter name.
func Key(name string) string {
	return "seq:" + name
}

func (r *Redis) Next(ctx context.Context, name string) (int64, error) {
	v, err := r.client.Incr(ctx, Key(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", Key(name), err)
	}
	return v, nil
}
