package zoom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper tracks processed webhook events so at-least-once delivery from Zoom
// cannot re-apply a mutation. Seen is a read-only check; Mark records the key
// once the event has actually been applied, so a delivery that failed on a
// transient store error is still retriable.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// RedisDeduper records event keys with a TTL, surviving restarts and shared
// across replicas.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed deduper. ttl bounds how long replays
// are detected; Zoom retries within minutes, so hours are plenty.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Seen reports whether key was already recorded.
func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, "zoom:webhook:"+key).Result()
	if err != nil {
		return false, fmt.Errorf("zoom: dedup exists: %w", err)
	}
	return n > 0, nil
}

// Mark records key as processed.
func (d *RedisDeduper) Mark(ctx context.Context, key string) error {
	if err := d.client.Set(ctx, "zoom:webhook:"+key, "1", d.ttl).Err(); err != nil {
		return fmt.Errorf("zoom: dedup set: %w", err)
	}
	return nil
}

// MemoryDeduper is the in-process fallback used when Redis is not configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemoryDeduper creates an in-memory deduper with the given TTL.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl}
}

// Seen reports whether key was already recorded. Expired entries are evicted
// opportunistically.
func (d *MemoryDeduper) Seen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for k, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, k)
		}
	}
	_, ok := d.seen[key]
	return ok, nil
}

// Mark records key as processed.
func (d *MemoryDeduper) Mark(ctx context.Context, key string) error {
	d.mu.Lock()
	d.seen[key] = time.Now()
	d.mu.Unlock()
	return nil
}
