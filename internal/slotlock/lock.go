// Package slotlock serializes the availability-check-then-book sequence per
// (date, time) slot so two concurrent bookings cannot both pass the check.
package slotlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker acquires a short-lived exclusive lock on a slot key. ok is false
// when another holder owns the lock; release is non-nil whenever ok is true.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Key builds the lock key for a slot.
func Key(date, timeOfDay string) string {
	return "slot:" + date + "T" + timeOfDay
}

// RedisLocker implements Locker with SET NX PX, which also covers multiple
// API replicas sharing one Redis.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker wraps a Redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// Acquire takes the lock, returning a release func that only deletes the key
// if this holder still owns it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	holder := uuid.NewString()
	set, err := l.client.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("slotlock: setnx: %w", err)
	}
	if !set {
		return nil, false, nil
	}
	release := func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{key}, holder).Err()
	}
	return release, true, nil
}

// MemoryLocker is the single-process fallback when Redis is not configured.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	holder string
	expiry time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock)}
}

// Acquire takes the lock unless an unexpired holder exists. Release checks
// the holder token, so a release arriving after the TTL expired cannot free
// a lock that was since granted to someone else.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if cur, ok := l.locks[key]; ok && now.Before(cur.expiry) {
		return nil, false, nil
	}
	holder := uuid.NewString()
	l.locks[key] = memoryLock{holder: holder, expiry: now.Add(ttl)}
	release := func() {
		l.mu.Lock()
		if cur, ok := l.locks[key]; ok && cur.holder == holder {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
	return release, true, nil
}
