package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLock provides Redis-based locking for coordinating store
// access across multiple processes. Unlike the lock sentinel, a Redis
// lock carries a TTL, so a crashed holder cannot block the store forever.
type DistributedLock struct {
	redis      *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewDistributedLock creates a new distributed lock manager using Redis
func NewDistributedLock(redis *redis.Client, keyPrefix string) *DistributedLock {
	return &DistributedLock{
		redis:      redis,
		keyPrefix:  keyPrefix,
		defaultTTL: DefaultLockTTL,
	}
}

// Lock acquires a distributed lock for the given key.
// Returns a release function that MUST be called to release the lock,
// or ErrLockHeld when another process holds it.
func (l *DistributedLock) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl == 0 {
		ttl = l.defaultTTL
	}

	lockKey := fmt.Sprintf("%s:lock:%s", l.keyPrefix, key)
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())

	success, err := l.redis.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !success {
		return nil, WithContext(ErrLockHeld, map[string]interface{}{
			"key": key,
			"ttl": ttl,
		})
	}

	release := func() {
		// Use a background context for cleanup (don't fail if parent context canceled)
		cleanupCtx := context.Background()

		// Only delete if we still own the lock (check value matches)
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		_, _ = l.redis.Eval(cleanupCtx, script, []string{lockKey}, lockValue).Result() //nolint:errcheck // Cleanup operation, safe to ignore
	}

	return release, nil
}

// TryLockWithRetry attempts to acquire a lock with exponential backoff retry.
func (l *DistributedLock) TryLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int) (func(), error) {
	config := DefaultRetryConfig()
	config.MaxRetries = maxRetries

	var lastErr error
	for i := 0; i < config.MaxRetries; i++ {
		release, err := l.Lock(ctx, key, ttl)
		if err == nil {
			return release, nil
		}

		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if i < config.MaxRetries-1 {
			backoff := config.InitialBackoff * time.Duration(int64(1)<<uint(i))
			jitter := time.Duration(float64(backoff) * config.JitterPercent)
			time.Sleep(backoff + jitter)
		}
	}

	return nil, fmt.Errorf("failed to acquire lock after %d retries: %w", config.MaxRetries, lastErr)
}

// RedisStoreLocker adapts DistributedLock to the StoreLocker contract,
// locking the store lock object's name in Redis with the sentinel's retry
// cadence.
type RedisStoreLocker struct {
	lock          *DistributedLock
	ttl           time.Duration
	retryInterval time.Duration
	metrics       Metrics
}

// NewRedisStoreLocker creates a Redis-backed store locker.
func NewRedisStoreLocker(client *redis.Client, keyPrefix string) *RedisStoreLocker {
	return &RedisStoreLocker{
		lock:          NewDistributedLock(client, keyPrefix),
		ttl:           DefaultLockTTL,
		retryInterval: DefaultLockRetryInterval,
		metrics:       &NoOpMetrics{},
	}
}

// WithMetrics attaches a metrics collector to the locker.
func (l *RedisStoreLocker) WithMetrics(metrics Metrics) *RedisStoreLocker {
	l.metrics = metrics
	return l
}

func (l *RedisStoreLocker) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	contended := false

	for {
		release, err := l.lock.Lock(ctx, LockObject, l.ttl)
		if err == nil {
			l.metrics.Increment(MetricLockAcquired)
			if contended {
				l.metrics.Increment(MetricLockContention)
			}
			l.metrics.Timing(MetricLockWaitTime, time.Since(start))
			return release, nil
		}

		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}

		contended = true
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}
