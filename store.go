package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StoreLocker guards the whole-store critical section. Acquire blocks until
// the lock is held or the context is done, and returns the release function.
type StoreLocker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Store is the durable map: a single serialized image of every key and
// value, read and rewritten in full under an exclusive lock. There is no
// in-memory mirror; what is on the backend is the store.
type Store struct {
	backend Backend
	locker  StoreLocker
	logger  Logger
	metrics Metrics
}

// NewStore creates a store over a backend with the sentinel lock and no-op
// logger and metrics.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		locker:  NewSentinelLocker(backend),
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
}

// NewStoreWithObservability creates a store with logging and metrics
func NewStoreWithObservability(backend Backend, logger Logger, metrics Metrics) *Store {
	s := NewStore(backend)
	s.logger = logger
	s.metrics = metrics
	if sl, ok := s.locker.(*SentinelLocker); ok {
		sl.metrics = metrics
	}
	return s
}

// WithLocker replaces the store lock implementation, e.g. with a Redis
// lock for multi-instance deployments where a crashed sentinel holder
// would otherwise block the store forever.
func (s *Store) WithLocker(locker StoreLocker) *Store {
	s.locker = locker
	return s
}

// Get returns the committed value for key, or Nil when absent.
// The whole-store lock is held for the duration of the read.
func (s *Store) Get(ctx context.Context, key string) (Value, error) {
	start := time.Now()
	defer func() {
		s.metrics.Timing(MetricStoreGetDuration, time.Since(start))
	}()

	release, err := s.locker.Acquire(ctx)
	if err != nil {
		return Nil, err
	}
	defer release()

	entries := s.load(ctx)
	value, ok := entries[key]
	if !ok {
		return Nil, nil
	}
	return value, nil
}

// Set writes key to value and returns the previous committed value (Nil
// when absent). The read-modify-write runs under the whole-store lock; the
// rewritten image is durable before the lock is released.
func (s *Store) Set(ctx context.Context, key string, value Value) (Value, error) {
	if value.IsNil() {
		return Nil, ErrNilValue
	}

	start := time.Now()
	defer func() {
		s.metrics.Timing(MetricStoreSetDuration, time.Since(start))
	}()

	release, err := s.locker.Acquire(ctx)
	if err != nil {
		return Nil, err
	}
	defer release()

	entries := s.load(ctx)
	old, ok := entries[key]
	if !ok {
		old = Nil
	}
	entries[key] = value

	data, err := json.Marshal(entries)
	if err != nil {
		return Nil, fmt.Errorf("serialize store image: %w", err)
	}
	if err := s.backend.Put(ctx, StorageObject, data); err != nil {
		return Nil, fmt.Errorf("write store image: %w", err)
	}

	return old, nil
}

// load reads the current store image. Read failures of any kind map to
// the empty store; only write-side failures are fatal.
func (s *Store) load(ctx context.Context) map[string]Value {
	data, err := s.backend.Get(ctx, StorageObject)
	if err != nil {
		if !IsNotFound(err) {
			s.logger.Warn("store image unreadable, treating as empty", "error", err)
			s.metrics.Increment(MetricStoreLoadErrors)
		}
		return make(map[string]Value)
	}

	entries := make(map[string]Value)
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("store image undecodable, treating as empty", "error", err)
		s.metrics.Increment(MetricStoreLoadErrors)
		return make(map[string]Value)
	}
	return entries
}

// Ping checks backend health
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases resources held by the store and backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// SentinelLocker expresses mutual exclusion through exclusive creation of
// the lock object: PutIfAbsent succeeds for exactly one contender, losers
// back off and retry until the context is cancelled. The sentinel is
// removed on release, so it never survives a completed operation. A
// sentinel left behind by a crashed process blocks all contenders; see
// the Redis locker for the self-expiring alternative.
type SentinelLocker struct {
	backend       Backend
	retryInterval time.Duration
	metrics       Metrics
}

// NewSentinelLocker creates the default store locker over a backend.
func NewSentinelLocker(backend Backend) *SentinelLocker {
	return &SentinelLocker{
		backend:       backend,
		retryInterval: DefaultLockRetryInterval,
		metrics:       &NoOpMetrics{},
	}
}

func (l *SentinelLocker) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	owner := []byte(NewClientID())
	contended := false

	for {
		err := l.backend.PutIfAbsent(ctx, LockObject, owner)
		if err == nil {
			l.metrics.Increment(MetricLockAcquired)
			if contended {
				l.metrics.Increment(MetricLockContention)
			}
			l.metrics.Timing(MetricLockWaitTime, time.Since(start))

			release := func() {
				// Use a background context so release works even when the
				// operation's context is already cancelled.
				_ = l.backend.Delete(context.Background(), LockObject) //nolint:errcheck // Cleanup operation, safe to ignore
			}
			return release, nil
		}

		if !errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("acquire store lock: %w", err)
		}

		contended = true
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}
