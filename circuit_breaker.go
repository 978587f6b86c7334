package kvstore

import (
	"context"
	"sync"
	"time"
)

// CircuitBreaker prevents cascading failures when a remote backend is
// unavailable. Three states: closed (normal), open (fail fast), half-open
// (probing for recovery).
type CircuitBreaker struct {
	mu            sync.RWMutex
	maxFailures   int
	resetTimeout  time.Duration
	failures      int
	lastFailTime  time.Time
	state         string // "closed", "open", "half-open"
	onStateChange func(from, to string)
}

// NewCircuitBreaker creates a circuit breaker that opens after maxFailures
// consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        "closed",
	}
}

// WithStateChangeCallback adds a callback for state transitions.
func (cb *CircuitBreaker) WithStateChangeCallback(fn func(from, to string)) *CircuitBreaker {
	cb.onStateChange = fn
	return cb
}

// Execute runs fn if circuit is closed or half-open.
// Returns ErrBackendUnavailable if circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		return WithContext(ErrBackendUnavailable, map[string]interface{}{
			"reason": "circuit breaker is open",
			"state":  cb.State(),
		})
	}

	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case "open":
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.setState("half-open")
			return true
		}
		return false
	case "half-open":
		return true
	default: // closed
		return true
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailTime = time.Now()

		if cb.failures >= cb.maxFailures && cb.state != "open" {
			cb.setState("open")
		}
	} else {
		if cb.state == "half-open" {
			cb.setState("closed")
			cb.failures = 0
		} else if cb.state == "closed" {
			cb.failures = 0
		}
	}
}

func (cb *CircuitBreaker) setState(newState string) {
	oldState := cb.state
	cb.state = newState
	if cb.onStateChange != nil {
		cb.onStateChange(oldState, newState)
	}
}

// State returns current circuit breaker state (closed, open, or half-open)
func (cb *CircuitBreaker) State() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.setState("closed")
}

// Failures returns the current failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// CircuitBreakerBackend wraps a Backend with a circuit breaker, so an
// unreachable S3 or GCS endpoint fails fast instead of stalling every
// request. Expected outcomes (ErrNotFound, ErrAlreadyExists) do not count
// as failures.
type CircuitBreakerBackend struct {
	backend Backend
	cb      *CircuitBreaker
}

// NewCircuitBreakerBackend wraps a backend with a circuit breaker.
func NewCircuitBreakerBackend(backend Backend, maxFailures int, resetTimeout time.Duration) *CircuitBreakerBackend {
	return &CircuitBreakerBackend{
		backend: backend,
		cb:      NewCircuitBreaker(maxFailures, resetTimeout),
	}
}

// Breaker exposes the underlying circuit breaker for state callbacks.
func (b *CircuitBreakerBackend) Breaker() *CircuitBreaker {
	return b.cb
}

func expectedOutcome(err error) bool {
	return err == nil || IsNotFound(err) || IsAlreadyExists(err)
}

func (b *CircuitBreakerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	var opErr error
	err := b.cb.Execute(ctx, func() error {
		data, opErr = b.backend.Get(ctx, key)
		if expectedOutcome(opErr) {
			return nil
		}
		return opErr
	})
	if err != nil && opErr == nil {
		return nil, err // circuit open
	}
	return data, opErr
}

func (b *CircuitBreakerBackend) Put(ctx context.Context, key string, data []byte) error {
	return b.cb.Execute(ctx, func() error {
		return b.backend.Put(ctx, key, data)
	})
}

func (b *CircuitBreakerBackend) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	var opErr error
	err := b.cb.Execute(ctx, func() error {
		opErr = b.backend.PutIfAbsent(ctx, key, data)
		if expectedOutcome(opErr) {
			return nil
		}
		return opErr
	})
	if err != nil && opErr == nil {
		return err
	}
	return opErr
}

func (b *CircuitBreakerBackend) Delete(ctx context.Context, key string) error {
	var opErr error
	err := b.cb.Execute(ctx, func() error {
		opErr = b.backend.Delete(ctx, key)
		if expectedOutcome(opErr) {
			return nil
		}
		return opErr
	})
	if err != nil && opErr == nil {
		return err
	}
	return opErr
}

func (b *CircuitBreakerBackend) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	var opErr error
	err := b.cb.Execute(ctx, func() error {
		exists, opErr = b.backend.Exists(ctx, key)
		return opErr
	})
	if err != nil && opErr == nil {
		return false, err
	}
	return exists, opErr
}

func (b *CircuitBreakerBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var opErr error
	err := b.cb.Execute(ctx, func() error {
		keys, opErr = b.backend.List(ctx, prefix)
		return opErr
	})
	if err != nil && opErr == nil {
		return nil, err
	}
	return keys, opErr
}

func (b *CircuitBreakerBackend) Ping(ctx context.Context) error {
	return b.cb.Execute(ctx, func() error {
		return b.backend.Ping(ctx)
	})
}

func (b *CircuitBreakerBackend) Close() error {
	return b.backend.Close()
}
