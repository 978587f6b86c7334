package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}
	}

	if cb.State() != "open" {
		t.Fatalf("Expected open state, got %s", cb.State())
	}

	err := cb.Execute(ctx, func() error { return nil })
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable while open, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	if err := cb.Execute(ctx, func() error { return errors.New("down") }); err == nil {
		t.Fatal("Expected failure")
	}
	if cb.State() != "open" {
		t.Fatalf("Expected open, got %s", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	// Probe succeeds, circuit closes
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if cb.State() != "closed" {
		t.Fatalf("Expected closed after recovery, got %s", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(3, time.Minute)

	cb.Execute(ctx, func() error { return errors.New("x") }) //nolint:errcheck // intentional failure
	cb.Execute(ctx, func() error { return nil })             //nolint:errcheck

	if cb.Failures() != 0 {
		t.Errorf("Expected failure count reset, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	ctx := context.Background()
	var transitions []string
	cb := NewCircuitBreaker(1, time.Minute).WithStateChangeCallback(func(from, to string) {
		transitions = append(transitions, from+"->"+to)
	})

	cb.Execute(ctx, func() error { return errors.New("x") }) //nolint:errcheck // intentional failure

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("Unexpected transitions: %v", transitions)
	}
}

// Expected outcomes (missing objects, lost creation races) must not trip
// the breaker; the store reads a missing image on every empty store.
func TestCircuitBreakerBackend_ExpectedOutcomesNotFailures(t *testing.T) {
	ctx := context.Background()
	inner := NewFilesystemBackend(t.TempDir())
	backend := NewCircuitBreakerBackend(inner, 2, time.Minute)

	for i := 0; i < 5; i++ {
		if _, err := backend.Get(ctx, "missing"); !IsNotFound(err) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	}

	if backend.Breaker().State() != "closed" {
		t.Errorf("ErrNotFound tripped the breaker: %s", backend.Breaker().State())
	}

	if err := backend.PutIfAbsent(ctx, "lock", []byte("a")); err != nil {
		t.Fatalf("PutIfAbsent failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := backend.PutIfAbsent(ctx, "lock", []byte("b")); !IsAlreadyExists(err) {
			t.Fatalf("Expected ErrAlreadyExists, got %v", err)
		}
	}

	if backend.Breaker().State() != "closed" {
		t.Errorf("ErrAlreadyExists tripped the breaker: %s", backend.Breaker().State())
	}
}

// The wrapped backend behaves identically for the store's purposes.
func TestCircuitBreakerBackend_PassThrough(t *testing.T) {
	ctx := context.Background()
	backend := NewCircuitBreakerBackend(NewFilesystemBackend(t.TempDir()), 5, time.Minute)
	store := NewStore(backend)

	if _, err := store.Set(ctx, "k", IntegerValue(7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !v.Equal(IntegerValue(7)) {
		t.Errorf("Got %+v", v)
	}
}
