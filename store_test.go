package kvstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	backend := NewFilesystemBackend(t.TempDir())
	store := NewStore(backend)

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		v, err := store.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !v.IsNil() {
			t.Errorf("Expected Nil, got %+v", v)
		}
	})

	t.Run("SetReturnsOldValue", func(t *testing.T) {
		old, err := store.Set(ctx, "counter", IntegerValue(1))
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if !old.IsNil() {
			t.Errorf("First set should return Nil, got %+v", old)
		}

		old, err = store.Set(ctx, "counter", IntegerValue(2))
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if !old.Equal(IntegerValue(1)) {
			t.Errorf("Expected old value 1, got %+v", old)
		}
	})

	t.Run("SetThenGet", func(t *testing.T) {
		if _, err := store.Set(ctx, "greeting", StringValue("hello world")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		v, err := store.Get(ctx, "greeting")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !v.Equal(StringValue("hello world")) {
			t.Errorf("Got %+v", v)
		}
	})

	t.Run("NilValueRejected", func(t *testing.T) {
		_, err := store.Set(ctx, "k", Nil)
		if !errors.Is(err, ErrNilValue) {
			t.Fatalf("Expected ErrNilValue, got %v", err)
		}
	})

	t.Run("LockSentinelRemovedAfterOperation", func(t *testing.T) {
		exists, err := backend.Exists(ctx, LockObject)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("Lock sentinel survived a completed operation")
		}
	})
}

// Durability: a second store over the same backend sees committed writes.
func TestStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := NewStore(NewFilesystemBackend(dir))
	if _, err := first.Set(ctx, "durable", BooleanValue(true)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second := NewStore(NewFilesystemBackend(dir))
	v, err := second.Get(ctx, "durable")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !v.Equal(BooleanValue(true)) {
		t.Errorf("Expected TRUE, got %+v", v)
	}
}

// An unreadable store image reads as the empty store.
func TestStore_CorruptImageReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewFilesystemBackend(t.TempDir())
	metrics := NewInMemoryMetrics()
	store := NewStoreWithObservability(backend, &NoOpLogger{}, metrics)

	if err := backend.Put(ctx, StorageObject, []byte("not json")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	v, err := store.Get(ctx, "anything")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !v.IsNil() {
		t.Errorf("Expected Nil from empty store, got %+v", v)
	}
	if metrics.Counter(MetricStoreLoadErrors) == 0 {
		t.Error("Expected a load error to be counted")
	}
}

// A blocked contender waits for the sentinel and then proceeds.
func TestStore_LockContention(t *testing.T) {
	ctx := context.Background()
	backend := NewFilesystemBackend(t.TempDir())
	store := NewStore(backend)

	// Hold the lock by hand
	if err := backend.PutIfAbsent(ctx, LockObject, []byte("held")); err != nil {
		t.Fatalf("PutIfAbsent failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := store.Set(ctx, "k", IntegerValue(1))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Set finished while lock held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// Release and the contender proceeds
	if err := backend.Delete(ctx, LockObject); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Set failed after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Set never completed after lock release")
	}
}

// Cancelling the context unblocks a waiting contender.
func TestStore_LockAcquireHonorsContext(t *testing.T) {
	ctx := context.Background()
	backend := NewFilesystemBackend(t.TempDir())
	store := NewStore(backend)

	if err := backend.PutIfAbsent(ctx, LockObject, []byte("held")); err != nil {
		t.Fatalf("PutIfAbsent failed: %v", err)
	}
	defer backend.Delete(ctx, LockObject) //nolint:errcheck // test cleanup

	timedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err := store.Get(timedCtx, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}
}

// Concurrent writers through the lock never lose an update entirely: the
// final image holds every key.
func TestStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	backend := NewFilesystemBackend(t.TempDir())
	store := NewStore(backend)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			if _, err := store.Set(ctx, key, IntegerValue(int64(n))); err != nil {
				t.Errorf("Set(%s) failed: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		key := string(rune('a' + i))
		v, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", key, err)
		}
		if !v.Equal(IntegerValue(int64(i))) {
			t.Errorf("Get(%s) = %+v, want %d", key, v, i)
		}
	}
}
