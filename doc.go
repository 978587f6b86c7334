// Package kvstore is a persistent, transactional key-value store speaking a
// line-oriented text command protocol: SET, GET, BEGIN, COMMIT and ROLLBACK,
// identified by a per-client tag and applied against a durable single-writer
// store with per-client optimistic concurrency control.
//
// # Overview
//
// The store is a single serialized map held as one object of a pluggable
// blob backend (local filesystem, S3 or GCS). Every operation runs under an
// exclusive whole-store lock expressed as the exclusive creation of a lock
// sentinel object; contenders back off and retry. Transactions buffer reads
// and writes in a per-client record object and validate the read set against
// committed state at COMMIT.
//
// # Quick Start
//
// Basic usage with the filesystem backend:
//
//	backend := kvstore.NewFilesystemBackend("./data")
//	store := kvstore.NewStore(backend)
//	txns := kvstore.NewTxnEngine(store, backend)
//	processor := kvstore.NewProcessor(txns)
//
//	result, err := processor.Execute(ctx, `SET greeting "hello world"`, clientID)
//	if err != nil {
//	    fmt.Println(kvstore.FormatError(err))   // ERR "..."
//	} else {
//	    fmt.Println(kvstore.FormatSuccess(result)) // NIL "hello world"
//	}
//
// Production setup with S3, a Redis store lock, and observability:
//
//	s3Client := s3.NewFromConfig(cfg)
//	backend := kvstore.NewCircuitBreakerBackend(
//	    kvstore.NewS3Backend(s3Client, "my-bucket"), 5, 30*time.Second)
//
//	logger, _ := kvstore.NewProductionZapLogger()
//	metrics := kvstore.NewPrometheusMetrics(nil)
//
//	redisClient := redis.NewClient(kvstore.RedisOptions())
//	store := kvstore.NewStoreWithObservability(backend, logger, metrics).
//	    WithLocker(kvstore.NewRedisStoreLocker(redisClient, "kvstore"))
//
// # Core Concepts
//
// Backend: blob abstraction holding the store image, the lock sentinel and
// per-client transaction records. Exclusive creation (PutIfAbsent) is the
// primitive both the lock and BEGIN are built on.
//
// Store: the durable map. Reads and read-modify-writes each hold the
// whole-store lock for exactly one operation; there is no in-memory mirror.
//
// TxnEngine: per-client optimistic transactions. A transaction exists iff
// its record object exists, so in-flight transactions survive a crash. At
// COMMIT the read set is revalidated key by key; the first key whose
// committed value changed aborts the commit with an atomicity failure.
//
// Processor and formatting: the command processor tokenizes one command
// line and returns a typed Result; FormatSuccess and FormatError produce
// the exact wire text.
//
// # Consistency Notes
//
// Individual writes are linearizable through the store lock. The writes of
// one commit are applied in sequence, not as a group: a concurrent reader
// may observe a prefix of a commit. A crashed process that held the lock
// sentinel blocks all contenders until the sentinel is removed; the Redis
// store locker avoids this with a TTL.
package kvstore
