package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// txnRecord is the persisted state of one client's active transaction.
// Reads holds the value observed at first read (possibly Nil), Writes the
// pending updates. OriginalValues is serialized but never populated; it is
// reserved for pre-image capture.
type txnRecord struct {
	Reads          map[string]Value `json:"reads"`
	Writes         map[string]Value `json:"writes"`
	OriginalValues map[string]Value `json:"original_values"`
}

func newTxnRecord() *txnRecord {
	return &txnRecord{
		Reads:          make(map[string]Value),
		Writes:         make(map[string]Value),
		OriginalValues: make(map[string]Value),
	}
}

// TxnEngine implements per-client optimistic transactions over the store.
// A client is in a transaction exactly when its record object exists on
// the backend: the record IS the state, so a crash between operations
// leaves the transaction active and visible to COMMIT and ROLLBACK.
// Operations of clients with no active record delegate straight to the
// store.
type TxnEngine struct {
	store   *Store
	backend Backend
	clients *StripedLocks // serializes same-client requests in-process
	logger  Logger
	metrics Metrics
}

// NewTxnEngine creates a transaction engine over a store and the backend
// holding the transaction records.
func NewTxnEngine(store *Store, backend Backend) *TxnEngine {
	return &TxnEngine{
		store:   store,
		backend: backend,
		clients: NewStripedLocks(32),
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
}

// NewTxnEngineWithObservability creates a transaction engine with logging and metrics
func NewTxnEngineWithObservability(store *Store, backend Backend, logger Logger, metrics Metrics) *TxnEngine {
	e := NewTxnEngine(store, backend)
	e.logger = logger
	e.metrics = metrics
	return e
}

// Begin starts a transaction for the client. The empty record is created
// with an exclusive put, so a second BEGIN loses the race and reports
// "Already in transaction" even across processes.
func (e *TxnEngine) Begin(ctx context.Context, client string) error {
	unlock := e.clients.Lock(client)
	defer unlock()

	data, err := json.Marshal(newTxnRecord())
	if err != nil {
		return fmt.Errorf("serialize transaction record: %w", err)
	}

	if err := e.backend.PutIfAbsent(ctx, TransactionObject(client), data); err != nil {
		if IsAlreadyExists(err) {
			return ErrInTransaction
		}
		return fmt.Errorf("create transaction record: %w", err)
	}

	e.metrics.Increment(MetricTxnBegin)
	e.logger.Debug("transaction started", "client", client)
	return nil
}

// Commit validates the read set against current committed state and, on
// success, applies the write set and destroys the record. Validation reads
// go through the store's own lock; the group of writes is not atomic with
// respect to concurrent observers, each individual write is.
//
// A failed validation keeps the record in place: the transaction stays
// active until the client rolls back or retries.
func (e *TxnEngine) Commit(ctx context.Context, client string) error {
	unlock := e.clients.Lock(client)
	defer unlock()

	rec, err := e.loadRecord(ctx, client)
	if err != nil {
		if IsNotFound(err) {
			return ErrNoTransaction
		}
		return err
	}

	for key, observed := range rec.Reads {
		current, err := e.store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !current.Equal(observed) {
			e.metrics.Increment(MetricTxnConflict)
			e.logger.Info("commit aborted by read-set validation",
				"client", client,
				"key", key,
			)
			return &AtomicityError{Key: key}
		}
	}

	for key, value := range rec.Writes {
		if _, err := e.store.Set(ctx, key, value); err != nil {
			return fmt.Errorf("apply write for %s: %w", key, err)
		}
	}

	if err := e.deleteRecord(ctx, client); err != nil {
		return err
	}

	e.metrics.Increment(MetricTxnCommit)
	e.logger.Debug("transaction committed",
		"client", client,
		"reads", len(rec.Reads),
		"writes", len(rec.Writes),
	)
	return nil
}

// Rollback discards the client's transaction.
func (e *TxnEngine) Rollback(ctx context.Context, client string) error {
	unlock := e.clients.Lock(client)
	defer unlock()

	if err := e.deleteRecord(ctx, client); err != nil {
		if IsNotFound(err) {
			return ErrNoActiveTransaction
		}
		return err
	}

	e.metrics.Increment(MetricTxnRollback)
	e.logger.Debug("transaction rolled back", "client", client)
	return nil
}

// Get reads a key for the client. Inside a transaction the pending write
// wins; otherwise the committed value is returned and recorded into the
// read set on first observation. Without a transaction it is a plain
// store read.
func (e *TxnEngine) Get(ctx context.Context, client, key string) (Value, error) {
	unlock := e.clients.Lock(client)
	defer unlock()

	rec, err := e.loadRecord(ctx, client)
	if err != nil {
		if IsNotFound(err) {
			return e.store.Get(ctx, key)
		}
		return Nil, err
	}

	if pending, ok := rec.Writes[key]; ok {
		return pending, nil
	}

	current, err := e.store.Get(ctx, key)
	if err != nil {
		return Nil, err
	}

	if _, seen := rec.Reads[key]; !seen {
		rec.Reads[key] = current
		if err := e.saveRecord(ctx, client, rec); err != nil {
			return Nil, err
		}
	}

	return current, nil
}

// Set writes a key for the client. Inside a transaction the write is
// buffered in the record and the returned old value is the current
// committed one, read fresh from the store. Without a transaction it is a
// plain store write.
func (e *TxnEngine) Set(ctx context.Context, client, key string, value Value) (Value, error) {
	if value.IsNil() {
		return Nil, ErrNilValue
	}

	unlock := e.clients.Lock(client)
	defer unlock()

	rec, err := e.loadRecord(ctx, client)
	if err != nil {
		if IsNotFound(err) {
			return e.store.Set(ctx, key, value)
		}
		return Nil, err
	}

	old, err := e.store.Get(ctx, key)
	if err != nil {
		return Nil, err
	}

	rec.Writes[key] = value
	if err := e.saveRecord(ctx, client, rec); err != nil {
		return Nil, err
	}

	return old, nil
}

// InTransaction reports whether the client has an active record.
func (e *TxnEngine) InTransaction(ctx context.Context, client string) (bool, error) {
	return e.backend.Exists(ctx, TransactionObject(client))
}

func (e *TxnEngine) loadRecord(ctx context.Context, client string) (*txnRecord, error) {
	data, err := e.backend.Get(ctx, TransactionObject(client))
	if err != nil {
		return nil, err
	}

	rec := newTxnRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode transaction record for %s: %w", client, err)
	}
	if rec.Reads == nil {
		rec.Reads = make(map[string]Value)
	}
	if rec.Writes == nil {
		rec.Writes = make(map[string]Value)
	}
	if rec.OriginalValues == nil {
		rec.OriginalValues = make(map[string]Value)
	}
	return rec, nil
}

func (e *TxnEngine) saveRecord(ctx context.Context, client string, rec *txnRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize transaction record: %w", err)
	}
	return e.backend.Put(ctx, TransactionObject(client), data)
}

func (e *TxnEngine) deleteRecord(ctx context.Context, client string) error {
	return e.backend.Delete(ctx, TransactionObject(client))
}
