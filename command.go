package kvstore

import (
	"context"
	"strings"
	"time"
)

// Command verbs
const (
	verbSet      = "SET"
	verbGet      = "GET"
	verbBegin    = "BEGIN"
	verbCommit   = "COMMIT"
	verbRollback = "ROLLBACK"
)

// ResultKind discriminates command outcomes.
type ResultKind int

const (
	// ResultOK is the bare acknowledgement of BEGIN/COMMIT/ROLLBACK.
	ResultOK ResultKind = iota
	// ResultSet carries the {old, new} pair of a SET.
	ResultSet
	// ResultValue carries the single value of a GET (possibly Nil).
	ResultValue
)

// Result is the typed outcome of executing one command.
type Result struct {
	kind ResultKind
	old  Value
	new  Value
	val  Value
}

// OKResult acknowledges a transaction-control command.
func OKResult() Result {
	return Result{kind: ResultOK}
}

// SetResult pairs the previous and new value of a SET.
func SetResult(old, new Value) Result {
	return Result{kind: ResultSet, old: old, new: new}
}

// ValueResult wraps the value returned by a GET.
func ValueResult(v Value) Result {
	return Result{kind: ResultValue, val: v}
}

// Kind returns the outcome discriminator.
func (r Result) Kind() ResultKind { return r.kind }

// Old returns the previous value of a SET outcome.
func (r Result) Old() Value { return r.old }

// New returns the written value of a SET outcome.
func (r Result) New() Value { return r.new }

// Value returns the value of a GET outcome.
func (r Result) Value() Value { return r.val }

// Processor tokenizes command text and dispatches against the transaction
// engine, which in turn delegates to the store for clients outside a
// transaction.
type Processor struct {
	txns    *TxnEngine
	logger  Logger
	metrics Metrics
}

// NewProcessor creates a command processor over a transaction engine.
func NewProcessor(txns *TxnEngine) *Processor {
	return &Processor{
		txns:    txns,
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
}

// NewProcessorWithObservability creates a command processor with logging and metrics
func NewProcessorWithObservability(txns *TxnEngine, logger Logger, metrics Metrics) *Processor {
	p := NewProcessor(txns)
	p.logger = logger
	p.metrics = metrics
	return p
}

// Execute parses one command line and runs it on behalf of client.
// Empty input, unknown verbs and wrong arity all produce ErrInvalidCommand.
func (p *Processor) Execute(ctx context.Context, text, client string) (Result, error) {
	start := time.Now()

	tokens := tokenize(text)
	verb := "INVALID"
	if len(tokens) > 0 && isVerb(tokens[0]) {
		verb = tokens[0]
	}

	result, err := p.dispatch(ctx, tokens, client)

	p.metrics.Increment(MetricCommandOps, "verb", verb)
	p.metrics.Timing(MetricCommandDuration, time.Since(start), "verb", verb)
	if err != nil {
		p.metrics.Increment(MetricCommandErrors, "verb", verb)
		p.logger.Debug("command failed",
			"verb", verb,
			"client", client,
			"error", err,
		)
	}

	return result, err
}

// tokenize trims the command line and splits on the first two spaces, so
// the third token keeps its inner spaces and quotes intact for the value
// parser.
func tokenize(text string) []string {
	return strings.SplitN(strings.TrimSpace(text), " ", 3)
}

func isVerb(s string) bool {
	switch s {
	case verbSet, verbGet, verbBegin, verbCommit, verbRollback:
		return true
	}
	return false
}

func (p *Processor) dispatch(ctx context.Context, tokens []string, client string) (Result, error) {
	switch tokens[0] {
	case verbSet:
		if len(tokens) != 3 {
			return Result{}, ErrInvalidCommand
		}
		key, err := ParseKey(tokens[1])
		if err != nil {
			return Result{}, err
		}
		value, err := ParseValue(tokens[2])
		if err != nil {
			return Result{}, err
		}
		old, err := p.txns.Set(ctx, client, key, value)
		if err != nil {
			return Result{}, err
		}
		return SetResult(old, value), nil

	case verbGet:
		if len(tokens) != 2 {
			return Result{}, ErrInvalidCommand
		}
		key, err := ParseKey(tokens[1])
		if err != nil {
			return Result{}, err
		}
		value, err := p.txns.Get(ctx, client, key)
		if err != nil {
			return Result{}, err
		}
		return ValueResult(value), nil

	case verbBegin:
		if len(tokens) != 1 {
			return Result{}, ErrInvalidCommand
		}
		if err := p.txns.Begin(ctx, client); err != nil {
			return Result{}, err
		}
		return OKResult(), nil

	case verbCommit:
		if len(tokens) != 1 {
			return Result{}, ErrInvalidCommand
		}
		if err := p.txns.Commit(ctx, client); err != nil {
			return Result{}, err
		}
		return OKResult(), nil

	case verbRollback:
		if len(tokens) != 1 {
			return Result{}, ErrInvalidCommand
		}
		if err := p.txns.Rollback(ctx, client); err != nil {
			return Result{}, err
		}
		return OKResult(), nil

	default:
		return Result{}, ErrInvalidCommand
	}
}
