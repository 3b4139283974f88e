// Package executor runs script commands against the external engine with
// timeout, retry, and error classification.
//
// The external application is treated as an unreliable remote peer:
// every call carries a hard wall-clock deadline, expected failures come
// back classified inside the Result, and only transient failure classes
// are retried. Serialization of mutations is NOT this package's job -
// that happens one level up, in the operation queue.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/osabridge/internal/script"
)

// Defaults for execution policy. The engine deadline is generous because
// the external application can take tens of seconds to respond when its
// UI is busy.
const (
	DefaultTimeout     = 45 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 250 * time.Millisecond
	DefaultBackoffCap  = 5 * time.Second
)

// Result is the outcome of one Execute call.
//
// OK distinguishes success from classified engine failure. Err is set
// exactly when OK is false. Attempts counts engine invocations including
// the final one, so a first-try success reports 1.
type Result struct {
	OK       bool
	Output   string
	Err      *EngineError
	Latency  time.Duration
	CallID   string
	Attempts int
}

// Executor runs commands against an Engine with the configured policy.
// It is safe for concurrent use; each call is independent.
type Executor struct {
	engine      Engine
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the per-call wall-clock deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithRetry bounds the attempt count and shapes the exponential backoff.
func WithRetry(maxAttempts int, base, cap time.Duration) Option {
	return func(e *Executor) {
		e.maxAttempts = maxAttempts
		e.backoffBase = base
		e.backoffCap = cap
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor around the given engine.
func New(engine Engine, opts ...Option) *Executor {
	e := &Executor{
		engine:      engine,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the command with the executor's default timeout.
func (e *Executor) Execute(ctx context.Context, cmd script.Command) (*Result, error) {
	return e.ExecuteWithTimeout(ctx, cmd, e.timeout)
}

// ExecuteWithTimeout runs one command with an explicit deadline.
//
// Expected engine failures (syntax, missing target, permission,
// unavailability, timeout) are returned inside the Result with OK=false
// and a nil error. A non-nil error means the executor's own contract was
// violated (zero command, nil engine) and is not recoverable by retry.
//
// Transient failures are retried with exponential backoff up to the
// configured attempt bound. Non-transient failures return immediately:
// re-running a syntactically broken command cannot fix it, and retrying
// a missing-target command only hides a builder bug.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, cmd script.Command, timeout time.Duration) (*Result, error) {
	if cmd.IsZero() {
		return nil, fmt.Errorf("executor: refusing to run zero command")
	}
	if e.engine == nil {
		return nil, fmt.Errorf("executor: no engine configured")
	}

	callID := uuid.NewString()
	start := time.Now()
	log := e.logger.With("call_id", callID, "kind", cmd.Kind().String())

	var engErr *EngineError
	attempts := 0
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		attempts = attempt
		output, err := e.runOnce(ctx, cmd.Source(), timeout)
		if errors.Is(err, context.Canceled) {
			// The caller abandoned the call; that is not an engine
			// failure and must not be classified as one.
			return nil, err
		}
		if err == nil {
			res := &Result{
				OK:       true,
				Output:   output,
				Latency:  time.Since(start),
				CallID:   callID,
				Attempts: attempt,
			}
			log.Debug("engine call succeeded", "attempt", attempt, "latency", res.Latency)
			return res, nil
		}

		engErr = asEngineError(err)
		log.Debug("engine call failed",
			"attempt", attempt,
			"code", string(engErr.Code),
			"transient", engErr.Transient(),
		)

		if !engErr.Transient() || attempt == e.maxAttempts {
			break
		}

		// Exponential backoff, capped. Enclosing context cancellation
		// aborts the wait.
		delay := e.backoffDelay(attempt)
		select {
		case <-ctx.Done():
			return e.failure(engErr, callID, start, attempts), nil
		case <-time.After(delay):
		}
	}

	res := e.failure(engErr, callID, start, attempts)
	log.Warn("engine call exhausted",
		"code", string(engErr.Code),
		"attempts", res.Attempts,
		"latency", res.Latency,
	)
	return res, nil
}

// ExecuteOnce runs exactly one engine invocation, with no internal
// retry. The operation queue drives its own retry state machine (so that
// each attempt is observable as a pending/retrying transition) and calls
// this once per attempt.
func (e *Executor) ExecuteOnce(ctx context.Context, cmd script.Command, timeout time.Duration) (*Result, error) {
	if cmd.IsZero() {
		return nil, fmt.Errorf("executor: refusing to run zero command")
	}
	if e.engine == nil {
		return nil, fmt.Errorf("executor: no engine configured")
	}
	if timeout <= 0 {
		timeout = e.timeout
	}

	callID := uuid.NewString()
	start := time.Now()

	output, err := e.runOnce(ctx, cmd.Source(), timeout)
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	if err != nil {
		engErr := asEngineError(err)
		e.logger.Debug("engine call failed",
			"call_id", callID, "code", string(engErr.Code), "transient", engErr.Transient())
		return e.failure(engErr, callID, start, 1), nil
	}
	return &Result{OK: true, Output: output, Latency: time.Since(start), CallID: callID, Attempts: 1}, nil
}

// MaxAttempts exposes the configured attempt bound.
func (e *Executor) MaxAttempts() int { return e.maxAttempts }

// runOnce performs a single engine invocation under its own deadline.
func (e *Executor) runOnce(ctx context.Context, source string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := e.engine.Run(callCtx, source)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &EngineError{
				Code:    ErrCodeTimeout,
				Message: fmt.Sprintf("engine call exceeded %s deadline", timeout),
				Raw:     err.Error(),
			}
		}
		return "", err
	}
	return output, nil
}

// asEngineError converts any engine failure into a classified error.
func asEngineError(err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return Classify(err.Error())
}

func (e *Executor) backoffDelay(attempt int) time.Duration {
	delay := e.backoffBase << (attempt - 1)
	if delay > e.backoffCap || delay <= 0 {
		delay = e.backoffCap
	}
	return delay
}

func (e *Executor) failure(engErr *EngineError, callID string, start time.Time, attempts int) *Result {
	return &Result{
		OK:       false,
		Err:      engErr,
		Latency:  time.Since(start),
		CallID:   callID,
		Attempts: attempts,
	}
}
