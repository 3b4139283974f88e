// Package queue serializes mutating commands into a single-flight
// operation queue.
//
// This is the system's central correctness guarantee: the external
// application has no concurrency control of its own, so two
// near-simultaneous mutations could race and one would silently
// overwrite the other. All mutations funnel through one single-consumer
// worker; across the whole process at most one mutation is running at
// any instant. Reads never come here - they are protected by the result
// cache and run in parallel with the current mutation.
package queue

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/roach88/osabridge/internal/executor"
	"github.com/roach88/osabridge/internal/script"
)

// Defaults for queue policy.
const (
	DefaultMaxPending  = 256
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffCap  = 10 * time.Second
	DefaultRetention   = 5 * time.Minute
)

// Stats is a point-in-time view of queue health.
type Stats struct {
	// Depth is the number of pending operations.
	Depth int
	// OldestPendingAge is the age of the longest-waiting pending
	// operation (zero when the queue is empty).
	OldestPendingAge time.Duration
	// RunningID is the ID of the currently running operation, empty when
	// the worker is idle.
	RunningID string
	// FailureCounts counts terminal failures per engine error code.
	FailureCounts map[string]int64
	// Succeeded, Failed, and Cancelled are lifetime terminal counts.
	Succeeded int64
	Failed    int64
	Cancelled int64
}

// Queue is the single-flight mutation queue. Enqueue is safe from any
// goroutine; Run must be called from exactly one.
type Queue struct {
	exec        *executor.Executor
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	maxPending  int
	retention   time.Duration
	logger      *slog.Logger
	onSuccess   func(Snapshot)
	now         func() time.Time

	mu       sync.Mutex
	pending  []*operation
	byID     map[string]*operation
	running  *operation
	closed   bool
	seq      clock
	entropy  *ulid.MonotonicEntropy
	failures map[string]int64
	nSucc    int64
	nFail    int64
	nCancel  int64

	// signal coalesces enqueue wakeups for the worker (buffered, size 1).
	signal chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithTimeout sets the per-attempt engine deadline.
func WithTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// WithRetry bounds attempts per operation and shapes the backoff between
// them.
func WithRetry(maxAttempts int, base, cap time.Duration) Option {
	return func(q *Queue) {
		q.maxAttempts = maxAttempts
		q.backoffBase = base
		q.backoffCap = cap
	}
}

// WithMaxPending bounds the pending backlog; Enqueue past the bound
// fails with ErrQueueSaturated.
func WithMaxPending(n int) Option {
	return func(q *Queue) { q.maxPending = n }
}

// WithRetention sets how long terminal operations stay queryable before
// Reap discards them.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) { q.retention = d }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithOnSuccess installs a hook invoked (outside the queue lock) after
// each successful mutation. The bridge uses it for cache invalidation:
// the hook runs before the operation's handle resolves, so a caller that
// awaited a mutation never reads its own write from a stale cache entry.
func WithOnSuccess(fn func(Snapshot)) Option {
	return func(q *Queue) { q.onSuccess = fn }
}

// WithClock overrides the queue's clock. Test use only.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a Queue around the given executor. Call Run to start the
// worker.
func New(exec *executor.Executor, opts ...Option) *Queue {
	q := &Queue{
		exec:        exec,
		timeout:     executor.DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
		maxPending:  DefaultMaxPending,
		retention:   DefaultRetention,
		logger:      slog.Default(),
		now:         time.Now,
		byID:        make(map[string]*operation),
		failures:    make(map[string]int64),
		entropy:     ulid.Monotonic(rand.Reader, 0),
		signal:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a mutating command to the queue and returns a handle that
// resolves to its eventual execution result.
//
// Concurrent enqueues are ordered by priority, then FIFO within a
// priority band. Kind names the mutation (e.g. "todo.update") for
// invalidation mapping and failure accounting.
func (q *Queue) Enqueue(cmd script.Command, kind string, priority Priority) (*Handle, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	if len(q.pending) >= q.maxPending {
		q.mu.Unlock()
		return nil, ErrQueueSaturated
	}

	now := q.now()
	op := &operation{
		id:         ulid.MustNew(ulid.Timestamp(now), q.entropy).String(),
		kind:       kind,
		cmd:        cmd,
		priority:   priority,
		seq:        q.seq.next(),
		enqueuedAt: now,
		state:      StatePending,
		done:       make(chan struct{}),
	}
	q.pending = append(q.pending, op)
	q.byID[op.id] = op
	q.mu.Unlock()

	// Coalesced wakeup; a full buffer means the worker is already
	// scheduled to look.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	q.logger.Debug("operation enqueued", "op_id", op.id, "kind", kind, "priority", int(priority))
	return &Handle{id: op.id, q: q, op: op}, nil
}

// Run is the single-consumer worker loop. It drains operations one at a
// time until ctx is cancelled, then resolves any still-pending
// operations with ErrClosed so no caller waits forever.
//
// Run must be called from exactly one goroutine; that is what makes the
// "at most one running mutation" invariant hold without further locking
// around the engine call.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("operation queue starting")
	for {
		op := q.tryDequeue()
		if op == nil {
			select {
			case <-ctx.Done():
				q.shutdown()
				q.logger.Info("operation queue stopping")
				return ctx.Err()
			case <-q.signal:
			}
			continue
		}
		q.process(ctx, op)
	}
}

// tryDequeue removes and returns the best pending operation: highest
// priority first, then lowest sequence number (FIFO within the band).
func (q *Queue) tryDequeue() *operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	best := -1
	for i, op := range q.pending {
		if best == -1 ||
			op.priority > q.pending[best].priority ||
			(op.priority == q.pending[best].priority && op.seq < q.pending[best].seq) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	op := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)

	// Claim the operation under the same lock that removed it. The worker
	// holds no lock between dequeue and dispatch, so leaving the state at
	// pending here would let a concurrent Cancel in that window resolve an
	// operation the worker is about to run.
	op.state = StateRunning
	q.running = op
	return op
}

// process drives one operation to a terminal state, retrying transient
// failures with exponential backoff up to the attempt bound.
func (q *Queue) process(ctx context.Context, op *operation) {
	log := q.logger.With("op_id", op.id, "kind", op.kind)

	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		// Shutdown between operations (or between attempts) resolves the
		// operation instead of dispatching into a dead context.
		if ctx.Err() != nil {
			q.finish(op, nil, ErrClosed)
			return
		}
		q.markRunning(op, attempt)

		res, err := q.exec.ExecuteOnce(ctx, op.cmd, q.timeout)
		if errors.Is(err, context.Canceled) {
			// Shutdown pulled the context out from under the attempt.
			q.finish(op, nil, ErrClosed)
			return
		}
		if err != nil {
			// Executor contract violation: not an engine failure, not
			// retryable.
			q.finish(op, nil, err)
			log.Error("operation faulted", "error", err)
			return
		}

		if res.OK {
			q.finish(op, res, nil)
			log.Debug("operation succeeded", "attempts", attempt, "latency", res.Latency)
			return
		}

		if !res.Err.Transient() || attempt == q.maxAttempts {
			q.finish(op, res, nil)
			log.Warn("operation failed",
				"code", string(res.Err.Code), "attempts", attempt, "transient", res.Err.Transient())
			return
		}

		q.markRetrying(op)
		log.Debug("operation retrying", "attempt", attempt, "code", string(res.Err.Code))

		select {
		case <-ctx.Done():
			q.finish(op, res, ErrClosed)
			return
		case <-time.After(q.backoff(attempt)):
		}
	}
}

func (q *Queue) backoff(attempt int) time.Duration {
	d := q.backoffBase << (attempt - 1)
	if d > q.backoffCap || d <= 0 {
		d = q.backoffCap
	}
	return d
}

// markRunning claims the single running slot. The worker is the only
// writer, so this is bookkeeping for introspection, not mutual
// exclusion - exclusion is the single-consumer loop itself.
func (q *Queue) markRunning(op *operation, attempt int) {
	q.mu.Lock()
	op.state = StateRunning
	op.attempts = attempt
	q.running = op
	q.mu.Unlock()
}

func (q *Queue) markRetrying(op *operation) {
	q.mu.Lock()
	op.state = StateRetrying
	q.running = nil
	q.mu.Unlock()
}

// finish moves an operation to its terminal state and wakes waiters.
// The onSuccess hook runs after bookkeeping but BEFORE done is closed,
// so cache invalidation is complete by the time Wait returns.
func (q *Queue) finish(op *operation, res *executor.Result, err error) {
	q.mu.Lock()
	op.result = res
	op.err = err
	op.finishedAt = q.now()
	if q.running == op {
		q.running = nil
	}
	success := err == nil && res != nil && res.OK
	if success {
		op.state = StateSucceeded
		q.nSucc++
	} else {
		op.state = StateFailed
		q.nFail++
		if res != nil && res.Err != nil {
			q.failures[string(res.Err.Code)]++
		}
	}
	snap := op.snapshotLocked()
	q.mu.Unlock()

	if success && q.onSuccess != nil {
		q.onSuccess(snap)
	}
	close(op.done)
}

// Cancel aborts a still-pending operation. Running and terminal
// operations cannot be cancelled: the engine offers no cooperative
// cancellation, so the only options past dispatch are waiting or not.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	op, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}
	if op.state != StatePending {
		q.mu.Unlock()
		return ErrNotCancellable
	}
	for i, p := range q.pending {
		if p == op {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	op.state = StateCancelled
	op.err = ErrCancelled
	op.finishedAt = q.now()
	q.nCancel++
	q.mu.Unlock()

	close(op.done)
	q.logger.Debug("operation cancelled", "op_id", id)
	return nil
}

// Status returns a snapshot of the operation, which stays queryable for
// the retention window after reaching a terminal state.
func (q *Queue) Status(id string) (Snapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.byID[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return op.snapshotLocked(), nil
}

// Stats reports queue depth, oldest-pending age, and failure counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Depth:         len(q.pending),
		FailureCounts: make(map[string]int64, len(q.failures)),
		Succeeded:     q.nSucc,
		Failed:        q.nFail,
		Cancelled:     q.nCancel,
	}
	for code, n := range q.failures {
		s.FailureCounts[code] = n
	}
	if q.running != nil {
		s.RunningID = q.running.id
	}
	now := q.now()
	for _, op := range q.pending {
		if age := now.Sub(op.enqueuedAt); age > s.OldestPendingAge {
			s.OldestPendingAge = age
		}
	}
	return s
}

// Reap discards terminal operations older than the retention window and
// returns how many were dropped. Called periodically by the janitor.
func (q *Queue) Reap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := q.now().Add(-q.retention)
	removed := 0
	for id, op := range q.byID {
		if op.state.Terminal() && op.finishedAt.Before(cutoff) {
			delete(q.byID, id)
			removed++
		}
	}
	return removed
}

// shutdown resolves all pending operations with ErrClosed and refuses
// further enqueues.
func (q *Queue) shutdown() {
	q.mu.Lock()
	q.closed = true
	orphans := q.pending
	q.pending = nil
	for _, op := range orphans {
		op.state = StateFailed
		op.err = ErrClosed
		op.finishedAt = q.now()
		q.nFail++
	}
	q.mu.Unlock()

	for _, op := range orphans {
		close(op.done)
	}
}

// resolve extracts a terminal operation's outcome for Handle.Wait.
func (q *Queue) resolve(op *operation) (*executor.Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (op *operation) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         op.id,
		Kind:       op.kind,
		Priority:   op.priority,
		State:      op.state,
		Attempts:   op.attempts,
		EnqueuedAt: op.enqueuedAt,
		FinishedAt: op.finishedAt,
	}
}
