package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/osabridge/internal/executor"
	"github.com/roach88/osabridge/internal/script"
)

// State tracks an operation through its lifecycle:
//
//	pending → running → (succeeded | retrying → running | failed)
//
// plus cancelled, reachable only from pending. Succeeded, failed, and
// cancelled are terminal.
type State int

const (
	StatePending State = iota + 1
	StateRunning
	StateRetrying
	StateSucceeded
	StateFailed
	StateCancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Priority orders pending operations. Higher dispatches first; FIFO
// within a band.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 10
	PriorityHigh   Priority = 20
)

// operation is the queue's internal record. All fields after construction
// are guarded by the queue mutex; done is closed exactly once, when the
// operation reaches a terminal state.
type operation struct {
	id         string
	kind       string
	cmd        script.Command
	priority   Priority
	seq        int64
	enqueuedAt time.Time

	state      State
	attempts   int
	finishedAt time.Time
	result     *executor.Result
	err        error

	done chan struct{}
}

// Snapshot is a point-in-time copy of an operation for status reporting.
type Snapshot struct {
	ID         string
	Kind       string
	Priority   Priority
	State      State
	Attempts   int
	EnqueuedAt time.Time
	FinishedAt time.Time
}

// Handle tracks one enqueued operation and resolves to its eventual
// execution result.
type Handle struct {
	id string
	q  *Queue
	op *operation
}

// ID returns the operation's ULID. IDs are time-ordered, so sorting IDs
// lexicographically reproduces enqueue order.
func (h *Handle) ID() string { return h.id }

// Wait blocks until the operation reaches a terminal state or ctx
// expires. Expiry only stops the waiting - the operation itself keeps
// its place in the queue and still runs to a terminal state; no mutation
// is ever silently dropped.
//
// On a terminal operation Wait returns the execution result, or an error
// for operations that never executed (cancelled, internal fault).
func (h *Handle) Wait(ctx context.Context) (*executor.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.op.done:
	}
	return h.q.resolve(h.op)
}

// State returns the operation's current state.
func (h *Handle) State() State {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	return h.op.state
}
