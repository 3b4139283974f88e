package queue

import "errors"

var (
	// ErrQueueSaturated is returned by Enqueue when the pending backlog
	// has reached its configured bound. Shedding load at enqueue time is
	// preferable to accepting a mutation the caller will time out on.
	ErrQueueSaturated = errors.New("operation queue saturated")

	// ErrClosed is returned by Enqueue after the queue has shut down.
	ErrClosed = errors.New("operation queue closed")

	// ErrNotFound is returned for operation IDs the queue no longer
	// tracks (unknown, or terminal and already reaped).
	ErrNotFound = errors.New("operation not found")

	// ErrNotCancellable is returned by Cancel for operations past the
	// pending state. The external engine offers no cooperative
	// cancellation, so a running operation can only be awaited - or not.
	ErrNotCancellable = errors.New("operation is no longer pending")

	// ErrCancelled resolves the handle of a cancelled operation.
	ErrCancelled = errors.New("operation cancelled before execution")
)
