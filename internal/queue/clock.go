package queue

import "sync/atomic"

// clock issues strictly increasing sequence numbers for FIFO ordering
// within a priority band. Wall time is unsuitable here: two Enqueue calls
// in the same scheduler tick can share a timestamp, and ties would make
// dequeue order nondeterministic.
type clock struct {
	seq atomic.Int64
}

// next returns the next sequence number. Linearizable: each call returns
// a unique, increasing value.
func (c *clock) next() int64 {
	return c.seq.Add(1)
}
