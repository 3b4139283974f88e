// Package script models the commands handed to the external scripting
// engine: the command value itself, escaping of interpolated text, and a
// locale-independent codec for calendar dates.
//
// The external application is driven through generated script source. The
// types here are deliberately dumb - a Command is immutable once built,
// and everything that varies per call (timeouts, retries) lives in the
// executor, not here.
package script

import "fmt"

// Kind classifies a command for routing: reads go through the result
// cache, writes go through the single-flight operation queue.
type Kind int

const (
	// KindRead is a command with no observable effect on the application.
	KindRead Kind = iota + 1
	// KindWrite is a mutating command.
	KindWrite
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ResultShape declares what the caller expects the engine to print.
// The executor does not interpret output; the shape travels with the
// command so result consumers know how to parse it.
type ResultShape int

const (
	// ShapeNone expects no output (fire-and-forget mutations).
	ShapeNone ResultShape = iota
	// ShapeText expects a single text value.
	ShapeText
	// ShapeRecord expects one field-tagged record (see DecodeDate).
	ShapeRecord
	// ShapeList expects a delimited list of values.
	ShapeList
)

// Command is one immutable instruction for the scripting engine.
//
// Commands are built per call and discarded after execution. All text
// interpolated into Source must have gone through EscapeString or Quote;
// the constructors cannot verify that, so the burden is on builders.
type Command struct {
	source      string
	kind        Kind
	shape       ResultShape
	idempotent  bool
	sideEffects bool
}

// CommandOption configures optional command attributes.
type CommandOption func(*Command)

// WithShape declares the expected result shape (default ShapeText for
// reads, ShapeNone for writes).
func WithShape(s ResultShape) CommandOption {
	return func(c *Command) { c.shape = s }
}

// WithIdempotent marks a write as safe to re-execute. Retry policy does
// not depend on this today (only transient failures retry, and those
// failed before the engine acted), but the hint is preserved for callers
// that need it.
func WithIdempotent() CommandOption {
	return func(c *Command) { c.idempotent = true }
}

// WithSideEffects marks a read whose execution observably changes the
// application (e.g. a "show" command that focuses a window). Such reads
// must never be served from cache.
func WithSideEffects() CommandOption {
	return func(c *Command) { c.sideEffects = true }
}

// NewRead builds a read command.
func NewRead(source string, opts ...CommandOption) Command {
	c := Command{source: source, kind: KindRead, shape: ShapeText, idempotent: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewWrite builds a mutating command.
func NewWrite(source string, opts ...CommandOption) Command {
	c := Command{source: source, kind: KindWrite, shape: ShapeNone}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Source returns the script source text.
func (c Command) Source() string { return c.source }

// Kind returns the read/write classification.
func (c Command) Kind() Kind { return c.kind }

// Shape returns the expected result shape.
func (c Command) Shape() ResultShape { return c.shape }

// Idempotent reports whether re-executing the command is safe.
func (c Command) Idempotent() bool { return c.idempotent }

// HasSideEffects reports whether a read observably mutates state.
func (c Command) HasSideEffects() bool { return c.sideEffects }

// IsZero reports whether the command was never constructed.
func (c Command) IsZero() bool { return c.kind == 0 }
