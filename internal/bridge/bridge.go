// Package bridge is the facade over the command-execution layer. It
// owns the routing contract: reads go through the result cache and run
// in parallel, writes go through the single-flight operation queue, and
// a successful mutation invalidates the cache entries it may have made
// stale before the caller's handle resolves.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/osabridge/internal/cache"
	"github.com/roach88/osabridge/internal/config"
	"github.com/roach88/osabridge/internal/executor"
	"github.com/roach88/osabridge/internal/queue"
	"github.com/roach88/osabridge/internal/script"
	"github.com/roach88/osabridge/internal/store"
)

var (
	// ErrNotRead is returned when a write command is passed to Read.
	ErrNotRead = errors.New("bridge: command is not a read")
	// ErrNotWrite is returned when a read command is submitted as a mutation.
	ErrNotWrite = errors.New("bridge: command is not a write")
	// ErrStoreDisabled is returned by direct-read calls when no store is
	// configured.
	ErrStoreDisabled = errors.New("bridge: direct store is not enabled")
)

// Mutation is a write command with its routing metadata. Kind names the
// mutation class (e.g. "item.update") and selects which cache prefixes
// are invalidated when it succeeds.
type Mutation struct {
	Command  script.Command
	Kind     string
	Priority queue.Priority
}

// Bridge wires the executor, cache, queue, and optional direct store
// into one surface. Safe for concurrent use once constructed.
type Bridge struct {
	exec   *executor.Executor
	cache  *cache.Cache
	queue  *queue.Queue
	store  *store.Store
	logger *slog.Logger

	defaultTTL    time.Duration
	sweepSchedule string

	// invalidation maps a mutation kind to the cache key prefixes it
	// makes stale. Static after construction. Kinds with no mapping
	// flush the whole cache: over-invalidation costs a recompute,
	// under-invalidation serves stale data.
	invalidation map[string][]string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithInvalidation sets the mutation-kind → cache-prefix map.
func WithInvalidation(m map[string][]string) Option {
	return func(b *Bridge) { b.invalidation = m }
}

// New builds a Bridge from configuration. A nil engine selects the real
// scripting binary from cfg; tests pass a fake.
func New(cfg *config.Config, engine executor.Engine, opts ...Option) (*Bridge, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	b := &Bridge{
		logger:        slog.Default(),
		defaultTTL:    cfg.Cache.DefaultTTL,
		sweepSchedule: cfg.Cache.SweepSchedule,
		invalidation:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(b)
	}

	if engine == nil {
		engine = executor.NewOSAEngine(cfg.Engine.Binary)
	}

	b.exec = executor.New(engine,
		executor.WithTimeout(cfg.Engine.Timeout),
		executor.WithRetry(cfg.Engine.MaxAttempts, cfg.Engine.BackoffBase, cfg.Engine.BackoffCap),
		executor.WithLogger(b.logger),
	)
	b.cache = cache.New()
	b.queue = queue.New(b.exec,
		queue.WithTimeout(cfg.Engine.Timeout),
		queue.WithRetry(cfg.Queue.MaxAttempts, cfg.Queue.BackoffBase, cfg.Queue.BackoffCap),
		queue.WithMaxPending(cfg.Queue.MaxPending),
		queue.WithRetention(cfg.Queue.Retention),
		queue.WithLogger(b.logger),
		queue.WithOnSuccess(b.invalidateFor),
	)

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		b.store = st
	}

	return b, nil
}

// Run starts the mutation worker and the janitor, blocking until ctx is
// cancelled. Call it from exactly one goroutine.
func (b *Bridge) Run(ctx context.Context) error {
	stop, err := b.startJanitor()
	if err != nil {
		return err
	}
	defer stop()
	return b.queue.Run(ctx)
}

// Read executes a read command, serving it from the cache when a live
// entry exists under key. A non-positive ttl uses the configured
// default. Side-effecting reads always bypass the cache, as does an
// empty key.
//
// Reads never enter the operation queue; they run concurrently with
// whatever mutation is in flight.
func (b *Bridge) Read(ctx context.Context, key string, ttl time.Duration, cmd script.Command) (*executor.Result, error) {
	if cmd.Kind() != script.KindRead {
		return nil, ErrNotRead
	}
	if cmd.HasSideEffects() || key == "" {
		return b.exec.Execute(ctx, cmd)
	}
	if ttl <= 0 {
		ttl = b.defaultTTL
	}

	// Classified engine failures are surfaced as the compute error so
	// they are never cached; the Result is kept aside so the caller
	// still gets latency and attempt accounting.
	var failed *executor.Result
	v, hit, err := b.cache.GetOrCompute(ctx, key, ttl, func(ctx context.Context) (any, error) {
		res, err := b.exec.Execute(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if !res.OK {
			failed = res
			return nil, res.Err
		}
		return res, nil
	})
	if err != nil {
		if failed != nil {
			return failed, nil
		}
		return nil, err
	}
	if hit {
		b.logger.Debug("read served from cache", "key", key)
	}
	return v.(*executor.Result), nil
}

// Submit enqueues a mutation and returns immediately with a handle the
// caller can Wait on or poll via Status.
func (b *Bridge) Submit(m Mutation) (*queue.Handle, error) {
	if m.Command.Kind() != script.KindWrite {
		return nil, ErrNotWrite
	}
	return b.queue.Enqueue(m.Command, m.Kind, m.Priority)
}

// Do submits a mutation and waits for its terminal result. By the time
// Do returns a successful result, the stale cache entries for the
// mutation's kind are already invalidated.
func (b *Bridge) Do(ctx context.Context, m Mutation) (*executor.Result, error) {
	h, err := b.Submit(m)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// Cancel aborts a still-pending mutation.
func (b *Bridge) Cancel(id string) error { return b.queue.Cancel(id) }

// Status returns the queue's view of one operation.
func (b *Bridge) Status(id string) (queue.Snapshot, error) { return b.queue.Status(id) }

// Stats reports queue health.
func (b *Bridge) Stats() queue.Stats { return b.queue.Stats() }

// InvalidateAll drops every cache entry. Escape hatch for callers that
// changed state outside the bridge.
func (b *Bridge) InvalidateAll() {
	b.cache.InvalidatePrefix("")
}

// DirectRows runs a read-only SQL query against the application's own
// database, when the direct store is enabled. Results may lag the
// scripting interface; callers opt in to that.
func (b *Bridge) DirectRows(ctx context.Context, query string, args ...any) ([]map[string]string, error) {
	if b.store == nil {
		return nil, ErrStoreDisabled
	}
	return b.store.QueryRows(ctx, query, args...)
}

// Close releases resources not tied to Run's context (the direct store).
func (b *Bridge) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

// invalidateFor is the queue's success hook. It runs after the mutation
// committed and before the caller's handle resolves, so a waiter can
// immediately re-read without seeing its own write shadowed by a stale
// entry.
func (b *Bridge) invalidateFor(snap queue.Snapshot) {
	prefixes, ok := b.invalidation[snap.Kind]
	if !ok {
		// Unmapped kind: flush everything rather than guess.
		prefixes = []string{""}
	}
	removed := b.cache.InvalidatePrefix(prefixes...)
	b.logger.Debug("cache invalidated after mutation",
		"op_id", snap.ID, "kind", snap.Kind, "removed", removed)
}
