package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/osabridge/internal/bridge"
	"github.com/roach88/osabridge/internal/config"
	"github.com/roach88/osabridge/internal/executor"
	"github.com/roach88/osabridge/internal/queue"
	"github.com/roach88/osabridge/internal/script"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Write    bool
	Kind     string
	Priority string
	Key      string
	TTL      time.Duration
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <source>",
		Short: "Run one command through the bridge",
		Long: `Run a single script command through the bridge.

Reads go through the result cache (keyed by --key when given); writes
are serialized through the operation queue and retried on transient
engine failures.

Example:
  osabridge exec 'tell application "Things3" to get name of every to do'
  osabridge exec --write --kind todo.update 'tell application "Things3" to ...'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Write, "write", false, "command mutates application state")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "mutation kind for cache invalidation (writes only)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "normal", "write priority (low|normal|high)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "cache key for the read result (empty bypasses the cache)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "cache ttl for the read result (0 uses the configured default)")

	return cmd
}

// execReport is the success payload for one executed command.
type execReport struct {
	Output   string `json:"output"`
	Latency  string `json:"latency"`
	Attempts int    `json:"attempts"`
	CallID   string `json:"call_id"`
}

func runExec(opts *ExecOptions, source string, cmd *cobra.Command) error {
	priority, err := parsePriority(opts.Priority)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid priority", err)
	}

	return withBridge(opts.RootOptions, func(ctx context.Context, b *bridge.Bridge) error {
		var res *executor.Result
		if opts.Write {
			res, err = b.Do(ctx, bridge.Mutation{
				Command:  script.NewWrite(source),
				Kind:     opts.Kind,
				Priority: priority,
			})
		} else {
			res, err = b.Read(ctx, opts.Key, opts.TTL, script.NewRead(source))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "execution fault", err)
		}

		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		if !res.OK {
			_ = f.Error(string(res.Err.Code), res.Err.Message, res.Err.Hint)
			return WrapExitError(ExitFailure, "engine call failed", res.Err)
		}
		if opts.Format == "json" {
			return f.Success(execReport{
				Output:   res.Output,
				Latency:  res.Latency.String(),
				Attempts: res.Attempts,
				CallID:   res.CallID,
			})
		}
		return f.Success(res.Output)
	})
}

// parsePriority maps the flag value to a queue priority band.
func parsePriority(s string) (queue.Priority, error) {
	switch s {
	case "low":
		return queue.PriorityLow, nil
	case "normal", "":
		return queue.PriorityNormal, nil
	case "high":
		return queue.PriorityHigh, nil
	default:
		return 0, fmt.Errorf("unknown priority %q: must be low, normal, or high", s)
	}
}

// withBridge builds a bridge from the configured file, runs its worker
// for the duration of fn, and tears it down afterwards.
func withBridge(opts *RootOptions, fn func(ctx context.Context, b *bridge.Bridge) error) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	b, err := bridge.New(cfg, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "building bridge", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
		_ = b.Close()
	}()

	return fn(ctx, b)
}
