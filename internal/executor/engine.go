package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Engine runs one block of script source and returns its raw output.
//
// Run must honor ctx cancellation: when the deadline passes the call is
// aborted and Run returns ctx's error (possibly wrapped). Production use
// shells out per call; tests substitute a fake engine, so a hang in one
// call can never block another at this layer.
type Engine interface {
	Run(ctx context.Context, source string) (string, error)
}

// OSAEngine executes script source through a one-shot scripting-runtime
// process invocation per call.
type OSAEngine struct {
	// Binary is the scripting runtime executable (default "osascript").
	Binary string
}

// NewOSAEngine returns an engine shelling out to the given binary,
// defaulting to "osascript" when empty.
func NewOSAEngine(binary string) *OSAEngine {
	if binary == "" {
		binary = "osascript"
	}
	return &OSAEngine{Binary: binary}
}

// Run executes the source in a fresh subprocess. Stdout is the result;
// on non-zero exit the stderr text is returned as the error so the
// executor can classify it.
func (e *OSAEngine) Run(ctx context.Context, source string) (string, error) {
	cmd := exec.CommandContext(ctx, e.Binary, "-e", source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Context expiry wins over the process error: a killed process
		// reports a generic signal exit, but the cause is the deadline.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s", strings.TrimSpace(stderr.String()))
		}
		// Binary missing or not startable: the engine itself is gone.
		return "", fmt.Errorf("application isn't running: %w", err)
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}
